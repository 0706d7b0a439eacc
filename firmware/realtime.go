package firmware

// RealtimeCommand is a single-byte command executed by the firmware as soon
// as it is received, bypassing the line buffer.
type RealtimeCommand uint8

const (
	RealtimeStatusQuery RealtimeCommand = iota
	RealtimeFeedHold
	RealtimeCycleStart
	RealtimeSoftReset
	RealtimeSafetyDoor
	RealtimeJogCancel
	RealtimeParserState
)

func (c RealtimeCommand) String() string {
	switch c {
	case RealtimeStatusQuery:
		return "status-query"
	case RealtimeFeedHold:
		return "feed-hold"
	case RealtimeCycleStart:
		return "cycle-start"
	case RealtimeSoftReset:
		return "soft-reset"
	case RealtimeSafetyDoor:
		return "safety-door"
	case RealtimeJogCancel:
		return "jog-cancel"
	case RealtimeParserState:
		return "parser-state"
	default:
		return "unknown"
	}
}

// Override adjusts feed, rapid or spindle rates, or toggles accessories,
// while a program runs.
type Override uint8

const (
	OverrideFeedReset Override = iota
	OverrideFeedPlus10
	OverrideFeedMinus10
	OverrideFeedPlus1
	OverrideFeedMinus1
	OverrideRapid100
	OverrideRapid50
	OverrideRapid25
	OverrideSpindleReset
	OverrideSpindlePlus10
	OverrideSpindleMinus10
	OverrideSpindlePlus1
	OverrideSpindleMinus1
	OverrideToggleSpindleStop
	OverrideToggleFloodCoolant
	OverrideToggleMistCoolant
)

var overrideNames = [...]string{
	OverrideFeedReset:          "feed-reset",
	OverrideFeedPlus10:         "feed+10",
	OverrideFeedMinus10:        "feed-10",
	OverrideFeedPlus1:          "feed+1",
	OverrideFeedMinus1:         "feed-1",
	OverrideRapid100:           "rapid-100",
	OverrideRapid50:            "rapid-50",
	OverrideRapid25:            "rapid-25",
	OverrideSpindleReset:       "spindle-reset",
	OverrideSpindlePlus10:      "spindle+10",
	OverrideSpindleMinus10:     "spindle-10",
	OverrideSpindlePlus1:       "spindle+1",
	OverrideSpindleMinus1:      "spindle-1",
	OverrideToggleSpindleStop:  "toggle-spindle-stop",
	OverrideToggleFloodCoolant: "toggle-flood",
	OverrideToggleMistCoolant:  "toggle-mist",
}

func (o Override) String() string {
	if int(o) < len(overrideNames) {
		return overrideNames[o]
	}

	return "unknown"
}

// ParseOverride maps a name as returned by Override.String back to the value.
func ParseOverride(name string) (Override, bool) {
	for i, n := range overrideNames {
		if n == name {
			return Override(i), true
		}
	}

	return 0, false
}
