package firmware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-gsender/machine"
)

const (
	grblName           = "grbl"
	grblBufferCapacity = 128
)

var grblRealtime = map[RealtimeCommand]byte{
	RealtimeStatusQuery: '?',
	RealtimeFeedHold:    '!',
	RealtimeCycleStart:  '~',
	RealtimeSoftReset:   0x18,
	RealtimeSafetyDoor:  0x84,
	RealtimeJogCancel:   0x85,
}

var grblOverrides = map[Override]byte{
	OverrideFeedReset:          0x90,
	OverrideFeedPlus10:         0x91,
	OverrideFeedMinus10:        0x92,
	OverrideFeedPlus1:          0x93,
	OverrideFeedMinus1:         0x94,
	OverrideRapid100:           0x95,
	OverrideRapid50:            0x96,
	OverrideRapid25:            0x97,
	OverrideSpindleReset:       0x99,
	OverrideSpindlePlus10:      0x9A,
	OverrideSpindleMinus10:     0x9B,
	OverrideSpindlePlus1:       0x9C,
	OverrideSpindleMinus1:      0x9D,
	OverrideToggleSpindleStop:  0x9E,
	OverrideToggleFloodCoolant: 0xA0,
	OverrideToggleMistCoolant:  0xA1,
}

var grblSystemCommands = map[SystemCommand]string{
	SystemUnlock:      "$X",
	SystemHoming:      "$H",
	SystemCheckMode:   "$C",
	SystemParserState: "$G",
	SystemSettings:    "$$",
}

// Grbl is the dialect of GRBL 1.1.
type Grbl struct {
	banners []string
}

var _ Dialect = (*Grbl)(nil)

// NewGrbl creates the GRBL 1.1 dialect.
func NewGrbl() *Grbl {
	return &Grbl{banners: []string{"grbl "}}
}

func (g *Grbl) Name() string { return grblName }

func (g *Grbl) BufferCapacity() int { return grblBufferCapacity }

func (g *Grbl) SupportsRealtimeParserState() bool { return false }

func (g *Grbl) Realtime(cmd RealtimeCommand) (byte, error) {
	b, ok := grblRealtime[cmd]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrUnsupported, cmd, grblName)
	}

	return b, nil
}

func (g *Grbl) Override(o Override) (byte, error) {
	b, ok := grblOverrides[o]
	if !ok {
		return 0, fmt.Errorf("%w: override %d", ErrUnsupported, o)
	}

	return b, nil
}

func (g *Grbl) SystemCommand(cmd SystemCommand) string {
	return grblSystemCommands[cmd]
}

func (g *Grbl) ErrorDescription(code int) string {
	return describe(grblErrors, "error", code)
}

func (g *Grbl) AlarmDescription(code int) string {
	return describe(grblAlarms, "alarm", code)
}

// ParseLine classifies and decodes one firmware line.
func (g *Grbl) ParseLine(line string, units machine.Units) (Response, error) {
	line = strings.TrimSpace(line)
	resp := Response{Raw: line}

	switch {
	case line == "":
		return resp, nil

	case line == "ok":
		resp.Kind = ResponseAck
		return resp, nil

	case strings.HasPrefix(line, "error:"):
		code, err := strconv.Atoi(line[len("error:"):])
		if err != nil {
			return resp, malformed(line, err)
		}
		resp.Kind, resp.Code = ResponseError, code
		return resp, nil

	case strings.HasPrefix(line, "ALARM:"):
		code, err := strconv.Atoi(line[len("ALARM:"):])
		if err != nil {
			return resp, malformed(line, err)
		}
		resp.Kind, resp.Code = ResponseAlarm, code
		return resp, nil

	case strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">"):
		status, err := parseStatus(line[1:len(line)-1], units)
		if err != nil {
			return resp, malformed(line, err)
		}
		resp.Kind, resp.Status = ResponseStatus, status
		return resp, nil

	case strings.HasPrefix(line, "[PRB:") && strings.HasSuffix(line, "]"):
		probe, err := parseProbe(line[len("[PRB:"):len(line)-1], units)
		if err != nil {
			return resp, malformed(line, err)
		}
		resp.Kind, resp.Probe = ResponseProbe, probe
		return resp, nil

	case strings.HasPrefix(line, "[GC:") && strings.HasSuffix(line, "]"):
		resp.Kind = ResponseParserState
		resp.Parser = parseParserState(line[len("[GC:") : len(line)-1])
		return resp, nil

	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		resp.Kind = ResponseMessage
		resp.Message = strings.TrimPrefix(line[1:len(line)-1], "MSG:")
		return resp, nil

	case strings.HasPrefix(line, "$") && strings.Contains(line, "="):
		key, value, _ := strings.Cut(line, "=")
		resp.Kind = ResponseSetting
		resp.Setting = Setting{Key: key, Value: value}
		return resp, nil

	case strings.HasPrefix(line, ">"):
		// startup block execution report, ">G54:ok"
		resp.Kind = ResponseMessage
		resp.Message = line[1:]
		return resp, nil
	}

	if version, ok := g.parseWelcome(line); ok {
		resp.Kind, resp.Version = ResponseWelcome, version
		return resp, nil
	}

	return resp, malformed(line, nil)
}

func (g *Grbl) parseWelcome(line string) (string, bool) {
	lower := strings.ToLower(line)
	for _, banner := range g.banners {
		if strings.HasPrefix(lower, banner) {
			version, _, _ := strings.Cut(line[len(banner):], " ")
			return version, true
		}
	}

	return "", false
}

func malformed(line string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrMalformedResponse, line, err)
	}

	return fmt.Errorf("%w: %q", ErrMalformedResponse, line)
}

func describe(codes map[int]string, kind string, code int) string {
	if desc, ok := codes[code]; ok {
		return desc
	}

	return fmt.Sprintf("unknown %s %d", kind, code)
}
