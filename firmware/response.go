package firmware

import "github.com/arloliu/go-gsender/machine"

// ResponseKind classifies a line received from the firmware.
type ResponseKind uint8

const (
	ResponseNone ResponseKind = iota
	ResponseAck
	ResponseError
	ResponseAlarm
	ResponseStatus
	ResponseProbe
	ResponseParserState
	ResponseWelcome
	ResponseMessage
	ResponseSetting
)

var responseKindNames = [...]string{
	ResponseNone:        "none",
	ResponseAck:         "ack",
	ResponseError:       "error",
	ResponseAlarm:       "alarm",
	ResponseStatus:      "status",
	ResponseProbe:       "probe",
	ResponseParserState: "parser-state",
	ResponseWelcome:     "welcome",
	ResponseMessage:     "message",
	ResponseSetting:     "setting",
}

func (k ResponseKind) String() string {
	if int(k) < len(responseKindNames) {
		return responseKindNames[k]
	}

	return "unknown"
}

// Response is one parsed firmware line. Only the fields matching Kind are set.
type Response struct {
	Kind ResponseKind
	Raw  string

	// Code is the error or alarm number.
	Code int
	// Status is set for ResponseStatus.
	Status machine.StatusUpdate
	// Probe is set for ResponseProbe.
	Probe machine.ProbeResult
	// Parser is set for ResponseParserState.
	Parser machine.ParserState
	// Version is the firmware version of a welcome banner.
	Version string
	// Message is the text of a feedback message.
	Message string
	// Setting is set for ResponseSetting.
	Setting Setting
}

// Setting is one "$n=value" line.
type Setting struct {
	Key   string
	Value string
}

// IsAcknowledgment reports whether the response completes a sent line.
func (r Response) IsAcknowledgment() bool {
	return r.Kind == ResponseAck || r.Kind == ResponseError
}
