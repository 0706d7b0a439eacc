package firmware

import "github.com/arloliu/go-gsender/machine"

const (
	grblHALName           = "grblhal"
	grblHALBufferCapacity = 1024

	grblHALParserStateQuery = 0x83
)

// GrblHAL is the dialect of grblHAL. It speaks the GRBL 1.1 protocol with a
// larger receive buffer, a real-time parser state query and extra alarm and
// error codes, and delegates everything else to a Grbl value.
type GrblHAL struct {
	grbl *Grbl
}

var _ Dialect = (*GrblHAL)(nil)

// NewGrblHAL creates the grblHAL dialect.
func NewGrblHAL() *GrblHAL {
	return &GrblHAL{grbl: &Grbl{banners: []string{"grblhal ", "grbl "}}}
}

func (h *GrblHAL) Name() string { return grblHALName }

func (h *GrblHAL) BufferCapacity() int { return grblHALBufferCapacity }

func (h *GrblHAL) SupportsRealtimeParserState() bool { return true }

func (h *GrblHAL) ParseLine(line string, units machine.Units) (Response, error) {
	return h.grbl.ParseLine(line, units)
}

func (h *GrblHAL) Realtime(cmd RealtimeCommand) (byte, error) {
	if cmd == RealtimeParserState {
		return grblHALParserStateQuery, nil
	}

	return h.grbl.Realtime(cmd)
}

func (h *GrblHAL) Override(o Override) (byte, error) {
	return h.grbl.Override(o)
}

func (h *GrblHAL) SystemCommand(cmd SystemCommand) string {
	return h.grbl.SystemCommand(cmd)
}

func (h *GrblHAL) ErrorDescription(code int) string {
	if desc, ok := grblHALErrors[code]; ok {
		return desc
	}

	return h.grbl.ErrorDescription(code)
}

func (h *GrblHAL) AlarmDescription(code int) string {
	if desc, ok := grblHALAlarms[code]; ok {
		return desc
	}

	return h.grbl.AlarmDescription(code)
}
