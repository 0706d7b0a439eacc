// Package command defines the unit of work streamed to firmware, together with
// builders for the lines the controller generates itself and a restricted
// arithmetic evaluator used to compute work positions.
package command

import (
	"strings"
	"sync/atomic"

	"github.com/256dpi/gcode"
)

// State is the lifecycle state of a Command.
type State uint32

const (
	StateQueued State = iota
	StateSent
	StateAcknowledged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateSent:
		return "sent"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Metadata is what could be learned from parsing the command text. Commands
// that are not plain G-code (system commands, unparsable text) carry
// Parsed == false and are otherwise treated as opaque.
type Metadata struct {
	Parsed  bool
	System  bool   // "$" command
	Letters string // distinct word letters in order of appearance
	Motion  bool   // G0-G3, G28, G30, G38.x
	Probe   bool   // G38.x
	Offset  bool   // G10, G43.1, G92
}

// Command is one line of text sent to firmware.
//
// The controller assigns ID when it is zero. A command is charged Size bytes
// against the firmware receive buffer while it is in flight.
type Command struct {
	ID                 uint64
	Text               string
	RestoreParserState bool
	Metadata           Metadata

	state     atomic.Uint32
	errorCode atomic.Int32
}

// New creates a queued command from a program line. Comments are stripped
// and the remaining text is parsed for metadata.
func New(text string) *Command {
	text = Clean(text)

	return &Command{Text: text, Metadata: parseMetadata(text)}
}

// NewRestoring creates a command that saves the parser state before it runs
// and restores it once acknowledged.
func NewRestoring(text string) *Command {
	cmd := New(text)
	cmd.RestoreParserState = true

	return cmd
}

// Size returns the number of bytes the command occupies on the wire,
// including the terminating newline.
func (c *Command) Size() int {
	return len(c.Text) + 1
}

// IsEmpty reports whether nothing is left to send after cleaning.
func (c *Command) IsEmpty() bool {
	return c.Text == ""
}

// State returns the current lifecycle state.
func (c *Command) State() State {
	return State(c.state.Load())
}

// ErrorCode returns the firmware error code of a failed command.
func (c *Command) ErrorCode() int {
	return int(c.errorCode.Load())
}

// MarkSent records that the command was written to the transport.
func (c *Command) MarkSent() {
	c.state.Store(uint32(StateSent))
}

// MarkAcknowledged records an "ok" for the command.
func (c *Command) MarkAcknowledged() {
	c.state.Store(uint32(StateAcknowledged))
}

// MarkFailed records an "error:n" for the command.
func (c *Command) MarkFailed(code int) {
	c.errorCode.Store(int32(code)) //nolint:gosec // firmware codes are small
	c.state.Store(uint32(StateFailed))
}

func (c *Command) String() string {
	return c.Text
}

// Clean strips "(...)" and ";..." comments and surrounding whitespace from a
// program line. A blank or comment-only line yields "".
func Clean(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "$") {
		return strings.TrimSpace(line)
	}

	var sb strings.Builder
	depth := 0
	for _, r := range line {
		switch {
		case r == ';' && depth == 0:
			return strings.TrimSpace(sb.String())
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case depth == 0 && r != '\r' && r != '\n':
			sb.WriteRune(r)
		}
	}

	return strings.TrimSpace(sb.String())
}

func parseMetadata(text string) Metadata {
	if text == "" {
		return Metadata{}
	}
	if strings.HasPrefix(text, "$") {
		return Metadata{System: true}
	}

	line, err := gcode.ParseLine(SpaceWords(text))
	if err != nil {
		return Metadata{}
	}

	md := Metadata{Parsed: true}
	var letters strings.Builder
	for _, code := range line.Codes {
		if code.Letter == "" {
			continue
		}
		if !strings.Contains(letters.String(), code.Letter) {
			letters.WriteString(code.Letter)
		}
		if code.Letter != "G" {
			continue
		}

		switch g := code.Value; {
		case g == 0, g == 1, g == 2, g == 3, g == 28, g == 30:
			md.Motion = true
		case g >= 38 && g < 39:
			md.Motion = true
			md.Probe = true
		case g == 10, g == 92, g >= 43 && g < 44:
			md.Offset = true
		}
	}
	md.Letters = letters.String()

	return md
}

// SpaceWords separates packed words such as "G21G91X10F500" so that every
// word starts after a space.
func SpaceWords(text string) string {
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	for i, r := range text {
		isLetter := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
		if isLetter && i > 0 && text[i-1] != ' ' {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
	}

	return sb.String()
}
