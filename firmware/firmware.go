// Package firmware abstracts the differences between GRBL-class firmwares:
// how their responses are parsed, how real-time and override commands are
// encoded and how large their serial receive buffer is.
//
// A Dialect is selected by name at connect time through Lookup.
package firmware

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/arloliu/go-gsender/machine"
)

var (
	// ErrUnknownFirmware is returned by Lookup for an unregistered dialect name.
	ErrUnknownFirmware = errors.New("firmware: unknown firmware")
	// ErrMalformedResponse is returned for a line that no parser recognizes.
	ErrMalformedResponse = errors.New("firmware: malformed response")
	// ErrUnsupported is returned when a dialect cannot encode a command.
	ErrUnsupported = errors.New("firmware: unsupported command")
)

// Dialect is the capability abstraction over one firmware family.
type Dialect interface {
	// Name returns the registry name of the dialect.
	Name() string
	// BufferCapacity returns the size in bytes of the firmware receive buffer.
	BufferCapacity() int
	// ParseLine parses one line received from the firmware. Positions are
	// tagged with the given report units. Blank lines yield ResponseNone.
	ParseLine(line string, units machine.Units) (Response, error)
	// Realtime returns the byte encoding a real-time command.
	Realtime(cmd RealtimeCommand) (byte, error)
	// Override returns the byte encoding an override command.
	Override(o Override) (byte, error)
	// SystemCommand returns the line text for a system command.
	SystemCommand(cmd SystemCommand) string
	// SupportsRealtimeParserState reports whether the parser state can be
	// queried with a real-time byte instead of a "$G" line.
	SupportsRealtimeParserState() bool
	// ErrorDescription describes an "error:n" code.
	ErrorDescription(code int) string
	// AlarmDescription describes an "ALARM:n" code.
	AlarmDescription(code int) string
}

// SystemCommand enumerates the "$" line commands the controller issues.
type SystemCommand uint8

const (
	SystemUnlock SystemCommand = iota
	SystemHoming
	SystemCheckMode
	SystemParserState
	SystemSettings
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialect{}
)

// Register makes a dialect available to Lookup under its lower-cased name.
func Register(d Dialect) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[strings.ToLower(d.Name())] = d
}

// Lookup returns the dialect registered under name, case-insensitively.
func Lookup(name string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFirmware, name)
	}

	return d, nil
}

// Names returns the registered dialect names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func init() {
	Register(NewGrbl())
	Register(NewGrblHAL())
}
