package transport

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate is the GRBL default serial speed.
const DefaultBaudRate = 115200

// OpenSerial opens a serial device in 8N1 mode.
func OpenSerial(path string, baudRate int) (Transport, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, serialError(path, err)
	}

	return NewLineTransport(port), nil
}

func serialError(path string, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.InvalidSerialPort:
			return fmt.Errorf("%w: %s: %w", ErrInvalidPort, path, err)
		case serial.PortClosed:
			return fmt.Errorf("%w: %s: %w", ErrClosed, path, err)
		default:
		}
	}

	return fmt.Errorf("transport: open %s: %w", path, err)
}

// PortInfo describes one serial port found on the system.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates the serial ports of the system.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: enumerate ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	return ports, nil
}
