//go:build !wasm

package serial

import (
	"time"

	"go.bug.st/serial"
)

func init() {
	registerDriver(DriverBugst, openBugst)
}

// BugstPort wraps a go.bug.st/serial port
type BugstPort struct {
	serial.Port
}

func openBugst(cfg *Config) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, err
	}
	timeout := serial.NoTimeout
	if cfg.ReadTimeout > 0 {
		timeout = time.Duration(cfg.ReadTimeout) * time.Millisecond
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}
	return &BugstPort{Port: port}, nil
}

// Flush discards unread input
func (p *BugstPort) Flush() error {
	return p.Port.ResetInputBuffer()
}

// ListPorts returns the serial ports present on the system
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
