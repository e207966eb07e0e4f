package serial

import (
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"

	"tmcuart/protocol"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - go.bug.st/serial, which can also enumerate ports and clear buffers
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush discards received bytes not yet read
	Flush() error
}

// Driver names accepted in Config.Driver
const (
	DriverTarm  = "tarm"
	DriverBugst = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate; the chip detects it automatically from the sync nibble
	Baud int

	// Driver selects the port implementation, "tarm" or "bugst"
	Driver string

	// Read timeout in milliseconds for a single port read (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for a USB-UART adapter
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		Driver:      DriverTarm,
		ReadTimeout: 10,
	}
}

type opener func(cfg *Config) (Port, error)

var drivers = map[string]opener{}

func registerDriver(name string, open opener) {
	drivers[name] = open
}

// Drivers returns the names of the available port drivers
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens a serial port with the driver named in cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	name := cfg.Driver
	if name == "" {
		name = DriverTarm
	}
	open, ok := drivers[name]
	if !ok {
		return nil, errors.Errorf("unknown serial driver %q, available: %v", name, Drivers())
	}
	port, err := open(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}
	return port, nil
}

// Transport adapts a Port to the datagram bus. Stale input is flushed
// before every transmission so a late reply cannot be taken for the next one.
type Transport struct {
	port   Port
	stream protocol.StreamTransport
}

// NewTransport wraps port
func NewTransport(port Port) *Transport {
	return &Transport{port: port, stream: protocol.StreamTransport{RW: port}}
}

// Transmit flushes the input buffer and writes b
func (t *Transport) Transmit(b []byte) error {
	if err := t.port.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return t.stream.Transmit(b)
}

// Receive reads exactly len(buf) bytes
func (t *Transport) Receive(buf []byte, timeout time.Duration) error {
	return t.stream.Receive(buf, timeout)
}

// Close closes the port
func (t *Transport) Close() error {
	return t.port.Close()
}
