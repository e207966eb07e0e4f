package config

import (
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"
	"sigs.k8s.io/yaml"

	"tmcuart/core"
	"tmcuart/host/serial"
	"tmcuart/protocol"
)

// DriverSim selects the in-memory chip simulator instead of a serial port
const DriverSim = "sim"

// coercedNames are what an unquoted boolean-looking node name decodes to
var coercedNames = sets.New("true", "false")

// Config describes one UART bus and the nodes on it
type Config struct {
	Serial       SerialConfig `json:"serial"`
	Framing      string       `json:"framing,omitempty"`
	ReplyTimeout string       `json:"replyTimeout,omitempty"` // Go duration, e.g. "100ms"
	Nodes        []NodeConfig `json:"nodes"`
}

// SerialConfig selects and configures the serial port
type SerialConfig struct {
	Device        string `json:"device,omitempty"`
	Baud          int    `json:"baud,omitempty"`
	Driver        string `json:"driver,omitempty"`
	ReadTimeoutMs int    `json:"readTimeoutMs,omitempty"`
	Echo          bool   `json:"echo,omitempty"` // Single-wire adapter returns what it sends
}

// NodeConfig describes one driver node. Zero values take defaults.
type NodeConfig struct {
	Name         string  `json:"name"`
	Address      uint8   `json:"address"`
	StepsPerTurn uint16  `json:"stepsPerTurn,omitempty"`
	Microsteps   uint32  `json:"microsteps,omitempty"`
	Inverted     bool    `json:"inverted,omitempty"`
	Shaft        bool    `json:"shaft,omitempty"`
	ClockHz      float64 `json:"clockHz,omitempty"`
	PositionRPM  float64 `json:"positionRPM,omitempty"`
	RunCurrent   uint8   `json:"runCurrent,omitempty"`
	HoldCurrent  uint8   `json:"holdCurrent,omitempty"`
	HoldDelay    uint8   `json:"holdDelay,omitempty"`
	SendDelay    uint8   `json:"sendDelay,omitempty"`
	Toff         uint8   `json:"toff,omitempty"`
	VerifyWrites bool    `json:"verifyWrites,omitempty"`
}

// LoadConfig parses a YAML or JSON configuration, applies defaults and validates it
func LoadConfig(data []byte) (*Config, error) {
	var config Config

	if err := yaml.UnmarshalStrict(data, &config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads and parses the configuration at path
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return LoadConfig(data)
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Config) {
	def := serial.DefaultConfig(config.Serial.Device)
	if config.Serial.Driver == "" {
		config.Serial.Driver = def.Driver
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = def.Baud
	}
	if config.Serial.ReadTimeoutMs == 0 {
		config.Serial.ReadTimeoutMs = def.ReadTimeout
	}

	if config.Framing == "" {
		config.Framing = protocol.FramingPadded.String()
	}
	if config.ReplyTimeout == "" {
		config.ReplyTimeout = protocol.DefaultReplyTimeout.String()
	}

	// Apply defaults to each node
	settings := core.DefaultSettings()
	for i := range config.Nodes {
		node := &config.Nodes[i]
		if node.StepsPerTurn == 0 {
			node.StepsPerTurn = 200 // 1.8° motor
		}
		if node.Microsteps == 0 {
			node.Microsteps = core.DefaultMicrostepResolution.Multiplier()
		}
		if node.ClockHz == 0 {
			node.ClockHz = core.DefaultClockHz
		}
		if node.PositionRPM == 0 {
			node.PositionRPM = core.DefaultPositionRPM
		}
		if node.RunCurrent == 0 {
			node.RunCurrent = settings.RunCurrent
		}
		if node.HoldCurrent == 0 {
			node.HoldCurrent = settings.HoldCurrent
		}
		if node.HoldDelay == 0 {
			node.HoldDelay = settings.HoldDelay
		}
		if node.SendDelay == 0 {
			node.SendDelay = settings.SendDelay
		}
		if node.Toff == 0 {
			node.Toff = settings.Toff
		}
	}
}

// DefaultConfig returns a single-node configuration for a USB-UART adapter
func DefaultConfig() *Config {
	config := &Config{
		Serial: SerialConfig{Device: "/dev/ttyUSB0"},
		Nodes: []NodeConfig{
			{Name: "x", Address: 0, Microsteps: 16},
		},
	}
	applyDefaults(config)
	return config
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SerialPortConfig converts the serial section for the port drivers
func (c *Config) SerialPortConfig() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		Driver:      c.Serial.Driver,
		ReadTimeout: c.Serial.ReadTimeoutMs,
	}
}

// Codec returns the datagram codec for the configured framing
func (c *Config) Codec() (protocol.Codec, error) {
	f, err := protocol.ParseFraming(c.Framing)
	if err != nil {
		return protocol.Codec{}, err
	}
	return protocol.CodecFor(f), nil
}

// BusOptions returns the bus settings of the configuration
func (c *Config) BusOptions(log logr.Logger) []protocol.BusOption {
	return []protocol.BusOption{
		protocol.WithReplyTimeout(c.replyTimeout()),
		protocol.WithEcho(c.Serial.Echo),
		protocol.WithBusLogger(log),
	}
}

// Node looks a node up by name
func (c *Config) Node(name string) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// Resolution returns the microstep encoding of the node
func (n NodeConfig) Resolution() (core.MicrostepResolution, error) {
	return core.MicrostepsFromMultiplier(n.Microsteps)
}

// DeviceOptions returns the core options for the node
func (n NodeConfig) DeviceOptions(codec protocol.Codec, log logr.Logger) []core.Option {
	opts := []core.Option{
		core.WithCodec(codec),
		core.WithClockHz(n.ClockHz),
		core.WithInverted(n.Inverted),
		core.WithPositionRPM(n.PositionRPM),
		core.WithWriteVerify(n.VerifyWrites),
		core.WithLogger(log.WithValues("name", n.Name)),
	}
	// The node is assumed to already run at its configured resolution
	if m, err := n.Resolution(); err == nil {
		opts = append(opts, core.WithMicrostepResolution(m))
	}
	return opts
}

// Settings returns the startup register settings of the node
func (n NodeConfig) Settings() (core.Settings, error) {
	m, err := n.Resolution()
	if err != nil {
		return core.Settings{}, err
	}
	return core.Settings{
		SendDelay:   n.SendDelay,
		Toff:        n.Toff,
		HoldCurrent: n.HoldCurrent,
		RunCurrent:  n.RunCurrent,
		HoldDelay:   n.HoldDelay,
		Shaft:       n.Shaft,
		Microsteps:  m,
	}, nil
}

func (c *Config) replyTimeout() time.Duration {
	d, err := time.ParseDuration(c.ReplyTimeout)
	if err != nil || d <= 0 {
		return protocol.DefaultReplyTimeout
	}
	return d
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() error {
	return c.validate().ToAggregate()
}

func (c *Config) validate() field.ErrorList {
	var allErrs field.ErrorList

	serialPath := field.NewPath("serial")
	drivers := append(serial.Drivers(), DriverSim)
	if !sets.New(drivers...).Has(c.Serial.Driver) {
		allErrs = append(allErrs, field.NotSupported(serialPath.Child("driver"), c.Serial.Driver, drivers))
	}
	if c.Serial.Device == "" && c.Serial.Driver != DriverSim {
		allErrs = append(allErrs, field.Required(serialPath.Child("device"), ""))
	}
	if c.Serial.Baud <= 0 {
		allErrs = append(allErrs, field.Invalid(serialPath.Child("baud"), c.Serial.Baud, "must be positive"))
	}
	if c.Serial.ReadTimeoutMs < 0 {
		allErrs = append(allErrs, field.Invalid(serialPath.Child("readTimeoutMs"), c.Serial.ReadTimeoutMs, "must not be negative"))
	}

	if _, err := protocol.ParseFraming(c.Framing); err != nil {
		allErrs = append(allErrs, field.NotSupported(field.NewPath("framing"), c.Framing,
			[]string{protocol.FramingPadded.String(), protocol.FramingDatasheet.String()}))
	}
	if d, err := time.ParseDuration(c.ReplyTimeout); err != nil || d <= 0 {
		allErrs = append(allErrs, field.Invalid(field.NewPath("replyTimeout"), c.ReplyTimeout, "must be a positive duration"))
	}

	nodesPath := field.NewPath("nodes")
	switch {
	case len(c.Nodes) == 0:
		allErrs = append(allErrs, field.Required(nodesPath, "at least one node"))
	case len(c.Nodes) > int(protocol.MaxNodeAddress)+1:
		allErrs = append(allErrs, field.TooMany(nodesPath, len(c.Nodes), int(protocol.MaxNodeAddress)+1))
	}

	names := map[string]bool{}
	addresses := map[uint8]bool{}
	for i, n := range c.Nodes {
		p := nodesPath.Index(i)
		switch {
		case n.Name == "":
			allErrs = append(allErrs, field.Required(p.Child("name"), ""))
		case coercedNames.Has(n.Name):
			allErrs = append(allErrs, field.Invalid(p.Child("name"), n.Name,
				"YAML reads unquoted y, n, yes, no, on and off as booleans; quote the name"))
		case names[n.Name]:
			allErrs = append(allErrs, field.Duplicate(p.Child("name"), n.Name))
		}
		names[n.Name] = true

		if !protocol.NodeAddress(n.Address).Valid() {
			allErrs = append(allErrs, field.Invalid(p.Child("address"), n.Address, "must be 0..3"))
		} else if addresses[n.Address] {
			allErrs = append(allErrs, field.Duplicate(p.Child("address"), n.Address))
		}
		addresses[n.Address] = true

		if n.StepsPerTurn == 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("stepsPerTurn"), n.StepsPerTurn, "must be positive"))
		}
		if _, err := n.Resolution(); err != nil {
			allErrs = append(allErrs, field.Invalid(p.Child("microsteps"), n.Microsteps, "must be a power of two from 1 to 256"))
		}
		if n.ClockHz <= 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("clockHz"), n.ClockHz, "must be positive"))
		}
		if n.PositionRPM <= 0 {
			allErrs = append(allErrs, field.Invalid(p.Child("positionRPM"), n.PositionRPM, "must be positive"))
		}
		allErrs = append(allErrs, checkField(p.Child("runCurrent"), n.RunCurrent, protocol.IRUN)...)
		allErrs = append(allErrs, checkField(p.Child("holdCurrent"), n.HoldCurrent, protocol.IHOLD)...)
		allErrs = append(allErrs, checkField(p.Child("holdDelay"), n.HoldDelay, protocol.IHOLDDELAY)...)
		allErrs = append(allErrs, checkField(p.Child("sendDelay"), n.SendDelay, protocol.NODECONFSendDelay)...)
		allErrs = append(allErrs, checkField(p.Child("toff"), n.Toff, protocol.CHOPCONFToff)...)
		if len(c.Nodes) > 1 && n.SendDelay < 2 {
			allErrs = append(allErrs, field.Invalid(p.Child("sendDelay"), n.SendDelay, "must be at least 2 when nodes share the bus"))
		}
	}
	return allErrs
}

func checkField(p *field.Path, v uint8, f protocol.Field) field.ErrorList {
	if uint32(v) > f.Max() {
		return field.ErrorList{field.Invalid(p, v, "exceeds register field maximum")}
	}
	return nil
}
