package options

import (
	"github.com/spf13/pflag"

	"tmcuart/standalone/config"
)

// Options are the flags shared by every subcommand
type Options struct {
	ConfigFile string
	Device     string
	Baud       int
	Driver     string
	Framing    string
	Echo       bool
	Node       string
}

// NewDefaultOptions returns options with no overrides
func NewDefaultOptions() *Options {
	return &Options{}
}

// AddFlags binds the options to fs
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Configuration file (YAML or JSON); defaults are used when empty")
	fs.StringVarP(&o.Device, "device", "d", o.Device, "Serial device path, overrides the configuration")
	fs.IntVar(&o.Baud, "baud", o.Baud, "Baud rate, overrides the configuration")
	fs.StringVar(&o.Driver, "driver", o.Driver, "Serial driver: tarm, bugst or sim")
	fs.StringVar(&o.Framing, "framing", o.Framing, "Datagram framing: padded or datasheet")
	fs.BoolVar(&o.Echo, "echo", o.Echo, "Discard the local echo of a single-wire adapter")
	fs.StringVarP(&o.Node, "node", "n", o.Node, "Node name; the lowest address when empty")
}

// Config loads the configuration file and applies flag overrides.
// Only flags set on the command line replace configured values.
func (o *Options) Config(fs *pflag.FlagSet) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if o.ConfigFile != "" {
		var err error
		if cfg, err = config.LoadFile(o.ConfigFile); err != nil {
			return nil, err
		}
	}

	if fs.Changed("device") {
		cfg.Serial.Device = o.Device
	}
	if fs.Changed("baud") {
		cfg.Serial.Baud = o.Baud
	}
	if fs.Changed("driver") {
		cfg.Serial.Driver = o.Driver
	}
	if fs.Changed("framing") {
		cfg.Framing = o.Framing
	}
	if fs.Changed("echo") {
		cfg.Serial.Echo = o.Echo
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
