package app

import (
	"github.com/spf13/pflag"

	"tmcuart/core"
	"tmcuart/host/chain"
	"tmcuart/host/cmd/tmc-host/options"
	"tmcuart/standalone/config"
)

// session opens the chain on first use and keeps it for the rest of the
// process, so shell commands share one port.
type session struct {
	opts  *options.Options
	flags *pflag.FlagSet
	node  string

	cfg   *config.Config
	chain *chain.Chain
}

func newSession(o *options.Options, fs *pflag.FlagSet) *session {
	return &session{opts: o, flags: fs}
}

func (s *session) config() (*config.Config, error) {
	if s.cfg == nil {
		cfg, err := s.opts.Config(s.flags)
		if err != nil {
			return nil, err
		}
		s.cfg = cfg
	}
	return s.cfg, nil
}

func (s *session) open() (*chain.Chain, error) {
	if s.chain != nil {
		return s.chain, nil
	}
	cfg, err := s.config()
	if err != nil {
		return nil, err
	}
	c, err := chain.Open(cfg)
	if err != nil {
		return nil, err
	}
	s.chain = c
	return c, nil
}

// nodeName is the node selected in the shell, else the --node flag
func (s *session) nodeName() string {
	if s.node != "" {
		return s.node
	}
	return s.opts.Node
}

func (s *session) device() (*core.Device, error) {
	c, err := s.open()
	if err != nil {
		return nil, err
	}
	return c.Device(s.nodeName())
}

func (s *session) nodeConfig() (config.NodeConfig, error) {
	cfg, err := s.config()
	if err != nil {
		return config.NodeConfig{}, err
	}
	name := s.nodeName()
	if name == "" {
		c, err := s.open()
		if err != nil {
			return config.NodeConfig{}, err
		}
		name = c.Names()[0]
	}
	n, ok := cfg.Node(name)
	if !ok {
		return config.NodeConfig{}, errUnknownNode(name)
	}
	return n, nil
}

func (s *session) close() error {
	if s.chain == nil {
		return nil
	}
	err := s.chain.Close()
	s.chain = nil
	return err
}
