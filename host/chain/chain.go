// Package chain opens a serial port and binds one device handle to every
// node configured on it.
package chain

import (
	"sort"

	"github.com/pkg/errors"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"tmcuart/core"
	"tmcuart/host/serial"
	"tmcuart/protocol"
	"tmcuart/standalone/config"
)

// Chain is an open connection to the nodes sharing one UART
type Chain struct {
	bus     *protocol.Bus
	codec   protocol.Codec
	sim     *protocol.Simulator
	devices map[string]*core.Device
	nodes   map[string]config.NodeConfig

	connected bool
}

// NodeInfo is what Identify learns about a node
type NodeInfo struct {
	Name    string
	Address protocol.NodeAddress
	Version uint8
	Writes  uint8
	Status  core.GlobalStatus
	Err     error
}

// Open opens the configured serial port, or a simulator for driver "sim"
func Open(cfg *config.Config) (*Chain, error) {
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	if cfg.Serial.Driver == config.DriverSim {
		addrs := make([]protocol.NodeAddress, 0, len(cfg.Nodes))
		for _, n := range cfg.Nodes {
			addrs = append(addrs, protocol.NodeAddress(n.Address))
		}
		sim := protocol.NewSimulator(codec, addrs...)
		sim.SetEcho(cfg.Serial.Echo)
		c, err := OpenTransport(cfg, sim)
		if err != nil {
			return nil, err
		}
		c.sim = sim
		return c, nil
	}

	port, err := serial.Open(cfg.SerialPortConfig())
	if err != nil {
		return nil, err
	}
	klog.V(2).InfoS("Opened serial port", "device", cfg.Serial.Device, "baud", cfg.Serial.Baud, "driver", cfg.Serial.Driver)

	c, err := OpenTransport(cfg, serial.NewTransport(port))
	if err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

// OpenTransport binds the configured nodes to an already open transport
func OpenTransport(cfg *config.Config, t protocol.Transport) (*Chain, error) {
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}
	log := klog.Background()

	c := &Chain{
		bus:     protocol.NewBus(t, cfg.BusOptions(log.WithName("bus"))...),
		codec:   codec,
		devices: make(map[string]*core.Device, len(cfg.Nodes)),
		nodes:   make(map[string]config.NodeConfig, len(cfg.Nodes)),
	}
	for _, n := range cfg.Nodes {
		dev, err := core.New(protocol.NodeAddress(n.Address), nil, c.bus, n.StepsPerTurn,
			n.DeviceOptions(codec, log.WithName("tmc2226"))...)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", n.Name)
		}
		c.devices[n.Name] = dev
		c.nodes[n.Name] = n
	}
	c.connected = true
	klog.V(2).InfoS("Chain ready", "nodes", len(c.devices), "framing", codec.Framing.String())
	return c, nil
}

// Names returns the node names sorted by address
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.nodes))
	for name := range c.nodes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.nodes[names[i]].Address < c.nodes[names[j]].Address
	})
	return names
}

// Device returns the handle of the named node. An empty name selects the
// node with the lowest address.
func (c *Chain) Device(name string) (*core.Device, error) {
	if !c.connected {
		return nil, protocol.ErrBusClosed
	}
	if name == "" {
		if names := c.Names(); len(names) > 0 {
			name = names[0]
		}
	}
	dev, ok := c.devices[name]
	if !ok {
		return nil, errors.Errorf("unknown node %q, configured: %v", name, c.Names())
	}
	return dev, nil
}

// Configure applies the configured startup settings to every node
func (c *Chain) Configure() error {
	var errs []error
	for _, name := range c.Names() {
		settings, err := c.nodes[name].Settings()
		if err == nil {
			err = c.devices[name].Configure(settings)
		}
		if err != nil {
			klog.ErrorS(err, "Failed to configure node", "node", name)
			errs = append(errs, errors.Wrapf(err, "node %s", name))
			continue
		}
		klog.V(2).InfoS("Configured node", "node", name, "microsteps", settings.Microsteps.Multiplier())
	}
	return utilerrors.NewAggregate(errs)
}

// Identify reads identification and status from every node
func (c *Chain) Identify() []NodeInfo {
	infos := make([]NodeInfo, 0, len(c.devices))
	for _, name := range c.Names() {
		dev := c.devices[name]
		info := NodeInfo{Name: name, Address: dev.Node()}
		if info.Version, info.Err = dev.Version(); info.Err == nil {
			if info.Writes, info.Err = dev.InterfaceCount(); info.Err == nil {
				info.Status, info.Err = dev.GlobalStatus()
			}
		}
		if info.Err != nil {
			klog.V(2).InfoS("Identify failed", "node", name, "err", info.Err)
		}
		infos = append(infos, info)
	}
	return infos
}

// Stop stops every node, continuing past failures
func (c *Chain) Stop() error {
	var errs []error
	for _, name := range c.Names() {
		if err := c.devices[name].Stop(); err != nil {
			errs = append(errs, errors.Wrapf(err, "node %s", name))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Stats returns the bus counters
func (c *Chain) Stats() protocol.BusStats {
	return c.bus.Stats()
}

// Simulator returns the simulator behind a chain opened with driver "sim"
func (c *Chain) Simulator() *protocol.Simulator {
	return c.sim
}

// Close closes the bus and the serial port behind it
func (c *Chain) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.bus.Close()
}
