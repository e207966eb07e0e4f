//go:build rp2040

// Firmware driving the four TMC2226 drivers of a BTT SKR Pico over UART1.
// Each axis is configured, then swept through quarter turns while driver
// status is polled and faults stop the axis.
package main

import (
	"machine"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"tmcuart/core"
	"tmcuart/protocol"
	"tmcuart/targets/pio"
)

const (
	uartBaud     = 115200
	stepsPerTurn = 200
	pollInterval = 500 * time.Millisecond
	sweepPeriod  = 2 * time.Second
)

// axis wiring of the SKR Pico
type axis struct {
	name    string
	node    protocol.NodeAddress
	stepPin machine.Pin
	dirPin  machine.Pin
}

var axes = []axis{
	{name: "x", node: protocol.Node0, stepPin: machine.GPIO11, dirPin: machine.GPIO10},
	{name: "y", node: protocol.Node2, stepPin: machine.GPIO6, dirPin: machine.GPIO5},
	{name: "z", node: protocol.Node1, stepPin: machine.GPIO19, dirPin: machine.GPIO28},
	{name: "e", node: protocol.Node3, stepPin: machine.GPIO14, dirPin: machine.GPIO13},
}

type motor struct {
	axis
	dev     *core.Device
	faulted bool
}

func main() {
	// Clear any watchdog state left over from a previous run
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	log := funcr.New(func(prefix, args string) {
		println(prefix, args)
	}, funcr.Options{Verbosity: 2})

	uart := machine.UART1
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: uartBaud,
		TX:       machine.GPIO8,
		RX:       machine.GPIO9,
	}); err != nil {
		halt(log, err, "Configure UART")
	}

	// TX and RX share the PDN_UART wire through a resistor, so every byte echoes
	bus := protocol.NewBus(protocol.NewUARTTransport(uart),
		protocol.WithEcho(true),
		protocol.WithBusLogger(log.WithName("bus")))

	settings := core.DefaultSettings()
	settings.Microsteps = core.MicroSteps16

	var motors []*motor
	for _, a := range axes {
		pulses, info, err := pio.NewPulseGenerator(a.stepPin, a.dirPin)
		if err != nil {
			halt(log, err, "Allocate pulse generator", "axis", a.name)
		}
		dev, err := core.New(a.node, pulses, bus, stepsPerTurn,
			core.WithLogger(log.WithName(a.name)),
			core.WithWriteVerify(true))
		if err != nil {
			halt(log, err, "Create device", "axis", a.name)
		}
		if err := dev.Configure(settings); err != nil {
			// A missing driver should not take the other axes down
			log.Error(err, "Configure failed", "axis", a.name)
			continue
		}
		version, _ := dev.Version()
		log.Info("Axis ready", "axis", a.name, "version", version, "pulses", info.Name)
		motors = append(motors, &motor{axis: a, dev: dev})
	}

	angles := []float64{90, 180, 270, 0}
	step := 0
	poll := time.NewTicker(pollInterval)
	sweep := time.NewTicker(sweepPeriod)
	for {
		select {
		case <-poll.C:
			for _, m := range motors {
				m.check(log)
			}
		case <-sweep.C:
			angle := angles[step%len(angles)]
			step++
			for _, m := range motors {
				if m.faulted {
					continue
				}
				if _, err := m.dev.SetAngle(angle); err != nil {
					log.Error(err, "SetAngle failed", "axis", m.name, "angle", angle)
				}
			}
		}
	}
}

// check reads the driver status and stops the axis on a fault
func (m *motor) check(log logr.Logger) {
	if m.faulted {
		return
	}
	status, err := m.dev.Status()
	if err != nil {
		log.V(2).Info("Status read failed", "axis", m.name, "error", err)
		return
	}
	if err := status.Faults(); err != nil {
		m.faulted = true
		log.Error(err, "Driver fault, stopping", "axis", m.name)
		if err := m.dev.Stop(); err != nil {
			log.Error(err, "Stop failed", "axis", m.name)
		}
	}
}

// halt reports a fatal setup error and blinks the LED forever
func halt(log logr.Logger, err error, msg string, kv ...interface{}) {
	log.Error(err, msg, kv...)
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.High()
		time.Sleep(100 * time.Millisecond)
		led.Low()
		time.Sleep(100 * time.Millisecond)
	}
}
