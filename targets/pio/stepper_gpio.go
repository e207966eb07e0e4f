//go:build rp2040

package pio

import (
	"device/arm"
	"device/rp"
	"machine"
	"time"

	"tmcuart/core"
)

// gpioQueueDepth matches the PIO TX FIFO depth
const gpioQueueDepth = 4

// GPIOPulseGenerator emits pulse trains from a goroutine toggling SIO
// registers directly. It is the fallback once all PIO state machines are taken.
// Performance: pulse spacing is only as good as the scheduler, ~200ns pulse width
type GPIOPulseGenerator struct {
	stepPin machine.Pin
	dirPin  machine.Pin
	reverse bool

	stepMask uint32
	dirMask  uint32

	queue *trainQueue
}

var _ core.PulseGenerator = (*GPIOPulseGenerator)(nil)

// NewGPIOPulseGenerator creates a GPIO pulse generator
func NewGPIOPulseGenerator() *GPIOPulseGenerator {
	return &GPIOPulseGenerator{queue: newTrainQueue(gpioQueueDepth)}
}

// Init configures the pins and starts the pulse worker
func (b *GPIOPulseGenerator) Init(stepPin, dirPin machine.Pin) error {
	b.stepPin = stepPin
	b.dirPin = dirPin

	b.stepPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.stepPin.Low()
	b.dirPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.dirPin.Low()

	// SIO masks for single-cycle set/clear
	b.stepMask = 1 << uint8(stepPin)
	b.dirMask = 1 << uint8(dirPin)

	go b.queue.serve(b.drive, b.pulse, time.Sleep)
	return nil
}

// pulse generates a single step pulse.
// Pulse width: ~104ns @ 125MHz, TMC drivers need 100ns
func (b *GPIOPulseGenerator) pulse() {
	rp.SIO.GPIO_OUT_SET.Set(b.stepMask)
	arm.Asm("nop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop\nnop")
	rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
}

func (b *GPIOPulseGenerator) drive(reverse bool) {
	if reverse {
		rp.SIO.GPIO_OUT_SET.Set(b.dirMask)
	} else {
		rp.SIO.GPIO_OUT_CLR.Set(b.dirMask)
	}
	// Dir-to-step setup time: 20ns minimum
	arm.Asm("nop\nnop\nnop")
}

// SetDirection latches the direction of the next train
func (b *GPIOPulseGenerator) SetDirection(reverse bool) {
	b.reverse = reverse
}

// StartPulses queues a train for the worker
func (b *GPIOPulseGenerator) StartPulses(count uint32, rate float64) error {
	if count == 0 {
		return nil
	}
	period, err := PulsePeriod(rate)
	if err != nil {
		return err
	}
	return b.queue.push(count, period, b.reverse)
}

// Stop abandons the running train and drops queued ones
func (b *GPIOPulseGenerator) Stop() {
	b.queue.cancel()
	rp.SIO.GPIO_OUT_CLR.Set(b.stepMask)
}

// Busy reports whether trains are still queued or running
func (b *GPIOPulseGenerator) Busy() bool {
	return b.queue.busy()
}

// MaxPulses matches the PIO backend so callers see one limit
func (b *GPIOPulseGenerator) MaxPulses() uint32 {
	return MaxPIOPulses
}

// Info returns backend performance information
func (b *GPIOPulseGenerator) Info() core.PulseGeneratorInfo {
	return core.PulseGeneratorInfo{
		Name:        "GPIO",
		MaxStepRate: 200000,
		MinPulseNs:  200,
	}
}
