package core

import "tmcuart/protocol"

// PulseGenerator is the step/dir collaborator used for positioning.
// Implementations can use GPIO, PIO, or other methods.
type PulseGenerator interface {
	// SetDirection sets the direction output for the next pulse train
	// dir: true = reverse, false = forward
	// Must ensure proper dir-to-step setup time
	SetDirection(reverse bool)

	// StartPulses emits count step pulses at rate pulses per second.
	// Returns as soon as the train is queued; pulses keep running on their own.
	StartPulses(count uint32, rate float64) error

	// Stop immediately halts stepping
	Stop()

	// MaxPulses returns the largest count accepted by one StartPulses call
	MaxPulses() uint32
}

// PulseGeneratorInfo provides information about a pulse generator backend
type PulseGeneratorInfo struct {
	Name        string
	MaxStepRate uint32 // Maximum steps/second
	MinPulseNs  uint32 // Minimum step pulse width (ns)
}

// checkPulses rejects trains the generator cannot take in one call
func checkPulses(p PulseGenerator, count uint32) error {
	if max := p.MaxPulses(); max > 0 && count > max {
		return &protocol.OutOfRangeError{Quantity: "pulse count", Value: int64(count), Min: 0, Max: int64(max)}
	}
	return nil
}
