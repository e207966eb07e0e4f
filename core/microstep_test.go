package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmcuart/protocol"
)

func TestMicrostepMultipliers(t *testing.T) {
	expected := []uint32{256, 128, 64, 32, 16, 8, 4, 2, 1}
	for m := MicroSteps256; m <= FullStep; m++ {
		assert.Equal(t, expected[m], m.Multiplier(), "resolution %d", m)

		back, err := MicrostepsFromMultiplier(expected[m])
		require.NoError(t, err)
		assert.Equal(t, m, back)
	}
	assert.False(t, MicrostepResolution(9).Valid())
	assert.Equal(t, uint32(0), MicrostepResolution(9).Multiplier())
	assert.Equal(t, "1/16", MicroSteps16.String())
}

func TestMicrostepsFromMultiplierRejects(t *testing.T) {
	for _, n := range []uint32{0, 3, 12, 512} {
		_, err := MicrostepsFromMultiplier(n)
		assert.True(t, protocol.IsOutOfRange(err), "multiplier %d", n)
	}
}

func TestClockConstant(t *testing.T) {
	assert.InDelta(t, 4.660338, ClockConstant(1, 200, DefaultClockHz), 1e-6)
	assert.InDelta(t, 1193.046471, ClockConstant(256, 200, DefaultClockHz), 1e-6)
	assert.Zero(t, ClockConstant(16, 200, 0))
}
