package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmcuart/core"
	"tmcuart/protocol"
	"tmcuart/standalone/config"
)

func simConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig([]byte(`
serial:
  driver: sim
  echo: true
nodes:
  - name: "y"
    address: 2
    microsteps: 8
  - name: x
    address: 0
    microsteps: 16
`))
	require.NoError(t, err)
	return cfg
}

func TestOpenSimulator(t *testing.T) {
	c, err := Open(simConfig(t))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Simulator())
	assert.Equal(t, []string{"x", "y"}, c.Names())

	dev, err := c.Device("")
	require.NoError(t, err)
	assert.Equal(t, protocol.Node0, dev.Node())

	dev, err = c.Device("y")
	require.NoError(t, err)
	assert.Equal(t, protocol.Node2, dev.Node())

	_, err = c.Device("z")
	assert.Error(t, err)
}

func TestConfigureAndIdentify(t *testing.T) {
	c, err := Open(simConfig(t))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Configure())

	y, err := c.Device("y")
	require.NoError(t, err)
	assert.Equal(t, core.MicroSteps8, y.MicrostepResolution())
	assert.Equal(t, uint32(0x15000053), c.Simulator().Register(protocol.Node2, uint8(protocol.WriteCHOPCONF)))

	infos := c.Identify()
	require.Len(t, infos, 2)
	for _, info := range infos {
		require.NoError(t, info.Err, info.Name)
		assert.Equal(t, uint8(0x21), info.Version)
		assert.Equal(t, uint8(5), info.Writes)
		assert.False(t, info.Status.Reset)
	}

	stats := c.Stats()
	assert.Equal(t, uint32(10), stats.Writes)
	assert.Equal(t, uint32(6), stats.Reads)
}

func TestSilentNodes(t *testing.T) {
	c, err := Open(simConfig(t))
	require.NoError(t, err)
	defer c.Close()
	c.Simulator().SetSilent(true)

	dev, err := c.Device("x")
	require.NoError(t, err)
	require.NoError(t, c.Stop())
	assert.Equal(t, core.MicroSteps16, dev.MicrostepResolution())

	infos := c.Identify()
	for _, info := range infos {
		assert.ErrorIs(t, info.Err, protocol.ErrTimeout)
	}
}

func TestClose(t *testing.T) {
	c, err := Open(simConfig(t))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Device("x")
	assert.ErrorIs(t, err, protocol.ErrBusClosed)
}

func TestLaterSessionUsesConfiguredResolution(t *testing.T) {
	cfg := simConfig(t)
	sim := protocol.NewSimulator(protocol.DefaultCodec, protocol.Node0, protocol.Node2)
	sim.SetEcho(cfg.Serial.Echo)

	first, err := OpenTransport(cfg, sim)
	require.NoError(t, err)
	require.NoError(t, first.Configure())
	x, err := first.Device("x")
	require.NoError(t, err)
	v, err := x.SetSpeedByUART(60)
	require.NoError(t, err)
	assert.Equal(t, int32(4474), v)

	second, err := OpenTransport(cfg, sim)
	require.NoError(t, err)
	x, err = second.Device("x")
	require.NoError(t, err)
	assert.Equal(t, core.MicroSteps16, x.MicrostepResolution())
	v, err = x.SetSpeedByUART(60)
	require.NoError(t, err)
	assert.Equal(t, int32(4474), v)
	assert.Equal(t, uint32(4474), sim.Register(protocol.Node0, uint8(protocol.WriteVACTUAL)))
}
