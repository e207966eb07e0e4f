package options

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*Options, *pflag.FlagSet) {
	t.Helper()
	o := NewDefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse(args))
	return o, fs
}

func TestConfigDefaults(t *testing.T) {
	o, fs := parse(t)
	cfg, err := o.Config(fs)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Device)
	assert.Equal(t, "tarm", cfg.Serial.Driver)
}

func TestConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tmc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("serial:\n  device: /dev/ttyS1\n  baud: 57600\nnodes:\n  - name: z\n    address: 1\n"), 0o644))

	o, fs := parse(t, "-c", path, "--driver", "sim", "--framing", "datasheet")
	cfg, err := o.Config(fs)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS1", cfg.Serial.Device)
	assert.Equal(t, 57600, cfg.Serial.Baud)
	assert.Equal(t, "sim", cfg.Serial.Driver)
	assert.Equal(t, "datasheet", cfg.Framing)
	assert.Equal(t, "z", cfg.Nodes[0].Name)
}

func TestConfigRejectsBadOverride(t *testing.T) {
	o, fs := parse(t, "--framing", "crc16")
	_, err := o.Config(fs)
	assert.Error(t, err)
}
