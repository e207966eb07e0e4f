package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tmcuart/host/cmd/tmc-host/options"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewHostCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--driver", "sim"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSpeedCommand(t *testing.T) {
	out, err := run(t, "speed", "60")
	require.NoError(t, err)
	assert.Equal(t, "VACTUAL 4474\n", out)

	_, err = run(t, "speed", "fast")
	assert.Error(t, err)
}

func TestReadCommand(t *testing.T) {
	out, err := run(t, "read", "ioin")
	require.NoError(t, err)
	assert.Contains(t, out, "IOIN = 0x21000000 (field 0x21)")
	assert.Contains(t, out, "sent     05000006")

	out, err = run(t, "read", "0x6C")
	require.NoError(t, err)
	assert.Contains(t, out, "CHOPCONF = 0x10000053")

	_, err = run(t, "read", "VACTUAL")
	assert.Error(t, err)
}

func TestWriteCommand(t *testing.T) {
	out, err := run(t, "write", "TPOWERDOWN", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "TPOWERDOWN <- 0x00000014")
}

func TestStepsCommand(t *testing.T) {
	out, err := run(t, "steps", "180")
	require.NoError(t, err)
	assert.Equal(t, "1600\n", out)
}

func TestInfoCommand(t *testing.T) {
	out, err := run(t, "info")
	require.NoError(t, err)
	assert.Contains(t, out, "x")
	assert.Contains(t, out, "0x21")
	assert.Contains(t, out, "bus: 3 reads")
}

func TestStatusCommand(t *testing.T) {
	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "standstill")
	assert.Contains(t, out, "step interval 0s")
}

func TestDefaultConfigCommand(t *testing.T) {
	out, err := run(t, "default-config")
	require.NoError(t, err)
	assert.Contains(t, out, "device: /dev/ttyUSB0")
	assert.Contains(t, out, "microsteps: 16")
}

func TestShell(t *testing.T) {
	o := options.NewDefaultOptions()
	fs := pflag.NewFlagSet("shell", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--driver", "sim"}))
	s := newSession(o, fs)
	defer s.close()

	in := strings.NewReader("microsteps 16\nspeed 60\nnode nope\n\nread GCONF\nread 'NO SUCH'\nquit\nspeed 1\n")
	var out bytes.Buffer
	require.NoError(t, runShell(s, in, &out))

	text := out.String()
	assert.Contains(t, text, "resolution 1/16")
	assert.Contains(t, text, "VACTUAL 4474")
	assert.Contains(t, text, `unknown node "nope"`)
	assert.Contains(t, text, "GCONF = 0x00000080")
	assert.Contains(t, text, `unknown read register "NO SUCH"`)
	assert.NotContains(t, text, "VACTUAL 75", "commands after quit must not run")
}
