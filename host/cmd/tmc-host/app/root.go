package app

import (
	"flag"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"tmcuart/host/cmd/tmc-host/options"
	"tmcuart/protocol"
)

const (
	ComponentHost = "tmc-host"
)

func errUnknownNode(name string) error {
	return errors.Errorf("unknown node %q", name)
}

// NewHostCmd builds the command tree
func NewHostCmd() *cobra.Command {
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:   ComponentHost,
		Short: "Register-level control of TMC2226 stepper drivers over UART",
		Long: `tmc-host talks to up to four TMC2226 nodes sharing one single-wire UART.
It reads and writes registers, sets microstepping, commands VACTUAL speed
and reports driver status.`,
		Version:       protocol.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	fs := cmd.PersistentFlags()
	o.AddFlags(fs)
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)

	s := newSession(o, fs)
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return s.close()
	}
	addCommands(cmd, s)
	cmd.AddCommand(newShellCmd(s))
	return cmd
}
