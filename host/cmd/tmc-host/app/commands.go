package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tmcuart/core"
	"tmcuart/host/serial"
	"tmcuart/protocol"
	"tmcuart/standalone/config"
)

// addCommands attaches every device command to parent
func addCommands(parent *cobra.Command, s *session) {
	parent.AddCommand(
		newInfoCmd(s),
		newReadCmd(s),
		newWriteCmd(s),
		newSpeedCmd(s),
		newStopCmd(s),
		newMicrostepsCmd(s),
		newStepsCmd(s),
		newConfigureCmd(s),
		newStatusCmd(s),
		newDefaultConfigCmd(),
		newPortsCmd(),
	)
}

func newInfoCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Identify every configured node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := s.open()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NODE\tADDRESS\tVERSION\tIFCNT\tRESET\tDRV_ERR\tUV_CP\tERROR")
			for _, info := range c.Identify() {
				if info.Err != nil {
					fmt.Fprintf(w, "%s\t%d\t-\t-\t-\t-\t-\t%v\n", info.Name, info.Address, info.Err)
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t0x%02X\t%d\t%t\t%t\t%t\t\n", info.Name, info.Address, info.Version,
					info.Writes, info.Status.Reset, info.Status.DriverError, info.Status.UnderVoltage)
			}
			stats := c.Stats()
			fmt.Fprintf(w, "\nbus: %d reads, %d writes, %d timeouts, %d failures\n",
				stats.Reads, stats.Writes, stats.Timeouts, stats.Failures)
			return w.Flush()
		},
	}
}

func parseReadRegister(arg string) (protocol.ReadRegister, error) {
	if r, ok := protocol.ParseReadRegister(arg); ok {
		return r, nil
	}
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil || v > protocol.RegisterMask {
		return 0, errors.Errorf("unknown read register %q", arg)
	}
	return protocol.ReadRegister(v), nil
}

func parseWriteRegister(arg string) (protocol.WriteRegister, error) {
	if r, ok := protocol.ParseWriteRegister(arg); ok {
		return r, nil
	}
	v, err := strconv.ParseUint(arg, 0, 8)
	if err != nil || v > protocol.RegisterMask {
		return 0, errors.Errorf("unknown write register %q", arg)
	}
	return protocol.WriteRegister(v), nil
}

func newReadCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "read REGISTER",
		Short: "Read a register by name or address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseReadRegister(args[0])
			if err != nil {
				return err
			}
			dev, err := s.device()
			if err != nil {
				return err
			}
			a, err := dev.ReadAccess(r)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s = 0x%08X (field 0x%X)\n", r, a.Raw, a.Value)
			fmt.Fprintf(out, "  sent     %s\n  received %s\n", a.Sent, a.Received)
			return nil
		},
	}
}

func newWriteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "write REGISTER VALUE",
		Short: "Write a whole register by name or address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseWriteRegister(args[0])
			if err != nil {
				return err
			}
			v, err := strconv.ParseUint(args[1], 0, 32)
			if err != nil {
				return errors.Wrapf(err, "value %q", args[1])
			}
			dev, err := s.device()
			if err != nil {
				return err
			}
			dg, err := dev.WriteAccess(r, protocol.WholeRegister, uint32(v))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <- 0x%08X\n  sent %s\n", r, v, dg)
			return nil
		},
	}
}

func newSpeedCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "speed RPM",
		Short: "Rotate continuously at RPM through VACTUAL; negative turns backwards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rpm, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return errors.Wrapf(err, "rpm %q", args[0])
			}
			dev, err := s.device()
			if err != nil {
				return err
			}
			v, err := dev.SetSpeedByUART(rpm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VACTUAL %d\n", v)
			return nil
		},
	}
}

func newStopCmd(s *session) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Set VACTUAL to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if all {
				c, err := s.open()
				if err != nil {
					return err
				}
				return c.Stop()
			}
			dev, err := s.device()
			if err != nil {
				return err
			}
			return dev.Stop()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Stop every configured node")
	return cmd
}

func newMicrostepsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "microsteps N",
		Short: "Select N microsteps per full step (1, 2, 4 ... 256)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return errors.Wrapf(err, "microsteps %q", args[0])
			}
			m, err := core.MicrostepsFromMultiplier(uint32(n))
			if err != nil {
				return err
			}
			dev, err := s.device()
			if err != nil {
				return err
			}
			if err := dev.SetMicrostepResolution(m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolution %s, %.4f VACTUAL per rpm\n", m, dev.ClockConstant())
			return nil
		},
	}
}

func newStepsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "steps DEGREES",
		Short: "Print the absolute microstep position of an angle for the node's motor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			angle, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return errors.Wrapf(err, "angle %q", args[0])
			}
			n, err := s.nodeConfig()
			if err != nil {
				return err
			}
			m, err := n.Resolution()
			if err != nil {
				return err
			}
			steps, err := core.AngleToSteps(angle, n.StepsPerTurn, m)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\n", steps)
			return nil
		},
	}
}

func newConfigureCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Apply the configured startup settings to every node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := s.open()
			if err != nil {
				return err
			}
			if err := c.Configure(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configured %s\n", strings.Join(c.Names(), ", "))
			return nil
		},
	}
}

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Decode DRV_STATUS, GSTAT and TSTEP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := s.device()
			if err != nil {
				return err
			}
			st, err := dev.Status()
			if err != nil {
				return err
			}
			g, err := dev.GlobalStatus()
			if err != nil {
				return err
			}
			interval, err := dev.StepInterval()
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st, g, interval.String())
			return st.Faults()
		},
	}
}

func printStatus(out io.Writer, st core.DriverStatus, g core.GlobalStatus, interval string) {
	w := tabwriter.NewWriter(out, 0, 4, 1, ' ', 0)
	fmt.Fprintf(w, "standstill\t%t\n", st.Standstill)
	fmt.Fprintf(w, "stealthchop\t%t\n", st.StealthChop)
	fmt.Fprintf(w, "current scale\t%d/31\n", st.CurrentScale)
	fmt.Fprintf(w, "step interval\t%s\n", interval)
	fmt.Fprintf(w, "temperature\t>120C %t, >143C %t, >150C %t, >157C %t\n", st.Above120C, st.Above143C, st.Above150C, st.Above157C)
	fmt.Fprintf(w, "reset\t%t\n", g.Reset)
	fmt.Fprintf(w, "driver error\t%t\n", g.DriverError)
	fmt.Fprintf(w, "undervoltage\t%t\n", g.UnderVoltage)
	w.Flush()
}

func newDefaultConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "default-config",
		Short: "Print a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := config.DefaultConfig().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serial.ListPorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
}
