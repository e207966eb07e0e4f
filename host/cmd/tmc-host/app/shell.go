package app

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newShellCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively on one open port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runShell(s *session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		args, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "quit", "exit", "q":
			return nil

		case "node":
			if len(args) != 2 {
				fmt.Fprintf(out, "node: %q\n", s.nodeName())
				continue
			}
			s.node = args[1]
			if _, err := s.device(); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				s.node = ""
			}
			continue
		}

		line := &cobra.Command{Use: ComponentHost, SilenceUsage: true, SilenceErrors: true}
		addCommands(line, s)
		line.SetArgs(args)
		line.SetOut(out)
		line.SetErr(out)
		if err := line.Execute(); err != nil {
			klog.V(2).InfoS("Shell command failed", "command", args[0], "err", err)
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}
