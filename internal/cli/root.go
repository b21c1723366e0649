// Package cli implements the surge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Process exit codes.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitUnreachable      = 97
	ExitThresholdsFailed = 99
	ExitInvalidConfig    = 104
	ExitInterrupted      = 105
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	logLevel  string
	logFormat string
	noColor   bool
}

// NewRootCmd builds the surge command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:     "surge",
		Short:   "A staged virtual-user HTTP load generator",
		Version: version,
		Long: `surge ramps a pool of virtual users up and down through a list of stages,
each user looping request, checks and pacing against a single HTTP endpoint,
and prints a summary of check pass rates and latencies when the run ends.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			// If no subcommand is provided, print help
			cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "Log format: console or json")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the surge version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "surge %s\n", version)
		},
	}
}

// Execute runs the command line with os.Args and returns the process exit
// code.
func Execute() int {
	return ExecuteArgs(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs the command line with args, writing to stdout and stderr,
// and returns the process exit code. Cancelling ctx interrupts a run.
func ExecuteArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}
