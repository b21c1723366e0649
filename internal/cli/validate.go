package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/logging"
	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/output"
)

func newValidateCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <test-file>",
		Short: "Check a test file without running it",
		Long: `Decode a test file, apply defaults and report every configuration problem
at once. Nothing is sent to the target. Exits 104 when the file is invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateTest(cmd.OutOrStdout(), args[0], global)
		},
	}
}

func validateTest(stdout io.Writer, path string, global *globalOptions) error {
	logger, err := logging.New(global.logLevel, global.logFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	colors := output.NewColorScheme(output.UseColors(stdout, global.noColor))

	cfg, err := loadTestConfig(path)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(cfg, logger)
	if err != nil {
		var verrs *config.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Fprintf(stdout, "%s %s is invalid:\n", colors.ErrorIcon(), path)
			for _, e := range verrs.Errors {
				if e.Field != "" {
					fmt.Fprintf(stdout, "  - %s: %s\n", e.Field, e.Message)
				} else {
					fmt.Fprintf(stdout, "  - %s\n", e.Message)
				}
			}
		}
		return configError(err)
	}

	plan := eng.Plan()
	fmt.Fprintf(stdout, "%s %s is valid\n", colors.SuccessIcon(), path)
	fmt.Fprintf(stdout, "  stages:   %d\n", len(plan.Stages()))
	fmt.Fprintf(stdout, "  max VUs:  %d\n", plan.MaxTarget())
	fmt.Fprintf(stdout, "  duration: %s\n", plan.TotalDuration())
	fmt.Fprintf(stdout, "  checks:   %d\n", len(eng.GetConfig().Checks))
	return nil
}
