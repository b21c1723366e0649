package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/logging"
	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/output"
)

type runOptions struct {
	vus           int
	duration      time.Duration
	stages        string
	summaryExport string
	jsonOutput    bool
	quiet         bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <test-file>",
		Short: "Run a load test from a YAML or JSON test file",
		Long: `Run the load test described by a test file. Virtual users are ramped
through the configured stages and each one loops request, checks and pacing
until the last stage ends.

  surge run smoke.yaml
  surge run smoke.yaml --stages "30s:10,1m:10,30s:0"
  surge run smoke.yaml --vus 20 --duration 1m --summary-export summary.json

Exit codes: 0 passed, 1 error, 97 target unreachable, 99 thresholds failed,
104 invalid configuration, 105 interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], global, opts)
		},
	}

	cmd.Flags().IntVar(&opts.vus, "vus", 0, "Run a constant load of this many VUs instead of the configured stages")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Run a constant load for this long instead of the configured stages")
	cmd.Flags().StringVar(&opts.stages, "stages", "", "Override stages, format 'duration:target,duration:target,...'")
	cmd.Flags().StringVar(&opts.summaryExport, "summary-export", "", "Write the JSON summary to this file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the summary as JSON instead of text")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Disable progress output and print only the outcome")

	return cmd
}

func runTest(ctx context.Context, stdout, stderr io.Writer, path string, global *globalOptions, opts *runOptions) error {
	logger, err := logging.New(global.logLevel, global.logFormat)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := loadTestConfig(path)
	if err != nil {
		return err
	}
	if err := applyLoadOverrides(cfg, opts); err != nil {
		return err
	}

	eng, err := engine.NewEngine(cfg, logger)
	if err != nil {
		return configError(err)
	}

	// The first signal interrupts the run; restoring the default handler
	// lets a second one kill the process while VUs drain.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-runCtx.Done()
		stop()
	}()

	var result *engine.TestResult
	g, gctx := errgroup.WithContext(context.Background())
	progressCtx, stopProgress := context.WithCancel(gctx)
	defer stopProgress()

	g.Go(func() error {
		defer stopProgress()
		r, err := eng.Run(runCtx)
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		result = r
		return nil
	})

	if !opts.quiet {
		reporter := output.NewProgressReporter(stderr, output.DefaultProgressInterval, output.UseColors(stderr, global.noColor))
		g.Go(func() error {
			return reporter.Run(progressCtx, eng)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if opts.jsonOutput {
		if err := output.WriteJSON(stdout, result); err != nil {
			return err
		}
	} else {
		output.NewSummaryPrinter(stdout, output.UseColors(stdout, global.noColor), opts.quiet).Print(result)
	}

	if opts.summaryExport != "" {
		if err := output.ExportJSON(opts.summaryExport, result); err != nil {
			return err
		}
		logger.Info("summary exported", zap.String("path", opts.summaryExport))
	}

	return outcomeError(result)
}

// loadTestConfig reads and decodes a test file. A file that cannot be read
// is a plain error; one that cannot be decoded is an invalid configuration.
func loadTestConfig(path string) (*config.TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test file: %w", err)
	}

	cfg, err := config.ParseConfig(data, path)
	if err != nil {
		return nil, &ExitError{Code: ExitInvalidConfig, Err: err}
	}
	return cfg, nil
}

func applyLoadOverrides(cfg *config.TestConfig, opts *runOptions) error {
	if opts.stages != "" {
		if opts.vus > 0 || opts.duration > 0 {
			return fmt.Errorf("--stages cannot be combined with --vus or --duration")
		}
		stages, err := parseStages(opts.stages)
		if err != nil {
			return &ExitError{Code: ExitInvalidConfig, Err: err}
		}
		cfg.Stages = stages
		return nil
	}

	if opts.vus < 0 {
		return fmt.Errorf("--vus must be positive, got %d", opts.vus)
	}
	cfg.OverrideLoad(opts.vus, opts.duration)
	return nil
}

// parseStages parses stages from "duration:target,duration:target,...".
func parseStages(stagesStr string) ([]config.StageConfig, error) {
	var stages []config.StageConfig

	parts := strings.Split(stagesStr, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		colonIdx := strings.LastIndex(part, ":")
		if colonIdx == -1 {
			return nil, fmt.Errorf("stage %d: expected 'duration:target' format, got '%s'", i+1, part)
		}

		durationStr := strings.TrimSpace(part[:colonIdx])
		targetStr := strings.TrimSpace(part[colonIdx+1:])

		d, err := config.ParseDurationString(durationStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i+1, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("stage %d: duration must be positive, got '%s'", i+1, durationStr)
		}

		target, err := strconv.Atoi(targetStr)
		if err != nil {
			return nil, fmt.Errorf("stage %d: invalid target '%s': %w", i+1, targetStr, err)
		}
		if target < 0 {
			return nil, fmt.Errorf("stage %d: target must be non-negative, got %d", i+1, target)
		}

		stages = append(stages, config.StageConfig{
			Duration: durationStr,
			Target:   target,
			Name:     fmt.Sprintf("stage-%d", i+1),
		})
	}

	if len(stages) == 0 {
		return nil, fmt.Errorf("at least one stage is required")
	}

	return stages, nil
}

// configError maps engine construction failures to exit codes.
func configError(err error) error {
	var verrs *config.ValidationErrors
	if errors.As(err, &verrs) {
		return &ExitError{Code: ExitInvalidConfig, Err: err}
	}
	return err
}

// outcomeError turns a finished run into the error carrying its exit code.
func outcomeError(result *engine.TestResult) error {
	switch output.ResultOutcome(result) {
	case output.OutcomeInterrupted:
		return &ExitError{Code: ExitInterrupted, Err: errors.New("run interrupted")}
	case output.OutcomeUnreachable:
		return &ExitError{Code: ExitUnreachable, Err: errors.New("target unreachable: no request received a response")}
	case output.OutcomeFailed:
		return &ExitError{Code: ExitThresholdsFailed, Err: errors.New("thresholds failed")}
	default:
		return nil
	}
}
