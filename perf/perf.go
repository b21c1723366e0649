package perf

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
	"github.com/wesleyorama2/surge/internal/performance/output"
)

// Configuration types.
type (
	TestConfig       = config.TestConfig
	GlobalSettings   = config.GlobalSettings
	StageConfig      = config.StageConfig
	RequestConfig    = config.RequestConfig
	CheckConfig      = config.CheckConfig
	PacingConfig     = config.PacingConfig
	ThresholdsConfig = config.ThresholdsConfig
	ValidationErrors = config.ValidationErrors
)

// Result types.
type (
	TestResult      = engine.TestResult
	ThresholdResult = engine.ThresholdResult
	Summary         = metrics.Summary
	Snapshot        = metrics.Snapshot
)

// LoadConfig loads a test configuration from a YAML or JSON file.
func LoadConfig(path string) (*TestConfig, error) {
	return config.LoadConfig(path)
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger used during the run.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner provides a high-level API for running load tests.
//
// For programmatic test execution, create a Runner and call Run:
//
//	cfg, _ := perf.LoadConfig("test.yaml")
//	runner, _ := perf.NewRunner(cfg)
//	result, _ := runner.Run(context.Background())
type Runner struct {
	logger *zap.Logger
	engine *engine.Engine
}

// NewRunner validates cfg and prepares a run. Configuration problems are
// returned wrapping a *ValidationErrors.
func NewRunner(cfg *TestConfig, opts ...Option) (*Runner, error) {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}

	eng, err := engine.NewEngine(cfg, r.logger)
	if err != nil {
		return nil, err
	}
	r.engine = eng
	return r, nil
}

// Run executes the test and returns its results. Cancelling ctx ends the run
// early; in-flight iterations still complete and the result is marked
// Interrupted.
func (r *Runner) Run(ctx context.Context) (*TestResult, error) {
	return r.engine.Run(ctx)
}

// GetMetrics returns the current metrics snapshot, or nil before Run.
// Can be called during test execution to get real-time metrics.
func (r *Runner) GetMetrics() *Snapshot {
	return r.engine.GetMetrics()
}

// GetProgress returns the run progress (0.0 to 1.0).
func (r *Runner) GetProgress() float64 {
	return r.engine.GetProgress()
}

// RunTest validates cfg and runs it to completion.
func RunTest(ctx context.Context, cfg *TestConfig, opts ...Option) (*TestResult, error) {
	runner, err := NewRunner(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

// WriteSummary writes the human-readable summary of result to w.
func WriteSummary(w io.Writer, result *TestResult, useColors bool) {
	output.NewSummaryPrinter(w, useColors, false).Print(result)
}

// WriteJSON writes the JSON summary of result to w.
func WriteJSON(w io.Writer, result *TestResult) error {
	return output.WriteJSON(w, result)
}
