// Package engine is the orchestrator of a staged load test run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/logging"
	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/executor"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
	"github.com/wesleyorama2/surge/internal/performance/stage"
)

// Engine is the main orchestrator of a run.
//
// It coordinates:
//   - Configuration defaults and validation
//   - The stage plan and the ramping executor driving the VU pool
//   - Metrics collection and aggregation
//   - Threshold evaluation
//
// Example usage:
//
//	cfg, _ := config.LoadConfig("test.yaml")
//	eng, _ := engine.NewEngine(cfg, logger)
//	result, _ := eng.Run(context.Background())
//	fmt.Printf("Test passed: %v\n", result.Passed)
type Engine struct {
	config     *config.TestConfig
	logger     *zap.Logger
	httpConfig performance.HTTPClientConfig
	scenario   *performance.Scenario
	plan       *stage.Plan

	metricsEngine *metrics.Engine
	executor      executor.Executor

	runID     string
	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// TestResult contains the complete results of a run.
type TestResult struct {
	RunID       string        `json:"runId"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`

	Summary *metrics.Summary `json:"summary"`

	Passed     bool              `json:"passed"`
	Thresholds []ThresholdResult `json:"thresholds,omitempty"`

	// Interrupted is set when the run was cut short by its context
	Interrupted bool `json:"interrupted"`
}

// NewEngine applies defaults to cfg, validates it and compiles the stage plan
// and the scenario. Configuration problems are returned wrapping a
// *config.ValidationErrors so callers can tell them apart. A nil logger
// disables logging.
func NewEngine(cfg *config.TestConfig, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	scenario, err := performance.NewScenario(cfg)
	if err != nil {
		verrs := &config.ValidationErrors{}
		verrs.Add("", err.Error())
		return nil, fmt.Errorf("invalid configuration: %w", verrs)
	}

	plan, err := BuildPlan(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	httpConfig := performance.DefaultHTTPClientConfig()
	httpConfig.MaxIdleConnsPerHost = cfg.Settings.MaxIdleConnsPerHost
	httpConfig.InsecureSkipVerify = cfg.Settings.InsecureSkipVerify
	httpConfig.UseSharedClient = !cfg.Settings.NoConnectionReuse

	return &Engine{
		config:     cfg,
		logger:     logger,
		httpConfig: httpConfig,
		scenario:   scenario,
		plan:       plan,
	}, nil
}

// BuildPlan compiles the configured stages into a stage plan.
func BuildPlan(cfg *config.TestConfig) (*stage.Plan, error) {
	stages := make([]stage.Stage, 0, len(cfg.Stages))
	for i, s := range cfg.Stages {
		d, err := config.ParseDurationString(s.Duration)
		if err != nil {
			verrs := &config.ValidationErrors{}
			verrs.Add(fmt.Sprintf("stages[%d].duration", i), err.Error())
			return nil, verrs
		}
		stages = append(stages, stage.Stage{Duration: d, Target: s.Target, Name: s.Name})
	}
	return stage.NewPlan(cfg.StartVUs, stages), nil
}

// Run executes the plan and returns the results.
//
// Cancelling ctx stops spawning and asks every VU to stop; Run still waits
// for in-flight iterations and returns a result with Interrupted set.
func (e *Engine) Run(ctx context.Context) (*TestResult, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is already running")
	}
	e.running = true
	e.startTime = time.Now()
	e.runID = uuid.NewString()
	e.metricsEngine = metrics.NewEngine()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	pool := performance.NewVUPool(e.scenario, e.metricsEngine, e.httpConfig, e.logger)
	if maxRPS := e.config.Settings.MaxRPS; maxRPS > 0 {
		burst := int(math.Ceil(maxRPS))
		pool.SetRateLimiter(rate.NewLimiter(rate.Limit(maxRPS), burst))
	}

	exec, err := executor.New(executor.TypeRampingVUs)
	if err != nil {
		e.metricsEngine.Stop()
		return nil, err
	}
	if err := exec.Init(ctx, &executor.Config{Name: e.config.Name, Type: executor.TypeRampingVUs, Plan: e.plan}); err != nil {
		e.metricsEngine.Stop()
		return nil, fmt.Errorf("failed to initialize executor: %w", err)
	}

	e.mu.Lock()
	e.executor = exec
	e.mu.Unlock()

	e.logger.Info("run started",
		zap.String("run_id", e.runID),
		zap.String("name", e.config.Name),
		zap.Int("stages", len(e.plan.Stages())),
		zap.Int("max_vus", e.plan.MaxTarget()),
		logging.Duration("duration", e.plan.TotalDuration()),
	)

	runErr := exec.Run(ctx, pool, e.metricsEngine)
	interrupted := runErr != nil && (errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded))
	if runErr != nil && !interrupted {
		e.metricsEngine.Stop()
		return nil, fmt.Errorf("executor failed: %w", runErr)
	}

	e.metricsEngine.Stop()
	summary := e.metricsEngine.Summary()

	thresholds := EvaluateThresholds(e.config.Thresholds, summary)
	passed := true
	for _, tr := range thresholds {
		if !tr.Passed {
			passed = false
			break
		}
	}

	endTime := time.Now()
	result := &TestResult{
		RunID:       e.runID,
		Name:        e.config.Name,
		Description: e.config.Description,
		StartTime:   e.startTime,
		EndTime:     endTime,
		Duration:    endTime.Sub(e.startTime),
		Summary:     summary,
		Passed:      passed,
		Thresholds:  thresholds,
		Interrupted: interrupted,
	}

	e.logger.Info("run finished",
		zap.String("run_id", e.runID),
		zap.Int64("iterations", summary.Iterations),
		zap.Int64("requests", summary.TotalRequests),
		zap.Int64("check_passes", summary.CheckPasses),
		zap.Int64("check_fails", summary.CheckFails),
		zap.Int("peak_vus", summary.PeakVUs),
		zap.Bool("passed", passed),
		zap.Bool("interrupted", interrupted),
		logging.Duration("elapsed", result.Duration),
	)
	if summary.Unreachable() {
		e.logger.Error("target unreachable: no request received a response",
			zap.String("url", e.scenario.Request.URL),
		)
	}

	return result, nil
}

// GetConfig returns the test configuration.
func (e *Engine) GetConfig() *config.TestConfig {
	return e.config
}

// Plan returns the compiled stage plan.
func (e *Engine) Plan() *stage.Plan {
	return e.plan
}

// RunID returns the ID of the current or last run.
func (e *Engine) RunID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runID
}

// GetMetrics returns the current metrics snapshot, or nil before Run.
func (e *Engine) GetMetrics() *metrics.Snapshot {
	e.mu.RLock()
	m := e.metricsEngine
	e.mu.RUnlock()

	if m == nil {
		return nil
	}
	return m.GetSnapshot()
}

// IsRunning returns true if the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop ends the run early. Run returns once in-flight iterations complete.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.RLock()
	exec := e.executor
	running := e.running
	e.mu.RUnlock()

	if !running || exec == nil {
		return nil
	}
	return exec.Stop(ctx)
}

// GetProgress returns the run progress (0.0 to 1.0).
func (e *Engine) GetProgress() float64 {
	e.mu.RLock()
	exec := e.executor
	e.mu.RUnlock()

	if exec == nil {
		return 0.0
	}
	return exec.GetProgress()
}

// GetStats returns the executor statistics, or nil before Run.
func (e *Engine) GetStats() *executor.Stats {
	e.mu.RLock()
	exec := e.executor
	e.mu.RUnlock()

	if exec == nil {
		return nil
	}
	return exec.GetStats()
}
