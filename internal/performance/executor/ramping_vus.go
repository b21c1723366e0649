package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// ControllerInterval is how often the VU count is re-aligned with the plan.
const ControllerInterval = 100 * time.Millisecond

// RampingVUs ramps VU count up and down according to stages.
//
// The target is interpolated linearly within each stage, so VU counts change
// smoothly instead of in steps.
//
// Example stages:
//
//	stages:
//	  - duration: 30s
//	    target: 10     # Ramp from 0 to 10 VUs over 30s
//	  - duration: 2m
//	    target: 10     # Stay at 10 VUs for 2 minutes
//	  - duration: 30s
//	    target: 0      # Ramp down to 0 VUs over 30s
type RampingVUs struct {
	config  *Config
	pool    *performance.VUPool
	metrics *metrics.Engine

	startTime    time.Time
	targetVUs    atomic.Int32
	currentStage atomic.Int32
	running      atomic.Bool
	finished     atomic.Bool

	cancelFunc context.CancelFunc
	mu         sync.RWMutex
}

// NewRampingVUs creates a new ramping VUs executor.
func NewRampingVUs() *RampingVUs {
	return &RampingVUs{}
}

// Type returns the executor type.
func (e *RampingVUs) Type() Type {
	return TypeRampingVUs
}

// Init initializes the executor with configuration.
func (e *RampingVUs) Init(ctx context.Context, config *Config) error {
	if config.Type != TypeRampingVUs {
		return fmt.Errorf("invalid config type: expected %s, got %s", TypeRampingVUs, config.Type)
	}

	if err := config.Validate(); err != nil {
		return err
	}

	e.config = config
	return nil
}

// Run drives the pool through the plan and blocks until every VU has
// stopped. It returns ctx.Err() when the run was cut short by ctx.
func (e *RampingVUs) Run(ctx context.Context, pool *performance.VUPool, metricsEngine *metrics.Engine) error {
	if e.config == nil {
		return fmt.Errorf("executor not initialized")
	}

	plan := e.config.Plan
	totalDuration := plan.TotalDuration()

	runCtx, cancel := context.WithTimeout(ctx, totalDuration)
	defer cancel()

	e.mu.Lock()
	e.pool = pool
	e.metrics = metricsEngine
	e.startTime = time.Now()
	e.cancelFunc = cancel
	e.mu.Unlock()

	e.running.Store(true)
	defer func() {
		e.running.Store(false)
		e.finished.Store(true)
	}()

	if totalDuration > 0 {
		e.vuController(runCtx)
	}

	// Surplus VUs observe the stop between iterations; in-flight requests
	// are bounded by their own timeout.
	pool.Shutdown()
	e.metrics.SetPhase(metrics.PhaseDone)

	return ctx.Err()
}

// vuController adjusts the VU count on every tick until the plan ends.
func (e *RampingVUs) vuController(ctx context.Context) {
	ticker := time.NewTicker(ControllerInterval)
	defer ticker.Stop()

	e.adjust(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.adjust(ctx)
		}
	}
}

func (e *RampingVUs) adjust(ctx context.Context) {
	plan := e.config.Plan
	elapsed := time.Since(e.startTime)

	target, done := plan.TargetAt(elapsed)
	if done {
		return
	}

	idx := plan.CurrentStage(elapsed)
	e.currentStage.Store(int32(idx))
	e.targetVUs.Store(int32(target))
	e.updatePhase(idx)

	e.pool.ScaleTo(ctx, target)
}

// updatePhase maps the current stage's direction onto a metrics phase.
func (e *RampingVUs) updatePhase(stageIdx int) {
	switch e.config.Plan.Direction(stageIdx) {
	case 1:
		e.metrics.SetPhase(metrics.PhaseRampUp)
	case -1:
		e.metrics.SetPhase(metrics.PhaseRampDown)
	default:
		e.metrics.SetPhase(metrics.PhaseSteady)
	}
}

// GetProgress returns current progress (0.0 to 1.0).
func (e *RampingVUs) GetProgress() float64 {
	if e.finished.Load() {
		return 1.0
	}
	if !e.running.Load() {
		return 0.0
	}

	totalDuration := e.config.Plan.TotalDuration()
	if totalDuration == 0 {
		return 1.0
	}

	e.mu.RLock()
	elapsed := time.Since(e.startTime)
	e.mu.RUnlock()

	progress := float64(elapsed) / float64(totalDuration)
	if progress > 1.0 {
		progress = 1.0
	}
	return progress
}

// GetActiveVUs returns current active VU count.
func (e *RampingVUs) GetActiveVUs() int {
	e.mu.RLock()
	pool := e.pool
	e.mu.RUnlock()

	if pool == nil {
		return 0
	}
	return pool.ActiveVUCount()
}

// GetStats returns executor statistics.
func (e *RampingVUs) GetStats() *Stats {
	e.mu.RLock()
	startTime := e.startTime
	e.mu.RUnlock()

	var elapsed time.Duration
	if !startTime.IsZero() {
		elapsed = time.Since(startTime)
	}

	stages := e.config.Plan.Stages()
	stageIdx := int(e.currentStage.Load())
	stageName := ""
	if stageIdx < len(stages) {
		stageName = stages[stageIdx].Name
	}

	return &Stats{
		StartTime:        startTime,
		CurrentTime:      time.Now(),
		Elapsed:          elapsed,
		TotalDuration:    e.config.Plan.TotalDuration(),
		ActiveVUs:        e.GetActiveVUs(),
		TargetVUs:        int(e.targetVUs.Load()),
		CurrentStage:     stageIdx,
		CurrentStageName: stageName,
		TotalStages:      len(stages),
	}
}

// Stop ends the run early. Run returns once in-flight iterations complete.
func (e *RampingVUs) Stop(ctx context.Context) error {
	e.mu.RLock()
	cancel := e.cancelFunc
	e.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Ensure RampingVUs implements Executor
var _ Executor = (*RampingVUs)(nil)
