// Package executor provides load generation strategies for performance testing.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/wesleyorama2/surge/internal/performance"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
	"github.com/wesleyorama2/surge/internal/performance/stage"
)

// Type identifies the type of executor.
type Type string

const (
	// TypeRampingVUs ramps VU count up and down according to stages.
	TypeRampingVUs Type = "ramping-vus"
)

// Executor defines the interface for load generation strategies.
//
// Executors control HOW load is generated: they size the VU pool over time
// while the pool's VUs do the actual work.
type Executor interface {
	// Type returns the executor type.
	Type() Type

	// Init initializes the executor with configuration.
	// Called once before Run().
	Init(ctx context.Context, config *Config) error

	// Run starts the executor and blocks until the plan completes or ctx is
	// cancelled, and every VU has finished its last iteration.
	Run(ctx context.Context, pool *performance.VUPool, metrics *metrics.Engine) error

	// GetProgress returns current progress (0.0 to 1.0).
	GetProgress() float64

	// GetActiveVUs returns current active VU count.
	GetActiveVUs() int

	// GetStats returns executor-specific statistics.
	GetStats() *Stats

	// Stop ends the run early. Run still waits for in-flight iterations.
	Stop(ctx context.Context) error
}

// New returns an uninitialized executor of type t.
func New(t Type) (Executor, error) {
	switch t {
	case TypeRampingVUs, "":
		return NewRampingVUs(), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", t)
	}
}

// Config contains configuration for an executor.
type Config struct {
	// Name is the name of this executor instance
	Name string

	// Type is the executor type
	Type Type

	// Plan is the compiled stage list
	Plan *stage.Plan
}

// Validate validates the executor configuration.
func (c *Config) Validate() error {
	switch c.Type {
	case TypeRampingVUs:
	case "":
		return &ValidationError{Field: "type", Message: "executor type is required"}
	default:
		return &ValidationError{Field: "type", Message: "unknown executor type: " + string(c.Type)}
	}

	if c.Plan == nil {
		return &ValidationError{Field: "plan", Message: "a stage plan is required"}
	}
	return nil
}

// Stats contains real-time executor statistics.
type Stats struct {
	StartTime     time.Time     `json:"startTime"`
	CurrentTime   time.Time     `json:"currentTime"`
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`

	ActiveVUs int `json:"activeVUs"`
	TargetVUs int `json:"targetVUs"`

	CurrentStage     int    `json:"currentStage"`
	CurrentStageName string `json:"currentStageName"`
	TotalStages      int    `json:"totalStages"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "validation error on field '" + e.Field + "': " + e.Message
}
