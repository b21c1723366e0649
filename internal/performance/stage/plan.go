// Package stage computes the VU target of a staged load profile over time.
package stage

import (
	"time"
)

// Stage is one time-boxed ramp towards Target VUs.
type Stage struct {
	// Duration of this stage
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Target VU count reached at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Plan is an ordered stage list plus the VU count the first stage ramps from.
//
// Within stage i the target is interpolated linearly from the previous
// stage's target (StartVUs for the first stage) to stage i's target and
// rounded to the nearest integer. At every stage boundary the target equals
// the target of the stage that just ended.
//
// Example:
//
//	plan := stage.NewPlan(0, []stage.Stage{
//		{Duration: 30 * time.Second, Target: 10}, // 0 -> 10 over 30s
//		{Duration: 2 * time.Minute, Target: 10},  // hold 10
//		{Duration: 30 * time.Second, Target: 0},  // 10 -> 0 over 30s
//	})
//	target, done := plan.TargetAt(15 * time.Second) // 5, false
//
// Plan is immutable and safe for concurrent use.
type Plan struct {
	startVUs int
	stages   []Stage
	total    time.Duration
}

// NewPlan compiles stages into a Plan. Stages are expected to be validated
// already (Duration > 0, Target >= 0); negative values are clamped to zero.
func NewPlan(startVUs int, stages []Stage) *Plan {
	if startVUs < 0 {
		startVUs = 0
	}

	compiled := make([]Stage, len(stages))
	var total time.Duration
	for i, s := range stages {
		if s.Target < 0 {
			s.Target = 0
		}
		if s.Duration < 0 {
			s.Duration = 0
		}
		compiled[i] = s
		total += s.Duration
	}

	return &Plan{
		startVUs: startVUs,
		stages:   compiled,
		total:    total,
	}
}

// TargetAt returns the VU target at elapsed time since run start, and whether
// the plan has finished. A finished plan reports the last stage's target, or
// zero for an empty plan.
func (p *Plan) TargetAt(elapsed time.Duration) (target int, done bool) {
	if len(p.stages) == 0 {
		return 0, true
	}
	if elapsed < 0 {
		elapsed = 0
	}

	var stageStart time.Duration
	prevTarget := p.startVUs

	for _, s := range p.stages {
		stageEnd := stageStart + s.Duration

		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(s.Duration)
			value := float64(prevTarget) + float64(s.Target-prevTarget)*progress
			return int(value + 0.5), false
		}

		prevTarget = s.Target
		stageStart = stageEnd
	}

	return p.stages[len(p.stages)-1].Target, true
}

// CurrentStage returns the index of the stage active at elapsed, or
// len(Stages()) once the plan is finished.
func (p *Plan) CurrentStage(elapsed time.Duration) int {
	var stageEnd time.Duration
	for i, s := range p.stages {
		stageEnd += s.Duration
		if elapsed < stageEnd {
			return i
		}
	}
	return len(p.stages)
}

// StartVUs returns the VU count at t=0.
func (p *Plan) StartVUs() int {
	return p.startVUs
}

// Stages returns a copy of the compiled stages.
func (p *Plan) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// TotalDuration returns the sum of all stage durations.
func (p *Plan) TotalDuration() time.Duration {
	return p.total
}

// MaxTarget returns the highest VU target the plan ever asks for.
func (p *Plan) MaxTarget() int {
	maxVUs := 0
	if len(p.stages) > 0 {
		maxVUs = p.startVUs
	}
	for _, s := range p.stages {
		if s.Target > maxVUs {
			maxVUs = s.Target
		}
	}
	return maxVUs
}

// Direction classifies the stage at index i as ramping up, down or holding.
// It returns +1, -1 or 0.
func (p *Plan) Direction(i int) int {
	if i < 0 || i >= len(p.stages) {
		return 0
	}
	prev := p.startVUs
	if i > 0 {
		prev = p.stages[i-1].Target
	}
	switch {
	case p.stages[i].Target > prev:
		return 1
	case p.stages[i].Target < prev:
		return -1
	default:
		return 0
	}
}
