// Package metrics aggregates request latencies, check results and iteration
// counts produced concurrently by virtual users.
package metrics

import "time"

// Phase represents a phase of the load test.
type Phase string

const (
	// PhaseInit is the phase before the first VU starts
	PhaseInit Phase = "init"

	// PhaseRampUp is a stage whose target is above the previous one
	PhaseRampUp Phase = "ramp-up"

	// PhaseSteady is a stage that holds the previous target
	PhaseSteady Phase = "steady"

	// PhaseRampDown is a stage whose target is below the previous one
	PhaseRampDown Phase = "ramp-down"

	// PhaseDone indicates the test has completed
	PhaseDone Phase = "done"
)

// Snapshot contains a point-in-time view of the run, used for live progress.
type Snapshot struct {
	TotalRequests   int64         `json:"totalRequests"`
	SuccessRequests int64         `json:"successRequests"`
	FailedRequests  int64         `json:"failedRequests"`
	TotalBytes      int64         `json:"totalBytes"`
	Iterations      int64         `json:"iterations"`
	CheckPasses     int64         `json:"checkPasses"`
	CheckFails      int64         `json:"checkFails"`
	Latency         LatencyStats  `json:"latency"`
	RPS             float64       `json:"rps"`
	IntervalRPS     float64       `json:"intervalRps"`
	ErrorRate       float64       `json:"errorRate"`
	ActiveVUs       int           `json:"activeVUs"`
	CurrentPhase    Phase         `json:"currentPhase"`
	Elapsed         time.Duration `json:"elapsed"`
	StartTime       time.Time     `json:"startTime"`
	Timestamp       time.Time     `json:"timestamp"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

// LatencyPercentiles holds latency percentile values.
type LatencyPercentiles struct {
	Min time.Duration
	Max time.Duration
	P50 time.Duration
	P90 time.Duration
	P95 time.Duration
	P99 time.Duration
}

// TimeBucket captures one bucket interval of the run.
type TimeBucket struct {
	Timestamp time.Time `json:"timestamp"`

	// Cumulative counters since test start
	TotalRequests   int64 `json:"totalRequests"`
	TotalFailures   int64 `json:"totalFailures"`
	TotalIterations int64 `json:"totalIterations"`

	// Interval metrics for this bucket only
	IntervalRequests  int64   `json:"intervalRequests"`
	IntervalRPS       float64 `json:"intervalRPS"`
	IntervalErrorRate float64 `json:"intervalErrorRate"`

	LatencyP50 time.Duration `json:"latencyP50"`
	LatencyP95 time.Duration `json:"latencyP95"`

	ActiveVUs int   `json:"activeVUs"`
	Phase     Phase `json:"phase"`
}

// CheckStats is the pass/fail tally of one named check.
type CheckStats struct {
	Name     string  `json:"name"`
	Passes   int64   `json:"passes"`
	Fails    int64   `json:"fails"`
	PassRate float64 `json:"passRate"`
}

// Summary is the final aggregate of a run.
type Summary struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	Iterations int64 `json:"iterations"`

	// Requests that got any HTTP response, whatever the status
	Responses       int64            `json:"responses"`
	TotalRequests   int64            `json:"totalRequests"`
	SuccessRequests int64            `json:"successRequests"`
	FailedRequests  int64            `json:"failedRequests"`
	ErrorRate       float64          `json:"errorRate"`
	Errors          map[string]int64 `json:"errors,omitempty"`
	TotalBytes      int64            `json:"totalBytes"`
	RPS             float64          `json:"rps"`
	SteadyStateRPS  float64          `json:"steadyStateRps"`

	Latency LatencyStats `json:"latency"`

	Checks        []CheckStats `json:"checks"`
	CheckPasses   int64        `json:"checkPasses"`
	CheckFails    int64        `json:"checkFails"`
	CheckPassRate float64      `json:"checkPassRate"`

	PeakVUs int `json:"peakVUs"`

	TimeSeries []*TimeBucket `json:"timeSeries,omitempty"`
}

// Unreachable reports whether iterations ran but no request ever got a
// response from the target.
func (s *Summary) Unreachable() bool {
	return s.Iterations > 0 && s.Responses == 0
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// BucketInterval is the interval for time-series buckets (default: 1s)
	BucketInterval time.Duration

	// MaxBuckets is the maximum number of buckets to retain (default: 3600)
	MaxBuckets int

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BucketInterval:   time.Second,
		MaxBuckets:       3600,
		HistogramMin:     1,
		HistogramMax:     3600000000,
		HistogramSigFigs: 3,
	}
}
