package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/wesleyorama2/surge/internal/check"
)

// Engine is the result aggregator of a run.
//
// Every VU writes into the same Engine concurrently: counters are atomic, the
// HDR histogram and the per-check tallies are mutex-guarded. A background
// emitter closes a time bucket every BucketInterval for live progress.
// Summary is read once the run has finished.
type Engine struct {
	// Range: 1 microsecond to 1 hour, 3 significant figures
	latencyHist   *hdrhistogram.Histogram
	latencyHistMu sync.Mutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	failedRequests  atomic.Int64
	responses       atomic.Int64
	totalBytes      atomic.Int64
	iterations      atomic.Int64
	checkPasses     atomic.Int64
	checkFails      atomic.Int64

	// Per-check tallies, kept in first-seen order
	checks     map[string]*CheckStats
	checkOrder []string
	checksMu   sync.Mutex

	errors   map[string]int64
	errorsMu sync.Mutex

	activeVUs atomic.Int32
	peakVUs   atomic.Int32

	bucketStore *TimeBucketStore

	currentPhase Phase
	phaseMu      sync.RWMutex

	startTime time.Time

	emitterCtx    context.Context
	emitterCancel context.CancelFunc
	emitterWg     sync.WaitGroup
	stopOnce      sync.Once

	config EngineConfig
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration
// and starts its bucket emitter. Call Stop when the run ends.
func NewEngineWithConfig(config EngineConfig) *Engine {
	defaults := DefaultEngineConfig()
	if config.BucketInterval <= 0 {
		config.BucketInterval = defaults.BucketInterval
	}
	if config.HistogramMin <= 0 {
		config.HistogramMin = defaults.HistogramMin
	}
	if config.HistogramMax <= config.HistogramMin {
		config.HistogramMax = defaults.HistogramMax
	}
	if config.HistogramSigFigs <= 0 {
		config.HistogramSigFigs = defaults.HistogramSigFigs
	}

	ctx, cancel := context.WithCancel(context.Background())

	engine := &Engine{
		latencyHist:   hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs),
		checks:        make(map[string]*CheckStats),
		errors:        make(map[string]int64),
		bucketStore:   NewTimeBucketStore(config.MaxBuckets),
		currentPhase:  PhaseInit,
		startTime:     time.Now(),
		emitterCtx:    ctx,
		emitterCancel: cancel,
		config:        config,
	}

	engine.emitterWg.Add(1)
	go engine.runEmitter()

	return engine
}

// RecordRequest records the outcome of one HTTP request.
//
// statusCode is 0 when no response was received; err is the transport error
// in that case. A request succeeds when it got a response with a status
// below 400.
func (e *Engine) RecordRequest(duration time.Duration, statusCode int, bytes int64, err error) {
	latencyMicros := duration.Microseconds()
	if latencyMicros < e.config.HistogramMin {
		latencyMicros = e.config.HistogramMin
	}
	if latencyMicros > e.config.HistogramMax {
		latencyMicros = e.config.HistogramMax
	}

	e.latencyHistMu.Lock()
	_ = e.latencyHist.RecordValue(latencyMicros)
	e.latencyHistMu.Unlock()

	e.totalRequests.Add(1)
	e.totalBytes.Add(bytes)
	if statusCode > 0 {
		e.responses.Add(1)
	}

	success := err == nil && statusCode > 0 && statusCode < 400
	if success {
		e.successRequests.Add(1)
	} else {
		e.failedRequests.Add(1)
		e.recordError(ClassifyError(statusCode, err))
	}

	e.bucketStore.RecordRequest(success)
}

func (e *Engine) recordError(kind string) {
	e.errorsMu.Lock()
	e.errors[kind]++
	e.errorsMu.Unlock()
}

// RecordChecks records the results of one iteration's checks.
func (e *Engine) RecordChecks(results []check.Result) {
	e.checksMu.Lock()
	defer e.checksMu.Unlock()

	for _, r := range results {
		stats, ok := e.checks[r.Name]
		if !ok {
			stats = &CheckStats{Name: r.Name}
			e.checks[r.Name] = stats
			e.checkOrder = append(e.checkOrder, r.Name)
		}
		if r.Passed {
			stats.Passes++
			e.checkPasses.Add(1)
		} else {
			stats.Fails++
			e.checkFails.Add(1)
		}
	}
}

// RecordIteration counts one completed iteration.
func (e *Engine) RecordIteration() {
	e.iterations.Add(1)
}

// SetPhase updates the current test phase.
func (e *Engine) SetPhase(phase Phase) {
	e.phaseMu.Lock()
	defer e.phaseMu.Unlock()
	e.currentPhase = phase
}

// GetPhase returns the current test phase.
func (e *Engine) GetPhase() Phase {
	e.phaseMu.RLock()
	defer e.phaseMu.RUnlock()
	return e.currentPhase
}

// SetActiveVUs updates the active VU count and the run's peak.
func (e *Engine) SetActiveVUs(count int) {
	e.activeVUs.Store(int32(count))
	for {
		peak := e.peakVUs.Load()
		if int32(count) <= peak || e.peakVUs.CompareAndSwap(peak, int32(count)) {
			return
		}
	}
}

// GetActiveVUs returns the current active VU count.
func (e *Engine) GetActiveVUs() int {
	return int(e.activeVUs.Load())
}

// PeakVUs returns the highest VU count seen so far.
func (e *Engine) PeakVUs() int {
	return int(e.peakVUs.Load())
}

func (e *Engine) runEmitter() {
	defer e.emitterWg.Done()

	ticker := time.NewTicker(e.config.BucketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.emitterCtx.Done():
			return
		case <-ticker.C:
			e.emitBucket()
		}
	}
}

func (e *Engine) emitBucket() {
	e.bucketStore.CreateBucket(
		e.totalRequests.Load(),
		e.failedRequests.Load(),
		e.iterations.Load(),
		e.GetLatencyPercentiles(),
		e.GetActiveVUs(),
		e.GetPhase(),
	)
}

// GetLatencyPercentiles returns current latency percentiles.
func (e *Engine) GetLatencyPercentiles() LatencyPercentiles {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyPercentiles{
		Min: micros(e.latencyHist.Min()),
		Max: micros(e.latencyHist.Max()),
		P50: micros(e.latencyHist.ValueAtQuantile(50)),
		P90: micros(e.latencyHist.ValueAtQuantile(90)),
		P95: micros(e.latencyHist.ValueAtQuantile(95)),
		P99: micros(e.latencyHist.ValueAtQuantile(99)),
	}
}

func (e *Engine) latencyStats() LatencyStats {
	e.latencyHistMu.Lock()
	defer e.latencyHistMu.Unlock()

	return LatencyStats{
		Min:    micros(e.latencyHist.Min()),
		Max:    micros(e.latencyHist.Max()),
		Mean:   time.Duration(e.latencyHist.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(e.latencyHist.StdDev() * float64(time.Microsecond)),
		P50:    micros(e.latencyHist.ValueAtQuantile(50)),
		P90:    micros(e.latencyHist.ValueAtQuantile(90)),
		P95:    micros(e.latencyHist.ValueAtQuantile(95)),
		P99:    micros(e.latencyHist.ValueAtQuantile(99)),
		Count:  e.latencyHist.TotalCount(),
	}
}

func micros(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}

// GetSnapshot returns a point-in-time view for progress reporting.
func (e *Engine) GetSnapshot() *Snapshot {
	elapsed := time.Since(e.startTime)
	totalReqs := e.totalRequests.Load()
	failedReqs := e.failedRequests.Load()

	rps := 0.0
	if elapsed.Seconds() > 0 {
		rps = float64(totalReqs) / elapsed.Seconds()
	}

	intervalRPS := rps
	if latest := e.bucketStore.GetLatestBucket(); latest != nil {
		intervalRPS = latest.IntervalRPS
	}

	errorRate := 0.0
	if totalReqs > 0 {
		errorRate = float64(failedReqs) / float64(totalReqs)
	}

	return &Snapshot{
		TotalRequests:   totalReqs,
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  failedReqs,
		TotalBytes:      e.totalBytes.Load(),
		Iterations:      e.iterations.Load(),
		CheckPasses:     e.checkPasses.Load(),
		CheckFails:      e.checkFails.Load(),
		Latency:         e.latencyStats(),
		RPS:             rps,
		IntervalRPS:     intervalRPS,
		ErrorRate:       errorRate,
		ActiveVUs:       e.GetActiveVUs(),
		CurrentPhase:    e.GetPhase(),
		Elapsed:         elapsed,
		StartTime:       e.startTime,
		Timestamp:       time.Now(),
	}
}

// GetTimeSeries returns all time-series buckets.
func (e *Engine) GetTimeSeries() []*TimeBucket {
	return e.bucketStore.GetBuckets()
}

// Summary finalizes the aggregate. It is meant to be called once, after
// every VU has stopped.
func (e *Engine) Summary() *Summary {
	endTime := time.Now()
	duration := endTime.Sub(e.startTime)

	s := &Summary{
		StartTime:       e.startTime,
		EndTime:         endTime,
		Duration:        duration,
		Iterations:      e.iterations.Load(),
		Responses:       e.responses.Load(),
		TotalRequests:   e.totalRequests.Load(),
		SuccessRequests: e.successRequests.Load(),
		FailedRequests:  e.failedRequests.Load(),
		TotalBytes:      e.totalBytes.Load(),
		Latency:         e.latencyStats(),
		CheckPasses:     e.checkPasses.Load(),
		CheckFails:      e.checkFails.Load(),
		PeakVUs:         e.PeakVUs(),
		TimeSeries:      e.GetTimeSeries(),
	}

	if s.TotalRequests > 0 {
		s.ErrorRate = float64(s.FailedRequests) / float64(s.TotalRequests)
	}
	if duration.Seconds() > 0 {
		s.RPS = float64(s.TotalRequests) / duration.Seconds()
	}
	s.SteadyStateRPS, _ = e.bucketStore.CalculateSteadyStateRPS()

	if total := s.CheckPasses + s.CheckFails; total > 0 {
		s.CheckPassRate = float64(s.CheckPasses) / float64(total)
	}

	e.checksMu.Lock()
	s.Checks = make([]CheckStats, 0, len(e.checkOrder))
	for _, name := range e.checkOrder {
		stats := *e.checks[name]
		if total := stats.Passes + stats.Fails; total > 0 {
			stats.PassRate = float64(stats.Passes) / float64(total)
		}
		s.Checks = append(s.Checks, stats)
	}
	e.checksMu.Unlock()

	e.errorsMu.Lock()
	if len(e.errors) > 0 {
		s.Errors = make(map[string]int64, len(e.errors))
		for k, v := range e.errors {
			s.Errors[k] = v
		}
	}
	e.errorsMu.Unlock()

	return s
}

// ErrorKinds returns the recorded error kinds sorted by descending count.
func (s *Summary) ErrorKinds() []string {
	kinds := make([]string, 0, len(s.Errors))
	for k := range s.Errors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if s.Errors[kinds[i]] != s.Errors[kinds[j]] {
			return s.Errors[kinds[i]] > s.Errors[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}

// Stop stops the bucket emitter and emits a final bucket. It is safe to call
// more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.emitterCancel()
		e.emitterWg.Wait()
		e.emitBucket()
	})
}
