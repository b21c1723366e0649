package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// TimeBucketStore keeps the most recent time buckets in a ring buffer.
//
// Requests are accumulated lock-free into the current interval; the engine's
// emitter closes an interval by calling CreateBucket.
type TimeBucketStore struct {
	buckets    []*TimeBucket
	head       int // next write position
	count      int
	maxBuckets int
	mu         sync.RWMutex

	lastBucketTime time.Time

	currentRequests atomic.Int64
	currentFailures atomic.Int64
}

// NewTimeBucketStore creates a store holding at most maxBuckets buckets.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}

	return &TimeBucketStore{
		buckets:        make([]*TimeBucket, maxBuckets),
		maxBuckets:     maxBuckets,
		lastBucketTime: time.Now(),
	}
}

// RecordRequest adds one request to the current interval.
func (tbs *TimeBucketStore) RecordRequest(success bool) {
	tbs.currentRequests.Add(1)
	if !success {
		tbs.currentFailures.Add(1)
	}
}

// CreateBucket closes the current interval and appends a bucket built from it
// and the given cumulative values.
func (tbs *TimeBucketStore) CreateBucket(
	totalRequests, totalFailures, totalIterations int64,
	latencies LatencyPercentiles,
	activeVUs int,
	phase Phase,
) *TimeBucket {
	tbs.mu.Lock()
	defer tbs.mu.Unlock()

	now := time.Now()

	intervalRequests := tbs.currentRequests.Swap(0)
	intervalFailures := tbs.currentFailures.Swap(0)

	seconds := now.Sub(tbs.lastBucketTime).Seconds()
	if seconds <= 0 {
		seconds = 1.0
	}

	errorRate := 0.0
	if intervalRequests > 0 {
		errorRate = float64(intervalFailures) / float64(intervalRequests)
	}

	bucket := &TimeBucket{
		Timestamp:         now,
		TotalRequests:     totalRequests,
		TotalFailures:     totalFailures,
		TotalIterations:   totalIterations,
		IntervalRequests:  intervalRequests,
		IntervalRPS:       float64(intervalRequests) / seconds,
		IntervalErrorRate: errorRate,
		LatencyP50:        latencies.P50,
		LatencyP95:        latencies.P95,
		ActiveVUs:         activeVUs,
		Phase:             phase,
	}

	tbs.buckets[tbs.head] = bucket
	tbs.head = (tbs.head + 1) % tbs.maxBuckets
	if tbs.count < tbs.maxBuckets {
		tbs.count++
	}
	tbs.lastBucketTime = now

	return bucket
}

// GetBuckets returns all buckets in chronological order.
func (tbs *TimeBucketStore) GetBuckets() []*TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, tbs.count)
	start := 0
	if tbs.count == tbs.maxBuckets {
		start = tbs.head
	}
	for i := 0; i < tbs.count; i++ {
		result[i] = tbs.buckets[(start+i)%tbs.maxBuckets]
	}
	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (tbs *TimeBucketStore) GetLatestBucket() *TimeBucket {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()

	if tbs.count == 0 {
		return nil
	}
	return tbs.buckets[(tbs.head-1+tbs.maxBuckets)%tbs.maxBuckets]
}

// Count returns the current number of buckets stored.
func (tbs *TimeBucketStore) Count() int {
	tbs.mu.RLock()
	defer tbs.mu.RUnlock()
	return tbs.count
}

// CalculateSteadyStateRPS averages the interval RPS of buckets recorded while
// the load was holding steady. It returns the average and how many buckets
// contributed.
func (tbs *TimeBucketStore) CalculateSteadyStateRPS() (float64, int) {
	var total float64
	n := 0
	for _, b := range tbs.GetBuckets() {
		if b.Phase == PhaseSteady {
			total += b.IntervalRPS
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return total / float64(n), n
}
