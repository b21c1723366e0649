package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wesleyorama2/surge/internal/performance/executor"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// DefaultProgressInterval is how often a progress line is printed.
const DefaultProgressInterval = time.Second

const clearLine = "\r\033[2K"

// ProgressSource is what the reporter polls. *engine.Engine implements it.
type ProgressSource interface {
	GetProgress() float64
	GetMetrics() *metrics.Snapshot
	GetStats() *executor.Stats
}

// ProgressReporter prints one status line per interval while a run is in
// progress. On a terminal the line is rewritten in place; otherwise a new
// line is appended each time, which suits CI logs.
type ProgressReporter struct {
	writer   io.Writer
	interval time.Duration
	isTTY    bool
	colors   *ColorScheme

	mu    sync.Mutex
	dirty bool
}

// NewProgressReporter creates a reporter writing to w.
func NewProgressReporter(w io.Writer, interval time.Duration, useColors bool) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressReporter{
		writer:   w,
		interval: interval,
		isTTY:    IsTerminal(w),
		colors:   NewColorScheme(useColors),
	}
}

// Run prints progress until ctx is done, then clears the live line. It
// always returns nil so it can share an errgroup with the run itself.
func (r *ProgressReporter) Run(ctx context.Context, src ProgressSource) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.finish()
			return nil
		case <-ticker.C:
			r.Update(src)
		}
	}
}

// Update prints the current status of src. Nothing is printed before the
// run has started.
func (r *ProgressReporter) Update(src ProgressSource) {
	snapshot := src.GetMetrics()
	stats := src.GetStats()
	if snapshot == nil || stats == nil {
		return
	}

	line := r.formatLine(snapshot, stats, src.GetProgress())

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isTTY {
		fmt.Fprint(r.writer, clearLine+line)
		r.dirty = true
		return
	}
	fmt.Fprintln(r.writer, line)
}

func (r *ProgressReporter) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirty {
		fmt.Fprint(r.writer, clearLine)
		r.dirty = false
	}
}

func (r *ProgressReporter) formatLine(s *metrics.Snapshot, stats *executor.Stats, progress float64) string {
	stage := string(s.CurrentPhase)
	if stats.CurrentStage < stats.TotalStages && s.CurrentPhase != metrics.PhaseDone {
		stage = fmt.Sprintf("%s %d/%d", s.CurrentPhase, stats.CurrentStage+1, stats.TotalStages)
	}

	errColor := r.colors.Rate(1 - s.ErrorRate)

	return fmt.Sprintf("[%s] %s %s | VUs: %s/%d | Iters: %s | RPS: %.1f | Errors: %s | P95: %s",
		formatDuration(s.Elapsed),
		r.colors.Value.Sprintf("%3.0f%%", progress*100),
		r.colors.Dim.Sprint(stage),
		r.colors.Value.Sprint(s.ActiveVUs),
		stats.TargetVUs,
		formatNumber(s.Iterations),
		s.IntervalRPS,
		errColor.Sprintf("%d (%.1f%%)", s.FailedRequests, s.ErrorRate*100),
		formatDurationShort(s.Latency.P95))
}
