package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/executor"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{1500 * time.Microsecond, "1.50ms"},
		{50 * time.Millisecond, "50.00ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDurationShort(tt.duration); got != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{12345, "12,345"},
		{1234567, "1,234,567"},
		{-1234, "-1234"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumber(tt.number); got != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1500, "1.5 kB"},
		{2500000, "2.5 MB"},
		{3000000000, "3.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatBytes(tt.n); got != tt.expected {
				t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.expected)
			}
		})
	}
}

func TestResultOutcome(t *testing.T) {
	unreachable := &metrics.Summary{Iterations: 3}
	reached := &metrics.Summary{Iterations: 3, Responses: 3}

	tests := []struct {
		name   string
		result *engine.TestResult
		want   Outcome
	}{
		{"passed", &engine.TestResult{Passed: true, Summary: reached}, OutcomePassed},
		{"thresholds failed", &engine.TestResult{Passed: false, Summary: reached}, OutcomeFailed},
		{"unreachable", &engine.TestResult{Passed: true, Summary: unreachable}, OutcomeUnreachable},
		{"interrupted wins", &engine.TestResult{Passed: false, Interrupted: true, Summary: unreachable}, OutcomeInterrupted},
		{"no summary", &engine.TestResult{Passed: true}, OutcomePassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResultOutcome(tt.result))
		})
	}
}

func sampleResult() *engine.TestResult {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &engine.TestResult{
		RunID:     "6f1c2b1e-0000-4000-8000-000000000001",
		Name:      "smoke",
		StartTime: start,
		EndTime:   start.Add(10 * time.Second),
		Duration:  10 * time.Second,
		Passed:    true,
		Summary: &metrics.Summary{
			Duration:        10 * time.Second,
			Iterations:      100,
			Responses:       98,
			TotalRequests:   100,
			SuccessRequests: 97,
			FailedRequests:  3,
			ErrorRate:       0.03,
			Errors:          map[string]int64{"timeout": 2, "status_503": 1},
			TotalBytes:      150000,
			RPS:             10,
			Latency: metrics.LatencyStats{
				Min:   2 * time.Millisecond,
				Max:   300 * time.Millisecond,
				Mean:  40 * time.Millisecond,
				P50:   30 * time.Millisecond,
				P90:   90 * time.Millisecond,
				P95:   120 * time.Millisecond,
				P99:   250 * time.Millisecond,
				Count: 100,
			},
			Checks: []metrics.CheckStats{
				{Name: "status was 200", Passes: 97, Fails: 3, PassRate: 0.97},
				{Name: "fast enough", Passes: 100, Fails: 0, PassRate: 1},
			},
			CheckPasses:   197,
			CheckFails:    3,
			CheckPassRate: 0.985,
			PeakVUs:       5,
		},
		Thresholds: []engine.ThresholdResult{
			{Metric: "http_req_duration", Expression: "p95 < 500ms", Passed: true, Value: "120ms"},
		},
	}
}

func TestSummaryPrinter_Print(t *testing.T) {
	var buf bytes.Buffer
	NewSummaryPrinter(&buf, false, false).Print(sampleResult())
	out := buf.String()

	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "smoke")
	assert.Contains(t, out, "run 6f1c2b1e-0000-4000-8000-000000000001")
	assert.Contains(t, out, "✗ status was 200")
	assert.Contains(t, out, "✓ fast enough")
	assert.Contains(t, out, "98.50%  ✓ 197  ✗ 3")
	assert.Contains(t, out, "iterations")
	assert.Contains(t, out, "10.0/s")
	assert.Contains(t, out, "3.00%  3 of 100")
	assert.Contains(t, out, "p95=120.00ms")
	assert.Contains(t, out, "150.0 kB")
	assert.Contains(t, out, "Thresholds:")
	assert.Contains(t, out, "✓ http_req_duration p95 < 500ms (actual: 120ms)")
	assert.True(t, strings.HasSuffix(out, "PASSED\n"))

	// Errors are listed most frequent first.
	timeoutIdx := strings.Index(out, "timeout")
	statusIdx := strings.Index(out, "status_503")
	require.NotEqual(t, -1, timeoutIdx)
	require.NotEqual(t, -1, statusIdx)
	assert.Less(t, timeoutIdx, statusIdx)
}

func TestSummaryPrinter_Colors(t *testing.T) {
	var buf bytes.Buffer
	NewSummaryPrinter(&buf, true, false).Print(sampleResult())

	assert.Contains(t, buf.String(), "\x1b[")
}

func TestSummaryPrinter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	result := sampleResult()
	result.Passed = false

	NewSummaryPrinter(&buf, false, true).Print(result)

	assert.Equal(t, "FAILED\n", buf.String())
}

func TestSummaryPrinter_Unreachable(t *testing.T) {
	var buf bytes.Buffer
	result := &engine.TestResult{
		Name:   "down",
		Passed: true,
		Summary: &metrics.Summary{
			Iterations:     4,
			TotalRequests:  4,
			FailedRequests: 4,
			ErrorRate:      1,
			Errors:         map[string]int64{"connection_refused": 4},
			Checks:         []metrics.CheckStats{{Name: "status is 200", Fails: 4}},
			CheckFails:     4,
		},
	}

	NewSummaryPrinter(&buf, false, false).Print(result)
	out := buf.String()

	assert.Contains(t, out, "no samples")
	assert.Contains(t, out, "connection_refused")
	assert.Contains(t, out, "Target unreachable")
	assert.True(t, strings.HasSuffix(out, "UNREACHABLE\n"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResult()))

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "smoke", report["name"])
	assert.Equal(t, "PASSED", report["outcome"])
	assert.Equal(t, float64(10000), report["durationMs"])
	assert.Equal(t, float64(100), report["iterations"])
	assert.Equal(t, false, report["unreachable"])

	latency := report["latencyMs"].(map[string]interface{})
	assert.Equal(t, float64(120), latency["p95"])

	checks := report["checks"].(map[string]interface{})
	assert.Equal(t, float64(197), checks["passes"])
	assert.Len(t, checks["byName"], 2)

	requests := report["requests"].(map[string]interface{})
	assert.Equal(t, float64(98), requests["responses"])
	assert.Len(t, requests["errorsByKind"], 2)

	assert.Len(t, report["thresholds"], 1)
}

func TestWriteJSON_EmptyRun(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, &engine.TestResult{Passed: true, Summary: &metrics.Summary{}}))

	var report JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, OutcomePassed, report.Outcome)
	assert.NotNil(t, report.Checks.ByName)
	assert.Empty(t, report.Checks.ByName)
}

func TestWriteJSON_Nil(t *testing.T) {
	assert.Error(t, WriteJSON(&bytes.Buffer{}, nil))
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, ExportJSON(path, sampleResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var report JSONReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, "6f1c2b1e-0000-4000-8000-000000000001", report.RunID)
	assert.Equal(t, int64(100), report.Iterations)
	assert.Equal(t, 5, report.PeakVUs)
}

func TestExportJSON_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "summary.json")
	assert.Error(t, ExportJSON(path, sampleResult()))
}

type fakeSource struct {
	snapshot *metrics.Snapshot
	stats    *executor.Stats
	progress float64
}

func (f *fakeSource) GetProgress() float64          { return f.progress }
func (f *fakeSource) GetMetrics() *metrics.Snapshot { return f.snapshot }
func (f *fakeSource) GetStats() *executor.Stats     { return f.stats }

func runningSource() *fakeSource {
	return &fakeSource{
		progress: 0.45,
		snapshot: &metrics.Snapshot{
			Iterations:     1234,
			FailedRequests: 2,
			ErrorRate:      0.002,
			IntervalRPS:    12.5,
			ActiveVUs:      3,
			CurrentPhase:   metrics.PhaseRampUp,
			Elapsed:        12 * time.Second,
			Latency:        metrics.LatencyStats{P95: 80 * time.Millisecond},
		},
		stats: &executor.Stats{TargetVUs: 5, CurrentStage: 1, TotalStages: 3},
	}
}

func TestProgressReporter_Update(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgressReporter(&buf, time.Second, false)

	r.Update(runningSource())
	line := buf.String()

	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.Contains(t, line, "[12.0s]")
	assert.Contains(t, line, " 45%")
	assert.Contains(t, line, "ramp-up 2/3")
	assert.Contains(t, line, "VUs: 3/5")
	assert.Contains(t, line, "Iters: 1,234")
	assert.Contains(t, line, "RPS: 12.5")
	assert.Contains(t, line, "Errors: 2 (0.2%)")
	assert.Contains(t, line, "P95: 80.00ms")
}

func TestProgressReporter_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgressReporter(&buf, time.Second, false)

	r.Update(&fakeSource{})

	assert.Empty(t, buf.String())
}

func TestProgressReporter_Done(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgressReporter(&buf, time.Second, false)

	src := runningSource()
	src.snapshot.CurrentPhase = metrics.PhaseDone
	src.stats.CurrentStage = 3
	r.Update(src)

	assert.Contains(t, buf.String(), " done |")
}

func TestProgressReporter_Run(t *testing.T) {
	var buf bytes.Buffer
	r := NewProgressReporter(&buf, 10*time.Millisecond, false)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx, runningSource()))
	assert.GreaterOrEqual(t, strings.Count(buf.String(), "\n"), 2)
}

func TestUseColors(t *testing.T) {
	unset := func(t *testing.T, key string) {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	t.Run("no-color flag", func(t *testing.T) {
		t.Setenv("FORCE_COLOR", "1")
		assert.False(t, UseColors(&bytes.Buffer{}, true))
	})

	t.Run("NO_COLOR", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		t.Setenv("FORCE_COLOR", "1")
		assert.False(t, UseColors(&bytes.Buffer{}, false))
	})

	t.Run("FORCE_COLOR", func(t *testing.T) {
		unset(t, "NO_COLOR")
		t.Setenv("FORCE_COLOR", "1")
		assert.True(t, UseColors(&bytes.Buffer{}, false))
	})

	t.Run("not a terminal", func(t *testing.T) {
		unset(t, "NO_COLOR")
		unset(t, "FORCE_COLOR")
		assert.False(t, UseColors(&bytes.Buffer{}, false))
	})
}
