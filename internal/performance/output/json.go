package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// JSONReport is the machine-readable run summary. Durations are in
// milliseconds.
type JSONReport struct {
	RunID       string    `json:"runId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	DurationMs  float64   `json:"durationMs"`

	Outcome     Outcome `json:"outcome"`
	Passed      bool    `json:"passed"`
	Interrupted bool    `json:"interrupted"`
	Unreachable bool    `json:"unreachable"`

	Iterations int64        `json:"iterations"`
	PeakVUs    int          `json:"peakVUs"`
	Checks     JSONChecks   `json:"checks"`
	Requests   JSONRequests `json:"requests"`
	LatencyMs  JSONLatency  `json:"latencyMs"`

	Thresholds []engine.ThresholdResult `json:"thresholds,omitempty"`
}

// JSONChecks holds the overall and per-check tallies.
type JSONChecks struct {
	Passes   int64                `json:"passes"`
	Fails    int64                `json:"fails"`
	PassRate float64              `json:"passRate"`
	ByName   []metrics.CheckStats `json:"byName"`
}

// JSONRequests holds request counters.
type JSONRequests struct {
	Total        int64            `json:"total"`
	Responses    int64            `json:"responses"`
	Success      int64            `json:"success"`
	Failed       int64            `json:"failed"`
	ErrorRate    float64          `json:"errorRate"`
	RPS          float64          `json:"rps"`
	BytesRead    int64            `json:"bytesRead"`
	ErrorsByKind map[string]int64 `json:"errorsByKind,omitempty"`
}

// JSONLatency holds latency statistics.
type JSONLatency struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P95    float64 `json:"p95"`
	P99    float64 `json:"p99"`
	Count  int64   `json:"count"`
}

// NewJSONReport converts a run result into its JSON form.
func NewJSONReport(result *engine.TestResult) *JSONReport {
	s := result.Summary
	if s == nil {
		s = &metrics.Summary{}
	}

	checks := s.Checks
	if checks == nil {
		checks = []metrics.CheckStats{}
	}

	return &JSONReport{
		RunID:       result.RunID,
		Name:        result.Name,
		Description: result.Description,
		StartTime:   result.StartTime,
		EndTime:     result.EndTime,
		DurationMs:  ms(result.Duration),
		Outcome:     ResultOutcome(result),
		Passed:      result.Passed,
		Interrupted: result.Interrupted,
		Unreachable: s.Unreachable(),
		Iterations:  s.Iterations,
		PeakVUs:     s.PeakVUs,
		Checks: JSONChecks{
			Passes:   s.CheckPasses,
			Fails:    s.CheckFails,
			PassRate: s.CheckPassRate,
			ByName:   checks,
		},
		Requests: JSONRequests{
			Total:        s.TotalRequests,
			Responses:    s.Responses,
			Success:      s.SuccessRequests,
			Failed:       s.FailedRequests,
			ErrorRate:    s.ErrorRate,
			RPS:          s.RPS,
			BytesRead:    s.TotalBytes,
			ErrorsByKind: s.Errors,
		},
		LatencyMs: JSONLatency{
			Min:    ms(s.Latency.Min),
			Max:    ms(s.Latency.Max),
			Mean:   ms(s.Latency.Mean),
			StdDev: ms(s.Latency.StdDev),
			P50:    ms(s.Latency.P50),
			P90:    ms(s.Latency.P90),
			P95:    ms(s.Latency.P95),
			P99:    ms(s.Latency.P99),
			Count:  s.Latency.Count,
		},
		Thresholds: result.Thresholds,
	}
}

// WriteJSON writes the indented JSON report of result to w.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewJSONReport(result)); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}

// ExportJSON writes the JSON report of result to the file at path.
func ExportJSON(path string, result *engine.TestResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}

	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
