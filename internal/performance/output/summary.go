// Package output renders the run summary and live progress of a load test.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/wesleyorama2/surge/internal/performance/engine"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

const (
	ruleWidth  = 56
	labelWidth = 24
)

// Outcome is the overall verdict printed at the bottom of a summary.
type Outcome string

const (
	OutcomePassed      Outcome = "PASSED"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeUnreachable Outcome = "UNREACHABLE"
	OutcomeInterrupted Outcome = "INTERRUPTED"
)

// ResultOutcome classifies a finished run. Interruption takes precedence
// over an unreachable target, which takes precedence over thresholds.
func ResultOutcome(result *engine.TestResult) Outcome {
	switch {
	case result.Interrupted:
		return OutcomeInterrupted
	case result.Summary != nil && result.Summary.Unreachable():
		return OutcomeUnreachable
	case !result.Passed:
		return OutcomeFailed
	default:
		return OutcomePassed
	}
}

// SummaryPrinter writes the human-readable run summary.
type SummaryPrinter struct {
	writer io.Writer
	colors *ColorScheme
	quiet  bool
}

// NewSummaryPrinter creates a printer writing to w. When quiet is set only
// the outcome line is printed.
func NewSummaryPrinter(w io.Writer, useColors, quiet bool) *SummaryPrinter {
	return &SummaryPrinter{
		writer: w,
		colors: NewColorScheme(useColors),
		quiet:  quiet,
	}
}

// Print writes the summary of result.
func (p *SummaryPrinter) Print(result *engine.TestResult) {
	outcome := ResultOutcome(result)
	if p.quiet {
		p.writeln(p.outcomeColor(outcome).Sprint(string(outcome)))
		return
	}

	s := result.Summary
	if s == nil {
		s = &metrics.Summary{}
	}

	rule := strings.Repeat("━", ruleWidth)
	p.writeln("")
	p.writeln(p.colors.Title.Sprint(rule))
	p.writeln(fmt.Sprintf("%s  %s", p.colors.Label.Sprint(displayName(result.Name)), p.colors.Dim.Sprintf("run %s", result.RunID)))
	if result.Description != "" {
		p.writeln(p.colors.Dim.Sprint(result.Description))
	}
	p.writeln(p.colors.Title.Sprint(rule))
	p.writeln("")

	if len(s.Checks) > 0 {
		for _, c := range s.Checks {
			icon := p.colors.SuccessIcon()
			if c.Fails > 0 {
				icon = p.colors.ErrorIcon()
			}
			p.writeln(fmt.Sprintf("  %s %s", icon, c.Name))
			p.writeln(p.colors.Dim.Sprintf("      %s  ✓ %d  ✗ %d", formatPercent(c.PassRate), c.Passes, c.Fails))
		}
		p.writeln("")
	}

	seconds := s.Duration.Seconds()
	p.metric("checks", fmt.Sprintf("%s  ✓ %d  ✗ %d",
		p.colors.Rate(s.CheckPassRate).Sprint(formatPercent(s.CheckPassRate)), s.CheckPasses, s.CheckFails))
	p.metric("iterations", fmt.Sprintf("%s  %s",
		p.colors.Value.Sprint(formatNumber(s.Iterations)), perSecond(s.Iterations, seconds)))
	p.metric("http_reqs", fmt.Sprintf("%s  %s",
		p.colors.Value.Sprint(formatNumber(s.TotalRequests)), perSecond(s.TotalRequests, seconds)))
	p.metric("http_req_failed", fmt.Sprintf("%s  %d of %d",
		p.colors.Rate(1-s.ErrorRate).Sprint(formatPercent(s.ErrorRate)), s.FailedRequests, s.TotalRequests))
	p.metric("http_req_duration", formatLatency(s.Latency))
	p.metric("data_received", formatBytes(s.TotalBytes))
	p.metric("vus_max", p.colors.Value.Sprint(s.PeakVUs))
	p.metric("duration", formatDuration(result.Duration))
	p.writeln("")

	if kinds := s.ErrorKinds(); len(kinds) > 0 {
		p.writeln(p.colors.Label.Sprint("Errors:"))
		for _, kind := range kinds {
			p.writeln(fmt.Sprintf("  %-22s %s", kind, p.colors.Error.Sprint(s.Errors[kind])))
		}
		p.writeln("")
	}

	if len(result.Thresholds) > 0 {
		p.writeln(p.colors.Label.Sprint("Thresholds:"))
		for _, t := range result.Thresholds {
			icon := p.colors.SuccessIcon()
			if !t.Passed {
				icon = p.colors.ErrorIcon()
			}
			p.writeln(fmt.Sprintf("  %s %s %s (actual: %s)", icon, t.Metric, t.Expression, t.Value))
		}
		p.writeln("")
	}

	switch outcome {
	case OutcomeUnreachable:
		p.writeln(p.colors.Error.Sprint("Target unreachable: no request received a response"))
	case OutcomeInterrupted:
		p.writeln(p.colors.Warn.Sprint("Run interrupted before the last stage completed"))
	}
	p.writeln(p.outcomeColor(outcome).Sprint(string(outcome)))
}

func (p *SummaryPrinter) outcomeColor(o Outcome) *color.Color {
	switch o {
	case OutcomePassed:
		return p.colors.Success
	case OutcomeInterrupted:
		return p.colors.Warn
	default:
		return p.colors.Error
	}
}

// metric writes one dotted "name.....: value" line.
func (p *SummaryPrinter) metric(name, value string) {
	dots := labelWidth - len(name)
	if dots < 1 {
		dots = 1
	}
	p.writeln(fmt.Sprintf("  %s%s: %s", name, p.colors.Dim.Sprint(strings.Repeat(".", dots)), value))
}

func (p *SummaryPrinter) writeln(s string) {
	fmt.Fprintln(p.writer, s)
}

func displayName(name string) string {
	if name == "" {
		return "surge run"
	}
	return name
}

func formatLatency(l metrics.LatencyStats) string {
	if l.Count == 0 {
		return "no samples"
	}
	return fmt.Sprintf("avg=%s min=%s med=%s p90=%s p95=%s p99=%s max=%s",
		formatDurationShort(l.Mean),
		formatDurationShort(l.Min),
		formatDurationShort(l.P50),
		formatDurationShort(l.P90),
		formatDurationShort(l.P95),
		formatDurationShort(l.P99),
		formatDurationShort(l.Max))
}

func perSecond(n int64, seconds float64) string {
	if seconds <= 0 {
		return "0.0/s"
	}
	return fmt.Sprintf("%.1f/s", float64(n)/seconds)
}

func formatPercent(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate*100)
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %02ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
}

// formatDurationShort formats a latency value.
func formatDurationShort(d time.Duration) string {
	if d < time.Microsecond {
		return "0ms"
	}
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

// formatNumber formats a number with thousands separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 || len(str) <= 3 {
		return str
	}

	var result strings.Builder
	offset := len(str) % 3
	if offset > 0 {
		result.WriteString(str[:offset])
	}
	for i := offset; i < len(str); i += 3 {
		if result.Len() > 0 {
			result.WriteString(",")
		}
		result.WriteString(str[i : i+3])
	}
	return result.String()
}

// formatBytes formats a byte count with decimal units.
func formatBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}
