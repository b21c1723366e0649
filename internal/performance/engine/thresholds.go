package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

// EvaluateThresholds evaluates every configured threshold against the final
// summary. A threshold that cannot be parsed fails.
func EvaluateThresholds(t *config.ThresholdsConfig, s *metrics.Summary) []ThresholdResult {
	if t == nil {
		return nil
	}

	var results []ThresholdResult

	for _, expr := range t.HTTPReqDuration {
		results = append(results, evaluateDurationThreshold(expr, s))
	}
	for _, expr := range t.HTTPReqFailed {
		results = append(results, evaluateRateThreshold("http_req_failed", "error rate", expr, s.ErrorRate))
	}
	for _, expr := range t.HTTPReqs {
		results = append(results, evaluateRequestsThreshold(expr, s))
	}
	for _, expr := range t.Checks {
		results = append(results, evaluateRateThreshold("checks", "check pass rate", expr, s.CheckPassRate))
	}

	return results
}

// evaluateDurationThreshold evaluates an expression like "p95 < 500ms".
func evaluateDurationThreshold(expr string, s *metrics.Summary) ThresholdResult {
	result := ThresholdResult{
		Metric:     "http_req_duration",
		Expression: expr,
	}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var actualValue time.Duration
	switch metric {
	case "min":
		actualValue = s.Latency.Min
	case "max":
		actualValue = s.Latency.Max
	case "avg":
		actualValue = s.Latency.Mean
	case "med", "p50":
		actualValue = s.Latency.P50
	case "p90":
		actualValue = s.Latency.P90
	case "p95":
		actualValue = s.Latency.P95
	case "p99":
		actualValue = s.Latency.P99
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", metric)
		return result
	}

	thresholdValue, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actualValue.String()
	result.Passed = compareValues(float64(actualValue), op, float64(thresholdValue))

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", metric, actualValue, op, thresholdValue)
	}

	return result
}

// evaluateRateThreshold evaluates an expression like "rate < 0.01" against a
// ratio in [0, 1].
func evaluateRateThreshold(name, label, expr string, actual float64) ThresholdResult {
	result := ThresholdResult{
		Metric:     name,
		Expression: expr,
	}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	if metric != "rate" {
		result.Message = fmt.Sprintf("%s only supports 'rate' metric, got: %s", name, metric)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = fmt.Sprintf("%.4f", actual)
	result.Passed = compareValues(actual, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.4f, threshold: %s %.4f", label, actual, op, thresholdValue)
	}

	return result
}

// evaluateRequestsThreshold evaluates "count > 1000" or "rate > 100".
func evaluateRequestsThreshold(expr string, s *metrics.Summary) ThresholdResult {
	result := ThresholdResult{
		Metric:     "http_reqs",
		Expression: expr,
	}

	metric, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actualValue float64
	switch metric {
	case "count":
		actualValue = float64(s.TotalRequests)
	case "rate":
		actualValue = s.RPS
	default:
		result.Message = fmt.Sprintf("http_reqs only supports 'count' or 'rate' metrics, got: %s", metric)
		return result
	}

	result.Value = fmt.Sprintf("%.2f", actualValue)
	result.Passed = compareValues(actualValue, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", metric, actualValue, op, thresholdValue)
	}

	return result
}

// parseThresholdExpression parses an expression like "p95 < 500ms".
func parseThresholdExpression(expr string) (metric, op, value string, err error) {
	return config.ParseThresholdExpression(expr)
}

func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
