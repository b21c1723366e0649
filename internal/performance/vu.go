// Package performance runs virtual users against an HTTP target.
package performance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/surge/internal/check"
	"github.com/wesleyorama2/surge/internal/performance/metrics"
)

// VUState represents the lifecycle state of a Virtual User.
type VUState int32

const (
	// VUStateIdle indicates the VU is between iterations.
	VUStateIdle VUState = iota
	// VUStateRunning indicates the VU is executing an iteration.
	VUStateRunning
	// VUStateStopping indicates the VU has been asked to stop after its
	// current iteration.
	VUStateStopping
	// VUStateStopped indicates the VU goroutine has exited.
	VUStateStopped
)

func (s VUState) String() string {
	switch s {
	case VUStateIdle:
		return "idle"
	case VUStateRunning:
		return "running"
	case VUStateStopping:
		return "stopping"
	case VUStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrVUStopped is returned by RunIteration once a stop was requested.
var ErrVUStopped = errors.New("virtual user is stopping")

// DefaultRequestTimeout bounds a request when the scenario sets none.
const DefaultRequestTimeout = 30 * time.Second

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// VirtualUser is a single simulated client looping over the scenario.
//
// A VU only owns its own counters; everything it produces goes to the shared
// metrics engine. A stop request is honored between iterations, never in the
// middle of one.
type VirtualUser struct {
	ID int

	Scenario *Scenario

	// HTTP client for this VU (may be shared or per-VU)
	HTTPClient *http.Client

	Metrics *metrics.Engine

	Logger *zap.Logger

	// Limiter caps the iteration rate across all VUs sharing it (optional)
	Limiter *rate.Limiter

	state atomic.Int32

	stopCh chan struct{}
	doneCh chan struct{}

	iteration atomic.Int64
}

// NewVirtualUser creates a new Virtual User.
func NewVirtualUser(id int, scenario *Scenario, httpClient *http.Client, metricsEngine *metrics.Engine) *VirtualUser {
	return &VirtualUser{
		ID:         id,
		Scenario:   scenario,
		HTTPClient: httpClient,
		Metrics:    metricsEngine,
		Logger:     zap.NewNop(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// GetState returns the current VU state.
func (vu *VirtualUser) GetState() VUState {
	return VUState(vu.state.Load())
}

// GetIteration returns the number of iterations started so far.
func (vu *VirtualUser) GetIteration() int64 {
	return vu.iteration.Load()
}

// RunIteration executes one iteration: send the request, record its latency,
// evaluate every check and record the results.
//
// A failed request is not an error: it is recorded as failed checks. The
// returned error is non-nil only when the iteration did not run, because the
// VU is stopping or ctx ended while waiting on the rate limiter.
func (vu *VirtualUser) RunIteration(ctx context.Context) error {
	if st := vu.GetState(); st == VUStateStopping || st == VUStateStopped {
		return ErrVUStopped
	}

	if vu.Limiter != nil {
		if err := vu.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	if !vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateRunning)) {
		return ErrVUStopped
	}
	defer vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateIdle))

	n := vu.iteration.Add(1)
	result := vu.executeRequest(ctx, n)

	vu.Metrics.RecordRequest(result.Duration, result.StatusCode, result.BytesReceived, result.Error)

	var checks []check.Result
	if result.Error != nil {
		vu.Logger.Warn("request failed",
			zap.Int("vu", vu.ID),
			zap.Int64("iteration", n),
			zap.String("request", vu.Scenario.Request.Name),
			zap.Int("status", result.StatusCode),
			zap.Error(result.Error),
		)
		checks = check.FailAll(vu.Scenario.Checks, result.Error)
	} else {
		checks = check.EvaluateAll(vu.Scenario.Checks, &check.Response{
			StatusCode: result.StatusCode,
			Header:     result.Header,
			Body:       result.Body,
			Duration:   result.Duration,
		})
	}

	vu.Metrics.RecordChecks(checks)
	vu.Metrics.RecordIteration()
	return nil
}

// executeRequest sends the scenario request and reads the whole response.
//
// The request context is detached from ctx: cancelling the run never aborts
// an in-flight request, only the request timeout does.
func (vu *VirtualUser) executeRequest(ctx context.Context, iteration int64) *RequestResult {
	req := vu.Scenario.Request
	startTime := time.Now()

	result := &RequestResult{
		VUID:        vu.ID,
		Iteration:   iteration,
		RequestName: req.Name,
		StartTime:   startTime,
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	httpReq, err := vu.buildRequest(reqCtx, iteration)
	if err != nil {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		result.Error = fmt.Errorf("failed to build request: %w", err)
		return result
	}

	resp, err := vu.HTTPClient.Do(httpReq)
	if err != nil {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(startTime)
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	result.StatusCode = resp.StatusCode
	result.Header = resp.Header
	result.BytesReceived = int64(len(body))
	if err != nil {
		result.Error = fmt.Errorf("failed to read response body: %w", err)
		return result
	}
	result.Body = body

	return result
}

// buildRequest builds the HTTP request with every placeholder resolved.
func (vu *VirtualUser) buildRequest(ctx context.Context, iteration int64) (*http.Request, error) {
	req := vu.Scenario.Request
	url := vu.resolveVariables(req.URL, iteration)

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(vu.resolveVariables(req.Body, iteration))
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, body)
	if err != nil {
		return nil, err
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, vu.resolveVariables(value, iteration))
	}
	if httpReq.Header.Get("User-Agent") == "" && vu.Scenario.UserAgent != "" {
		httpReq.Header.Set("User-Agent", vu.Scenario.UserAgent)
	}

	return httpReq, nil
}

// resolveVariables replaces {{name}} placeholders. The built-ins vu,
// iteration and uuid take precedence over scenario variables; unknown
// placeholders are left untouched.
func (vu *VirtualUser) resolveVariables(input string, iteration int64) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		switch name {
		case "vu":
			return strconv.Itoa(vu.ID)
		case "iteration":
			return strconv.FormatInt(iteration, 10)
		case "uuid":
			return uuid.NewString()
		}
		if value, ok := vu.Scenario.Variables[name]; ok {
			return value
		}
		return match
	})
}

// Pace waits the scenario's pacing delay. It returns false if the wait was cut
// short by ctx or a stop request.
func (vu *VirtualUser) Pace(ctx context.Context) bool {
	delay := vu.Scenario.Pacing.Delay()
	if delay <= 0 {
		return true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-vu.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RequestStop signals the VU to stop after completing the current iteration.
func (vu *VirtualUser) RequestStop() {
	if vu.state.CompareAndSwap(int32(VUStateRunning), int32(VUStateStopping)) ||
		vu.state.CompareAndSwap(int32(VUStateIdle), int32(VUStateStopping)) {
		close(vu.stopCh)
	}
}

// Done returns a channel closed once the VU has fully stopped.
func (vu *VirtualUser) Done() <-chan struct{} {
	return vu.doneCh
}

// MarkStopped marks the VU as fully stopped.
// Should be called by the pool when the VU goroutine exits.
func (vu *VirtualUser) MarkStopped() {
	prev := VUState(vu.state.Swap(int32(VUStateStopped)))
	if prev == VUStateStopped {
		return
	}
	if prev != VUStateStopping {
		close(vu.stopCh)
	}
	close(vu.doneCh)
}

// RequestResult contains the result of a single HTTP request.
type RequestResult struct {
	VUID          int
	Iteration     int64
	RequestName   string
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	StatusCode    int
	Header        http.Header
	BytesReceived int64
	Body          []byte
	Error         error
}
