package performance

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/wesleyorama2/surge/internal/check"
	"github.com/wesleyorama2/surge/internal/config"
)

// Scenario defines what a VU executes during each iteration.
type Scenario struct {
	Name string

	// Variables available to {{name}} placeholders
	Variables map[string]string

	// Request issued once per iteration
	Request *Request

	// Checks evaluated against every response
	Checks []*check.Check

	// Pacing applied after every iteration
	Pacing Pacing

	// UserAgent is sent when the request headers set none
	UserAgent string
}

// Request defines the HTTP request of an iteration.
type Request struct {
	Name    string
	Method  string
	URL     string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// PacingType selects how the delay between iterations is computed.
type PacingType string

const (
	PacingNone     PacingType = "none"
	PacingConstant PacingType = "constant"
	PacingRandom   PacingType = "random"
)

// Pacing is the delay a VU waits between two iterations.
type Pacing struct {
	Type     PacingType
	Duration time.Duration
	Min      time.Duration
	Max      time.Duration
}

// Delay returns the wait before the next iteration.
func (p Pacing) Delay() time.Duration {
	switch p.Type {
	case PacingConstant:
		return p.Duration
	case PacingRandom:
		if p.Max <= p.Min {
			return p.Min
		}
		return p.Min + time.Duration(rand.Int64N(int64(p.Max-p.Min)+1))
	default:
		return 0
	}
}

// NewScenario builds the runnable scenario of a validated, defaulted test
// configuration. Checks are compiled here so bad expressions surface before
// any VU starts.
func NewScenario(cfg *config.TestConfig) (*Scenario, error) {
	checks, err := check.CompileAll(cfg.Checks)
	if err != nil {
		return nil, err
	}

	pacing, err := NewPacing(cfg.Pacing)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Settings.Timeout.GetDuration(DefaultRequestTimeout)
	if cfg.Request.Timeout != "" {
		d, err := config.ParseDurationString(cfg.Request.Timeout)
		if err != nil {
			return nil, fmt.Errorf("request.timeout: %w", err)
		}
		if d > 0 {
			timeout = d
		}
	}

	headers := make(map[string]string, len(cfg.Request.Headers))
	for k, v := range cfg.Request.Headers {
		headers[k] = v
	}

	return &Scenario{
		Name:      cfg.Name,
		Variables: cfg.Variables,
		Request: &Request{
			Name:    cfg.Request.Name,
			Method:  strings.ToUpper(cfg.Request.Method),
			URL:     cfg.Request.URL,
			Headers: headers,
			Body:    cfg.Request.Body,
			Timeout: timeout,
		},
		Checks:    checks,
		Pacing:    pacing,
		UserAgent: cfg.Settings.UserAgent,
	}, nil
}

// NewPacing converts the pacing configuration. A nil configuration means no
// pacing.
func NewPacing(cfg *config.PacingConfig) (Pacing, error) {
	if cfg == nil || cfg.Type == "" {
		return Pacing{Type: PacingNone}, nil
	}

	parse := func(field, s string) (time.Duration, error) {
		d, err := config.ParseDurationString(s)
		if err != nil {
			return 0, fmt.Errorf("pacing.%s: %w", field, err)
		}
		return d, nil
	}

	switch PacingType(cfg.Type) {
	case PacingNone:
		return Pacing{Type: PacingNone}, nil
	case PacingConstant:
		d, err := parse("duration", cfg.Duration)
		if err != nil {
			return Pacing{}, err
		}
		return Pacing{Type: PacingConstant, Duration: d}, nil
	case PacingRandom:
		lo, err := parse("min", cfg.Min)
		if err != nil {
			return Pacing{}, err
		}
		hi, err := parse("max", cfg.Max)
		if err != nil {
			return Pacing{}, err
		}
		return Pacing{Type: PacingRandom, Min: lo, Max: hi}, nil
	default:
		return Pacing{}, fmt.Errorf("unknown pacing type: %s", cfg.Type)
	}
}
