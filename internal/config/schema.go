// Package config provides configuration parsing and validation for surge test files.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// TestConfig is the root configuration for a staged load test.
//
// Example YAML:
//
//	name: "homepage"
//	variables:
//	  host: "test.example.com"
//	stages:
//	  - duration: 30s
//	    target: 20
//	  - duration: 1m30s
//	    target: 10
//	  - duration: 20s
//	    target: 0
//	request:
//	  method: GET
//	  url: "https://{{host}}/"
//	checks:
//	  - name: "status was 200"
//	    type: status
//	    condition: eq
//	    value: "200"
//	pacing:
//	  type: constant
//	  duration: 1s
type TestConfig struct {
	// Name of the test (for reporting)
	Name string `json:"name" yaml:"name"`

	// Description of the test (optional)
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Settings contains HTTP and execution settings
	Settings GlobalSettings `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Variables are substituted into {{name}} placeholders
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// StartVUs is the VU count at t=0, the ramp origin of the first stage
	StartVUs int `json:"startVUs,omitempty" yaml:"startVUs,omitempty"`

	// Stages is the ordered ramp profile
	Stages []StageConfig `json:"stages" yaml:"stages"`

	// Request is the HTTP request issued once per iteration
	Request RequestConfig `json:"request" yaml:"request"`

	// Checks are evaluated against every response
	Checks []CheckConfig `json:"checks,omitempty" yaml:"checks,omitempty"`

	// Pacing controls the delay between iterations of a VU
	Pacing *PacingConfig `json:"pacing,omitempty" yaml:"pacing,omitempty"`

	// Thresholds define pass/fail criteria for the run
	Thresholds *ThresholdsConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// GlobalSettings contains HTTP and execution settings.
type GlobalSettings struct {
	// Timeout is the HTTP request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxRPS caps the request rate across all VUs (0 = unlimited)
	MaxRPS float64 `json:"maxRPS,omitempty" yaml:"maxRPS,omitempty"`

	// MaxIdleConnsPerHost limits idle connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`

	// NoConnectionReuse gives every VU its own HTTP client
	NoConnectionReuse bool `json:"noConnectionReuse,omitempty" yaml:"noConnectionReuse,omitempty"`

	// UserAgent is the default User-Agent header
	UserAgent string `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
}

// StageConfig defines a single ramp stage.
type StageConfig struct {
	// Duration of this stage (e.g., "30s", "2m")
	Duration string `json:"duration" yaml:"duration"`

	// Target VU count reached at the end of the stage
	Target int `json:"target" yaml:"target"`

	// Name is an optional name for this stage (for reporting)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// UnmarshalJSON accepts the duration as a string ("30s") or as a bare
// number of seconds (30), matching what YAML allows.
func (s *StageConfig) UnmarshalJSON(b []byte) error {
	type plain StageConfig
	aux := struct {
		*plain
		Duration json.RawMessage `json:"duration"`
	}{plain: (*plain)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	d, err := durationText(aux.Duration)
	if err != nil {
		return fmt.Errorf("stage duration: %w", err)
	}
	s.Duration = d
	return nil
}

// RequestConfig defines the HTTP request of an iteration.
type RequestConfig struct {
	// Name for this request (used in metrics and logs)
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method (GET, POST, PUT, DELETE, etc.)
	Method string `json:"method" yaml:"method"`

	// URL is the request URL (supports variable substitution)
	URL string `json:"url" yaml:"url"`

	// Headers are request headers (values support variable substitution)
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Body is the request body (supports variable substitution)
	Body string `json:"body,omitempty" yaml:"body,omitempty"`

	// Timeout overrides settings.timeout for this request
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CheckConfig defines a named assertion evaluated against each response.
type CheckConfig struct {
	// Name identifies the check in the summary
	Name string `json:"name" yaml:"name"`

	// Type is the check type: "status", "header", "body", "json", "duration", "schema"
	Type string `json:"type" yaml:"type"`

	// Condition is the comparison: "eq", "ne", "gt", "gte", "lt", "lte", "in",
	// "contains", "not-contains", "matches", "exists"
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Value is the expected value
	Value string `json:"value,omitempty" yaml:"value,omitempty"`

	// Path is the header name for header checks or the JSON path for json checks
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Schema is an inline JSON Schema document for schema checks
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// PacingConfig controls pacing between iterations.
type PacingConfig struct {
	// Type is the pacing strategy: "none", "constant", "random"
	Type string `json:"type" yaml:"type"`

	// Duration is the wait time for constant pacing
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Min is the minimum wait time for random pacing
	Min string `json:"min,omitempty" yaml:"min,omitempty"`

	// Max is the maximum wait time for random pacing
	Max string `json:"max,omitempty" yaml:"max,omitempty"`
}

// UnmarshalJSON accepts pacing durations as strings or bare seconds.
func (p *PacingConfig) UnmarshalJSON(b []byte) error {
	type plain PacingConfig
	aux := struct {
		*plain
		Duration json.RawMessage `json:"duration"`
		Min      json.RawMessage `json:"min"`
		Max      json.RawMessage `json:"max"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	var err error
	if p.Duration, err = durationText(aux.Duration); err != nil {
		return fmt.Errorf("pacing duration: %w", err)
	}
	if p.Min, err = durationText(aux.Min); err != nil {
		return fmt.Errorf("pacing min: %w", err)
	}
	if p.Max, err = durationText(aux.Max); err != nil {
		return fmt.Errorf("pacing max: %w", err)
	}
	return nil
}

// durationText returns the text of a JSON duration written either as a
// string or as a number of seconds.
func durationText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("want a string or a number of seconds, got %s", raw)
	}
	return n.String(), nil
}

// ThresholdsConfig defines pass/fail criteria for the run.
type ThresholdsConfig struct {
	// HTTPReqDuration thresholds for request duration
	// e.g., ["p95 < 500ms", "avg < 200ms"]
	HTTPReqDuration []string `json:"http_req_duration,omitempty" yaml:"http_req_duration,omitempty"`

	// HTTPReqFailed thresholds for failure rate
	// e.g., ["rate < 0.01"] (less than 1% failures)
	HTTPReqFailed []string `json:"http_req_failed,omitempty" yaml:"http_req_failed,omitempty"`

	// HTTPReqs thresholds for request count/rate
	// e.g., ["count > 1000", "rate > 100"]
	HTTPReqs []string `json:"http_reqs,omitempty" yaml:"http_reqs,omitempty"`

	// Checks thresholds for the check pass rate
	// e.g., ["rate > 0.99"]
	Checks []string `json:"checks,omitempty" yaml:"checks,omitempty"`
}

// Duration is a time.Duration that can be unmarshaled from JSON/YAML strings.
type Duration time.Duration

// GetDuration returns the duration or a default if empty.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	if s == "" || s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}
