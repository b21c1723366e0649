package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *TestConfig {
	return &TestConfig{
		Name:    "Test",
		Stages:  []StageConfig{{Duration: "1s", Target: 1}},
		Request: RequestConfig{Method: "GET", URL: "http://localhost:8080/"},
		Checks:  []CheckConfig{{Name: "ok", Type: "status", Condition: "eq", Value: "200"}},
	}
}

func TestValidate_MinimalValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_EmptyStagesAllowed(t *testing.T) {
	config := validConfig()
	config.Stages = nil
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for empty stage list", err)
	}
}

func TestValidate_Stages(t *testing.T) {
	tests := []struct {
		name    string
		stage   StageConfig
		wantErr bool
		errMsg  string
	}{
		{name: "valid", stage: StageConfig{Duration: "30s", Target: 10}},
		{name: "missing duration", stage: StageConfig{Duration: "", Target: 10}, wantErr: true, errMsg: "duration"},
		{name: "invalid duration", stage: StageConfig{Duration: "invalid", Target: 10}, wantErr: true, errMsg: "duration"},
		{name: "zero duration", stage: StageConfig{Duration: "0s", Target: 10}, wantErr: true, errMsg: "greater than 0"},
		{name: "negative target", stage: StageConfig{Duration: "30s", Target: -1}, wantErr: true, errMsg: "target"},
		{name: "zero target allowed", stage: StageConfig{Duration: "30s", Target: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Stages = []StageConfig{tt.stage}

			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !strings.Contains(strings.ToLower(err.Error()), tt.errMsg) {
				t.Errorf("Error should contain '%s', got: %v", tt.errMsg, err)
			}
		})
	}
}

func TestValidate_Request(t *testing.T) {
	tests := []struct {
		name    string
		req     RequestConfig
		wantErr bool
	}{
		{name: "valid", req: RequestConfig{Method: "GET", URL: "https://example.com/"}},
		{name: "lowercase method", req: RequestConfig{Method: "post", URL: "https://example.com/"}},
		{name: "placeholder host", req: RequestConfig{Method: "GET", URL: "https://{{host}}/path"}},
		{name: "placeholder base", req: RequestConfig{Method: "GET", URL: "{{baseUrl}}/path"}},
		{name: "missing method", req: RequestConfig{URL: "https://example.com/"}, wantErr: true},
		{name: "bad method", req: RequestConfig{Method: "FETCH", URL: "https://example.com/"}, wantErr: true},
		{name: "missing url", req: RequestConfig{Method: "GET"}, wantErr: true},
		{name: "ftp scheme", req: RequestConfig{Method: "GET", URL: "ftp://example.com/"}, wantErr: true},
		{name: "bad timeout", req: RequestConfig{Method: "GET", URL: "https://example.com/", Timeout: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Request = tt.req
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Checks(t *testing.T) {
	tests := []struct {
		name    string
		check   CheckConfig
		wantErr bool
	}{
		{name: "status eq", check: CheckConfig{Name: "c", Type: "status", Condition: "eq", Value: "200"}},
		{name: "status in", check: CheckConfig{Name: "c", Type: "status", Condition: "in", Value: "200, 204"}},
		{name: "status non-numeric", check: CheckConfig{Name: "c", Type: "status", Condition: "eq", Value: "ok"}, wantErr: true},
		{name: "body matches", check: CheckConfig{Name: "c", Type: "body", Condition: "matches", Value: "^ok"}},
		{name: "body not-contains", check: CheckConfig{Name: "c", Type: "body", Condition: "not-contains", Value: "error"}},
		{name: "body not_contains alias", check: CheckConfig{Name: "c", Type: "body", Condition: "not_contains", Value: "error"}},
		{name: "bad regex", check: CheckConfig{Name: "c", Type: "body", Condition: "matches", Value: "("}, wantErr: true},
		{name: "header needs path", check: CheckConfig{Name: "c", Type: "header", Condition: "exists"}, wantErr: true},
		{name: "json path", check: CheckConfig{Name: "c", Type: "json", Condition: "eq", Path: "$.status", Value: "ok"}},
		{name: "json needs path", check: CheckConfig{Name: "c", Type: "json", Condition: "exists"}, wantErr: true},
		{name: "duration", check: CheckConfig{Name: "c", Type: "duration", Condition: "lt", Value: "500ms"}},
		{name: "duration bad value", check: CheckConfig{Name: "c", Type: "duration", Condition: "lt", Value: "fast"}, wantErr: true},
		{name: "schema", check: CheckConfig{Name: "c", Type: "schema", Schema: `{"type":"object"}`}},
		{name: "schema missing", check: CheckConfig{Name: "c", Type: "schema"}, wantErr: true},
		{name: "unknown type", check: CheckConfig{Name: "c", Type: "xpath", Condition: "eq"}, wantErr: true},
		{name: "wrong condition for type", check: CheckConfig{Name: "c", Type: "duration", Condition: "contains", Value: "1s"}, wantErr: true},
		{name: "missing name", check: CheckConfig{Type: "status", Condition: "eq", Value: "200"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Checks = []CheckConfig{tt.check}
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DuplicateCheckNames(t *testing.T) {
	config := validConfig()
	config.Checks = append(config.Checks, config.Checks[0])
	err := config.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Validate() error = %v, want duplicate check error", err)
	}
}

func TestValidate_Pacing(t *testing.T) {
	tests := []struct {
		name    string
		pacing  PacingConfig
		wantErr bool
	}{
		{name: "none", pacing: PacingConfig{Type: "none"}},
		{name: "constant", pacing: PacingConfig{Type: "constant", Duration: "1s"}},
		{name: "constant missing duration", pacing: PacingConfig{Type: "constant"}, wantErr: true},
		{name: "random", pacing: PacingConfig{Type: "random", Min: "100ms", Max: "1s"}},
		{name: "random min > max", pacing: PacingConfig{Type: "random", Min: "2s", Max: "1s"}, wantErr: true},
		{name: "random missing max", pacing: PacingConfig{Type: "random", Min: "1s"}, wantErr: true},
		{name: "unknown type", pacing: PacingConfig{Type: "poisson"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Pacing = &tt.pacing
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Thresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds *ThresholdsConfig
		wantErr    bool
	}{
		{name: "duration", thresholds: &ThresholdsConfig{HTTPReqDuration: []string{"p95 < 500ms"}}},
		{name: "failed rate", thresholds: &ThresholdsConfig{HTTPReqFailed: []string{"rate < 0.01"}}},
		{name: "checks rate", thresholds: &ThresholdsConfig{Checks: []string{"rate > 0.99"}}},
		{name: "empty expression", thresholds: &ThresholdsConfig{HTTPReqs: []string{""}}, wantErr: true},
		{name: "unknown metric", thresholds: &ThresholdsConfig{HTTPReqDuration: []string{"p42 < 1s"}}, wantErr: true},
		{name: "no operator", thresholds: &ThresholdsConfig{Checks: []string{"rate 0.9"}}, wantErr: true},
		{name: "requests count and rate", thresholds: &ThresholdsConfig{HTTPReqs: []string{"count > 10", "rate >= 5.5"}}},
		{name: "duration without unit", thresholds: &ThresholdsConfig{HTTPReqDuration: []string{"p95 < 500"}}, wantErr: true},
		{name: "rate on duration", thresholds: &ThresholdsConfig{HTTPReqDuration: []string{"rate < 0.1"}}, wantErr: true},
		{name: "percentile on failed", thresholds: &ThresholdsConfig{HTTPReqFailed: []string{"p95 < 0.1"}}, wantErr: true},
		{name: "count on checks", thresholds: &ThresholdsConfig{Checks: []string{"count > 1"}}, wantErr: true},
		{name: "non-numeric rate", thresholds: &ThresholdsConfig{HTTPReqFailed: []string{"rate < low"}}, wantErr: true},
		{name: "unknown operator", thresholds: &ThresholdsConfig{HTTPReqs: []string{"count => 1"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			config.Thresholds = tt.thresholds
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidationErrors_Accumulate(t *testing.T) {
	config := &TestConfig{
		StartVUs: -1,
		Stages:   []StageConfig{{Duration: "x", Target: -2}},
		Settings: GlobalSettings{MaxRPS: -1},
	}

	err := config.Validate()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() error type = %T, want *ValidationErrors", err)
	}
	// startVUs, stage duration, stage target, method, url, maxRPS
	if len(verrs.Errors) != 6 {
		t.Errorf("len(Errors) = %d, want 6: %v", len(verrs.Errors), err)
	}
	if !strings.Contains(err.Error(), "6 validation errors") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestValidationError_Single(t *testing.T) {
	errs := &ValidationErrors{}
	errs.Add("field", "broken")
	if got := errs.Error(); got != "validation error on field 'field': broken" {
		t.Errorf("Error() = %q", got)
	}
}

func TestValidate_ThresholdsReportEveryGroup(t *testing.T) {
	config := validConfig()
	config.Thresholds = &ThresholdsConfig{
		HTTPReqDuration: []string{"p95 < 500", "rate < 0.1"},
		HTTPReqFailed:   []string{"p95 < 0.1"},
	}

	err := config.Validate()
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Validate() error = %v, want *ValidationErrors", err)
	}

	want := []string{"thresholds.http_req_duration[0]", "thresholds.http_req_duration[1]", "thresholds.http_req_failed[0]"}
	if len(verrs.Errors) != len(want) {
		t.Fatalf("got %d errors, want %d: %v", len(verrs.Errors), len(want), verrs)
	}
	for i, field := range want {
		if verrs.Errors[i].Field != field {
			t.Errorf("Errors[%d].Field = %q, want %q", i, verrs.Errors[i].Field, field)
		}
	}
}

func TestParseThresholdExpression(t *testing.T) {
	metric, op, value, err := ParseThresholdExpression("  p99<=1.5s ")
	if err != nil {
		t.Fatalf("ParseThresholdExpression() error = %v", err)
	}
	if metric != "p99" || op != "<=" || value != "1.5s" {
		t.Errorf("ParseThresholdExpression() = (%q, %q, %q)", metric, op, value)
	}

	if _, _, _, err := ParseThresholdExpression("p99 =< 1s"); err == nil {
		t.Error("expected an error for operator =<")
	}
}
