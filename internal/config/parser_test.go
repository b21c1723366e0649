package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseDurationString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{name: "standard seconds", input: "30s", expected: 30 * time.Second},
		{name: "standard minutes", input: "2m", expected: 2 * time.Minute},
		{name: "milliseconds", input: "500ms", expected: 500 * time.Millisecond},
		{name: "combined duration", input: "1m30s", expected: 90 * time.Second},
		{name: "integer as seconds", input: "30", expected: 30 * time.Second},
		{name: "empty string", input: "", expected: 0},
		{name: "invalid format", input: "abc", wantErr: true},
		{name: "trailing garbage", input: "30x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseDurationString() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("ParseDurationString() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseConfig_YAML(t *testing.T) {
	yamlConfig := `
name: "homepage"
settings:
  timeout: 10s
  maxRPS: 50
variables:
  host: "test.example.com"
stages:
  - duration: 30s
    target: 20
  - duration: 1m30s
    target: 10
  - duration: 20s
    target: 0
request:
  method: GET
  url: "https://{{host}}/"
checks:
  - name: "status was 200"
    type: status
    condition: eq
    value: "200"
pacing:
  type: constant
  duration: 1s
thresholds:
  http_req_duration:
    - "p95 < 500ms"
`
	config, err := ParseConfig([]byte(yamlConfig), "test.yaml")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if config.Name != "homepage" {
		t.Errorf("Name = %v, want %v", config.Name, "homepage")
	}
	if time.Duration(config.Settings.Timeout) != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", config.Settings.Timeout)
	}
	if config.Settings.MaxRPS != 50 {
		t.Errorf("MaxRPS = %v, want 50", config.Settings.MaxRPS)
	}
	if config.Variables["host"] != "test.example.com" {
		t.Errorf("Variables[host] = %v", config.Variables["host"])
	}
	if len(config.Stages) != 3 {
		t.Fatalf("len(Stages) = %d, want 3", len(config.Stages))
	}
	if config.Stages[1].Duration != "1m30s" || config.Stages[1].Target != 10 {
		t.Errorf("Stages[1] = %+v", config.Stages[1])
	}
	if config.Request.URL != "https://{{host}}/" {
		t.Errorf("Request.URL = %v", config.Request.URL)
	}
	if len(config.Checks) != 1 || config.Checks[0].Name != "status was 200" {
		t.Errorf("Checks = %+v", config.Checks)
	}
	if config.Pacing == nil || config.Pacing.Duration != "1s" {
		t.Errorf("Pacing = %+v", config.Pacing)
	}
	if config.TotalDuration() != 2*time.Minute+20*time.Second {
		t.Errorf("TotalDuration() = %v, want 2m20s", config.TotalDuration())
	}
}

func TestParseConfig_JSON(t *testing.T) {
	jsonConfig := `{
		"name": "JSON Test",
		"settings": {"timeout": "5s"},
		"stages": [{"duration": "1s", "target": 1}],
		"request": {"method": "GET", "url": "http://localhost:8080/health"}
	}`

	config, err := ParseConfig([]byte(jsonConfig), "test.json")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if config.Name != "JSON Test" {
		t.Errorf("Name = %v, want %v", config.Name, "JSON Test")
	}
	if time.Duration(config.Settings.Timeout) != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", config.Settings.Timeout)
	}
	if len(config.Stages) != 1 || config.Stages[0].Target != 1 {
		t.Errorf("Stages = %+v", config.Stages)
	}
}

func TestParseConfig_JSONNumericDurations(t *testing.T) {
	jsonConfig := `{
		"stages": [{"duration": 30, "target": 5, "name": "warm"}, {"duration": "1m", "target": 0}],
		"request": {"method": "GET", "url": "http://localhost:8080/"},
		"pacing": {"type": "random", "min": 1, "max": "2s"}
	}`

	config, err := ParseConfig([]byte(jsonConfig), "test.json")
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if len(config.Stages) != 2 {
		t.Fatalf("len(Stages) = %d, want 2", len(config.Stages))
	}
	if config.Stages[0].Duration != "30" || config.Stages[0].Target != 5 || config.Stages[0].Name != "warm" {
		t.Errorf("Stages[0] = %+v", config.Stages[0])
	}
	if config.TotalDuration() != 90*time.Second {
		t.Errorf("TotalDuration() = %v, want 1m30s", config.TotalDuration())
	}
	if config.Pacing.Type != "random" || config.Pacing.Min != "1" || config.Pacing.Max != "2s" {
		t.Errorf("Pacing = %+v", config.Pacing)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	if _, err := ParseConfig([]byte(`{"stages": [{"duration": true, "target": 1}]}`), "bad.json"); err == nil {
		t.Error("ParseConfig() expected error for boolean duration")
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	if _, err := ParseConfig([]byte("stages: [\n"), "bad.yaml"); err == nil {
		t.Error("ParseConfig() expected error for malformed YAML")
	}
	if _, err := ParseConfig([]byte("{"), "bad.json"); err == nil {
		t.Error("ParseConfig() expected error for malformed JSON")
	}
	if _, err := ParseConfig([]byte("settings:\n  timeout: forever\n"), "bad.yaml"); err == nil {
		t.Error("ParseConfig() expected error for bad timeout")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")
	content := "name: file\nstages:\n  - duration: 1s\n    target: 2\nrequest:\n  url: http://localhost/\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Name != "file" {
		t.Errorf("Name = %v, want file", config.Name)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/test.yaml")
	if err == nil {
		t.Error("LoadConfig() expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	config := &TestConfig{
		Stages:  []StageConfig{{Duration: "1s", Target: 1}},
		Request: RequestConfig{URL: "http://localhost/", Method: "post"},
		Checks:  []CheckConfig{{Type: "body", Value: "ok"}},
	}

	ApplyDefaults(config)

	if time.Duration(config.Settings.Timeout) != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", config.Settings.Timeout)
	}
	if config.Request.Method != "POST" {
		t.Errorf("Method = %v, want POST", config.Request.Method)
	}
	if config.Request.Name != "POST http://localhost/" {
		t.Errorf("Request.Name = %v", config.Request.Name)
	}
	if config.Checks[0].Condition != "contains" {
		t.Errorf("Checks[0].Condition = %v, want contains", config.Checks[0].Condition)
	}
	if config.Checks[0].Name != "check_1" {
		t.Errorf("Checks[0].Name = %v, want check_1", config.Checks[0].Name)
	}
	if config.Stages[0].Name != "stage-1" {
		t.Errorf("Stages[0].Name = %v, want stage-1", config.Stages[0].Name)
	}
	if config.Pacing == nil || config.Pacing.Type != "none" {
		t.Errorf("Pacing = %+v, want none", config.Pacing)
	}
}

func TestApplyDefaults_DefaultCheck(t *testing.T) {
	config := &TestConfig{Request: RequestConfig{URL: "http://localhost/"}}
	ApplyDefaults(config)

	if len(config.Checks) != 1 {
		t.Fatalf("len(Checks) = %d, want 1", len(config.Checks))
	}
	check := config.Checks[0]
	if check.Name != DefaultCheckName || check.Type != "status" || check.Value != "200" {
		t.Errorf("default check = %+v", check)
	}
}

func TestOverrideLoad(t *testing.T) {
	tests := []struct {
		name         string
		vus          int
		duration     time.Duration
		wantStart    int
		wantTarget   int
		wantDuration time.Duration
	}{
		{name: "both", vus: 5, duration: 10 * time.Second, wantStart: 5, wantTarget: 5, wantDuration: 10 * time.Second},
		{name: "vus only keeps total", vus: 3, wantStart: 3, wantTarget: 3, wantDuration: 40 * time.Second},
		{name: "duration only keeps peak", duration: 5 * time.Second, wantStart: 20, wantTarget: 20, wantDuration: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &TestConfig{Stages: []StageConfig{
				{Duration: "30s", Target: 20},
				{Duration: "10s", Target: 0},
			}}
			config.OverrideLoad(tt.vus, tt.duration)

			if config.StartVUs != tt.wantStart {
				t.Errorf("StartVUs = %d, want %d", config.StartVUs, tt.wantStart)
			}
			if len(config.Stages) != 1 || config.Stages[0].Target != tt.wantTarget {
				t.Fatalf("Stages = %+v", config.Stages)
			}
			if config.TotalDuration() != tt.wantDuration {
				t.Errorf("TotalDuration() = %v, want %v", config.TotalDuration(), tt.wantDuration)
			}
		})
	}
}

func TestOverrideLoad_NoOp(t *testing.T) {
	config := &TestConfig{Stages: []StageConfig{{Duration: "30s", Target: 20}}}
	config.OverrideLoad(0, 0)
	if len(config.Stages) != 1 || config.Stages[0].Duration != "30s" {
		t.Errorf("Stages changed: %+v", config.Stages)
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	if err := d.UnmarshalJSON([]byte(`"1m"`)); err != nil {
		t.Fatalf("UnmarshalJSON() error = %v", err)
	}
	if time.Duration(d) != time.Minute {
		t.Errorf("Duration = %v, want 1m", d)
	}
	if err := d.UnmarshalJSON([]byte(`null`)); err != nil || d != 0 {
		t.Errorf("UnmarshalJSON(null) = %v, %v", d, err)
	}
	if err := d.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Error("UnmarshalJSON() expected error")
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(b) != `"1.5s"` {
		t.Errorf("MarshalJSON() = %s, want \"1.5s\"", b)
	}
}
