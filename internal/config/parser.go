package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultCheckName is the name of the check applied when a test declares none.
const DefaultCheckName = "status is 200"

// LoadConfig loads a test configuration from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// Returns the parsed TestConfig or an error if parsing fails.
func LoadConfig(path string) (*TestConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data, path)
}

// ParseConfig parses configuration data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*TestConfig, error) {
	var config TestConfig

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &config, nil
}

// ParseDurationString parses a duration string with support for common formats.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	var seconds int
	var rest string
	if n, _ := fmt.Sscanf(s, "%d%s", &seconds, &rest); n == 1 {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// TotalDuration sums the durations of all stages. Unparseable stages count as zero;
// Validate reports them.
func (c *TestConfig) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range c.Stages {
		if d, err := ParseDurationString(stage.Duration); err == nil {
			total += d
		}
	}
	return total
}

// MaxTarget returns the highest VU count the stages will ever request.
func (c *TestConfig) MaxTarget() int {
	maxVUs := c.StartVUs
	for _, stage := range c.Stages {
		if stage.Target > maxVUs {
			maxVUs = stage.Target
		}
	}
	return maxVUs
}

// OverrideLoad replaces the stage list with a constant load of vus for duration.
//
// This backs the --vus/--duration command-line overrides. A zero vus keeps the
// configured peak; a zero duration keeps the configured total.
func (c *TestConfig) OverrideLoad(vus int, duration time.Duration) {
	if vus <= 0 && duration <= 0 {
		return
	}
	if vus <= 0 {
		vus = c.MaxTarget()
	}
	if duration <= 0 {
		duration = c.TotalDuration()
	}

	c.StartVUs = vus
	c.Stages = []StageConfig{{
		Duration: duration.String(),
		Target:   vus,
		Name:     "constant",
	}}
}

// ApplyDefaults applies default values to a TestConfig.
func ApplyDefaults(config *TestConfig) {
	if config.Name == "" {
		config.Name = "surge test"
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = Duration(30 * time.Second)
	}
	if config.Settings.MaxIdleConnsPerHost == 0 {
		config.Settings.MaxIdleConnsPerHost = 100
	}
	if config.Settings.UserAgent == "" {
		config.Settings.UserAgent = "surge/1.0"
	}

	if config.Request.Method == "" {
		config.Request.Method = "GET"
	}
	config.Request.Method = strings.ToUpper(config.Request.Method)
	if config.Request.Name == "" {
		config.Request.Name = config.Request.Method + " " + config.Request.URL
	}

	if len(config.Checks) == 0 {
		config.Checks = []CheckConfig{{
			Name:      DefaultCheckName,
			Type:      "status",
			Condition: "eq",
			Value:     "200",
		}}
	}
	for i := range config.Checks {
		if config.Checks[i].Condition == "" {
			config.Checks[i].Condition = defaultCondition(config.Checks[i].Type)
		}
		if config.Checks[i].Name == "" {
			config.Checks[i].Name = fmt.Sprintf("check_%d", i+1)
		}
	}

	for i := range config.Stages {
		if config.Stages[i].Name == "" {
			config.Stages[i].Name = fmt.Sprintf("stage-%d", i+1)
		}
	}

	if config.Pacing == nil {
		config.Pacing = &PacingConfig{Type: "none"}
	}
}

func defaultCondition(checkType string) string {
	switch checkType {
	case "body":
		return "contains"
	case "json", "header":
		return "exists"
	case "duration":
		return "lt"
	case "schema":
		return ""
	default:
		return "eq"
	}
}
