package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

var (
	validMethods = map[string]bool{
		"GET": true, "POST": true, "PUT": true, "DELETE": true,
		"PATCH": true, "HEAD": true, "OPTIONS": true,
	}

	validConditions = map[string]map[string]bool{
		"status":   {"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true, "in": true},
		"header":   {"eq": true, "ne": true, "contains": true, "matches": true, "exists": true},
		"body":     {"contains": true, "not-contains": true, "not_contains": true, "matches": true, "eq": true},
		"json":     {"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true, "contains": true, "exists": true},
		"duration": {"gt": true, "gte": true, "lt": true, "lte": true},
		"schema":   {"": true},
	}

	placeholderPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)
)

// Validate validates the entire test configuration.
//
// An empty stage list is valid: the run ends immediately with no iterations.
// Returns nil if valid, or a ValidationErrors containing all validation errors.
func (c *TestConfig) Validate() error {
	errs := &ValidationErrors{}

	if c.StartVUs < 0 {
		errs.Add("startVUs", "startVUs cannot be negative")
	}

	for i, stage := range c.Stages {
		validateStage(fmt.Sprintf("stages[%d]", i), &stage, errs)
	}

	validateRequest("request", &c.Request, errs)

	names := make(map[string]bool, len(c.Checks))
	for i, check := range c.Checks {
		prefix := fmt.Sprintf("checks[%d]", i)
		validateCheck(prefix, &check, errs)
		if check.Name != "" {
			if names[check.Name] {
				errs.Add(prefix+".name", fmt.Sprintf("duplicate check name: %s", check.Name))
			}
			names[check.Name] = true
		}
	}

	if c.Pacing != nil {
		validatePacing("pacing", c.Pacing, errs)
	}

	if c.Thresholds != nil {
		validateThresholds(c.Thresholds, errs)
	}

	validateSettings(&c.Settings, errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validateStage validates a single stage configuration.
func validateStage(prefix string, stage *StageConfig, errs *ValidationErrors) {
	if stage.Duration == "" {
		errs.Add(prefix+".duration", "duration is required")
	} else if d, err := ParseDurationString(stage.Duration); err != nil {
		errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
	} else if d <= 0 {
		errs.Add(prefix+".duration", "duration must be greater than 0")
	}

	if stage.Target < 0 {
		errs.Add(prefix+".target", "target cannot be negative")
	}
}

// validateRequest validates the request configuration.
func validateRequest(prefix string, req *RequestConfig, errs *ValidationErrors) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		errs.Add(prefix+".method", "method is required")
	} else if !validMethods[method] {
		errs.Add(prefix+".method", fmt.Sprintf("invalid HTTP method: %s", req.Method))
	}

	if req.URL == "" {
		errs.Add(prefix+".url", "url is required")
	} else {
		// Placeholders are resolved per iteration; validate the shape around them.
		urlToCheck := placeholderPattern.ReplaceAllString(req.URL, "placeholder")
		u, err := url.Parse(urlToCheck)
		if err != nil {
			errs.Add(prefix+".url", fmt.Sprintf("invalid URL: %v", err))
		} else if !placeholderPattern.MatchString(req.URL) && u.Scheme != "http" && u.Scheme != "https" {
			errs.Add(prefix+".url", fmt.Sprintf("unsupported URL scheme %q (want http or https)", u.Scheme))
		}
	}

	if req.Timeout != "" {
		if d, err := ParseDurationString(req.Timeout); err != nil {
			errs.Add(prefix+".timeout", fmt.Sprintf("invalid timeout: %v", err))
		} else if d <= 0 {
			errs.Add(prefix+".timeout", "timeout must be greater than 0")
		}
	}
}

// validateCheck validates a check configuration.
func validateCheck(prefix string, check *CheckConfig, errs *ValidationErrors) {
	if check.Name == "" {
		errs.Add(prefix+".name", "name is required")
	}

	conditions, ok := validConditions[check.Type]
	if check.Type == "" {
		errs.Add(prefix+".type", "type is required")
		return
	}
	if !ok {
		errs.Add(prefix+".type", fmt.Sprintf("invalid check type: %s", check.Type))
		return
	}

	if !conditions[check.Condition] {
		errs.Add(prefix+".condition", fmt.Sprintf("invalid condition %q for %s check", check.Condition, check.Type))
		return
	}

	switch check.Type {
	case "status":
		values := []string{check.Value}
		if check.Condition == "in" {
			values = strings.Split(check.Value, ",")
		}
		for _, v := range values {
			if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
				errs.Add(prefix+".value", fmt.Sprintf("status value must be an integer, got %q", v))
				break
			}
		}
	case "header":
		if check.Path == "" {
			errs.Add(prefix+".path", "path (header name) is required for header checks")
		}
	case "json":
		if check.Path == "" {
			errs.Add(prefix+".path", "path is required for json checks")
		}
	case "duration":
		if d, err := ParseDurationString(check.Value); err != nil || d <= 0 {
			errs.Add(prefix+".value", fmt.Sprintf("duration check needs a positive duration, got %q", check.Value))
		}
	case "schema":
		if strings.TrimSpace(check.Schema) == "" {
			errs.Add(prefix+".schema", "schema is required for schema checks")
		}
	}

	if check.Condition == "matches" {
		if _, err := regexp.Compile(check.Value); err != nil {
			errs.Add(prefix+".value", fmt.Sprintf("invalid regular expression: %v", err))
		}
	}
}

// validatePacing validates pacing configuration.
func validatePacing(prefix string, pacing *PacingConfig, errs *ValidationErrors) {
	validTypes := map[string]bool{
		"none": true, "constant": true, "random": true,
	}

	if !validTypes[pacing.Type] {
		errs.Add(prefix+".type", fmt.Sprintf("invalid pacing type: %s", pacing.Type))
	}

	switch pacing.Type {
	case "constant":
		if pacing.Duration == "" {
			errs.Add(prefix+".duration", "duration is required for constant pacing")
		} else if d, err := ParseDurationString(pacing.Duration); err != nil {
			errs.Add(prefix+".duration", fmt.Sprintf("invalid duration: %v", err))
		} else if d < 0 {
			errs.Add(prefix+".duration", "duration cannot be negative")
		}

	case "random":
		if pacing.Min == "" {
			errs.Add(prefix+".min", "min is required for random pacing")
		} else if _, err := ParseDurationString(pacing.Min); err != nil {
			errs.Add(prefix+".min", fmt.Sprintf("invalid min: %v", err))
		}

		if pacing.Max == "" {
			errs.Add(prefix+".max", "max is required for random pacing")
		} else if _, err := ParseDurationString(pacing.Max); err != nil {
			errs.Add(prefix+".max", fmt.Sprintf("invalid max: %v", err))
		}

		if pacing.Min != "" && pacing.Max != "" {
			minDur, _ := ParseDurationString(pacing.Min)
			maxDur, _ := ParseDurationString(pacing.Max)
			if minDur > maxDur {
				errs.Add(prefix, "min must be less than or equal to max")
			}
		}
	}
}

// thresholdMetrics lists the aggregations each threshold group accepts.
var thresholdMetrics = map[string][]string{
	"http_req_duration": {"min", "max", "avg", "med", "p50", "p90", "p95", "p99"},
	"http_req_failed":   {"rate"},
	"http_reqs":         {"count", "rate"},
	"checks":            {"rate"},
}

var (
	thresholdPattern = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)
	thresholdOps     = map[string]bool{"<": true, "<=": true, ">": true, ">=": true, "==": true, "=": true, "!=": true, "<>": true}
)

// ParseThresholdExpression splits an expression like "p95 < 500ms" into its
// metric, operator and value.
func ParseThresholdExpression(expr string) (metric, op, value string, err error) {
	matches := thresholdPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %q", expr)
	}
	if !thresholdOps[matches[2]] {
		return "", "", "", fmt.Errorf("invalid comparison operator %q (want <, <=, >, >=, ==, !=)", matches[2])
	}

	return matches[1], matches[2], strings.TrimSpace(matches[3]), nil
}

// validateThresholds validates threshold configuration.
func validateThresholds(t *ThresholdsConfig, errs *ValidationErrors) {
	groups := []struct {
		name  string
		exprs []string
	}{
		{"http_req_duration", t.HTTPReqDuration},
		{"http_req_failed", t.HTTPReqFailed},
		{"http_reqs", t.HTTPReqs},
		{"checks", t.Checks},
	}

	for _, g := range groups {
		for i, threshold := range g.exprs {
			if err := validateThresholdExpression(g.name, threshold); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", g.name, i), err.Error())
			}
		}
	}
}

// validateThresholdExpression checks an expression the way it is evaluated at
// the end of a run, so a threshold that would never parse fails at load.
//
// Valid formats:
//   - http_req_duration: "p95 < 500ms", "avg < 200ms"
//   - http_req_failed, checks: "rate < 0.01"
//   - http_reqs: "count > 1000", "rate > 100"
func validateThresholdExpression(group, expr string) error {
	if strings.TrimSpace(expr) == "" {
		return fmt.Errorf("threshold expression cannot be empty")
	}

	metric, _, value, err := ParseThresholdExpression(expr)
	if err != nil {
		return err
	}

	allowed := thresholdMetrics[group]
	if !slices.Contains(allowed, metric) {
		return fmt.Errorf("%s does not support metric %q (want one of %s)", group, metric, strings.Join(allowed, ", "))
	}

	if group == "http_req_duration" {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("threshold value %q must be a duration with a unit, like 500ms", value)
		}
		return nil
	}

	if _, err := strconv.ParseFloat(value, 64); err != nil {
		return fmt.Errorf("threshold value %q must be a number", value)
	}
	return nil
}

// validateSettings validates global settings.
func validateSettings(s *GlobalSettings, errs *ValidationErrors) {
	if s.Timeout < 0 {
		errs.Add("settings.timeout", "cannot be negative")
	}
	if s.MaxRPS < 0 {
		errs.Add("settings.maxRPS", "cannot be negative")
	}
	if s.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "cannot be negative")
	}
}
