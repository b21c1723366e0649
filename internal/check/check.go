// Package check compiles configured assertions into predicates evaluated
// against every response of a load test.
package check

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/surge/internal/config"
	"github.com/wesleyorama2/surge/pkg/jsonpath"
	"github.com/wesleyorama2/surge/pkg/jsonschema"
)

// Response is the part of an HTTP exchange checks can look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// Result is the outcome of one check against one response.
type Result struct {
	Name   string
	Passed bool
	Err    error
}

// Predicate reports whether resp satisfies an assertion. A non-nil error
// means the assertion could not be evaluated and counts as a failure.
type Predicate func(resp *Response) (bool, error)

// Check is a named predicate.
type Check struct {
	Name      string
	Type      string
	predicate Predicate
}

// New wraps an arbitrary predicate as a Check.
func New(name string, predicate Predicate) *Check {
	return &Check{Name: name, Type: "custom", predicate: predicate}
}

// Evaluate runs the predicate against resp. Errors and panics inside the
// predicate are reported as a failed Result.
func (c *Check) Evaluate(resp *Response) (result Result) {
	result.Name = c.Name

	defer func() {
		if r := recover(); r != nil {
			result.Passed = false
			result.Err = fmt.Errorf("check %q panicked: %v", c.Name, r)
		}
	}()

	passed, err := c.predicate(resp)
	if err != nil {
		return Result{Name: c.Name, Passed: false, Err: err}
	}
	result.Passed = passed
	return result
}

// EvaluateAll runs every check against resp, one Result per check.
func EvaluateAll(checks []*Check, resp *Response) []Result {
	results := make([]Result, len(checks))
	for i, c := range checks {
		results[i] = c.Evaluate(resp)
	}
	return results
}

// FailAll returns a failed Result for every check, carrying cause. It is used
// when no response was received.
func FailAll(checks []*Check, cause error) []Result {
	results := make([]Result, len(checks))
	for i, c := range checks {
		results[i] = Result{Name: c.Name, Passed: false, Err: cause}
	}
	return results
}

// CompileAll compiles the configured checks in order.
func CompileAll(cfgs []config.CheckConfig) ([]*Check, error) {
	checks := make([]*Check, 0, len(cfgs))
	for i := range cfgs {
		c, err := Compile(cfgs[i])
		if err != nil {
			return nil, fmt.Errorf("checks[%d] (%s): %w", i, cfgs[i].Name, err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

// Compile turns a check configuration into a Check. Regular expressions,
// expected values and schemas are parsed once here.
func Compile(cfg config.CheckConfig) (*Check, error) {
	var (
		pred Predicate
		err  error
	)

	switch cfg.Type {
	case "status":
		pred, err = statusPredicate(cfg.Condition, cfg.Value)
	case "header":
		pred, err = headerPredicate(cfg.Path, cfg.Condition, cfg.Value)
	case "body":
		pred, err = bodyPredicate(cfg.Condition, cfg.Value)
	case "json":
		pred, err = jsonPredicate(cfg.Path, cfg.Condition, cfg.Value)
	case "duration":
		pred, err = durationPredicate(cfg.Condition, cfg.Value)
	case "schema":
		pred, err = schemaPredicate(cfg.Schema)
	default:
		err = fmt.Errorf("unknown check type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return &Check{Name: cfg.Name, Type: cfg.Type, predicate: pred}, nil
}

func statusPredicate(condition, value string) (Predicate, error) {
	if condition == "in" {
		allowed := make(map[int]bool)
		for _, part := range strings.Split(value, ",") {
			code, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, fmt.Errorf("invalid status code %q", part)
			}
			allowed[code] = true
		}
		return func(resp *Response) (bool, error) {
			return allowed[resp.StatusCode], nil
		}, nil
	}

	expected, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid status code %q", value)
	}
	cmp, err := numericComparison(condition)
	if err != nil {
		return nil, err
	}
	return func(resp *Response) (bool, error) {
		return cmp(float64(resp.StatusCode), float64(expected)), nil
	}, nil
}

func headerPredicate(name, condition, value string) (Predicate, error) {
	if name == "" {
		return nil, fmt.Errorf("header name is required")
	}

	if condition == "exists" {
		return func(resp *Response) (bool, error) {
			return len(resp.Header.Values(name)) > 0, nil
		}, nil
	}

	match, err := stringComparison(condition, value)
	if err != nil {
		return nil, err
	}
	return func(resp *Response) (bool, error) {
		return match(resp.Header.Get(name)), nil
	}, nil
}

func bodyPredicate(condition, value string) (Predicate, error) {
	match, err := stringComparison(condition, value)
	if err != nil {
		return nil, err
	}
	return func(resp *Response) (bool, error) {
		return match(string(resp.Body)), nil
	}, nil
}

func jsonPredicate(path, condition, value string) (Predicate, error) {
	if path == "" {
		return nil, fmt.Errorf("json path is required")
	}

	lookup := func(resp *Response) (gjson.Result, error) {
		return jsonpath.Lookup(resp.Body, path)
	}

	switch condition {
	case "exists":
		return func(resp *Response) (bool, error) {
			result, err := lookup(resp)
			if err != nil {
				return false, err
			}
			return result.Exists(), nil
		}, nil

	case "eq", "ne":
		want := condition == "eq"
		return func(resp *Response) (bool, error) {
			result, err := lookup(resp)
			if err != nil {
				return false, err
			}
			if !result.Exists() {
				return false, fmt.Errorf("path not found: %s", path)
			}
			return jsonEquals(result, value) == want, nil
		}, nil

	case "contains":
		return func(resp *Response) (bool, error) {
			result, err := lookup(resp)
			if err != nil {
				return false, err
			}
			if !result.Exists() {
				return false, fmt.Errorf("path not found: %s", path)
			}
			if result.IsArray() {
				for _, item := range result.Array() {
					if jsonEquals(item, value) {
						return true, nil
					}
				}
				return false, nil
			}
			return strings.Contains(result.String(), value), nil
		}, nil

	case "gt", "gte", "lt", "lte":
		expected, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("numeric comparison needs a number, got %q", value)
		}
		cmp, _ := numericComparison(condition)
		return func(resp *Response) (bool, error) {
			result, err := lookup(resp)
			if err != nil {
				return false, err
			}
			if result.Type != gjson.Number {
				return false, fmt.Errorf("value at %s is not a number", path)
			}
			return cmp(result.Float(), expected), nil
		}, nil
	}

	return nil, fmt.Errorf("unsupported json condition: %s", condition)
}

// jsonEquals compares a JSON value with the configured string. Numbers compare
// numerically so "1" matches 1.0.
func jsonEquals(result gjson.Result, value string) bool {
	if result.Type == gjson.Number {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return result.Float() == f
		}
	}
	if result.Type == gjson.Null {
		return value == "null"
	}
	return result.String() == value
}

func durationPredicate(condition, value string) (Predicate, error) {
	limit, err := config.ParseDurationString(value)
	if err != nil {
		return nil, err
	}
	cmp, err := numericComparison(condition)
	if err != nil {
		return nil, err
	}
	return func(resp *Response) (bool, error) {
		return cmp(float64(resp.Duration), float64(limit)), nil
	}, nil
}

func schemaPredicate(doc string) (Predicate, error) {
	schema, err := jsonschema.Compile(doc)
	if err != nil {
		return nil, err
	}
	return func(resp *Response) (bool, error) {
		if err := schema.Validate(resp.Body); err != nil {
			return false, err
		}
		return true, nil
	}, nil
}

func numericComparison(condition string) (func(actual, expected float64) bool, error) {
	switch condition {
	case "eq":
		return func(a, e float64) bool { return a == e }, nil
	case "ne":
		return func(a, e float64) bool { return a != e }, nil
	case "gt":
		return func(a, e float64) bool { return a > e }, nil
	case "gte":
		return func(a, e float64) bool { return a >= e }, nil
	case "lt":
		return func(a, e float64) bool { return a < e }, nil
	case "lte":
		return func(a, e float64) bool { return a <= e }, nil
	}
	return nil, fmt.Errorf("unsupported numeric condition: %s", condition)
}

func stringComparison(condition, value string) (func(actual string) bool, error) {
	switch condition {
	case "eq":
		return func(a string) bool { return a == value }, nil
	case "ne":
		return func(a string) bool { return a != value }, nil
	case "contains":
		return func(a string) bool { return strings.Contains(a, value) }, nil
	case "not-contains", "not_contains":
		return func(a string) bool { return !strings.Contains(a, value) }, nil
	case "matches":
		re, err := regexp.Compile(value)
		if err != nil {
			return nil, fmt.Errorf("invalid regular expression: %w", err)
		}
		return re.MatchString, nil
	}
	return nil, fmt.Errorf("unsupported condition: %s", condition)
}
