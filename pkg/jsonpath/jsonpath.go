// Package jsonpath resolves simple JSONPath expressions against JSON documents
// using gjson.
package jsonpath

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup resolves path in body and returns the raw gjson result.
//
// The returned error is non-nil when body is not valid JSON or the path is
// empty. A missing path is not an error: check result.Exists().
func Lookup(body []byte, path string) (gjson.Result, error) {
	if len(body) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if strings.TrimSpace(path) == "" {
		return gjson.Result{}, fmt.Errorf("empty JSONPath expression")
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("response body is not valid JSON")
	}
	return gjson.GetBytes(body, ToGjson(path)), nil
}

// Extract resolves path in body and returns the value as a string. JSON null
// is returned as "null". A missing path is an error.
func Extract(body []byte, path string) (string, error) {
	result, err := Lookup(body, path)
	if err != nil {
		return "", err
	}
	if !result.Exists() {
		return "", fmt.Errorf("path not found: %s", path)
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// ToGjson converts a JSONPath expression to gjson syntax.
//
//	$                  -> @this
//	$.data.items[0].id -> data.items.0.id
//	$['user']["name"]  -> user.name
//	$[2]               -> 2
//
// Paths that do not start with "$" are assumed to be gjson paths already.
func ToGjson(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "$") {
		return path
	}
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	var segments []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segments = append(segments, cur.String())
			cur.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch ch := path[i]; ch {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				cur.WriteString(path[i+1:])
				i = len(path)
				continue
			}
			inner := strings.Trim(path[i+1:i+end], `'"`)
			segments = append(segments, inner)
			i += end
		default:
			cur.WriteByte(ch)
		}
	}
	flush()

	if len(segments) == 0 {
		return "@this"
	}
	return strings.Join(segments, ".")
}
