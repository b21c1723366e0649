package perf_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/perf"
)

func TestRunTest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	cfg := &perf.TestConfig{
		Name:    "library",
		Stages:  []perf.StageConfig{{Duration: "300ms", Target: 2}},
		Request: perf.RequestConfig{Method: "GET", URL: server.URL},
		Checks: []perf.CheckConfig{
			{Name: "says ok", Type: "body", Condition: "contains", Value: "ok"},
		},
		Pacing: &perf.PacingConfig{Type: "constant", Duration: "10ms"},
	}

	result, err := perf.RunTest(context.Background(), cfg, perf.WithLogger(zap.NewNop()))
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.Greater(t, result.Summary.Iterations, int64(0))
	assert.Equal(t, result.Summary.Iterations, result.Summary.CheckPasses)

	var text bytes.Buffer
	perf.WriteSummary(&text, result, false)
	assert.Contains(t, text.String(), "says ok")

	var js bytes.Buffer
	require.NoError(t, perf.WriteJSON(&js, result))
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &report))
	assert.Equal(t, "library", report["name"])
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	_, err := perf.NewRunner(&perf.TestConfig{
		Stages: []perf.StageConfig{{Duration: "1s", Target: -3}},
	})
	require.Error(t, err)

	var verrs *perf.ValidationErrors
	assert.True(t, errors.As(err, &verrs))
}

func TestRunner_BeforeRun(t *testing.T) {
	runner, err := perf.NewRunner(&perf.TestConfig{
		Request: perf.RequestConfig{URL: "http://localhost"},
	})
	require.NoError(t, err)

	assert.Nil(t, runner.GetMetrics())
	assert.Equal(t, 0.0, runner.GetProgress())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: from file
stages:
  - duration: 30s
    target: 20
request:
  url: https://test.example.com/
`), 0o644))

	cfg, err := perf.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from file", cfg.Name)
	require.Len(t, cfg.Stages, 1)
	assert.Equal(t, 20, cfg.Stages[0].Target)
}
