// Package logging builds the structured logger used across surge.
package logging

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config represents logger configuration.
type Config struct {
	// Level is one of debug, info, warn, error
	Level string

	// Format is "console" or "json"
	Format string

	// Output is a zap output path; defaults to stderr so stdout stays free
	// for the summary
	Output string
}

// Sampling keeps per-request failure logs from flooding the terminal: within
// each second the first samplingInitial entries with the same message are
// written, then one in every samplingThereafter.
const (
	samplingInitial    = 10
	samplingThereafter = 100
)

// New creates a logger writing to stderr.
func New(level, format string) (*zap.Logger, error) {
	return NewWithConfig(Config{Level: level, Format: format})
}

// NewWithConfig creates a logger from cfg.
func NewWithConfig(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "warn"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.DisableStacktrace = true
	zapConfig.Sampling = &zap.SamplingConfig{
		Initial:    samplingInitial,
		Thereafter: samplingThereafter,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		zapConfig.Encoding = "json"
	case "console", "":
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zapConfig.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	default:
		return nil, fmt.Errorf("invalid log format: %s (want console or json)", cfg.Format)
	}

	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	zapConfig.OutputPaths = []string{output}
	zapConfig.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// Duration is a zap field for durations rounded to the millisecond.
func Duration(key string, d time.Duration) zap.Field {
	return zap.Duration(key, d.Round(time.Millisecond))
}
