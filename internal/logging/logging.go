package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option adjusts how the logger is built.
type Option func(*settings)

type settings struct {
	level   zapcore.Level
	console bool
	color   bool
}

// WithLevel sets the minimum level from its textual form ("debug", "info",
// "warn", "error").
func WithLevel(level string) (Option, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	return func(s *settings) {
		s.level = parsed
	}, nil
}

// WithConsole switches from JSON output to a human-readable console encoder,
// optionally with colored level names. Intended for interactive CLI use.
func WithConsole(color bool) Option {
	return func(s *settings) {
		s.console = true
		s.color = color
	}
}

// New creates a structured logger. The default is the production JSON
// configuration; WithConsole yields terminal-friendly output instead.
func New(opts ...Option) (*zap.Logger, error) {
	s := settings{level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(&s)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(s.level)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false

	if s.console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if s.color {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.DisableStacktrace = true
		cfg.OutputPaths = []string{"stderr"}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
