package logging

import (
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"go.uber.org/zap/zapcore"
)

// Console output targets.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputNone   = "none"
)

// Config holds logging configuration.
type Config struct {
	Level  zapcore.Level `koanf:"level"`
	Format string        `koanf:"format"` // "json" or "console"
	Output string        `koanf:"output"`
	// OTEL mirrors entries to the OpenTelemetry log provider when one is
	// passed to NewLogger.
	OTEL      bool              `koanf:"otel"`
	Caller    bool              `koanf:"caller"`
	Sampling  SamplingConfig    `koanf:"sampling"`
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// SamplingConfig limits repeated debug and info entries. Within each Tick,
// the first First entries with the same message are kept, then every
// Thereafter-th.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	First      int           `koanf:"first"`
	Thereafter int           `koanf:"thereafter"`
}

// RedactionConfig lists field keys whose values are never written and value
// patterns that are masked wherever they appear.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Keys     []string `koanf:"keys"`
	Patterns []string `koanf:"patterns"`
}

const maxPatternLen = 200

// NewDefaultConfig returns JSON logging at info level on stdout.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputStdout,
		Caller: true,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			First:      100,
			Thereafter: 10,
		},
		Fields: map[string]string{"service": "retractd"},
		Redaction: RedactionConfig{
			Enabled: true,
			Keys: []string{
				"api_key", "apikey", "authorization", "password", "secret", "token",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`sk-[a-zA-Z0-9_-]{16,}`,
			},
		},
	}
}

// FromAppConfig maps the operator-facing settings onto a full Config.
func FromAppConfig(app config.LoggingConfig) (*Config, error) {
	cfg := NewDefaultConfig()
	if app.Level != "" {
		level, err := zapcore.ParseLevel(app.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", app.Level, err)
		}
		cfg.Level = level
	}
	if app.Format != "" {
		cfg.Format = app.Format
	}
	return cfg, cfg.Validate()
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	switch c.Output {
	case OutputStdout, OutputStderr:
	case OutputNone, "":
		if !c.OTEL {
			return fmt.Errorf("no output enabled (set output to stdout or stderr, or enable otel)")
		}
	default:
		return fmt.Errorf("unknown output %q", c.Output)
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
		}
		if c.Sampling.First < 1 {
			return fmt.Errorf("sampling first must be >= 1, got %d", c.Sampling.First)
		}
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if len(p) > maxPatternLen {
				return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
			}
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("static field %q must have a non-empty key and value", k)
		}
	}
	return nil
}
