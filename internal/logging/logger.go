package logging

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const otelScope = "github.com/fyrsmithlabs/retractd"

// Logger is the process-wide zap logger.
type Logger struct {
	*zap.Logger
}

// NewLogger builds a Logger from cfg. otelProvider may be nil, in which case
// cfg.OTEL is ignored.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r, err := newRedactor(cfg.Redaction)
	if err != nil {
		return nil, err
	}

	var cores []zapcore.Core
	if w := consoleWriter(cfg.Output); w != nil {
		cores = append(cores, consoleCore(cfg, w, r))
	}
	if cfg.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider))
		cores = append(cores, levelGate(r.wrap(otelCore), cfg.Level))
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available")
	}
	core := zapcore.NewTee(cores...)

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}
	if len(cfg.Fields) > 0 {
		opts = append(opts, zap.Fields(staticFields(cfg.Fields)...))
	}
	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// Sync flushes buffered entries. Terminals reject fsync with EINVAL or
// ENOTTY; that is not reported as an error.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

func consoleWriter(output string) zapcore.WriteSyncer {
	switch output {
	case OutputStdout:
		return zapcore.Lock(os.Stdout)
	case OutputStderr:
		return zapcore.Lock(os.Stderr)
	default:
		return nil
	}
}

// consoleCore splits entries by priority: warnings and errors are always
// written, lower levels pass through the sampler.
func consoleCore(cfg *Config, w zapcore.WriteSyncer, r *redactor) zapcore.Core {
	enc := newEncoder(cfg.Format)
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= zapcore.WarnLevel && cfg.Level.Enabled(l)
	})
	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l < zapcore.WarnLevel && cfg.Level.Enabled(l)
	})

	lowCore := r.wrap(zapcore.NewCore(enc.Clone(), w, low))
	if cfg.Sampling.Enabled {
		lowCore = zapcore.NewSamplerWithOptions(lowCore,
			cfg.Sampling.Tick, cfg.Sampling.First, cfg.Sampling.Thereafter)
	}
	return zapcore.NewTee(r.wrap(zapcore.NewCore(enc, w, high)), lowCore)
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// levelGate applies the configured minimum level to a core that does not
// take one, such as the otelzap bridge.
func levelGate(core zapcore.Core, min zapcore.Level) zapcore.Core {
	c, err := zapcore.NewIncreaseLevelCore(core, min)
	if err != nil {
		// The bridge already filters above min.
		return core
	}
	return c
}

func staticFields(m map[string]string) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.String(k, m[k]))
	}
	return fields
}
