package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	redactedKey     = "[REDACTED]"
	redactedPattern = "[REDACTED:pattern]"
)

// redactor masks sensitive keys and values.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(cfg RedactionConfig) (*redactor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	keys := make(map[string]struct{}, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys[strings.ToLower(k)] = struct{}{}
	}
	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &redactor{keys: keys, patterns: patterns}, nil
}

// wrap returns core unchanged when r is nil. It must wrap leaf cores only:
// tees and samplers make their level decisions in Check, which a wrapper
// around them would bypass.
func (r *redactor) wrap(core zapcore.Core) zapcore.Core {
	if r == nil {
		return core
	}
	return &redactCore{Core: core, r: r}
}

// redactCore rewrites fields before the wrapped core sees them, so every
// encoder and the OpenTelemetry bridge get the same masked values.
type redactCore struct {
	zapcore.Core
	r *redactor
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(c.r.redact(fields)), r: c.r}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.r.mask(ent.Message)
	return c.Core.Write(ent, c.r.redact(fields))
}

func (r *redactor) redact(fields []zapcore.Field) []zapcore.Field {
	out := fields
	copied := false
	for i, f := range fields {
		repl, changed := r.redactField(f)
		if !changed {
			continue
		}
		if !copied {
			out = append([]zapcore.Field(nil), fields...)
			copied = true
		}
		out[i] = repl
	}
	return out
}

func (r *redactor) redactField(f zapcore.Field) (zapcore.Field, bool) {
	if _, ok := r.keys[strings.ToLower(f.Key)]; ok {
		return zap.String(f.Key, redactedKey), true
	}
	switch f.Type {
	case zapcore.StringType:
		if r.matches(f.String) {
			return zap.String(f.Key, redactedPattern), true
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok && err != nil && r.matches(err.Error()) {
			return zap.String(f.Key, redactedPattern), true
		}
	}
	return f, false
}

func (r *redactor) matches(s string) bool {
	for _, re := range r.patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// mask replaces pattern matches inside a message, keeping the rest readable.
func (r *redactor) mask(s string) string {
	for _, re := range r.patterns {
		s = re.ReplaceAllString(s, redactedPattern)
	}
	return s
}
