package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Observed is a logger whose entries are kept in memory.
type Observed struct {
	*zap.Logger
	logs *observer.ObservedLogs
}

// NewObserved records every entry at debug and above.
func NewObserved() *Observed {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Observed{Logger: zap.New(core), logs: logs}
}

// Entries returns everything logged so far.
func (o *Observed) Entries() []observer.LoggedEntry {
	return o.logs.All()
}

// Messages returns entries whose message contains snippet.
func (o *Observed) Messages(snippet string) []observer.LoggedEntry {
	return o.logs.FilterMessageSnippet(snippet).All()
}

// RequireLogged fails tb unless an entry at level contains snippet.
func (o *Observed) RequireLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	for _, e := range o.logs.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return
		}
	}
	tb.Fatalf("no %v entry containing %q; have %d entries", level, snippet, o.logs.Len())
}

// Field returns the value of key on the first entry whose message contains
// snippet.
func (o *Observed) Field(snippet, key string) (any, bool) {
	for _, e := range o.Messages(snippet) {
		if v, ok := e.ContextMap()[key]; ok {
			return v, true
		}
	}
	return nil, false
}
