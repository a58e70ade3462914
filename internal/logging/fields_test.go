package logging

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSecret(t *testing.T) {
	f := Secret("api_key", config.Secret("sk-123456"))
	assert.Equal(t, "[REDACTED:9]", f.String)
}

func TestText(t *testing.T) {
	assert.Equal(t, "short title", Text("title", "short title").String)

	long := strings.Repeat("é", maxTextRunes+10)
	got := Text("title", long).String
	assert.Equal(t, maxTextRunes+1, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestObserved(t *testing.T) {
	obs := NewObserved()
	obs.Warn("cache get failed", Text("resource", "p1"))
	obs.Debug("embedding cache hit")

	obs.RequireLogged(t, zapcore.WarnLevel, "get failed")
	v, ok := obs.Field("cache get", "resource")
	assert.True(t, ok)
	assert.Equal(t, "p1", v)
	_, ok = obs.Field("cache get", "namespace")
	assert.False(t, ok)
	assert.Len(t, obs.Entries(), 2)
}
