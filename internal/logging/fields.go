package logging

import (
	"strconv"
	"unicode/utf8"

	"github.com/fyrsmithlabs/retractd/internal/config"
	"go.uber.org/zap"
)

// Secret logs only the length of a secret.
func Secret(key string, val config.Secret) zap.Field {
	return Redacted(key, val.Value())
}

// Redacted logs a placeholder carrying the value's length.
func Redacted(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// maxTextRunes bounds free text (titles, entity text, queries) written to logs.
const maxTextRunes = 64

// Text logs free text truncated to a bounded number of runes.
func Text(key, val string) zap.Field {
	if utf8.RuneCountInString(val) <= maxTextRunes {
		return zap.String(key, val)
	}
	runes := []rune(val)
	return zap.String(key, string(runes[:maxTextRunes])+"…")
}
