package retraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Common attribute keys.
const (
	AttrCitationCount        = "citation_count"
	AttrPublicationDate      = "publication_date"
	AttrReasoningConsistency = "reasoning_consistency"
	AttrSourceCredibility    = "source_credibility"
)

// AttrFloat reads a numeric attribute. Numbers stored as strings are parsed.
func AttrFloat(attrs map[string]any, key string) (float64, bool) {
	v, ok := attrs[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "2006-01"}

// AttrTime reads a date attribute in YYYY-MM-DD or RFC3339 form.
func AttrTime(attrs map[string]any, key string) (time.Time, bool) {
	v, ok := attrs[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case string:
		return ParseDate(t)
	default:
		return time.Time{}, false
	}
}

// ParseDate parses the date formats found in paper metadata.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// attrEquals compares an attribute with a value loosely so that JSON-decoded
// numbers match Go ints.
func attrEquals(attrs map[string]any, key string, value any) bool {
	v, ok := attrs[key]
	if !ok {
		return false
	}
	if a, ok := AttrFloat(attrs, key); ok {
		tmp := map[string]any{key: value}
		if b, ok := AttrFloat(tmp, key); ok {
			return a == b
		}
	}
	return fmt.Sprint(v) == fmt.Sprint(value)
}
