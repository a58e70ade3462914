package retraction

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random UUID string for generated records.
func NewID() string {
	return uuid.New().String()
}

// IsUUID reports whether value parses as a UUID in any accepted form.
func IsUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

// MatchID reports whether stored equals want. When want is a UUID, its
// hyphen-stripped form also matches, since upstream stores are inconsistent
// about the formatting.
func MatchID(stored, want string) bool {
	if stored == want {
		return true
	}
	if IsUUID(want) {
		return stored == strings.ReplaceAll(want, "-", "")
	}
	return false
}
