package cache

import (
	"context"
	"errors"
	"time"
)

// ErrBackend wraps every error surfaced by a Backend.
var ErrBackend = errors.New("cache backend failure")

// Backend is the key-value store behind a Cache.
type Backend interface {
	// Get returns the value for key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetEX stores value under key with the given expiry.
	SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Close releases backend resources.
	Close() error
}
