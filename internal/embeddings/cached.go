package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fyrsmithlabs/retractd/internal/cache"
	"go.uber.org/zap"
)

// KeyMode selects how a text becomes an embedding cache identifier.
type KeyMode int

const (
	// KeyModeFullText keys on a digest of the whole text.
	KeyModeFullText KeyMode = iota

	// KeyModePrefix keys on the first PrefixLength code points. Distinct
	// texts sharing that prefix receive the same cached vector.
	KeyModePrefix
)

// DefaultPrefixLength is the prefix used by KeyModePrefix when none is set.
const DefaultPrefixLength = 100

// ParseKeyMode maps the configuration spelling to a KeyMode.
func ParseKeyMode(s string) (KeyMode, error) {
	switch s {
	case "full", "":
		return KeyModeFullText, nil
	case "prefix":
		return KeyModePrefix, nil
	default:
		return KeyModeFullText, fmt.Errorf("%w: unknown embedding key mode %q", ErrInvalidConfig, s)
	}
}

// CachedProvider consults the cache before the wrapped provider and writes
// computed vectors back.
type CachedProvider struct {
	inner        Provider
	cache        *cache.Cache
	mode         KeyMode
	prefixLength int
	metrics      *Metrics
	logger       *zap.Logger
}

// CachedOption configures a CachedProvider.
type CachedOption func(*CachedProvider)

// WithKeyMode sets the key mode and, for KeyModePrefix, the prefix length.
func WithKeyMode(mode KeyMode, prefixLength int) CachedOption {
	return func(p *CachedProvider) {
		p.mode = mode
		if prefixLength > 0 {
			p.prefixLength = prefixLength
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *zap.Logger) CachedOption {
	return func(p *CachedProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewCachedProvider wraps inner with cache-aside lookups. A nil cache
// disables caching and every call reaches inner.
func NewCachedProvider(inner Provider, c *cache.Cache, opts ...CachedOption) *CachedProvider {
	p := &CachedProvider{
		inner:        inner,
		cache:        c,
		mode:         KeyModeFullText,
		prefixLength: DefaultPrefixLength,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics = NewMetrics(p.logger)
	return p
}

// CacheID returns the identifier under which text is cached.
func (p *CachedProvider) CacheID(text string) string {
	if p.mode == KeyModePrefix {
		runes := []rune(text)
		if len(runes) > p.prefixLength {
			runes = runes[:p.prefixLength]
		}
		return string(runes)
	}
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed implements Provider. On a miss the wrapped provider is called
// exactly once and the result is written back before returning. A failed
// write-back is logged by the cache and does not fail the call.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	id := p.CacheID(text)
	if raw, ok := p.cache.Get(ctx, cache.NamespaceEmbedding, id); ok {
		vec, err := DecodeVector(raw)
		dim := p.inner.Dimension()
		switch {
		case err != nil:
			p.logger.Warn("discarding corrupt cached embedding", zap.Error(err))
		case dim > 0 && len(vec) != dim:
			p.logger.Warn("discarding cached embedding with wrong dimension",
				zap.Int("expected", dim), zap.Int("actual", len(vec)))
		default:
			p.metrics.RecordCacheLookup(ctx, true)
			return vec, nil
		}
	}
	p.metrics.RecordCacheLookup(ctx, false)

	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.cache.Put(ctx, cache.NamespaceEmbedding, id, EncodeVector(vec), 0)
	return vec, nil
}

// Dimension returns the wrapped provider's dimension.
func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

// Close closes the wrapped provider. The cache is owned by the caller.
func (p *CachedProvider) Close() error {
	return p.inner.Close()
}
