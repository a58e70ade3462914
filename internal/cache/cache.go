package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/fyrsmithlabs/retractd/internal/logging"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// DefaultTTL applies when Put is called without a positive ttl.
const DefaultTTL = time.Hour

// Namespaces sharing one cache instance.
const (
	NamespacePaperAnalysis   = "paper_analysis"
	NamespaceEmbedding       = "embedding"
	NamespaceSimilarPapers   = "similar_papers"
	NamespaceSimilarEntities = "similar_entities"
)

// Key derives the backend key for an identifier in a namespace:
// prefix + ":" + hex(sha256(prefix + id)).
func Key(prefix, id string) string {
	sum := sha256.Sum256([]byte(prefix + id))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// Cache is a namespaced cache-aside store over a Backend.
// It is safe for concurrent use; a nil *Cache is a disabled cache.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	logger     *zap.Logger
	metrics    *Metrics
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	defaultTTL    time.Duration
	logger        *zap.Logger
	meterProvider metric.MeterProvider
}

// WithDefaultTTL sets the expiry used when Put gets a non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithLogger sets the logger for cache events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMeterProvider sets the meter provider for cache metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// New creates a Cache over backend. The cache owns the backend and closes it
// on Close.
func New(backend Backend, opts ...Option) *Cache {
	o := options{
		defaultTTL: DefaultTTL,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger.Named("cache")
	return &Cache{
		backend:    backend,
		defaultTTL: o.defaultTTL,
		logger:     logger,
		metrics:    NewMetrics(o.meterProvider, logger),
	}
}

// Enabled reports whether the cache has a backend.
func (c *Cache) Enabled() bool {
	return c != nil && c.backend != nil
}

// Get returns the cached value for id in namespace prefix.
// Backend failures are logged and reported as a miss.
func (c *Cache) Get(ctx context.Context, prefix, id string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	val, found, err := c.backend.Get(ctx, Key(prefix, id))
	switch {
	case err != nil:
		c.metrics.record(ctx, prefix, "get", resultError)
		c.logger.Warn("cache get failed",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Error(err))
		return nil, false
	case !found:
		c.metrics.record(ctx, prefix, "get", resultMiss)
		c.logger.Debug("cache miss",
			zap.String("namespace", prefix), logging.Text("resource", id))
		return nil, false
	default:
		c.metrics.record(ctx, prefix, "get", resultHit)
		c.logger.Info("cache hit",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Int("bytes", len(val)))
		return val, true
	}
}

// Put stores value for id in namespace prefix. A non-positive ttl uses the
// default. It reports whether the write succeeded.
func (c *Cache) Put(ctx context.Context, prefix, id string, value []byte, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.backend.SetEX(ctx, Key(prefix, id), value, ttl); err != nil {
		c.metrics.record(ctx, prefix, "put", resultError)
		c.logger.Warn("cache put failed",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Error(err))
		return false
	}

	c.metrics.record(ctx, prefix, "put", resultOK)
	c.logger.Info("cache put",
		zap.String("namespace", prefix), logging.Text("resource", id),
		zap.Int("bytes", len(value)), zap.Duration("ttl", ttl))
	return true
}

// Invalidate removes id from namespace prefix and reports whether the
// backend accepted the delete.
func (c *Cache) Invalidate(ctx context.Context, prefix, id string) bool {
	if !c.Enabled() {
		return false
	}

	if err := c.backend.Del(ctx, Key(prefix, id)); err != nil {
		c.metrics.record(ctx, prefix, "invalidate", resultError)
		c.logger.Warn("cache invalidate failed",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Error(err))
		return false
	}

	c.metrics.record(ctx, prefix, "invalidate", resultOK)
	c.logger.Debug("cache invalidated",
		zap.String("namespace", prefix), logging.Text("resource", id))
	return true
}

// GetJSON decodes a cached JSON value into dst. A value that no longer
// decodes is dropped and reported as a miss.
func (c *Cache) GetJSON(ctx context.Context, prefix, id string, dst any) bool {
	raw, ok := c.Get(ctx, prefix, id)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Error(err))
		c.Invalidate(ctx, prefix, id)
		return false
	}
	return true
}

// PutJSON encodes value as JSON and stores it.
func (c *Cache) PutJSON(ctx context.Context, prefix, id string, value any, ttl time.Duration) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("cache value not encodable",
			zap.String("namespace", prefix), logging.Text("resource", id), zap.Error(err))
		return false
	}
	return c.Put(ctx, prefix, id, raw, ttl)
}

// InvalidatePaper removes the cached analysis of a paper.
func (c *Cache) InvalidatePaper(ctx context.Context, paperID string) bool {
	return c.Invalidate(ctx, NamespacePaperAnalysis, paperID)
}

// Close closes the backend.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.backend.Close()
}
