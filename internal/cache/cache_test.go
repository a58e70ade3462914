package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
)

func newRedisCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr(), MaxRetries: -1})
	c := New(NewRedisBackendFromClient(client), opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestKey(t *testing.T) {
	k := Key(NamespaceEmbedding, "hello")
	assert.True(t, strings.HasPrefix(k, "embedding:"))
	assert.Len(t, strings.TrimPrefix(k, "embedding:"), 64)
	assert.Equal(t, k, Key(NamespaceEmbedding, "hello"), "deterministic")
	assert.NotEqual(t, k, Key(NamespaceSimilarPapers, "hello"), "namespaces never collide")
}

func TestCache_GetPutInvalidate(t *testing.T) {
	c, s := newRedisCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, NamespacePaperAnalysis, "paper-1")
	assert.False(t, ok)

	require.True(t, c.Put(ctx, NamespacePaperAnalysis, "paper-1", []byte("analysis"), 0))
	val, ok := c.Get(ctx, NamespacePaperAnalysis, "paper-1")
	require.True(t, ok)
	assert.Equal(t, []byte("analysis"), val)

	assert.Equal(t, DefaultTTL, s.TTL(Key(NamespacePaperAnalysis, "paper-1")))

	require.True(t, c.Invalidate(ctx, NamespacePaperAnalysis, "paper-1"))
	_, ok = c.Get(ctx, NamespacePaperAnalysis, "paper-1")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c, s := newRedisCache(t, WithDefaultTTL(10*time.Second))
	ctx := context.Background()

	require.True(t, c.Put(ctx, NamespaceEmbedding, "text", []byte("v"), 0))
	require.True(t, c.Put(ctx, NamespaceEmbedding, "long", []byte("v"), time.Minute))

	s.FastForward(11 * time.Second)

	_, ok := c.Get(ctx, NamespaceEmbedding, "text")
	assert.False(t, ok, "default ttl expired")
	_, ok = c.Get(ctx, NamespaceEmbedding, "long")
	assert.True(t, ok, "explicit ttl still live")
}

func TestCache_NamespaceIsolation(t *testing.T) {
	c, _ := newRedisCache(t)
	ctx := context.Background()

	require.True(t, c.Put(ctx, NamespaceSimilarPapers, "q", []byte("papers"), 0))
	require.True(t, c.Put(ctx, NamespaceSimilarEntities, "q", []byte("entities"), 0))

	v, _ := c.Get(ctx, NamespaceSimilarPapers, "q")
	assert.Equal(t, "papers", string(v))
	v, _ = c.Get(ctx, NamespaceSimilarEntities, "q")
	assert.Equal(t, "entities", string(v))
}

func TestCache_BackendFailureIsSoft(t *testing.T) {
	obs := logging.NewObserved()
	c, s := newRedisCache(t, WithLogger(obs.Logger))
	ctx := context.Background()

	s.SetError("ERR backend unavailable")

	assert.False(t, c.Put(ctx, NamespaceEmbedding, "text", []byte("v"), 0))
	_, ok := c.Get(ctx, NamespaceEmbedding, "text")
	assert.False(t, ok)
	assert.False(t, c.Invalidate(ctx, NamespaceEmbedding, "text"))

	obs.RequireLogged(t, zapcore.WarnLevel, "cache put failed")
	obs.RequireLogged(t, zapcore.WarnLevel, "cache get failed")
	obs.RequireLogged(t, zapcore.WarnLevel, "cache invalidate failed")

	s.SetError("")
	assert.True(t, c.Put(ctx, NamespaceEmbedding, "text", []byte("v"), 0), "recovers once backend is back")
}

func TestCache_LogsResourceNotPayload(t *testing.T) {
	obs := logging.NewObserved()
	c := New(NewMemoryBackend(0), WithLogger(obs.Logger))
	ctx := context.Background()

	require.True(t, c.Put(ctx, NamespacePaperAnalysis, "paper-42", []byte("confidential analysis body"), 0))
	_, _ = c.Get(ctx, NamespacePaperAnalysis, "paper-42")

	assertField(t, obs, "cache put", "namespace", NamespacePaperAnalysis)
	assertField(t, obs, "cache put", "resource", "paper-42")
	assertField(t, obs, "cache hit", "resource", "paper-42")
	obs.RequireLogged(t, zapcore.InfoLevel, "cache put")
	obs.RequireLogged(t, zapcore.InfoLevel, "cache hit")

	_, _ = c.Get(ctx, NamespacePaperAnalysis, "paper-43")
	obs.RequireLogged(t, zapcore.DebugLevel, "cache miss")
	for _, e := range obs.Entries() {
		for _, v := range e.ContextMap() {
			assert.NotEqual(t, "confidential analysis body", v)
		}
	}
}

func assertField(t *testing.T, obs *logging.Observed, msg, key string, want any) {
	t.Helper()
	v, ok := obs.Field(msg, key)
	require.True(t, ok, "%s has no %s field", msg, key)
	assert.Equal(t, want, v)
}

func TestCache_JSON(t *testing.T) {
	c := New(NewMemoryBackend(0))
	ctx := context.Background()

	type analysis struct {
		PaperID  string   `json:"paper_id"`
		Entities []string `json:"entities"`
	}
	in := analysis{PaperID: "p1", Entities: []string{"e1", "e2"}}
	require.True(t, c.PutJSON(ctx, NamespacePaperAnalysis, "p1", in, 0))

	var out analysis
	require.True(t, c.GetJSON(ctx, NamespacePaperAnalysis, "p1", &out))
	assert.Equal(t, in, out)

	require.True(t, c.InvalidatePaper(ctx, "p1"))
	assert.False(t, c.GetJSON(ctx, NamespacePaperAnalysis, "p1", &out))
}

func TestCache_UndecodableJSONDropped(t *testing.T) {
	c := New(NewMemoryBackend(0))
	ctx := context.Background()

	require.True(t, c.Put(ctx, NamespaceSimilarPapers, "q", []byte("{not json"), 0))
	var dst []string
	assert.False(t, c.GetJSON(ctx, NamespaceSimilarPapers, "q", &dst))
	_, ok := c.Get(ctx, NamespaceSimilarPapers, "q")
	assert.False(t, ok)
}

func TestCache_NilIsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.False(t, c.Put(ctx, NamespaceEmbedding, "x", []byte("v"), 0))
	_, ok := c.Get(ctx, NamespaceEmbedding, "x")
	assert.False(t, ok)
	assert.False(t, c.Invalidate(ctx, NamespaceEmbedding, "x"))
	assert.False(t, c.PutJSON(ctx, NamespaceEmbedding, "x", 1, 0))
	assert.NoError(t, c.Close())
}

func TestCache_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	c := New(NewMemoryBackend(0), WithMeterProvider(mp))
	ctx := context.Background()

	_, _ = c.Get(ctx, NamespaceEmbedding, "a")
	_ = c.Put(ctx, NamespaceEmbedding, "a", []byte("v"), 0)
	_, _ = c.Get(ctx, NamespaceEmbedding, "a")
	_, _ = c.Get(ctx, NamespaceEmbedding, "a")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "retractd.cache.operations_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("op"))
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				counts[op.AsString()+"/"+result.AsString()] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(1), counts["get/miss"])
	assert.Equal(t, int64(2), counts["get/hit"])
	assert.Equal(t, int64(1), counts["put/ok"])
}
