package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyrsmithlabs/retractd/internal/config"
	"github.com/fyrsmithlabs/retractd/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, config.CacheConfig{Disabled: true}, nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	c, err = Open(ctx, config.CacheConfig{Backend: "memory", DefaultTTL: config.Duration(time.Minute)}, nil)
	require.NoError(t, err)
	assert.True(t, c.Enabled())
	assert.Equal(t, time.Minute, c.defaultTTL)

	s := miniredis.RunT(t)
	c, err = Open(ctx, config.CacheConfig{Backend: "redis", Addr: s.Addr(), DialTimeout: config.Duration(time.Second)}, nil)
	require.NoError(t, err)
	require.True(t, c.Put(ctx, NamespaceEmbedding, "x", []byte("v"), 0))
	assert.True(t, s.Exists(Key(NamespaceEmbedding, "x")))
	require.NoError(t, c.Close())

	_, err = Open(ctx, config.CacheConfig{Backend: "memcached"}, nil)
	assert.Error(t, err)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	obs := logging.NewObserved()
	c, err := Open(context.Background(), config.CacheConfig{
		Backend:     "redis",
		Addr:        addr,
		DialTimeout: config.Duration(200 * time.Millisecond),
	}, obs.Logger)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, c.Enabled())
	obs.RequireLogged(t, zapcore.WarnLevel, "cache backend unreachable")

	_, ok := c.Get(context.Background(), NamespaceEmbedding, "x")
	assert.False(t, ok, "an unreachable backend behaves as a disabled cache")
	assert.NoError(t, c.Close())
}
