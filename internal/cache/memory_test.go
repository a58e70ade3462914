package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.SetEX(ctx, "k", []byte("v"), time.Hour))
	val, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	val[0] = 'x'
	again, _, _ := b.Get(ctx, "k")
	assert.Equal(t, []byte("v"), again, "returned slices are copies")

	require.NoError(t, b.Del(ctx, "k", "missing"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend_Expiry(t *testing.T) {
	b := NewMemoryBackend(time.Minute)
	ctx := context.Background()

	require.NoError(t, b.SetEX(ctx, "k", []byte("v"), 20*time.Millisecond))
	assert.Eventually(t, func() bool {
		_, ok, _ := b.Get(ctx, "k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryBackend_Close(t *testing.T) {
	b := NewMemoryBackend(0)
	ctx := context.Background()
	require.NoError(t, b.SetEX(ctx, "k", []byte("v"), time.Hour))
	assert.Equal(t, 1, b.Len())
	require.NoError(t, b.Close())
	assert.Equal(t, 0, b.Len())
}
