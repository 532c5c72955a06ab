package embedder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	calls int
	texts []string
}

func (c *countingProvider) Name() string    { return "counting" }
func (c *countingProvider) Dimensions() int { return 2 }
func (c *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func TestCache(t *testing.T) {
	t.Parallel()

	t.Run("HitSkipsProvider", func(t *testing.T) {
		t.Parallel()
		inner := &countingProvider{}
		cache := NewCache(inner, "model-a", 16, time.Minute)

		first, err := cache.Embed(context.Background(), []string{"alpha", "beta"})
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, 1, inner.calls)

		second, err := cache.Embed(context.Background(), []string{"alpha", "beta"})
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("PartialMiss", func(t *testing.T) {
		t.Parallel()
		inner := &countingProvider{}
		cache := NewCache(inner, "model-a", 16, time.Minute)

		_, err := cache.Embed(context.Background(), []string{"alpha"})
		require.NoError(t, err)

		out, err := cache.Embed(context.Background(), []string{"alpha", "gamma"})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 2, inner.calls)
		// Only the miss went to the provider on the second call.
		assert.Equal(t, []string{"alpha", "gamma"}, inner.texts)
	})

	t.Run("DelegatesMetadata", func(t *testing.T) {
		t.Parallel()
		cache := NewCache(&countingProvider{}, "model-a", 0, 0)
		assert.Equal(t, "counting", cache.Name())
		assert.Equal(t, 2, cache.Dimensions())
	})

	t.Run("EmptyInput", func(t *testing.T) {
		t.Parallel()
		inner := &countingProvider{}
		cache := NewCache(inner, "model-a", 16, time.Minute)
		out, err := cache.Embed(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, out)
		assert.Zero(t, inner.calls)
	})
}
