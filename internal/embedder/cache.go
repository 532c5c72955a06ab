package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 1 * time.Hour
)

// Cache wraps a Provider with an in-memory LRU keyed by the hash of
// model and text. Embedding the same text twice costs one API call.
type Cache struct {
	inner   Provider
	model   string
	entries *expirable.LRU[string, []float32]
}

var _ Provider = (*Cache)(nil)

// NewCache wraps provider with an expirable LRU. Size and ttl fall back
// to defaults when zero.
func NewCache(provider Provider, model string, size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		inner:   provider,
		model:   model,
		entries: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Name returns the wrapped provider's name.
func (c *Cache) Name() string {
	return c.inner.Name()
}

// Dimensions reports the wrapped provider's vector width.
func (c *Cache) Dimensions() int {
	return c.inner.Dimensions()
}

// Embed returns cached vectors where available and forwards only the
// misses to the wrapped provider, preserving input order.
func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	var (
		missTexts   []string
		missIndexes []int
	)
	for i, text := range texts {
		if vec, ok := c.entries.Get(c.key(text)); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		i := missIndexes[j]
		out[i] = vec
		c.entries.Add(c.key(texts[i]), vec)
	}
	return out, nil
}

// key hashes model and text so distinct models never share entries.
func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
