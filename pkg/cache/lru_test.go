package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tradedesk/pkg/cache"
)

func TestLRUCache(t *testing.T) {
	t.Parallel()

	t.Run("panics on non-positive capacity", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { cache.NewLRUCache[string, int](0) })
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		t.Parallel()
		var evicted []string
		c := cache.NewLRUCache(2, cache.WithEvictCallback(func(k string, _ int) {
			evicted = append(evicted, k)
		}))

		c.Put("a", 1)
		c.Put("b", 2)
		_, ok := c.Get("a")
		require.True(t, ok)
		c.Put("c", 3)

		_, ok = c.Get("b")
		assert.False(t, ok)
		assert.Equal(t, []string{"b"}, evicted)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("put replaces value", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRUCache[string, int](2)
		c.Put("a", 1)
		c.Put("a", 2)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 2, v)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("remove and clear", func(t *testing.T) {
		t.Parallel()
		c := cache.NewLRUCache[string, int](4)
		c.Put("a", 1)
		c.Put("b", 2)

		v, ok := c.Remove("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		_, ok = c.Remove("a")
		assert.False(t, ok)

		c.Clear()
		assert.Zero(t, c.Len())
	})

	t.Run("entries expire after ttl", func(t *testing.T) {
		t.Parallel()
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		c := cache.NewLRUCache(4,
			cache.WithTTL[string, int](time.Minute),
			cache.WithClock[string, int](func() time.Time { return now }),
		)
		c.Put("a", 1)

		now = now.Add(59 * time.Second)
		_, ok := c.Get("a")
		assert.True(t, ok)

		now = now.Add(time.Second)
		_, ok = c.Get("a")
		assert.False(t, ok)
		assert.Zero(t, c.Len())
	})
}

func TestGetOrAdd(t *testing.T) {
	t.Parallel()

	c := cache.NewLRUCache[string, *int](8)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := c.GetOrAdd("k", func() *int {
				mu.Lock()
				created++
				mu.Unlock()
				n := i
				return &n
			})
			results[i] = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}
