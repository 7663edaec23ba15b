package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *time.Time) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](size, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCacheExpiry(t *testing.T) {
	c, now := newTestCache(10, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	*now = now.Add(2 * time.Minute)
	c.Set("c", 3)

	assert.Equal(t, 2, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestLRUCacheDeletePrefix(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)

	c.Set("u1|2025-05", 1)
	c.Set("u1|2025-06", 2)
	c.Set("u10|2025-06", 3)

	assert.Equal(t, 2, c.DeletePrefix("u1|"))
	_, ok := c.Get("u10|2025-06")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestManagerCleanAll(t *testing.T) {
	c, now := newTestCache(10, time.Second)
	c.Set("a", 1)
	*now = now.Add(time.Minute)

	m := NewManager()
	m.Register("stats", c)
	assert.Equal(t, 1, m.CleanAll())

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
