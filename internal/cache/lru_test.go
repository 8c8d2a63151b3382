package cache

import (
	"testing"
	"time"

	"budget/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withClock[T any](c *LRUCache[T], start time.Time) *time.Time {
	clock := start
	c.now = func() time.Time { return clock }
	return &clock
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	_, _ = c.Get("a") // b is now oldest
	c.Set("c", "3")

	_, ok := c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	clock := withClock(c, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	c.Set("a", 1)
	c.Set("b", 2)
	*clock = clock.Add(30 * time.Second)
	c.Set("b", 3) // refreshes b

	*clock = clock.Add(45 * time.Second)
	_, ok := c.Get("a")
	assert.False(t, ok, "a expired")
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	*clock = clock.Add(time.Hour)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Zero(t, c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Size(), "size floor is one")

	c.Delete("b")
	assert.Zero(t, c.Size())

	c.Set("c", 3)
	c.Purge()
	_, ok := c.Get("c")
	assert.False(t, ok)
}

func TestManager_CleanAll(t *testing.T) {
	a := NewLRUCache[int](10, time.Minute)
	b := NewLRUCache[string](10, time.Minute)
	clockA := withClock(a, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	clockB := withClock(b, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	a.Set("x", 1)
	a.Set("y", 2)
	b.Set("z", "3")
	*clockA = clockA.Add(2 * time.Minute)
	*clockB = clockB.Add(2 * time.Minute)

	m := NewManager(log.Discard())
	m.Register(a)
	m.Register(b)
	assert.Equal(t, 3, m.CleanAll())
}

func TestManager_StopIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
	m.Stop()

	m = NewManager(nil)
	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
