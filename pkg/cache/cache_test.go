package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheSetThenGet(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	defer c.Stop()
	ctx := context.Background()

	_, ok := c.Get(ctx, "capital of france")
	assert.False(t, ok)

	c.Set(ctx, "capital of france", "capital of France", time.Minute)
	val, ok := c.Get(ctx, "capital of france")
	assert.True(t, ok)
	assert.Equal(t, "capital of France", val)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "q", "reworded", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get(ctx, "q")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsExpiredWhenFull(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	defer c.Stop()
	ctx := context.Background()

	c.Set(ctx, "a", "a-reworded", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	c.Set(ctx, "b", "b-reworded", time.Minute)
	c.Set(ctx, "c", "c-reworded", time.Minute)

	_, ok := c.Get(ctx, "b")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)
}
