package cache_test

import (
	"testing"
	"time"

	"agentrouter/internal/cache"
	"github.com/stretchr/testify/assert"
)

func TestPermissionCacheGetSet(t *testing.T) {
	c := cache.New()

	_, ok := c.Get("tenant-1:llm")
	assert.False(t, ok)

	c.Set("tenant-1:llm", "binding", time.Minute)
	value, ok := c.Get("tenant-1:llm")
	assert.True(t, ok)
	assert.Equal(t, "binding", value)
}

func TestPermissionCacheExpires(t *testing.T) {
	c := cache.New()
	c.Set("tenant-1:llm", "binding", -time.Second)

	_, ok := c.Get("tenant-1:llm")
	assert.False(t, ok)
}

func TestPermissionCacheEvictPrefix(t *testing.T) {
	c := cache.New()
	c.Set("tenant-1:llm", "a", time.Minute)
	c.Set("tenant-1:tool:x", "b", time.Minute)
	c.Set("tenant-2:llm", "c", time.Minute)

	c.EvictPrefix("tenant-1:")

	_, ok := c.Get("tenant-1:llm")
	assert.False(t, ok)
	_, ok = c.Get("tenant-1:tool:x")
	assert.False(t, ok)
	_, ok = c.Get("tenant-2:llm")
	assert.True(t, ok)
}
