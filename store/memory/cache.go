package memory

import (
	"context"
	"sync"

	"github.com/warp/timetracker/generic"
)

// Cache is a process-local generic.Cache.
type Cache struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ generic.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{values: make(map[string]string)}
}

func (c *Cache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return "", generic.ErrCacheMiss
	}
	return v, nil
}

func (c *Cache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *Cache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

// Len reports how many keys are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
