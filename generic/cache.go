/*
cache.go - Read-mostly key/value cache contract

PURPOSE:
  Computed balances are cheap to recompute but read on every page view, so
  the engine keeps them in a cache. The cache is an optimization only: a
  failing cache must never block a calculation.

CONTRACT:
  - Values are strings, keys are namespaced by the caller
  - No TTL: an entry stays authoritative until it is deleted
  - Invalidation is the writer's job (whoever mutates entries calls Delete)
  - Concurrent Sets for the same key are last-write-wins

IMPLEMENTATIONS:
  - store/memory: in-process map
  - store/redis: go-redis backed, shared between instances

SEE ALSO:
  - tracker/engine.go: read-through usage and Invalidate
*/
package generic

import "context"

type Cache interface {
	// Get returns ErrCacheMiss when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value with no expiry.
	Set(ctx context.Context, key, value string) error

	// Delete removes keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// NopCache never stores anything. Every Get is a miss.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (string, error)   { return "", ErrCacheMiss }
func (NopCache) Set(context.Context, string, string) error     { return nil }
func (NopCache) Delete(context.Context, ...string) error       { return nil }
