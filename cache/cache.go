/*
Package cache provides an explicit read-through cache for the slow-changing
reference data the engine resolves against (employees, locations).

PURPOSE:
  Every fetch needs the employee directory and the location table. Loading
  them from the store on every request is wasteful; hiding them in package
  globals makes them impossible to invalidate. A ReadThrough is constructed
  with its loader and passed to whoever needs it.

BACKENDS:
  - MemoryBackend: per-process map with expiry
  - RedisBackend:  shared across processes via go-redis

SEMANTICS:
  Values are stored as JSON. A backend error never fails a read: the loader
  is called directly and the error is logged. Concurrent misses for the same
  key are coalesced into one load. The shared load is detached from the
  caller that started it and bounded by its own timeout: a cancelled caller
  stops waiting, the others still get the value.
*/
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/warp/meeting-engine/logging"
)

// Backend stores raw bytes under a key with a TTL.
type Backend interface {
	// Get returns ok=false on a miss; err is reserved for backend failures.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// DefaultLoadTimeout bounds one shared load.
const DefaultLoadTimeout = 30 * time.Second

// Loader produces the value on a miss.
type Loader[T any] func(ctx context.Context) (T, error)

type ReadThrough[T any] struct {
	backend     Backend
	key         string
	ttl         time.Duration
	load        Loader[T]
	loadTimeout time.Duration
	log         logging.Logger
	group       singleflight.Group
}

func NewReadThrough[T any](backend Backend, key string, ttl time.Duration, load Loader[T], log logging.Logger) *ReadThrough[T] {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &ReadThrough[T]{
		backend:     backend,
		key:         key,
		ttl:         ttl,
		load:        load,
		loadTimeout: DefaultLoadTimeout,
		log:         log.With(logging.F("cache_key", key)),
	}
}

func (c *ReadThrough[T]) Get(ctx context.Context) (T, error) {
	var zero T

	raw, ok, err := c.backend.Get(ctx, c.key)
	if err != nil {
		c.log.Warn("cache read failed", logging.Err(err))
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.log.Warn("cache entry unreadable, reloading")
	}

	ch := c.group.DoChan(c.key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		loaded, err := c.load(loadCtx)
		if err != nil {
			return nil, err
		}
		if buf, err := json.Marshal(loaded); err != nil {
			c.log.Warn("cache encode failed", logging.Err(err))
		} else if err := c.backend.Set(loadCtx, c.key, buf, c.ttl); err != nil {
			c.log.Warn("cache write failed", logging.Err(err))
		}
		return loaded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, fmt.Errorf("load %s: %w", c.key, res.Err)
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, fmt.Errorf("load %s: %w", c.key, ctx.Err())
	}
}

// Invalidate drops the cached value; the next Get reloads.
func (c *ReadThrough[T]) Invalidate(ctx context.Context) error {
	c.group.Forget(c.key)
	return c.backend.Delete(ctx, c.key)
}
