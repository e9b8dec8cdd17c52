// Package cache implements the in-memory address cache: a size-bounded LRU
// whose entries expire after a fixed TTL.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/statsector/internal/core/model"
)

const (
	DefaultSize = 10000
	DefaultTTL  = 10 * time.Minute
)

type Interface interface {
	Get(key string) (model.GeoPoint, bool)
	Set(key string, p model.GeoPoint)
	Len() int
}

type entry struct {
	point      model.GeoPoint
	insertedAt time.Time
}

// AddressCache guards every operation with one mutex; operations are O(1).
type AddressCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
	now func() time.Time
}

var _ Interface = (*AddressCache)(nil)

type Option func(*AddressCache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *AddressCache) { c.now = now }
}

func New(size int, ttl time.Duration, opts ...Option) *AddressCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, _ := lru.New[string, entry](size)
	c := &AddressCache{lru: l, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns a live entry; an expired one is dropped and reported as a miss.
func (c *AddressCache) Get(key string) (model.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok {
		return model.GeoPoint{}, false
	}
	if c.now().Sub(e.insertedAt) >= c.ttl {
		c.lru.Remove(key)
		return model.GeoPoint{}, false
	}
	return e.point, true
}

// Set inserts or refreshes key with a fresh TTL, evicting the least recently
// used entry when full.
func (c *AddressCache) Set(key string, p model.GeoPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry{point: p, insertedAt: c.now()})
}

func (c *AddressCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
