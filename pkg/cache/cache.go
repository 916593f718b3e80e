// Package cache provides a concurrency-safe, TTL-bound store for per-chunk
// enrichment output. The cache is an explicitly constructed object passed by
// reference, never a package-level singleton, so tests can build isolated
// instances.
//
// An optional Badger-backed tier persists entries across runs. Badger access
// goes through a circuit breaker: a backing-store outage degrades to a cache
// miss instead of propagating failure into the pipeline.
package cache

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sony/gobreaker"

	"github.com/panoramicdata/chunkgraph/pkg/types"
)

// DefaultTTL bounds how long enrichment output stays valid when the caller
// does not specify a ttl.
const DefaultTTL = 30 * time.Minute

type entry struct {
	candidates []types.CandidateEntity
	expiresAt  time.Time
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Cache stores per-chunk candidate entities with expiry.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	defaultTTL time.Duration
	hits       atomic.Int64
	misses     atomic.Int64

	backing *badger.DB
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger

	// test hook
	now func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithBackingStore attaches a Badger database as a persistent tier. Entries
// written there carry the same TTL; Badger expires them natively.
func WithBackingStore(db *badger.DB) Option {
	return func(c *Cache) {
		c.backing = db
	}
}

// WithLogger sets the logger used for degraded-mode events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		entries:    make(map[string]entry),
		defaultTTL: ttl,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "enrichment-cache-backing",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.logger.Warn("cache backing store circuit opened, degrading to in-memory only", "breaker", name)
			}
		},
	})
	return c
}

// TryGet returns the cached candidates for key if they have not expired. An
// expired entry found on lookup is removed and reported as a miss. With a
// backing store attached, a memory miss falls through to Badger; any backing
// failure is also a miss.
func (c *Cache) TryGet(key string) ([]types.CandidateEntity, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		if now.Before(e.expiresAt) {
			c.hits.Add(1)
			return e.candidates, true
		}
		c.evictExpired(key, now)
	}

	if candidates, ok := c.tryBacking(key); ok {
		c.hits.Add(1)
		return candidates, true
	}

	c.misses.Add(1)
	return nil, false
}

// evictExpired removes key only if it is still expired under the write lock,
// so two racing readers evict at most once and never drop a fresh overwrite.
func (c *Cache) evictExpired(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && !now.Before(e.expiresAt) {
		delete(c.entries, key)
	}
}

// Set stores candidates for key, unconditionally overwriting any previous
// entry. The value and its expiry are published together; readers never see
// a partially written entry. A non-positive ttl uses the cache default.
func (c *Cache) Set(key string, candidates []types.CandidateEntity, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	e := entry{candidates: candidates, expiresAt: c.now().Add(ttl)}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	c.setBacking(key, candidates, ttl)
}

// Stats returns a snapshot of the hit/miss counters and entry count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: entries,
	}
}

func (c *Cache) tryBacking(key string) ([]types.CandidateEntity, bool) {
	if c.backing == nil {
		return nil, false
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var raw []byte
		err := c.backing.View(func(txn *badger.Txn) error {
			item, err := txn.Get([]byte(key))
			if err == badger.ErrKeyNotFound {
				// Absence is not a backing-store failure.
				return nil
			}
			if err != nil {
				return err
			}
			raw, err = item.ValueCopy(nil)
			return err
		})
		return raw, err
	})
	if err != nil {
		c.logger.Debug("cache backing lookup degraded to miss", "key", key, "error", err)
		return nil, false
	}
	raw, _ := result.([]byte)
	if raw == nil {
		return nil, false
	}

	var candidates []types.CandidateEntity
	if err := json.Unmarshal(raw, &candidates); err != nil {
		c.logger.Debug("cache backing entry undecodable, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return candidates, true
}

func (c *Cache) setBacking(key string, candidates []types.CandidateEntity, ttl time.Duration) {
	if c.backing == nil {
		return
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		raw, err := json.Marshal(candidates)
		if err != nil {
			return nil, err
		}
		return nil, c.backing.Update(func(txn *badger.Txn) error {
			return txn.SetEntry(badger.NewEntry([]byte(key), raw).WithTTL(ttl))
		})
	})
	if err != nil {
		c.logger.Debug("cache backing write skipped", "key", key, "error", err)
	}
}
