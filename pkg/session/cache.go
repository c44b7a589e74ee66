package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/shopdesk/pkg/auth"
)

const (
	// DefaultTTL is how long a resolved context is served from memory.
	DefaultTTL = 5 * time.Minute
	// DefaultMaxEntries bounds memory independent of the sweep.
	DefaultMaxEntries = 10000
)

// Eviction reasons reported to the evictions counter.
const (
	EvictExpired     = "expired"
	EvictSwept       = "swept"
	EvictCapacity    = "capacity"
	EvictInvalidated = "invalidated"
)

type entry struct {
	ctx       *auth.AuthContext
	createdAt time.Time
}

// Cache maps credential fingerprints to resolved contexts for a fixed TTL.
//
// Every operation takes a single mutex, so operations on one key are linearizable.
// Nothing is persisted; a restart starts empty and every miss falls back to full
// resolution.
type Cache struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, entry]

	ttl time.Duration
	now func() time.Time

	lookups   *prometheus.CounterVec
	evictions *prometheus.CounterVec

	hits   atomic.Int64
	misses atomic.Int64

	// reason for the in-flight removal; read by the LRU eviction callback under mu
	evictReason string

	// Invalidation epochs. gen advances on every invalidation; the marker maps
	// record the epoch of invalidations that raced an open Reserve and are reset
	// once no reservation is open.
	gen          uint64
	reserved     map[uint64]int
	clearedAt    uint64
	usersAt      map[string]uint64
	fingerprints map[string]uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets the entry lifetime measured from insertion.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics reports lookups (label "result": hit|miss) and evictions (label "reason").
func WithMetrics(lookups, evictions *prometheus.CounterVec) Option {
	return func(c *Cache) {
		c.lookups = lookups
		c.evictions = evictions
	}
}

// NewCache creates a cache holding at most maxEntries contexts; the least recently
// used entry is dropped when full. maxEntries <= 0 selects DefaultMaxEntries.
func NewCache(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	c := &Cache{
		ttl:          DefaultTTL,
		now:          time.Now,
		reserved:     make(map[uint64]int),
		usersAt:      make(map[string]uint64),
		fingerprints: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}

	l, err := simplelru.NewLRU[string, entry](maxEntries, c.onEvict)
	if err != nil {
		// only returned for a non-positive size, which is excluded above
		panic(err)
	}
	c.lru = l
	return c
}

// onEvict runs inside simplelru while mu is held.
func (c *Cache) onEvict(_ string, _ entry) {
	reason := c.evictReason
	if reason == "" {
		reason = EvictCapacity
	}
	if c.evictions != nil {
		c.evictions.WithLabelValues(reason).Inc()
	}
}

func (c *Cache) removeLocked(key, reason string) bool {
	c.evictReason = reason
	removed := c.lru.Remove(key)
	c.evictReason = ""
	return removed
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return !now.Before(e.createdAt.Add(c.ttl))
}

// Get returns the context for fingerprint if present and younger than the TTL.
// An expired entry is removed and reported as a miss.
func (c *Cache) Get(fingerprint string) (*auth.AuthContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(fingerprint)
	if ok && c.expired(e, c.now()) {
		c.removeLocked(fingerprint, EvictExpired)
		ok = false
	}
	if !ok || e.ctx == nil {
		c.record(false)
		return nil, false
	}
	c.record(true)
	return e.ctx, true
}

func (c *Cache) record(hit bool) {
	result := "miss"
	if hit {
		c.hits.Add(1)
		result = "hit"
	} else {
		c.misses.Add(1)
	}
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// Set stores ctx under fingerprint, replacing any previous entry. Last write wins.
func (c *Cache) Set(fingerprint string, ctx *auth.AuthContext) {
	if ctx == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(fingerprint, entry{ctx: ctx, createdAt: c.now()})
}

// Invalidate removes one entry. It reports whether an entry was present.
func (c *Cache) Invalidate(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if len(c.reserved) > 0 {
		c.fingerprints[fingerprint] = c.gen
	}
	return c.removeLocked(fingerprint, EvictInvalidated)
}

// InvalidateUser removes every entry belonging to userID and returns how many were removed.
// Resolutions for userID reserved before the call are not stored by Commit.
func (c *Cache) InvalidateUser(userID string) int {
	c.mu.Lock()
	c.gen++
	if len(c.reserved) > 0 {
		c.usersAt[userID] = c.gen
	}
	c.mu.Unlock()

	removed := 0
	for _, key := range c.keys() {
		c.mu.Lock()
		if e, ok := c.lru.Peek(key); ok && e.ctx.UserID() == userID {
			if c.removeLocked(key, EvictInvalidated) {
				removed++
			}
		}
		c.mu.Unlock()
	}
	return removed
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if len(c.reserved) > 0 {
		c.clearedAt = c.gen
	}
	c.evictReason = EvictInvalidated
	c.lru.Purge()
	c.evictReason = ""
}

// Reservation is taken before a context is resolved. Every Reservation must be
// passed to Release exactly once.
type Reservation struct {
	epoch uint64
}

// Reserve marks the start of a resolution. Invalidations issued between Reserve
// and Commit prevent the resolved context from being stored.
func (c *Cache) Reserve() Reservation {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reserved[c.gen]++
	return Reservation{epoch: c.gen}
}

// Commit stores ctx under fingerprint unless the fingerprint, the context's user
// or the whole cache was invalidated after r was taken. It reports whether the
// context was stored.
func (c *Cache) Commit(r Reservation, fingerprint string, ctx *auth.AuthContext) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx == nil || c.staleLocked(r, fingerprint, ctx.UserID()) {
		return false
	}
	c.lru.Add(fingerprint, entry{ctx: ctx, createdAt: c.now()})
	return true
}

// Release ends a reservation.
func (c *Cache) Release(r Reservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(r)
}

func (c *Cache) staleLocked(r Reservation, fingerprint, userID string) bool {
	return c.clearedAt > r.epoch ||
		c.usersAt[userID] > r.epoch ||
		c.fingerprints[fingerprint] > r.epoch
}

func (c *Cache) releaseLocked(r Reservation) {
	if n := c.reserved[r.epoch]; n > 1 {
		c.reserved[r.epoch] = n - 1
		return
	}
	delete(c.reserved, r.epoch)
	if len(c.reserved) == 0 {
		c.clearedAt = 0
		clear(c.usersAt)
		clear(c.fingerprints)
	}
}

// Sweep removes expired entries and returns how many were removed. The lock is
// taken once for the key snapshot and then once per entry, so concurrent Get and
// Set calls are never held up for longer than a single removal.
func (c *Cache) Sweep() int {
	removed := 0
	for _, key := range c.keys() {
		c.mu.Lock()
		if e, ok := c.lru.Peek(key); ok && c.expired(e, c.now()) {
			if c.removeLocked(key, EvictSwept) {
				removed++
			}
		}
		c.mu.Unlock()
	}
	return removed
}

func (c *Cache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// Stats returns cache statistics
func (c *Cache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
