// Copyright 2025 The A2E Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache memoizes operation results keyed by a fingerprint of the
// operation kind and its resolved configuration. Entries expire on per-kind
// TTLs and the least recently used entry is evicted at capacity.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the cache.
type Config struct {
	// MaxEntries caps the cache size; 0 disables caching entirely.
	MaxEntries int `koanf:"max_entries"`
	// TTLs maps operation kinds to their freshness window in seconds.
	// A kind with TTL 0 (or absent) is never cached.
	TTLs map[string]int `koanf:"ttls"`
}

// DefaultConfig returns the standard cache policy: read-only operations
// cache briefly, side-effecting and flow-control kinds never cache.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 1000,
		TTLs: map[string]int{
			"ApiCall":       300,
			"FilterData":    60,
			"TransformData": 60,
			"MergeData":     60,
		},
	}
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type entry struct {
	key       string
	opID      string
	kind      string
	value     any
	expiresAt time.Time
}

// Cache is an LRU with per-kind TTLs. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	cfg     Config
	order   *list.List // front = most recently used
	entries map[string]*list.Element
	now     func() time.Time

	hits      int64
	misses    int64
	evictions int64

	hitCounter  prometheus.Counter
	missCounter prometheus.Counter
	evictGauge  prometheus.Counter
}

// New creates a cache. reg may be nil to skip metric registration.
func New(cfg Config, reg prometheus.Registerer) *Cache {
	c := &Cache{
		cfg:     cfg,
		order:   list.New(),
		entries: map[string]*list.Element{},
		now:     time.Now,
		hitCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2e_cache_hits_total", Help: "Cache hits.",
		}),
		missCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2e_cache_misses_total", Help: "Cache misses.",
		}),
		evictGauge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "a2e_cache_evictions_total", Help: "Cache evictions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(c.hitCounter, c.missCounter, c.evictGauge)
	}
	return c
}

// TTLFor returns the freshness window for an operation kind.
func (c *Cache) TTLFor(kind string) time.Duration {
	return time.Duration(c.cfg.TTLs[kind]) * time.Second
}

// Fingerprint derives a stable key from the operation kind and its resolved
// configuration. Equal configurations always produce equal keys.
func Fingerprint(kind string, config map[string]any) string {
	payload, _ := json.Marshal(map[string]any{"kind": kind, "config": config})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key when present and fresh.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.missCounter.Inc()
		return nil, false
	}
	e := el.Value.(*entry)
	if c.now().After(e.expiresAt) {
		c.remove(el)
		c.misses++
		c.missCounter.Inc()
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	c.hitCounter.Inc()
	return e.value, true
}

// Put stores a value for key, attributed to the producing operation id.
// Kinds with no TTL are not stored.
func (c *Cache) Put(key, opID, kind string, value any) {
	ttl := c.TTLFor(kind)
	if ttl <= 0 || c.cfg.MaxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.opID = opID
		e.kind = kind
		e.expiresAt = c.now().Add(ttl)
		c.order.MoveToFront(el)
		return
	}

	for len(c.entries) >= c.cfg.MaxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
		c.evictions++
		c.evictGauge.Inc()
	}

	el := c.order.PushFront(&entry{
		key:       key,
		opID:      opID,
		kind:      kind,
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
	c.entries[key] = el
}

// Invalidate drops entries attributed to opID, or every entry when opID is
// empty. Returns the number of entries removed.
func (c *Cache) Invalidate(opID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if opID == "" {
		n := len(c.entries)
		c.order.Init()
		c.entries = map[string]*list.Element{}
		return n
	}

	return c.sweep(func(e *entry) bool { return e.opID == opID })
}

// InvalidateKind drops every entry produced by the given operation kind.
// Returns the number of entries removed.
func (c *Cache) InvalidateKind(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(func(e *entry) bool { return e.kind == kind })
}

// InvalidateMatching drops entries whose operation id or key contains the
// substring. Returns the number of entries removed.
func (c *Cache) InvalidateMatching(substr string) int {
	if substr == "" {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweep(func(e *entry) bool {
		return strings.Contains(e.opID, substr) || strings.Contains(e.key, substr)
	})
}

// sweep must be called with the lock held.
func (c *Cache) sweep(match func(*entry) bool) int {
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*entry)) {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// Stats returns a snapshot of cache effectiveness counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Size:      len(c.entries),
		MaxSize:   c.cfg.MaxEntries,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	return st
}

// remove must be called with the lock held.
func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
}
