// Package cache provides a TTL-keyed article cache. The cache is an
// explicit component owned by the feed session and handed to adapters
// by injection; there is no package-level state.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"driftfeed/internal/model"
)

// Persister is the durable key-value capability the cache writes
// through to. It is satisfied by store.Store; persistence failures are
// tolerated and the cache continues in-memory only.
type Persister interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// entry is one cached response with its expiry policy.
type entry struct {
	Articles []model.Article `json:"articles"`
	SavedAt  time.Time       `json:"saved_at"`
	TTL      time.Duration   `json:"ttl"`
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.SavedAt) > e.TTL
}

// TTL is a mutex-guarded article cache with per-entry time-to-live.
type TTL struct {
	mu      sync.Mutex
	entries map[string]entry
	persist Persister // optional
	now     func() time.Time
}

// New creates a TTL cache. persist may be nil for a purely in-memory
// cache.
func New(persist Persister) *TTL {
	return &TTL{
		entries: make(map[string]entry),
		persist: persist,
		now:     time.Now,
	}
}

// Key builds the canonical cache key for one adapter request shape.
func Key(source, query string, count int) string {
	return fmt.Sprintf("cache:%s:%s:%d", source, query, count)
}

// Get returns the cached articles for key, or ok=false on a miss or an
// expired entry. Expired entries are dropped on access. A cold
// in-memory miss falls back to the persisted copy when one exists.
func (c *TTL) Get(key string) ([]model.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok && c.persist != nil {
		if raw, found, err := c.persist.Get(key); err == nil && found {
			if json.Unmarshal([]byte(raw), &e) == nil {
				c.entries[key] = e
				ok = true
			}
		}
	}
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		if c.persist != nil {
			_ = c.persist.Remove(key)
		}
		return nil, false
	}

	out := make([]model.Article, len(e.Articles))
	copy(out, e.Articles)
	return out, true
}

// Set stores articles under key with the given time-to-live and writes
// through to the persister when one is attached.
func (c *TTL) Set(key string, articles []model.Article, ttl time.Duration) {
	cp := make([]model.Article, len(articles))
	copy(cp, articles)
	e := entry{Articles: cp, SavedAt: c.now(), TTL: ttl}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e

	if c.persist != nil {
		if raw, err := json.Marshal(e); err == nil {
			_ = c.persist.Set(key, string(raw))
		}
	}
}

// Remove drops one key.
func (c *TTL) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	if c.persist != nil {
		_ = c.persist.Remove(key)
	}
}

// PruneExpired drops every expired entry and returns how many were
// removed.
func (c *TTL) PruneExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	pruned := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			if c.persist != nil {
				_ = c.persist.Remove(k)
			}
			pruned++
		}
	}
	return pruned
}

// Len returns the number of live in-memory entries.
func (c *TTL) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
