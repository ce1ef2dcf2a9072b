package realtime

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/flowstate/agency/internal/domain/realtime"
	"golang.org/x/sync/singleflight"
)

// QueryKey identifies a cached query result. An empty ID is kind-wide: the list query
// of a kind, or a named View over all of its records such as a count.
type QueryKey struct {
	Scope string
	Kind  realtime.QueryKind
	ID    string
	View  string
}

func (k QueryKey) String() string {
	return k.Scope + "/" + string(k.Kind) + "/" + k.ID + "#" + k.View
}

func (k QueryKey) kindWide() bool {
	return k.ID == ""
}

// FetchFunc loads a query result from the persistence collaborator
type FetchFunc func(ctx context.Context) (any, error)

type cacheEntry struct {
	value     any
	hasValue  bool
	stale     bool
	fetchedAt time.Time
	// gen increments on every invalidation so fetches that raced one are stored stale
	gen uint64
}

// QueryCache memoizes query results until they are marked stale or expire.
// Concurrent reads of a stale or missing key share a single fetch.
type QueryCache struct {
	mu      sync.Mutex
	entries map[QueryKey]*cacheEntry
	group   singleflight.Group
	ttl     time.Duration
	now     func() time.Time
}

// QueryCacheOption configures a QueryCache
type QueryCacheOption func(*QueryCache)

// WithTTL expires entries after ttl even without an invalidation. Zero disables expiry.
func WithTTL(ttl time.Duration) QueryCacheOption {
	return func(c *QueryCache) {
		c.ttl = ttl
	}
}

// WithCacheClock overrides the time source
func WithCacheClock(now func() time.Time) QueryCacheOption {
	return func(c *QueryCache) {
		c.now = now
	}
}

// NewQueryCache creates an empty cache
func NewQueryCache(opts ...QueryCacheOption) *QueryCache {
	c := &QueryCache{
		entries: make(map[QueryKey]*cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value of key, calling fetch when the entry is missing, stale or expired
func (c *QueryCache) Get(ctx context.Context, key QueryKey, fetch FetchFunc) (any, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && c.fresh(e) {
		v := e.value
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		c.mu.Lock()
		e, ok := c.entries[key]
		if !ok {
			e = &cacheEntry{}
			c.entries[key] = e
		} else if c.fresh(e) {
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		startGen := e.gen
		c.mu.Unlock()

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// the entry may have been purged while fetching
		if cur, ok := c.entries[key]; ok && cur == e {
			e.value = value
			e.hasValue = true
			e.fetchedAt = c.now()
			e.stale = e.gen != startGen
		}
		c.mu.Unlock()
		return value, nil
	})
	return v, err
}

func (c *QueryCache) fresh(e *cacheEntry) bool {
	if !e.hasValue || e.stale {
		return false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return false
	}
	return true
}

// MarkStale invalidates cached results of kind in scope. With an id it marks that record's
// entry and every kind-wide entry (the list and views such as counts); without one it marks
// every entry of the kind. Entries of kinds derived from kind are marked as a whole.
// It returns how many entries went from fresh to stale, so repeating a call returns 0.
func (c *QueryCache) MarkStale(scope string, kind realtime.QueryKind, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	derived := kind.Derived()
	marked := 0
	for k, e := range c.entries {
		if k.Scope != scope || !affected(k, kind, id, derived) {
			continue
		}
		e.gen++
		if e.hasValue && !e.stale {
			e.stale = true
			marked++
		}
	}
	return marked
}

func affected(k QueryKey, kind realtime.QueryKind, id string, derived []realtime.QueryKind) bool {
	if k.Kind == kind {
		return id == "" || k.kindWide() || k.ID == id
	}
	return slices.Contains(derived, k.Kind)
}

// IsStale reports whether key holds a value that must be re-fetched
func (c *QueryCache) IsStale(key QueryKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && e.hasValue && e.stale
}

// Purge drops every entry of scope
func (c *QueryCache) Purge(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.Scope == scope {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of cached entries
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
