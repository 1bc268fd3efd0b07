// Package dircache implements the per-handle bounded, time-expiring
// directory listing cache described in spec.md §4.2.
package dircache

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/moradology/vfscore/fs"
)

// Lookup is the three-way result of _ls_from_cache: a definite listing,
// a definite absence (proof via the parent listing), or "unknown"
// meaning neither the path nor its parent is cached.
type Lookup int

const (
	// Unknown means neither path nor Parent(path) is cached.
	Unknown Lookup = iota
	// Found means path is known: either its own listing (it is a
	// directory) or its entry in the cached parent listing.
	Found
	// NotFound means the parent listing is cached and does not contain
	// path — proof of absence.
	NotFound
)

// entry pairs a listing with its insertion time for size-based (not
// just TTL-based) eviction ordering.
type entry struct {
	listing  fs.Listing
	inserted time.Time
}

// Cache is one filesystem handle's directory cache. Safe for concurrent
// use: the embedded patrickmn/go-cache map guards itself, and mu guards
// the insertion-order bookkeeping (order/orderIndex) that go-cache knows
// nothing about — spec.md §5 requires the directory cache to guard
// concurrent reads/writes, and fs/operations.Cat/Get fan readers and
// writers for the same Handle out across goroutines via errgroup.
type Cache struct {
	enabled    bool
	ttl        time.Duration
	maxPaths   int
	c          *cache.Cache
	mu         sync.Mutex
	order      []string // insertion order, for max_paths eviction
	orderIndex map[string]int
}

// Options configures a Cache at construction.
type Options struct {
	// UseListingsCache disables the cache entirely when false; every
	// lookup then reports Unknown and every Put is a no-op.
	UseListingsCache bool
	// ListingsExpiryTime is the per-entry TTL. Zero means no expiry.
	ListingsExpiryTime time.Duration
	// MaxPaths is the hard cap on cached directories; 0 means unlimited.
	MaxPaths int
}

// New builds a Cache from Options.
func New(opt Options) *Cache {
	ttl := opt.ListingsExpiryTime
	expiry := cache.NoExpiration
	if ttl > 0 {
		expiry = ttl
	}
	return &Cache{
		enabled:    opt.UseListingsCache,
		ttl:        ttl,
		maxPaths:   opt.MaxPaths,
		c:          cache.New(expiry, 0),
		orderIndex: make(map[string]int),
	}
}

// Put records dir's listing, evicting the oldest entry first if
// MaxPaths would otherwise be exceeded.
func (d *Cache) Put(dir string, listing fs.Listing) {
	if !d.enabled {
		return
	}
	d.mu.Lock()
	if _, exists := d.c.Get(dir); !exists {
		if d.maxPaths > 0 && len(d.order) >= d.maxPaths {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.orderIndex, oldest)
			d.c.Delete(oldest)
		}
		d.orderIndex[dir] = len(d.order)
		d.order = append(d.order, dir)
	}
	d.mu.Unlock()

	exp := cache.DefaultExpiration
	if d.ttl <= 0 {
		exp = cache.NoExpiration
	}
	d.c.Set(dir, entry{listing: listing, inserted: time.Now()}, exp)
}

// Get returns the cached listing for dir verbatim and true if present
// and unexpired, else false — no parent-listing inference. Used directly
// by operations.Handle.Ls; higher-level inference lives in LookupEntry.
func (d *Cache) Get(dir string) (fs.Listing, bool) {
	if !d.enabled {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.c.Get(dir)
	if !ok {
		return nil, false
	}
	return v.(entry).listing, true
}

// LookupEntry implements spec.md §4.2's _ls_from_cache: return the
// cached listing for path if present; else consult Parent(path)'s
// cached listing and filter for path. If the parent listing is cached
// and does not contain path, that is proof of absence (NotFound). If
// neither is cached, Unknown.
func (d *Cache) LookupEntry(path, rootMarker string) (fs.FileInfo, Lookup) {
	if !d.enabled {
		return fs.FileInfo{}, Unknown
	}
	if _, ok := d.Get(path); ok {
		return fs.FileInfo{Name: path, Type: fs.TypeDirectory}, Found
	}
	parent := fs.Parent(path, rootMarker)
	parentListing, ok := d.Get(parent)
	if !ok {
		return fs.FileInfo{}, Unknown
	}
	if fi, found := parentListing.ByName(path); found {
		return fi, Found
	}
	return fs.FileInfo{}, NotFound
}

// Invalidate drops dir's cache entry only; cached descendants of dir are
// left in place (the "invalidate_cache(path=None)" case from the
// caller's perspective is modeled as InvalidateAll).
func (d *Cache) Invalidate(dir string) {
	d.c.Delete(dir)
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.orderIndex[dir]; ok {
		d.order = append(d.order[:idx], d.order[idx+1:]...)
		delete(d.orderIndex, dir)
		for k, v := range d.orderIndex {
			if v > idx {
				d.orderIndex[k] = v - 1
			}
		}
	}
}

// InvalidateAll empties the cache entirely — invalidate_cache(None).
func (d *Cache) InvalidateAll() {
	d.c.Flush()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = nil
	d.orderIndex = make(map[string]int)
}

// Len reports the number of cached directory entries, for tests.
func (d *Cache) Len() int {
	return d.c.ItemCount()
}
