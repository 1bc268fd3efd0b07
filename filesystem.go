// Package vfscore is the module root: it wires the process-wide
// instance cache (fs/instancecache) into a single factory backends route
// their constructors through, per spec.md §9's "explicit
// get_or_construct(class-id, args, options) factory with a mutex-guarded
// map" recommendation.
package vfscore

import (
	"github.com/moradology/vfscore/fs/instancecache"
	"github.com/moradology/vfscore/fs/operations"
)

// cache is the single process-wide instance cache every backend's Open
// constructor shares, matching spec.md §8's "one cache, shared across
// all filesystem classes that opt in" model.
var cache = instancecache.New(nil)

// CreateFunc constructs a Handle for a cache miss. cacheable mirrors
// instancecache.CreateFunc: some constructions (e.g. a backend reporting
// fs.ErrIsFile alongside a still-usable, parent-rooted handle) are still
// worth caching despite a non-nil error.
type CreateFunc func() (handle *operations.Handle, cacheable bool, err error)

// GetFilesystem returns the cached Handle for the (class, owner, args,
// options) tuple, constructing one via create only on a cache miss.
// class identifies the backend kind (e.g. "memory", "local"); owner is
// the per-goroutine isolation key instancecache.Token accepts (empty
// string is the shared, common case). skipCache bypasses the cache for
// this call only, matching skip_instance_cache in spec.md §6.
func GetFilesystem(class, owner string, args []string, options map[string]string, skipCache bool, create CreateFunc) (*operations.Handle, error) {
	tok := instancecache.Token(class, owner, args, options)
	v, err := cache.GetOrConstruct(tok, skipCache, func() (any, bool, error) {
		h, cacheable, cerr := create()
		return h, cacheable, cerr
	})
	if v == nil {
		return nil, err
	}
	return v.(*operations.Handle), err
}

// ClearCache empties the process-wide instance cache, per spec.md
// §4.3 — callers must invoke this explicitly; the cache strongly
// retains every handle it has built.
func ClearCache() { cache.Clear() }
