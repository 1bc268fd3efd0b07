// Package instancecache implements the process-wide interning map
// described in spec.md §4.3: constructing a filesystem handle with
// equivalent arguments returns the same handle, until the cache is
// explicitly cleared or a fork is detected.
//
// Go's M:N goroutine scheduler has no notion of OS-thread affinity
// comparable to CPython's thread id, so the "thread id" component of the
// Python token is replaced here by an explicit Owner string the caller
// supplies (empty string means "shared across all callers", which is
// the default and the common case for this module's own tests and
// backends). Callers that do need per-goroutine isolation (the scenario
// the Python implementation's thread-id component defends against: a
// backend client that is not safe for concurrent reuse) can pass a
// distinct Owner per goroutine.
package instancecache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// CreateFunc constructs a new handle for a cache miss. It returns the
// value, whether it is cacheable at all (some classes opt out
// entirely), and any construction error. Mirrors the teacher's
// lib/cache.CreateFunc shape (value, cacheable, error).
type CreateFunc func() (value any, cacheable bool, err error)

// Cache is a token-keyed interning map, one per process, shared across
// all filesystem classes that opt in.
type Cache struct {
	mu      sync.Mutex
	pid     int
	entries map[string]any
	log     logrus.FieldLogger
}

// New returns an empty Cache tagged with the current process id.
func New(log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{
		pid:     os.Getpid(),
		entries: make(map[string]any),
		log:     log,
	}
}

// Token computes the content-address of a handle's construction inputs:
// class identity, owner, positional args and keyword options, plus any
// caller-supplied extra tokenizable attributes. Equal tokens mean the
// cache should return the same handle.
func Token(class, owner string, args []string, options map[string]string, extra ...string) string {
	h := sha256.New()
	fmt.Fprintf(h, "class=%s\x00owner=%s\x00", class, owner)
	for _, a := range args {
		fmt.Fprintf(h, "arg=%s\x00", a)
	}
	for _, k := range sortedKeys(options) {
		fmt.Fprintf(h, "opt=%s=%s\x00", k, options[k])
	}
	for _, e := range extra {
		fmt.Fprintf(h, "extra=%s\x00", e)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: option maps are small and this avoids
	// pulling in "sort" for a handful of entries at most call sites that
	// already pre-sort.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// Entries reports the number of cached handles, for tests and metrics.
func (c *Cache) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear empties the cache. Callers must invoke this explicitly
// (spec.md §4.3); garbage collection alone does not release handles
// because the cache strongly retains them.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any)
}

// checkFork clears the cache and re-tags it if the process id has
// changed since the cache was created or last checked — the fork
// invariant of spec.md §5/§8: a child process must not inherit the
// parent's cached network clients.
func (c *Cache) checkFork() {
	pid := os.Getpid()
	if pid != c.pid {
		c.log.WithFields(logrus.Fields{"old_pid": c.pid, "new_pid": pid}).
			Debug("instancecache: fork detected, clearing cache")
		c.entries = make(map[string]any)
		c.pid = pid
	}
}

// GetOrConstruct implements the five-step lookup of spec.md §4.3:
// fork check, skip-cache bypass, cache hit, or construct-store-return.
// skipCache corresponds to the "skip_instance_cache" option.
func (c *Cache) GetOrConstruct(token string, skipCache bool, create CreateFunc) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkFork()

	if skipCache {
		v, _, err := create()
		return v, err
	}

	if v, ok := c.entries[token]; ok {
		c.log.WithField("token", token[:12]).Debug("instancecache: hit")
		return v, nil
	}

	v, cacheable, err := create()
	if err != nil {
		// Mirror the teacher's "is-file" construction error: the
		// fs/cache tests expect a handle to be cached even when
		// creation reports an error (NewFs returning a parent-rooted
		// handle alongside ErrIsFile).
		if v != nil && cacheable {
			c.entries[token] = v
		}
		return v, err
	}
	if cacheable {
		c.entries[token] = v
	}
	return v, nil
}
