package dircache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/moradology/vfscore/fs"
	"github.com/stretchr/testify/assert"
)

func listingA() fs.Listing {
	return fs.Listing{
		{Name: "/a/b", Type: fs.TypeDirectory},
		{Name: "/a/e.txt", Type: fs.TypeFile, Size: 3},
	}
}

func TestPutGet(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	d.Put("/a", listingA())

	l, ok := d.Get("/a")
	assert.True(t, ok)
	assert.Len(t, l, 2)
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	d := New(Options{UseListingsCache: false})
	d.Put("/a", listingA())
	_, ok := d.Get("/a")
	assert.False(t, ok)
}

func TestLookupEntryFoundViaParent(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	d.Put("/a", listingA())

	fi, status := d.LookupEntry("/a/e.txt", "")
	assert.Equal(t, Found, status)
	assert.Equal(t, int64(3), fi.Size)
}

func TestLookupEntryNotFoundProvenByParent(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	d.Put("/a", listingA())

	_, status := d.LookupEntry("/a/missing.txt", "")
	assert.Equal(t, NotFound, status)
}

func TestLookupEntryUnknownWhenNeitherCached(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	_, status := d.LookupEntry("/z/missing.txt", "")
	assert.Equal(t, Unknown, status)
}

func TestMaxPathsEvictsOldest(t *testing.T) {
	d := New(Options{UseListingsCache: true, MaxPaths: 2})
	d.Put("/a", listingA())
	d.Put("/b", listingA())
	d.Put("/c", listingA())

	_, ok := d.Get("/a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = d.Get("/c")
	assert.True(t, ok)
}

func TestExpiryTime(t *testing.T) {
	d := New(Options{UseListingsCache: true, ListingsExpiryTime: 10 * time.Millisecond})
	d.Put("/a", listingA())
	time.Sleep(30 * time.Millisecond)

	_, ok := d.Get("/a")
	assert.False(t, ok, "entry older than TTL must be treated as absent")
}

func TestInvalidate(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	d.Put("/a", listingA())
	d.Invalidate("/a")
	_, ok := d.Get("/a")
	assert.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	d := New(Options{UseListingsCache: true})
	d.Put("/a", listingA())
	d.Put("/b", listingA())
	d.InvalidateAll()
	assert.Equal(t, 0, d.Len())
}

// TestConcurrentPutGetInvalidate exercises Put/Get/Invalidate from many
// goroutines at once — the shape fs/operations.Cat and .Get fan out into
// via errgroup against one shared Handle — so that order/orderIndex's
// mutex actually has to do its job under `go test -race`.
func TestConcurrentPutGetInvalidate(t *testing.T) {
	d := New(Options{UseListingsCache: true, MaxPaths: 16})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			dir := fmt.Sprintf("/dir%d", i)
			d.Put(dir, listingA())
			d.Get(dir)
			d.LookupEntry(dir+"/e.txt", "")
			d.Invalidate(dir)
		}()
	}
	wg.Wait()
}
