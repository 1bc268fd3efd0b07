package bfile

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// fetchFunc is the backend's narrow read primitive, bound to one path.
type fetchFunc func(ctx context.Context, start, end int64) ([]byte, error)

// readCache is the "byte-range provider" trait of spec.md §9: the
// BufferedFile holds exactly one variant and delegates reads to it.
type readCache interface {
	// read returns exactly end-start bytes covering [start, end), end
	// already clamped to the file size by the caller.
	read(ctx context.Context, start, end int64) ([]byte, error)
}

func newReadCache(kind CacheType, blocksize, size int64, fetch fetchFunc) readCache {
	switch kind {
	case CacheNone:
		return &noneCache{fetch: fetch}
	case CacheBlock:
		return newBlockCache(blocksize, size, fetch)
	case CacheBytes:
		return &bytesCache{fetch: fetch}
	default:
		return &readaheadCache{blocksize: blocksize, size: size, fetch: fetch}
	}
}

// readaheadCache fetches [p, p+blocksize) on a miss and serves
// subsequent sequential reads from the same window, extending forward
// as the caller advances past it.
type readaheadCache struct {
	blocksize  int64
	size       int64
	fetch      fetchFunc
	start, end int64
	data       []byte
}

func (c *readaheadCache) read(ctx context.Context, start, end int64) ([]byte, error) {
	if c.data != nil && start >= c.start && end <= c.end {
		return c.data[start-c.start : end-c.start], nil
	}
	fetchEnd := start + c.blocksize
	if fetchEnd < end {
		fetchEnd = end
	}
	if fetchEnd > c.size {
		fetchEnd = c.size
	}
	data, err := c.fetch(ctx, start, fetchEnd)
	if err != nil {
		return nil, err
	}
	c.start, c.end, c.data = start, start+int64(len(data)), data
	upper := end - start
	if upper > int64(len(data)) {
		upper = int64(len(data))
	}
	return data[:upper], nil
}

// noneCache performs a direct backend call for exactly the requested
// bytes on every read; no state is retained between calls.
type noneCache struct {
	fetch fetchFunc
}

func (c *noneCache) read(ctx context.Context, start, end int64) ([]byte, error) {
	return c.fetch(ctx, start, end)
}

// bytesCache maintains a single contiguous window [start, end),
// resized (not necessarily block-aligned) on demand to cover whatever
// range was last requested.
type bytesCache struct {
	fetch      fetchFunc
	start, end int64
	data       []byte
}

func (c *bytesCache) read(ctx context.Context, start, end int64) ([]byte, error) {
	if c.data != nil && start >= c.start && end <= c.end {
		return c.data[start-c.start : end-c.start], nil
	}
	data, err := c.fetch(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.start, c.end, c.data = start, end, data
	return data, nil
}

// blockCache (the spec's "mmap-like" strategy) maintains a bounded set
// of fixed-size, block-size-aligned windows fetched lazily, with
// least-recently-used eviction once the resident block count exceeds a
// cap — grounded on the hashicorp/golang-lru eviction shape used by the
// rest of the pack's multi-level object-storage caches.
type blockCache struct {
	blocksize int64
	size      int64
	fetch     fetchFunc
	blocks    *lru.Cache[int64, []byte]
}

const defaultResidentBlocks = 32

func newBlockCache(blocksize, size int64, fetch fetchFunc) *blockCache {
	blocks, _ := lru.New[int64, []byte](defaultResidentBlocks)
	return &blockCache{blocksize: blocksize, size: size, fetch: fetch, blocks: blocks}
}

func (c *blockCache) read(ctx context.Context, start, end int64) ([]byte, error) {
	out := make([]byte, 0, end-start)
	for pos := start; pos < end; {
		blockIdx := pos / c.blocksize
		blockStart := blockIdx * c.blocksize
		blockEnd := blockStart + c.blocksize
		if blockEnd > c.size {
			blockEnd = c.size
		}
		data, ok := c.blocks.Get(blockIdx)
		if !ok {
			fetched, err := c.fetch(ctx, blockStart, blockEnd)
			if err != nil {
				return nil, err
			}
			data = fetched
			c.blocks.Add(blockIdx, data)
		}
		lo := pos - blockStart
		hi := end - blockStart
		if hi > int64(len(data)) {
			hi = int64(len(data))
		}
		if lo > hi {
			break
		}
		out = append(out, data[lo:hi]...)
		pos = blockEnd
	}
	return out, nil
}
