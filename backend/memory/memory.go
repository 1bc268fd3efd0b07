// Package memory provides an in-memory backend for the virtual
// filesystem core: every object lives in a process-persistent map, so
// it is useful for tests and for short-lived scratch data that does not
// need to survive a restart.
package memory

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/moradology/vfscore"
	"github.com/moradology/vfscore/fs"
	"github.com/moradology/vfscore/fs/operations"
)

// objectData is the stored payload and metadata for one path.
type objectData struct {
	modTime time.Time
	hash    string
	data    []byte
}

// store is the process-persistent object table, keyed by full path.
// Persistent across Backend instances within one process, mirroring the
// teacher's package-level bucket map — an in-memory backend that forgot
// its own data across Open calls within the same run would be useless
// for the instance-cache reuse scenarios the core exercises.
type store struct {
	mu      sync.RWMutex
	objects map[string]*objectData
}

var global = &store{objects: make(map[string]*objectData, 64)}

func (s *store) get(path string) *objectData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[path]
}

func (s *store) set(path string, od *objectData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = od
}

func (s *store) remove(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return false
	}
	delete(s.objects, path)
	return true
}

func (s *store) listPrefix(prefix string) map[string]*objectData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*objectData)
	for p, od := range s.objects {
		if strings.HasPrefix(p, prefix) {
			out[p] = od
		}
	}
	return out
}

// staged tracks in-flight multipart uploads by location id.
type staged struct {
	mu   sync.Mutex
	data map[string][]byte
}

// Backend is an in-memory filesystem. root is a path prefix every
// operation is implicitly joined under, matching the root-narrowing
// behavior of spec.md's constructor.
type Backend struct {
	root   string
	staged *staged
}

// New constructs a memory Backend rooted at root ("" for the whole
// process-wide store).
func New(root string) *Backend {
	return &Backend{
		root:   strings.Trim(root, "/"),
		staged: &staged{data: make(map[string][]byte)},
	}
}

// Open returns the process-wide cached operations.Handle for a memory
// Backend rooted at root, constructing one only on a cache miss —
// spec.md §4.3's instance-cache idempotence, routed through
// vfscore.GetFilesystem rather than calling New/operations.New directly.
func Open(root string, opt operations.HandleOptions) (*operations.Handle, error) {
	return vfscore.GetFilesystem("memory", "", []string{root}, nil, false,
		func() (*operations.Handle, bool, error) {
			return operations.New(New(root), "memory:"+root, opt), true, nil
		})
}

func (b *Backend) full(path string) string {
	path = strings.Trim(path, "/")
	if b.root == "" {
		return "/" + path
	}
	if path == "" {
		return "/" + b.root
	}
	return "/" + b.root + "/" + path
}

// Protocol identifies this backend's scheme.
func (b *Backend) Protocol() []string { return []string{"memory"} }

// RootMarker is the absolute root of the canonical path model.
func (b *Backend) RootMarker() string { return "/" }

// Sep is always "/".
func (b *Backend) Sep() string { return "/" }

// Blocksize is the default chunk size used by BufferedFile when the
// caller does not override it.
func (b *Backend) Blocksize() int64 { return 5 * 1 << 20 }

// canonicalize normalizes path into this module's canonical absolute
// form ("/" or "/a/b", no trailing slash) — the path space Handle and
// fs/dircache reason about, distinct from the root-prefixed storage key
// space b.full produces.
func canonicalize(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path
}

// joinCanon appends name to a canonical base path.
func joinCanon(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// Ls lists path's immediate children. Directories are synthesized from
// the keys present under path since the store holds only leaf objects.
// Returned names are in canonical space, not the root-prefixed storage
// key space — the backend's root narrowing stays an internal storage
// detail invisible to callers.
func (b *Backend) Ls(ctx context.Context, path string, detail bool) (fs.Listing, error) {
	canon := canonicalize(path)
	full := b.full(canon)
	prefix := full
	if full != "/" {
		prefix = full + "/"
	}

	matches := global.listPrefix(prefix)
	if len(matches) == 0 {
		if global.get(full) != nil {
			return nil, fs.ErrNotADirectory
		}
		return nil, fs.ErrNotFound
	}

	dirs := map[string]bool{}
	var out fs.Listing
	for p, od := range matches {
		rest := strings.TrimPrefix(p, prefix)
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			name := joinCanon(canon, rest[:idx])
			if !dirs[name] {
				dirs[name] = true
				out = append(out, fs.FileInfo{Name: name, Type: fs.TypeDirectory})
			}
			continue
		}
		out = append(out, fs.FileInfo{
			Name: joinCanon(canon, rest),
			Type: fs.TypeFile,
			Size: int64(len(od.data)),
			Extra: map[string]any{
				"mtime": od.modTime,
			},
		})
	}
	return out, nil
}

// FetchRange returns bytes [start, end) of path, clamping end to the
// object's size.
func (b *Backend) FetchRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	od := global.get(b.full(path))
	if od == nil {
		return nil, fs.ErrNotFound
	}
	if start > int64(len(od.data)) {
		start = int64(len(od.data))
	}
	if end > int64(len(od.data)) {
		end = int64(len(od.data))
	}
	if end < start {
		end = start
	}
	out := make([]byte, end-start)
	copy(out, od.data[start:end])
	return out, nil
}

// InitiateUpload begins a staged upload for path, returning a location
// keyed off the path itself (the store has no concept of concurrent
// uploads to the same path racing, matching the original's single
// writer per open file model).
func (b *Backend) InitiateUpload(ctx context.Context, path string) (string, error) {
	loc := b.full(path)
	b.staged.mu.Lock()
	b.staged.data[loc] = nil
	b.staged.mu.Unlock()
	return loc, nil
}

// UploadChunk appends data to the staged upload at location, committing
// it to the store once final is true.
func (b *Backend) UploadChunk(ctx context.Context, path, location string, data []byte, final bool) (bool, error) {
	b.staged.mu.Lock()
	b.staged.data[location] = append(b.staged.data[location], data...)
	buf := b.staged.data[location]
	b.staged.mu.Unlock()

	if final {
		full := b.full(path)
		existing := global.get(full)
		modTime := time.Now()
		if existing != nil {
			modTime = existing.modTime
		}
		global.set(full, &objectData{data: append([]byte{}, buf...), modTime: modTime})
		b.staged.mu.Lock()
		delete(b.staged.data, location)
		b.staged.mu.Unlock()
	}
	return true, nil
}

// CommitUpload is a no-op: UploadChunk already wrote the final object
// directly into the store, so there is nothing left to finalize when an
// enclosing transaction commits.
func (b *Backend) CommitUpload(ctx context.Context, path, location string) error { return nil }

// DiscardUpload drops a staged-but-uncommitted chunk buffer. If the
// upload already reached its final chunk the object is already live in
// the store; only an in-flight (non-final) buffer is discarded here.
func (b *Backend) DiscardUpload(ctx context.Context, path, location string) error {
	b.staged.mu.Lock()
	delete(b.staged.data, location)
	b.staged.mu.Unlock()
	return nil
}

// RmFile deletes path.
func (b *Backend) RmFile(ctx context.Context, path string) error {
	if !global.remove(b.full(path)) {
		return fs.ErrNotFound
	}
	return nil
}

// Rmdir removes an empty directory. Since directories are synthesized
// from object key prefixes there is nothing to delete once no object
// remains beneath it; Rmdir only validates that precondition.
func (b *Backend) Rmdir(ctx context.Context, path string) error {
	full := b.full(path)
	prefix := full + "/"
	if len(global.listPrefix(prefix)) > 0 {
		return fs.ErrDirectoryNotEmpty
	}
	return nil
}

// CpFile duplicates src's object data to dst within this store.
func (b *Backend) CpFile(ctx context.Context, src, dst string) error {
	od := global.get(b.full(src))
	if od == nil {
		return fs.ErrNotFound
	}
	odCopy := *od
	odCopy.data = append([]byte{}, od.data...)
	global.set(b.full(dst), &odCopy)
	return nil
}

// Checksum returns the MD5 hex digest of path's content, computing and
// caching it on first request.
func (b *Backend) Checksum(ctx context.Context, path string) (string, error) {
	od := global.get(b.full(path))
	if od == nil {
		return "", fs.ErrNotFound
	}
	if od.hash == "" {
		sum := md5.Sum(od.data)
		od.hash = hex.EncodeToString(sum[:])
	}
	return od.hash, nil
}

// Touch creates a zero-length object at path if absent.
func (b *Backend) Touch(ctx context.Context, path string) error {
	full := b.full(path)
	if global.get(full) == nil {
		global.set(full, &objectData{modTime: time.Now()})
	}
	return nil
}

// String identifies this backend for logging.
func (b *Backend) String() string {
	return fmt.Sprintf("memory root '%s'", b.root)
}

// BucketBased reports that this backend synthesizes directories from
// object-key prefixes rather than storing them as real filesystem nodes,
// satisfying fs.Bucketer.
func (b *Backend) BucketBased() bool { return true }
