// Package local provides a filesystem interface backed by the real
// local disk: every canonical path is joined under a root directory and
// translated to an OS path before touching the filesystem.
package local

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moradology/vfscore"
	"github.com/moradology/vfscore/fs"
	"github.com/moradology/vfscore/fs/operations"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// pending tracks an in-flight chunked upload: an open temp file next to
// its eventual destination, renamed into place on the final chunk.
type pending struct {
	mu    sync.Mutex
	files map[string]*os.File // location -> open temp file
	dests map[string]string   // location -> final OS destination path
}

// Backend is a local-disk filesystem. root is the OS directory every
// canonical path is joined under.
type Backend struct {
	root string
	log  logrus.FieldLogger

	pending *pending
}

// New constructs a Backend rooted at root. If root names a regular
// file rather than a directory, the returned Backend is rooted at the
// file's parent and fs.ErrIsFile is returned alongside it, mirroring
// the teacher's "point a remote at a bare file" convenience.
func New(root string) (*Backend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "local: resolve root")
	}
	b := &Backend{
		root: abs,
		log:  logrus.StandardLogger(),
		pending: &pending{
			files: make(map[string]*os.File),
			dests: make(map[string]string),
		},
	}
	fi, err := os.Stat(abs)
	if err == nil && !fi.IsDir() {
		b.root = filepath.Dir(abs)
		return b, fs.ErrIsFile
	}
	return b, nil
}

// Open returns the process-wide cached operations.Handle for a local
// Backend rooted at root, constructing one only on a cache miss —
// spec.md §4.3's instance-cache idempotence, routed through
// vfscore.GetFilesystem rather than calling New/operations.New directly.
// root is resolved to its absolute path before tokenization so that
// "." and its absolute equivalent collide on the same cache entry.
func Open(root string, opt operations.HandleOptions) (*operations.Handle, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "local: resolve root")
	}
	return vfscore.GetFilesystem("local", "", []string{abs}, nil, false,
		func() (*operations.Handle, bool, error) {
			b, err := New(abs)
			if err != nil && !errors.Is(err, fs.ErrIsFile) {
				return nil, false, err
			}
			// A bare-file root still yields a usable, parent-rooted
			// handle alongside fs.ErrIsFile; cache it anyway, mirroring
			// the teacher's NewFs convenience (see fs/instancecache).
			return operations.New(b, "local:"+abs, opt), true, err
		})
}

// full translates a canonical path ("/a/b") into an OS path under root.
func (b *Backend) full(path string) string {
	rel := strings.TrimPrefix(path, "/")
	return filepath.Join(b.root, filepath.FromSlash(rel))
}

// canonicalize normalizes path into "/" or "/a/b" form, mirroring
// backend/memory's convention: the backend's root narrowing is a
// storage-key (here, OS-path) detail that must never leak into the
// canonical Name values callers see.
func canonicalize(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "/"
	}
	return "/" + path
}

func joinCanon(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// Protocol identifies this backend's scheme.
func (b *Backend) Protocol() []string { return []string{"local", "file"} }

// RootMarker is the absolute root of the canonical path model.
func (b *Backend) RootMarker() string { return "/" }

// Sep is always "/".
func (b *Backend) Sep() string { return "/" }

// Blocksize is the default chunk size used when streaming uploads.
func (b *Backend) Blocksize() int64 { return 5 * 1 << 20 }

// Ls lists path's immediate children, reading directory entry names
// first and Lstat-ing each individually so one unreadable entry (a
// permission-denied file, a removed-during-listing race) logs a warning
// and is skipped rather than failing the whole listing.
func (b *Backend) Ls(ctx context.Context, path string, detail bool) (fs.Listing, error) {
	canon := canonicalize(path)
	dirPath := b.full(canon)

	fi, err := os.Stat(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fs.ErrNotFound
		}
		return nil, errors.Wrap(err, "local: stat")
	}
	if !fi.IsDir() {
		return nil, fs.ErrNotADirectory
	}

	names, err := readDirNames(dirPath)
	if err != nil {
		return nil, errors.Wrap(err, "local: read dir")
	}

	out := make(fs.Listing, 0, len(names))
	for _, name := range names {
		entryPath := filepath.Join(dirPath, name)
		entryInfo, err := os.Lstat(entryPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			b.log.WithError(err).Warnf("local: skipping unreadable entry %s", entryPath)
			continue
		}
		canonName := joinCanon(canon, name)
		if entryInfo.IsDir() {
			out = append(out, fs.FileInfo{Name: canonName, Type: fs.TypeDirectory, Size: -1})
			continue
		}
		out = append(out, fs.FileInfo{
			Name: canonName,
			Type: fs.TypeFile,
			Size: entryInfo.Size(),
			Extra: map[string]any{
				"mtime": entryInfo.ModTime(),
				"mode":  entryInfo.Mode().String(),
			},
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// readDirNames reads a directory's entry names without retaining open
// file descriptors past the read, matching the teacher's
// Readdirnames-then-stat-individually two-pass approach.
func readDirNames(dirPath string) ([]string, error) {
	fd, err := os.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return fd.Readdirnames(-1)
}

// Stat answers Info directly via a single os.Stat, sparing the core an
// Ls-the-parent-and-filter round trip.
func (b *Backend) Stat(ctx context.Context, path string) (fs.FileInfo, error) {
	canon := canonicalize(path)
	osPath := b.full(canon)
	fi, err := os.Stat(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs.FileInfo{}, fs.ErrNotFound
		}
		return fs.FileInfo{}, errors.Wrap(err, "local: stat")
	}
	if fi.IsDir() {
		return fs.FileInfo{Name: canon, Type: fs.TypeDirectory, Size: -1}, nil
	}
	return fs.FileInfo{
		Name: canon,
		Type: fs.TypeFile,
		Size: fi.Size(),
		Extra: map[string]any{
			"mtime": fi.ModTime(),
			"mode":  fi.Mode().String(),
		},
	}, nil
}

// FetchRange returns bytes [start, end) of path, clamping end to the
// file's actual size.
func (b *Backend) FetchRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	osPath := b.full(path)
	f, err := os.Open(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fs.ErrNotFound
		}
		return nil, errors.Wrap(err, "local: open")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "local: stat")
	}
	if start > fi.Size() {
		start = fi.Size()
	}
	if end > fi.Size() {
		end = fi.Size()
	}
	if end < start {
		end = start
	}
	out := make([]byte, end-start)
	if _, err := f.ReadAt(out, start); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "local: read")
	}
	return out, nil
}

// mkdirAllFor creates the OS directory hierarchy for a destination file.
func mkdirAllFor(osPath string) error {
	return os.MkdirAll(filepath.Dir(osPath), 0o777)
}

// InitiateUpload opens a temp file beside path's eventual destination,
// so the final rename is same-filesystem and therefore atomic.
func (b *Backend) InitiateUpload(ctx context.Context, path string) (string, error) {
	dest := b.full(path)
	if err := mkdirAllFor(dest); err != nil {
		return "", errors.Wrap(err, "local: mkdir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".vfscore-upload-*")
	if err != nil {
		return "", errors.Wrap(err, "local: create temp")
	}
	location := uuid.NewString()

	b.pending.mu.Lock()
	b.pending.files[location] = tmp
	b.pending.dests[location] = dest
	b.pending.mu.Unlock()

	return location, nil
}

// UploadChunk writes data to the temp file backing location, renaming
// it into place once final is true.
func (b *Backend) UploadChunk(ctx context.Context, path, location string, data []byte, final bool) (bool, error) {
	b.pending.mu.Lock()
	tmp, ok := b.pending.files[location]
	dest := b.pending.dests[location]
	b.pending.mu.Unlock()
	if !ok {
		return false, errors.New("local: unknown upload location")
	}

	if _, err := tmp.Write(data); err != nil {
		return false, errors.Wrap(err, "local: write chunk")
	}

	if final {
		if err := tmp.Close(); err != nil {
			return false, errors.Wrap(err, "local: close temp")
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			_ = os.Remove(tmp.Name())
			return false, errors.Wrap(err, "local: rename into place")
		}
		b.pending.mu.Lock()
		delete(b.pending.files, location)
		delete(b.pending.dests, location)
		b.pending.mu.Unlock()
	}
	return true, nil
}

// CommitUpload is a no-op: UploadChunk already renamed the temp file
// into its final destination on the last chunk.
func (b *Backend) CommitUpload(ctx context.Context, path, location string) error { return nil }

// DiscardUpload removes the temp file backing an abandoned upload.
func (b *Backend) DiscardUpload(ctx context.Context, path, location string) error {
	b.pending.mu.Lock()
	tmp, ok := b.pending.files[location]
	delete(b.pending.files, location)
	delete(b.pending.dests, location)
	b.pending.mu.Unlock()
	if !ok {
		return nil
	}
	name := tmp.Name()
	_ = tmp.Close()
	return os.Remove(name)
}

// Mkdir creates path and any missing parents.
func (b *Backend) Mkdir(ctx context.Context, path string) error {
	return os.MkdirAll(b.full(path), 0o777)
}

// RmFile deletes a single file.
func (b *Backend) RmFile(ctx context.Context, path string) error {
	err := os.Remove(b.full(path))
	if os.IsNotExist(err) {
		return fs.ErrNotFound
	}
	return err
}

// Rmdir removes an empty directory, reporting ErrDirectoryNotEmpty
// rather than letting a raw ENOTEMPTY escape from os.Remove.
func (b *Backend) Rmdir(ctx context.Context, path string) error {
	osPath := b.full(path)
	entries, err := readDirNames(osPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs.ErrNotFound
		}
		return errors.Wrap(err, "local: read dir")
	}
	if len(entries) > 0 {
		return fs.ErrDirectoryNotEmpty
	}
	return os.Remove(osPath)
}

// CpFile copies src's content to dst within this backend, creating
// dst's parent directories as needed.
func (b *Backend) CpFile(ctx context.Context, src, dst string) error {
	srcPath, dstPath := b.full(src), b.full(dst)

	in, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fs.ErrNotFound
		}
		return errors.Wrap(err, "local: open source")
	}
	defer in.Close()

	if err := mkdirAllFor(dstPath); err != nil {
		return errors.Wrap(err, "local: mkdir")
	}
	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return errors.Wrap(err, "local: create destination")
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "local: copy")
	}
	return out.Close()
}

// Checksum returns the MD5 hex digest of path's content.
func (b *Backend) Checksum(ctx context.Context, path string) (string, error) {
	f, err := os.Open(b.full(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fs.ErrNotFound
		}
		return "", errors.Wrap(err, "local: open")
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "local: hash")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Touch creates a zero-length file at path if absent, or updates its
// modification time to now if present.
func (b *Backend) Touch(ctx context.Context, path string) error {
	osPath := b.full(path)
	if err := mkdirAllFor(osPath); err != nil {
		return errors.Wrap(err, "local: mkdir")
	}
	f, err := os.OpenFile(osPath, os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return errors.Wrap(err, "local: touch")
	}
	if err := f.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(osPath, now, now)
}

// String identifies this backend for logging.
func (b *Backend) String() string {
	return fmt.Sprintf("local file system at %s", b.root)
}
