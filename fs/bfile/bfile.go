// Package bfile implements BufferedFile: the read-side block cache and
// write-side staging buffer described in spec.md §4.5, layered over the
// narrow fetch_range / initiate_upload / upload_chunk primitives a
// backend supplies (fs.RangeFetcher, fs.ChunkUploader).
package bfile

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/moradology/vfscore/fs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Mode is the open mode of a BufferedFile.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
	ModeAppend
)

// Backend is the capability set BufferedFile needs from a concrete
// filesystem: the byte-range read primitive and the chunked-upload
// write primitive.
type Backend interface {
	fs.RangeFetcher
	fs.ChunkUploader
}

// Committer optionally lets a backend finalize a staged (non-autocommit)
// upload when a transaction commits — spec.md's "move from temp to
// final destination".
type Committer interface {
	CommitUpload(ctx context.Context, path, location string) error
}

// Discarder optionally lets a backend throw away a staged upload when a
// transaction discards it.
type Discarder interface {
	DiscardUpload(ctx context.Context, path, location string) error
}

// Options configures a BufferedFile at construction.
type Options struct {
	BlockSize    int64 // 0 means DefaultBlockSize
	Autocommit   bool
	CacheType    CacheType
	AppendOffset int64 // starting loc for ModeAppend
}

// DefaultBlockSize is used when Options.BlockSize is zero, matching the
// teacher/original's 5 MiB default multipart chunk.
const DefaultBlockSize = 5 * 1 << 20

// BufferedFile is a file-like reader/writer over a backend's narrow
// byte-range / chunk-upload primitives. Not safe for concurrent use by
// multiple goroutines (spec.md §5): it owns its buffer/cache and its
// backend position.
type BufferedFile struct {
	backend    Backend
	path       string
	mode       Mode
	blocksize  int64
	autocommit bool
	closed     bool
	log        logrus.FieldLogger

	// read mode
	details fs.FileInfo
	size    int64
	loc     int64
	cache   readCache

	// write mode
	buffer   bytes.Buffer
	offset   int64 // -1 means upload not yet initiated
	forced   bool
	location string
}

// Open constructs a BufferedFile. For ModeRead, info must be the
// FileInfo captured at open (mirrors the Python template's
// fs.info(path) call, done once by the caller so backends can batch it
// with a listing). For ModeWrite/ModeAppend, info is ignored.
func Open(backend Backend, path string, mode Mode, info fs.FileInfo, opt Options, log logrus.FieldLogger) *BufferedFile {
	if log == nil {
		log = logrus.StandardLogger()
	}
	bs := opt.BlockSize
	if bs <= 0 {
		bs = DefaultBlockSize
	}
	bf := &BufferedFile{
		backend:    backend,
		path:       path,
		mode:       mode,
		blocksize:  bs,
		autocommit: opt.Autocommit,
		log:        log,
		offset:     -1,
	}
	switch mode {
	case ModeRead:
		bf.details = info
		bf.size = info.Size
		bf.cache = newReadCache(opt.CacheType, bs, bf.size, bf.fetchRange)
	case ModeAppend:
		bf.loc = opt.AppendOffset
	}
	return bf
}

func (bf *BufferedFile) fetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	return bf.backend.FetchRange(ctx, bf.path, start, end)
}

// String mirrors the teacher's ReadFileHandle/WriteFileHandle String().
func (bf *BufferedFile) String() string {
	if bf == nil {
		return "<nil BufferedFile>"
	}
	tag := "r"
	if bf.mode != ModeRead {
		tag = "w"
	}
	return fmt.Sprintf("%s (%s)", bf.path, tag)
}

// Size returns the file size in read mode.
func (bf *BufferedFile) Size() int64 { return bf.size }

// Tell returns the current logical position.
func (bf *BufferedFile) Tell() int64 { return bf.loc }

// ---- read mode ----

// Read reads up to len(p) bytes, or to EOF if the caller has requested
// more than remains. Returns io.EOF once loc reaches size, matching
// io.Reader semantics (a final non-zero read may still return EOF only
// on the following call if it lands exactly at size).
func (bf *BufferedFile) Read(p []byte) (int, error) {
	return bf.ReadCtx(context.Background(), p)
}

// ReadCtx is Read with an explicit context for the backend call.
func (bf *BufferedFile) ReadCtx(ctx context.Context, p []byte) (int, error) {
	if bf.closed {
		return 0, fs.ErrClosed
	}
	if bf.mode != ModeRead {
		return 0, errors.New("bfile: read on write-mode file")
	}
	if bf.loc >= bf.size {
		return 0, io.EOF
	}
	end := bf.loc + int64(len(p))
	if end > bf.size {
		end = bf.size
	}
	data, err := bf.cache.read(ctx, bf.loc, end)
	if err != nil {
		return 0, errors.Wrap(err, "bfile: fetch range")
	}
	n := copy(p, data)
	bf.loc += int64(n)
	return n, nil
}

// ReadN reads exactly up to n bytes (n<0 means read to end), matching
// spec.md's read(n) rather than io.Reader's fixed-buffer shape.
func (bf *BufferedFile) ReadN(ctx context.Context, n int) ([]byte, error) {
	if bf.closed {
		return nil, fs.ErrClosed
	}
	if bf.mode != ModeRead {
		return nil, errors.New("bfile: read on write-mode file")
	}
	end := bf.size
	if n >= 0 && bf.loc+int64(n) < end {
		end = bf.loc + int64(n)
	}
	if bf.loc >= end {
		return []byte{}, nil
	}
	data, err := bf.cache.read(ctx, bf.loc, end)
	if err != nil {
		return nil, errors.Wrap(err, "bfile: fetch range")
	}
	bf.loc += int64(len(data))
	return data, nil
}

// Whence values for Seek, matching io.Seeker's.
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

// Seek repositions loc. Only legal in read mode.
func (bf *BufferedFile) Seek(offset int64, whence int) (int64, error) {
	if bf.mode != ModeRead {
		return 0, fs.ErrIllegalSeek
	}
	var n int64
	switch whence {
	case SeekStart:
		n = offset
	case SeekCurrent:
		n = bf.loc + offset
	case SeekEnd:
		n = bf.size + offset
	default:
		return 0, errors.New("bfile: invalid whence")
	}
	if n < 0 {
		return 0, errors.New("bfile: negative seek position")
	}
	bf.loc = n
	return bf.loc, nil
}

// ReadUntil reads blocks and scans for delim, stopping at its first
// occurrence (inclusive) or EOF.
func (bf *BufferedFile) ReadUntil(ctx context.Context, delim byte) ([]byte, error) {
	var out []byte
	buf := make([]byte, bf.blocksize)
	for {
		n, err := bf.ReadCtx(ctx, buf)
		if n > 0 {
			chunk := buf[:n]
			if idx := bytes.IndexByte(chunk, delim); idx >= 0 {
				out = append(out, chunk[:idx+1]...)
				bf.loc -= int64(n - (idx + 1))
				return out, nil
			}
			out = append(out, chunk...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// ReadLine is ReadUntil('\n').
func (bf *BufferedFile) ReadLine(ctx context.Context) ([]byte, error) {
	return bf.ReadUntil(ctx, '\n')
}

// ---- write mode ----

// Write appends data to the in-memory staging buffer, auto-flushing
// once it reaches blocksize.
func (bf *BufferedFile) Write(p []byte) (int, error) {
	return bf.WriteCtx(context.Background(), p)
}

// WriteCtx is Write with an explicit context for the backend call an
// auto-flush may trigger.
func (bf *BufferedFile) WriteCtx(ctx context.Context, p []byte) (int, error) {
	if bf.mode == ModeRead {
		return 0, errors.New("bfile: write on read-mode file")
	}
	if bf.closed {
		return 0, fs.ErrClosed
	}
	if bf.forced {
		return 0, fs.ErrWriteAfterForce
	}
	n, _ := bf.buffer.Write(p)
	bf.loc += int64(n)
	if int64(bf.buffer.Len()) >= bf.blocksize {
		if err := bf.Flush(ctx, false); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Flush implements spec.md §4.5's flush(force) state machine.
func (bf *BufferedFile) Flush(ctx context.Context, force bool) error {
	if bf.mode == ModeRead {
		return nil
	}
	if force && bf.forced {
		return fmt.Errorf("bfile: %w", fs.ErrWriteAfterForce)
	}
	if force {
		bf.forced = true
	}
	if !force && int64(bf.buffer.Len()) < bf.blocksize {
		return nil
	}
	if bf.offset < 0 {
		bf.offset = 0
		location, err := bf.backend.InitiateUpload(ctx, bf.path)
		if err != nil {
			bf.closed = true
			return errors.Wrap(err, "bfile: initiate upload")
		}
		if location == "" {
			location = uuid.NewString()
		}
		bf.location = location
	}
	ok, err := bf.backend.UploadChunk(ctx, bf.path, bf.location, bf.buffer.Bytes(), force)
	if err != nil {
		return errors.Wrap(err, "bfile: upload chunk")
	}
	if ok {
		bf.offset += int64(bf.buffer.Len())
		bf.buffer.Reset()
	}
	return nil
}

// invalidator matches fs/dircache.Cache.Invalidate, kept local to avoid
// bfile depending on the dircache package for a single method.
type invalidator interface {
	Invalidate(path string)
}

// Close finalizes writes (always force-flushing, matching the
// unconditional close-time flush of the original implementation
// regardless of autocommit) and invalidates dc's
// entries for path and its parent. In read mode it just drops the
// cache. Idempotent.
func (bf *BufferedFile) Close(ctx context.Context, dc invalidator, rootMarker string) error {
	if bf.closed {
		return nil
	}
	if bf.mode == ModeRead {
		bf.cache = nil
		bf.closed = true
		return nil
	}
	if !bf.forced {
		if err := bf.Flush(ctx, true); err != nil {
			bf.closed = true
			return err
		}
	}
	if dc != nil {
		dc.Invalidate(bf.path)
		dc.Invalidate(fs.Parent(bf.path, rootMarker))
	}
	bf.closed = true
	return nil
}

// Commit finalizes a non-autocommit staged upload — the transaction's
// call when it reaches this file in its pending list. No-op if the
// backend does not implement Committer (matching the Python template's
// default pass-through commit()).
func (bf *BufferedFile) Commit(ctx context.Context) error {
	if c, ok := bf.backend.(Committer); ok {
		return c.CommitUpload(ctx, bf.path, bf.location)
	}
	return nil
}

// Discard abandons a non-autocommit staged upload.
func (bf *BufferedFile) Discard(ctx context.Context) error {
	if d, ok := bf.backend.(Discarder); ok {
		return d.DiscardUpload(ctx, bf.path, bf.location)
	}
	return nil
}

// Autocommit reports whether this file commits on Close rather than
// waiting for an enclosing transaction.
func (bf *BufferedFile) Autocommit() bool { return bf.autocommit }

// Closed reports whether Close has run.
func (bf *BufferedFile) Closed() bool { return bf.closed }

// Path returns the file's backend-relative path.
func (bf *BufferedFile) Path() string { return bf.path }
