package bfile

import (
	"context"
	"io"
	"testing"

	"github.com/moradology/vfscore/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a minimal in-memory Backend for exercising
// BufferedFile without a concrete filesystem.
type fakeBackend struct {
	files map[string][]byte
	staged map[string][]byte
}

func newFakeBackend(path string, data []byte) *fakeBackend {
	return &fakeBackend{files: map[string][]byte{path: data}, staged: map[string][]byte{}}
}

func (b *fakeBackend) FetchRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	data := b.files[path]
	if start > int64(len(data)) {
		start = int64(len(data))
	}
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out, nil
}

func (b *fakeBackend) InitiateUpload(ctx context.Context, path string) (string, error) {
	b.staged[path] = nil
	return "loc-" + path, nil
}

func (b *fakeBackend) UploadChunk(ctx context.Context, path, location string, data []byte, final bool) (bool, error) {
	b.staged[path] = append(b.staged[path], data...)
	if final {
		b.files[path] = append([]byte{}, b.staged[path]...)
	}
	return true, nil
}

func TestReadRoundTrip(t *testing.T) {
	content := []byte("Alice, 100\nBob, 200\nCharlie, 300")
	be := newFakeBackend("f.txt", content)
	bf := Open(be, "f.txt", ModeRead, fs.FileInfo{Name: "f.txt", Size: int64(len(content))}, Options{}, nil)

	buf := make([]byte, len(content))
	n, err := bf.ReadCtx(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, content, buf[:n])
}

func TestSeekTellLaw(t *testing.T) {
	content := []byte("0123456789")
	be := newFakeBackend("f.txt", content)
	for _, kind := range []CacheType{CacheReadahead, CacheNone, CacheBlock, CacheBytes} {
		bf := Open(be, "f.txt", ModeRead, fs.FileInfo{Size: int64(len(content))}, Options{CacheType: kind, BlockSize: 4}, nil)
		_, err := bf.Seek(3, SeekStart)
		require.NoError(t, err)
		r, err := bf.ReadN(context.Background(), 4)
		require.NoError(t, err)
		assert.Equal(t, int64(3+len(r)), bf.Tell())
		assert.Equal(t, "3456", string(r))
	}
}

func TestSeekIllegalInWriteMode(t *testing.T) {
	be := newFakeBackend("f.txt", nil)
	bf := Open(be, "f.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true}, nil)
	_, err := bf.Seek(0, SeekStart)
	assert.ErrorIs(t, err, fs.ErrIllegalSeek)
}

func TestWriteCloseReadBack(t *testing.T) {
	be := newFakeBackend("new.txt", nil)
	bf := Open(be, "new.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true, BlockSize: 1024}, nil)

	payload := []byte("hello, buffered world")
	n, err := bf.WriteCtx(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	require.NoError(t, bf.Close(context.Background(), nil, ""))
	assert.True(t, bf.Closed())

	got := be.files["new.txt"]
	assert.Equal(t, payload, got)
}

func TestWriteAfterForceFails(t *testing.T) {
	be := newFakeBackend("new.txt", nil)
	bf := Open(be, "new.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true}, nil)
	require.NoError(t, bf.Flush(context.Background(), true))
	_, err := bf.WriteCtx(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, fs.ErrWriteAfterForce)
}

func TestAutoFlushAtBlockSize(t *testing.T) {
	be := newFakeBackend("new.txt", nil)
	bf := Open(be, "new.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true, BlockSize: 4}, nil)
	_, err := bf.WriteCtx(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 0, bf.buffer.Len(), "buffer should auto-flush once it reaches blocksize")
	require.NoError(t, bf.Close(context.Background(), nil, ""))
	assert.Equal(t, []byte("abcd"), be.files["new.txt"])
}

func TestReadUntilDelimiter(t *testing.T) {
	content := []byte("Alice, 100\nBob, 200\nCharlie, 300")
	be := newFakeBackend("f.txt", content)
	bf := Open(be, "f.txt", ModeRead, fs.FileInfo{Size: int64(len(content))}, Options{BlockSize: 4}, nil)
	line, err := bf.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice, 100\n", string(line))
	assert.Equal(t, int64(len("Alice, 100\n")), bf.Tell())
}

func TestCloseIdempotent(t *testing.T) {
	be := newFakeBackend("new.txt", nil)
	bf := Open(be, "new.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true}, nil)
	require.NoError(t, bf.Close(context.Background(), nil, ""))
	require.NoError(t, bf.Close(context.Background(), nil, ""))
}

func TestCloseInvalidatesCache(t *testing.T) {
	be := newFakeBackend("dir/new.txt", nil)
	bf := Open(be, "dir/new.txt", ModeWrite, fs.FileInfo{}, Options{Autocommit: true}, nil)
	_, err := bf.WriteCtx(context.Background(), []byte("x"))
	require.NoError(t, err)

	inv := &recordingInvalidator{}
	require.NoError(t, bf.Close(context.Background(), inv, ""))
	assert.Contains(t, inv.paths, "dir/new.txt")
	assert.Contains(t, inv.paths, "dir")
}

type recordingInvalidator struct{ paths []string }

func (r *recordingInvalidator) Invalidate(path string) { r.paths = append(r.paths, path) }

func TestReadEOF(t *testing.T) {
	content := []byte("hi")
	be := newFakeBackend("f.txt", content)
	bf := Open(be, "f.txt", ModeRead, fs.FileInfo{Size: int64(len(content))}, Options{}, nil)
	buf := make([]byte, 2)
	n, err := bf.ReadCtx(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = bf.ReadCtx(context.Background(), buf)
	assert.ErrorIs(t, err, io.EOF)
}
