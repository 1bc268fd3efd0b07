package operations

import (
	"context"
	"sort"
	"testing"

	"github.com/moradology/vfscore/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is a full in-memory Backend double: a flat map of paths
// to content, with directories synthesized from path prefixes. It
// implements every optional capability (Remover, RmdirRemover, Copier)
// so the derived-operations engine can be exercised end to end without
// a concrete backend adaptation.
type fakeBackend struct {
	files map[string][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{files: map[string][]byte{
		"/a/b/c.txt": []byte("hello"),
		"/a/b/d.txt": []byte("worldly"),
		"/a/e.txt":   []byte("hi!"),
	}}
}

func (b *fakeBackend) Protocol() []string { return []string{"fake"} }
func (b *fakeBackend) RootMarker() string { return "/" }
func (b *fakeBackend) Sep() string        { return "/" }
func (b *fakeBackend) Blocksize() int64   { return 4 }

func (b *fakeBackend) Ls(ctx context.Context, path string, detail bool) (fs.Listing, error) {
	if path != "/" {
		if _, ok := b.files[path]; ok {
			return nil, fs.ErrNotADirectory
		}
	}
	prefix := path
	if prefix != "/" {
		prefix += "/"
	} else {
		prefix = "/"
	}
	seen := map[string]fs.FileInfo{}
	for p, data := range b.files {
		if p == path || !hasPathPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if idx := indexByte(rest, '/'); idx >= 0 {
			name := prefix + rest[:idx]
			seen[name] = fs.FileInfo{Name: name, Type: fs.TypeDirectory}
		} else {
			seen[p] = fs.FileInfo{Name: p, Type: fs.TypeFile, Size: int64(len(data))}
		}
	}
	if len(seen) == 0 {
		return nil, fs.ErrNotFound
	}
	var out fs.Listing
	for _, fi := range seen {
		out = append(out, fi)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func hasPathPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func (b *fakeBackend) FetchRange(ctx context.Context, path string, start, end int64) ([]byte, error) {
	data, ok := b.files[path]
	if !ok {
		return nil, fs.ErrNotFound
	}
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
	return "loc-" + path, nil
}

func (b *fakeBackend) UploadChunk(ctx context.Context, path, location string, data []byte, final bool) (bool, error) {
	b.files[path] = append(append([]byte{}, b.files[path]...), data...)
	return true, nil
}

func (b *fakeBackend) RmFile(ctx context.Context, path string) error {
	if _, ok := b.files[path]; !ok {
		return fs.ErrNotFound
	}
	delete(b.files, path)
	return nil
}

func (b *fakeBackend) CpFile(ctx context.Context, src, dst string) error {
	data, ok := b.files[src]
	if !ok {
		return fs.ErrNotFound
	}
	b.files[dst] = append([]byte{}, data...)
	return nil
}

func newTestHandle() (*Handle, *fakeBackend) {
	be := newFakeBackend()
	return New(be, "test-token", HandleOptions{}), be
}

func TestLsListsImmediateChildren(t *testing.T) {
	h, _ := newTestHandle()
	listing, err := h.Ls(context.Background(), "/a", true)
	require.NoError(t, err)
	var names []string
	for _, fi := range listing {
		names = append(names, fi.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"/a/b", "/a/e.txt"}, names)
}

func TestInfoOnFileAndDir(t *testing.T) {
	h, _ := newTestHandle()
	fi, err := h.Info(context.Background(), "/a/e.txt")
	require.NoError(t, err)
	assert.True(t, fi.IsFile())
	assert.Equal(t, int64(3), fi.Size)

	dir, err := h.Info(context.Background(), "/a/b")
	require.NoError(t, err)
	assert.True(t, dir.IsDir())
}

func TestExistsIsFileIsDir(t *testing.T) {
	h, _ := newTestHandle()
	ok, err := h.Exists(context.Background(), "/a/e.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Exists(context.Background(), "/nope")
	require.NoError(t, err)
	assert.False(t, ok)

	isFile, err := h.IsFile(context.Background(), "/a/e.txt")
	require.NoError(t, err)
	assert.True(t, isFile)

	isDir, err := h.IsDir(context.Background(), "/a/b")
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestFindFlattensTree(t *testing.T) {
	h, _ := newTestHandle()
	names, err := h.Find(context.Background(), "/a", -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.txt", "/a/b/d.txt", "/a/e.txt"}, names)
}

func TestGlobSingleStar(t *testing.T) {
	h, _ := newTestHandle()
	matches, err := h.Glob(context.Background(), "/a/*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/e.txt"}, matches)
}

func TestDuTotal(t *testing.T) {
	h, _ := newTestHandle()
	sum, _, err := h.Du(context.Background(), "/a", true)
	require.NoError(t, err)
	assert.Equal(t, int64(5+7+3), sum)
}

func TestCatFileNegativeSlice(t *testing.T) {
	h, _ := newTestHandle()
	data, err := h.CatFile(context.Background(), "/a/b/d.txt", -3, 0)
	require.NoError(t, err)
	assert.Equal(t, "dly", string(data))
}

func TestCatBulk(t *testing.T) {
	h, _ := newTestHandle()
	out, err := h.Cat(context.Background(), "/a/*.txt", OnErrorRaise)
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"/a/e.txt": []byte("hi!")}, out)
}

func TestPipeFileThenReadBack(t *testing.T) {
	h, _ := newTestHandle()
	require.NoError(t, h.PipeFile(context.Background(), "/a/new.txt", []byte("fresh")))
	data, err := h.CatFile(context.Background(), "/a/new.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestCopyUsesBackendCopier(t *testing.T) {
	h, be := newTestHandle()
	require.NoError(t, h.Copy(context.Background(), "/a/e.txt", "/a/e2.txt", false, OnErrorRaise))
	assert.Equal(t, []byte("hi!"), be.files["/a/e2.txt"])
}

func TestRmRemovesFile(t *testing.T) {
	h, be := newTestHandle()
	require.NoError(t, h.Rm(context.Background(), "/a/e.txt", false))
	_, ok := be.files["/a/e.txt"]
	assert.False(t, ok)
}

func TestExpandPathNoMatchIsNotFound(t *testing.T) {
	h, _ := newTestHandle()
	_, err := h.ExpandPath(context.Background(), "/nowhere/*.txt", false, -1)
	assert.ErrorIs(t, err, fs.ErrNotFound)
}

func TestReadBlockDelimiterExtendsBoundaries(t *testing.T) {
	h, _ := newTestHandle()
	require.NoError(t, h.PipeFile(context.Background(), "/lines.csv", []byte("aa,bb,cc,dd")))
	block, err := h.ReadBlock(context.Background(), "/lines.csv", 1, 4, []byte(","))
	require.NoError(t, err)
	assert.Equal(t, "aa,bb,", string(block))
}

func TestTransactionCommitsStagedFile(t *testing.T) {
	h, be := newTestHandle()
	err := h.WithTransaction(context.Background(), func(ctx context.Context) error {
		bf, err := h.OpenWrite(ctx, "/a/staged.txt", nil, 0)
		if err != nil {
			return err
		}
		if _, err := bf.WriteCtx(ctx, []byte("staged")); err != nil {
			return err
		}
		return h.CloseFile(ctx, bf)
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("staged"), be.files["/a/staged.txt"])
}

func TestTransactionDiscardsOnError(t *testing.T) {
	h, _ := newTestHandle()
	wantErr := assert.AnError
	err := h.WithTransaction(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.False(t, h.InTransaction())
}
