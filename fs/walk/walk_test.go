package walk

import (
	"context"
	"testing"

	"github.com/moradology/vfscore/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree backs the scenario 1 tree of spec.md §8:
// /a/b/c.txt (5 bytes), /a/b/d.txt (7 bytes), /a/e.txt (3 bytes).
type fakeTree struct {
	dirs map[string]fs.Listing
}

func (f *fakeTree) Ls(ctx context.Context, path string) (fs.Listing, error) {
	l, ok := f.dirs[path]
	if !ok {
		return nil, fs.ErrNotFound
	}
	return l, nil
}

func (f *fakeTree) Info(ctx context.Context, path string) (fs.FileInfo, error) {
	if _, ok := f.dirs[path]; ok {
		return fs.FileInfo{Name: path, Type: fs.TypeDirectory}, nil
	}
	for _, listing := range f.dirs {
		if fi, found := listing.ByName(path); found {
			return fi, nil
		}
	}
	return fs.FileInfo{}, fs.ErrNotFound
}

func newSampleTree() *fakeTree {
	return &fakeTree{dirs: map[string]fs.Listing{
		"/a": {
			{Name: "/a/b", Type: fs.TypeDirectory},
			{Name: "/a/e.txt", Type: fs.TypeFile, Size: 3},
		},
		"/a/b": {
			{Name: "/a/b/c.txt", Type: fs.TypeFile, Size: 5},
			{Name: "/a/b/d.txt", Type: fs.TypeFile, Size: 7},
		},
	}}
}

func TestFindFlattensTree(t *testing.T) {
	tree := newSampleTree()
	names, err := Find(context.Background(), tree, tree, "/a", -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.txt", "/a/b/d.txt", "/a/e.txt"}, names)
}

func TestFindOnBareFileReturnsSingleton(t *testing.T) {
	tree := newSampleTree()
	names, err := Find(context.Background(), tree, tree, "/a/e.txt", -1, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/e.txt"}, names)
}

func TestWalkMaxDepthZeroDoesNotRecurse(t *testing.T) {
	tree := newSampleTree()
	var seen []string
	err := Walk(context.Background(), tree, "/a", 0, func(e Entry) (bool, error) {
		seen = append(seen, e.Path)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, seen)
}

func TestWalkMissingPathYieldsEmptyTriple(t *testing.T) {
	tree := newSampleTree()
	var entry Entry
	called := false
	err := Walk(context.Background(), tree, "/missing", -1, func(e Entry) (bool, error) {
		called = true
		entry = e
		return true, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Empty(t, entry.Dirs)
	assert.Empty(t, entry.Files)
}

func TestWalkStopsEarly(t *testing.T) {
	tree := newSampleTree()
	var seen []string
	err := Walk(context.Background(), tree, "/a", -1, func(e Entry) (bool, error) {
		seen = append(seen, e.Path)
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a"}, seen)
}
