package glob

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileLiteral(t *testing.T) {
	c, err := Compile("/a/b/c.txt")
	require.NoError(t, err)
	assert.Nil(t, c.Regexp)
	assert.Equal(t, "/a/b/c.txt", c.Root)
}

func TestCompileSingleStar(t *testing.T) {
	c, err := Compile("/a/*/*.txt")
	require.NoError(t, err)
	require.NotNil(t, c.Regexp)
	assert.Equal(t, "/a", c.Root)
	assert.Equal(t, 2, c.MaxDepth)
	assert.True(t, c.Regexp.MatchString("/a/b/c.txt"))
	assert.False(t, c.Regexp.MatchString("/a/b/c/d.txt"))
}

func TestCompileDoubleStarUnlimitedDepth(t *testing.T) {
	c, err := Compile("/a/**/*.txt")
	require.NoError(t, err)
	assert.Equal(t, -1, c.MaxDepth)
	assert.True(t, c.Regexp.MatchString("/a/b/c/d.txt"))
}

func TestQuestionMarkSingleChar(t *testing.T) {
	c, err := Compile("/a/file?.txt")
	require.NoError(t, err)
	assert.True(t, c.Regexp.MatchString("/a/file1.txt"))
	assert.False(t, c.Regexp.MatchString("/a/file12.txt"))
}

func TestCharacterClass(t *testing.T) {
	c, err := Compile("/a/file[12].txt")
	require.NoError(t, err)
	assert.True(t, c.Regexp.MatchString("/a/file1.txt"))
	assert.False(t, c.Regexp.MatchString("/a/file3.txt"))
}

// fakeFinder backs the Glob integration tests with the tree from
// spec.md §8 scenario 1: /a/b/c.txt, /a/b/d.txt, /a/e.txt.
type fakeFinder struct {
	existing map[string]bool
	find     []string
}

func (f *fakeFinder) Exists(ctx context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func (f *fakeFinder) Ls(ctx context.Context, path string) ([]string, error) {
	return f.find, nil
}

func (f *fakeFinder) Find(ctx context.Context, root string, maxDepth int, withDirs bool) ([]string, error) {
	return f.find, nil
}

func newTreeFinder() *fakeFinder {
	return &fakeFinder{
		existing: map[string]bool{"/a/b/c.txt": true},
		find:     []string{"/a/b/c.txt", "/a/b/d.txt", "/a/e.txt"},
	}
}

func TestGlobLiteralRoundTripExisting(t *testing.T) {
	f := newTreeFinder()
	out, err := Glob(context.Background(), "/a/b/c.txt", f)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.txt"}, out)
}

func TestGlobLiteralRoundTripMissing(t *testing.T) {
	f := newTreeFinder()
	out, err := Glob(context.Background(), "/a/b/missing.txt", f)
	require.NoError(t, err)
	assert.Equal(t, []string{}, out)
}

func TestGlobDoubleStar(t *testing.T) {
	f := newTreeFinder()
	out, err := Glob(context.Background(), "/a/**/*.txt", f)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.txt", "/a/b/d.txt", "/a/e.txt"}, out)
}

func TestGlobSingleStarOneLevel(t *testing.T) {
	f := &fakeFinder{find: []string{"/a/b/c.txt", "/a/b/d.txt", "/a/e.txt"}}
	out, err := Glob(context.Background(), "/a/*/*.txt", f)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/c.txt", "/a/b/d.txt"}, out)
}
