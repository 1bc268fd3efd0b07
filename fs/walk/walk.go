// Package walk implements the BFS-like directory traversal and
// find/flatten operations described in spec.md §4.6.
package walk

import (
	"context"
	"sort"

	"github.com/moradology/vfscore/fs"
)

// Lister is the single primitive walk needs: list one directory.
type Lister interface {
	Ls(ctx context.Context, path string) (fs.Listing, error)
}

// InfoGetter lets Find special-case a root that is itself a file.
type InfoGetter interface {
	Info(ctx context.Context, path string) (fs.FileInfo, error)
}

// Entry is one yielded level of a walk: the directory path, its
// immediate subdirectories, and its immediate files, each keyed by
// name. A backend that (unusually) lists an entry whose name equals the
// directory itself buckets that entry into Files under the empty key,
// per spec.md §4.6 — a quirk of the original implementation's listing
// shape preserved here for parity.
type Entry struct {
	Path  string
	Dirs  map[string]fs.FileInfo
	Files map[string]fs.FileInfo
}

// Yield is called once per directory level. Returning false (or a
// non-nil error) stops the walk early — consumers that only need the
// first match do not pay for the rest of the tree.
type Yield func(Entry) (cont bool, err error)

// Walk performs a BFS-like traversal starting at root, calling yield
// for each directory. maxDepth < 0 means unlimited; maxDepth == 0 means
// yield root's own listing only, without recursing.
func Walk(ctx context.Context, l Lister, root string, maxDepth int, yield Yield) error {
	listing, err := l.Ls(ctx, root)
	if err != nil {
		if err == fs.ErrNotFound {
			cont, yerr := yield(Entry{Path: root, Dirs: map[string]fs.FileInfo{}, Files: map[string]fs.FileInfo{}})
			_ = cont
			return yerr
		}
		return err
	}

	entry := Entry{Path: root, Dirs: map[string]fs.FileInfo{}, Files: map[string]fs.FileInfo{}}
	var subdirs []string
	for _, fi := range listing {
		switch {
		case fi.Name == root:
			entry.Files[""] = fi
		case fi.IsDir():
			entry.Dirs[fi.Name] = fi
			subdirs = append(subdirs, fi.Name)
		default:
			entry.Files[fi.Name] = fi
		}
	}

	cont, err := yield(entry)
	if err != nil || !cont {
		return err
	}

	if maxDepth == 0 {
		return nil
	}
	nextDepth := maxDepth - 1
	if maxDepth < 0 {
		nextDepth = -1
	}
	for _, d := range subdirs {
		if err := Walk(ctx, l, d, nextDepth, yield); err != nil {
			return err
		}
	}
	return nil
}

// Find flattens Walk into a sorted list of names. If root itself names
// a file, the result is [root] (spec.md §4.6). withDirs includes
// directory names alongside file names.
func Find(ctx context.Context, l Lister, ig InfoGetter, root string, maxDepth int, withDirs bool) ([]string, error) {
	if ig != nil {
		if fi, err := ig.Info(ctx, root); err == nil && fi.IsFile() {
			return []string{root}, nil
		}
	}

	var names []string
	err := Walk(ctx, l, root, maxDepth, func(e Entry) (bool, error) {
		for name, fi := range e.Files {
			if name == "" {
				names = append(names, fi.Name)
				continue
			}
			names = append(names, name)
		}
		if withDirs {
			for name := range e.Dirs {
				names = append(names, name)
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
