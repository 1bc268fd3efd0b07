// Package glob implements the pattern compiler and matcher described in
// spec.md §4.7: translate a glob pattern into a root prefix, a search
// depth, and a regular expression, then filter find() results against
// it.
package glob

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/moradology/vfscore/fs"
)

// magicChars are the glob metacharacters this package recognizes: '*',
// '?' and '['. No '^' negation is supported (spec.md §4.7).
const magicChars = "*?["

// firstMagic returns the index of the first glob metacharacter in s, or
// -1 if none.
func firstMagic(s string) int {
	return strings.IndexAny(s, magicChars)
}

// HasMagic reports whether pattern contains a glob metacharacter.
func HasMagic(pattern string) bool {
	return firstMagic(pattern) >= 0
}

// Compiled is a translated glob pattern.
type Compiled struct {
	Root          string // directory prefix to search under
	MaxDepth      int    // -1 means unlimited (pattern contains "**")
	TrailingSlash bool
	Regexp        *regexp.Regexp
}

// Compile translates pattern (already protocol-stripped) into a root
// search prefix, a depth bound, and a matching regular expression,
// following the algorithm of spec.md §4.7 steps 1–6.
func Compile(pattern string) (Compiled, error) {
	trailingSlash := strings.HasSuffix(pattern, "/")

	idx := firstMagic(pattern)
	if idx < 0 {
		return Compiled{Root: pattern, MaxDepth: 0, TrailingSlash: trailingSlash, Regexp: nil}, nil
	}

	prefix := pattern[:idx]
	slashIdx := strings.LastIndex(prefix, "/")
	var root string
	if slashIdx >= 0 {
		root = pattern[:slashIdx+1]
	} else {
		root = ""
	}

	maxDepth := -1
	if !strings.Contains(pattern, "**") {
		rest := pattern[len(root):]
		maxDepth = strings.Count(rest, "/") + 1
	}

	re, err := translateToRegexp(pattern)
	if err != nil {
		return Compiled{}, err
	}

	return Compiled{Root: strings.TrimSuffix(root, "/"), MaxDepth: maxDepth, TrailingSlash: trailingSlash, Regexp: re}, nil
}

// translateToRegexp builds a regular expression for pattern: regex
// metacharacters other than the supported glob ones are escaped; '*'
// becomes a non-separator run, '**/' zero or more whole directory
// levels, any other '**' an any-including-separators run, '?' a single
// non-separator character, and '[...]' character classes pass through
// unescaped.
func translateToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				if i+2 < len(runes) && runes[i+2] == '/' {
					b.WriteString("(?:.*/)?")
					i += 2
				} else {
					b.WriteString(".*")
					i++
				}
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			j := i + 1
			for j < len(runes) && runes[j] != ']' {
				j++
			}
			if j < len(runes) {
				b.WriteString(string(runes[i : j+1]))
				i = j
			} else {
				b.WriteString(regexp.QuoteMeta("["))
			}
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// normalize collapses doubled slashes and strips a trailing slash, per
// spec.md §4.7 step 7, before matching a candidate against the regexp.
func normalize(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return strings.TrimSuffix(path, "/")
}

// Finder is the capability glob.Glob needs from the filesystem core:
// existence test, a single-directory listing (for the trailing-slash
// literal case), and recursive find with depth and directory inclusion.
type Finder interface {
	Exists(ctx context.Context, path string) (bool, error)
	Ls(ctx context.Context, path string) ([]string, error)
	Find(ctx context.Context, root string, maxDepth int, withDirs bool) ([]string, error)
}

// Glob implements spec.md §4.7 end to end: literal patterns short-
// circuit to an existence check (or a listing, when the pattern ends in
// '/'); patterns with magic characters drive Find(root, maxDepth,
// withDirs=true) and filter the results through the compiled regexp.
func Glob(ctx context.Context, pattern string, f Finder) ([]string, error) {
	if !HasMagic(pattern) {
		if strings.HasSuffix(pattern, "/") {
			entries, err := f.Ls(ctx, strings.TrimSuffix(pattern, "/"))
			if err != nil {
				return nil, err
			}
			sort.Strings(entries)
			return entries, nil
		}
		ok, err := f.Exists(ctx, pattern)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []string{}, nil
		}
		return []string{pattern}, nil
	}

	c, err := Compile(pattern)
	if err != nil {
		return nil, err
	}

	candidates, err := f.Find(ctx, c.Root, c.MaxDepth, true)
	if err != nil {
		if err == fs.ErrNotFound {
			return []string{}, nil
		}
		return nil, err
	}

	var out []string
	for _, cand := range candidates {
		if c.Regexp.MatchString(normalize(cand)) {
			out = append(out, cand)
		}
	}
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out, nil
}
