package fs

import "strings"

// HasMagic reports whether path contains any glob metacharacter
// recognized by fs/glob: '*', '?' or '['.
func HasMagic(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// stripOneProtocol removes a single "<proto>://" or "<proto>::" prefix
// from path, if present.
func stripOneProtocol(path string) string {
	if i := strings.Index(path, "://"); i >= 0 && !strings.ContainsAny(path[:i], "/\\") {
		return path[i+3:]
	}
	if i := strings.Index(path, "::"); i >= 0 && !strings.ContainsAny(path[:i], "/\\") {
		return path[i+2:]
	}
	return path
}

// StripProtocol strips a leading protocol prefix from path and trailing
// slashes, returning rootMarker if the result would otherwise be empty.
// It returns the empty string only when rootMarker is itself empty.
func StripProtocol(path, rootMarker string) string {
	path = stripOneProtocol(path)
	path = strings.TrimRight(path, "/")
	if path == "" {
		return rootMarker
	}
	return path
}

// StripProtocolAll maps StripProtocol over a slice of paths.
func StripProtocolAll(paths []string, rootMarker string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = StripProtocol(p, rootMarker)
	}
	return out
}

// Parent returns the parent of path: strip protocol, drop any trailing
// slash, return everything before the last '/' re-prefixed with
// rootMarker; if path has no '/' at all, return rootMarker.
func Parent(path, rootMarker string) string {
	path = StripProtocol(path, rootMarker)
	path = strings.TrimRight(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return rootMarker
	}
	return rootMarker + strings.TrimLeft(path[:idx], rootMarker)
}

// Join joins a directory and a single path segment with '/', avoiding a
// doubled separator.
func Join(dir, name string) string {
	if dir == "" || dir == "/" {
		return strings.TrimLeft(dir+"/"+name, "/")
	}
	return strings.TrimRight(dir, "/") + "/" + name
}
