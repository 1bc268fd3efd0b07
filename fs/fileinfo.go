package fs

// EntryType classifies a FileInfo.
type EntryType string

// The three entry types the core contract recognizes. Backends that
// expose more detail (symlinks, pipes, devices) fold them into Other.
const (
	TypeFile      EntryType = "file"
	TypeDirectory EntryType = "directory"
	TypeOther     EntryType = "other"
)

// FileInfo is the canonical description of one filesystem entry,
// returned by List and Info. Name is absolute backend-relative, without
// protocol prefix and without a trailing slash. Size is -1 when the
// backend cannot determine it. Extra carries implementation-specific
// fields (etag, version id, checksum, mtime, ...).
type FileInfo struct {
	Name  string
	Size  int64 // -1 when unknown
	Type  EntryType
	Extra map[string]any
}

// IsDir reports whether the entry is a directory.
func (fi FileInfo) IsDir() bool { return fi.Type == TypeDirectory }

// IsFile reports whether the entry is a regular file.
func (fi FileInfo) IsFile() bool { return fi.Type == TypeFile }

// Equal implements the data-model invariant: two FileInfo values compare
// equal iff Name and Type agree.
func (fi FileInfo) Equal(other FileInfo) bool {
	return fi.Name == other.Name && fi.Type == other.Type
}

// Listing is an ordered sequence of FileInfo as returned by one call to
// List. Within one Listing, Name must be unique; order across calls is
// not guaranteed stable.
type Listing []FileInfo

// ByName returns the entry with the given name, or false if absent.
func (l Listing) ByName(name string) (FileInfo, bool) {
	for _, fi := range l {
		if fi.Name == name || fi.Name == name+"/" {
			return fi, true
		}
	}
	return FileInfo{}, false
}
