// Package fs defines the uniform virtual filesystem contract: the
// primitive operations a backend must implement, the data model shared
// by every backend (FileInfo, Listing), and the path utilities used
// throughout the derived-operations engine in fs/operations.
package fs

import "context"

// Lister is the one operation every backend must implement: list a
// single directory non-recursively. It must return ErrNotFound if path
// does not exist.
type Lister interface {
	// Ls lists the immediate children of path. detail controls nothing
	// about the core contract (backends always return full FileInfo);
	// it is retained for backend-side optimization hints.
	Ls(ctx context.Context, path string, detail bool) (Listing, error)
}

// Remover deletes a single file. Directories are removed through the
// optional RmdirRemover: the derived rm operation in fs/operations calls
// Rmdir for directory entries and reports ErrNotImplemented when the
// backend does not implement it.
type Remover interface {
	RmFile(ctx context.Context, path string) error
}

// Copier performs a same-backend server-side copy, when cheaper than
// read+write. Backends without a native copy should not implement this;
// fs/operations falls back to byte-copy through BufferedFile.
type Copier interface {
	CpFile(ctx context.Context, src, dst string) error
}

// RangeFetcher is the sole read primitive a backend must supply to
// participate in BufferedFile's read-side cache strategies.
type RangeFetcher interface {
	// FetchRange returns bytes in [start, end) of path. end may exceed
	// the file size; the backend clamps.
	FetchRange(ctx context.Context, path string, start, end int64) ([]byte, error)
}

// ChunkUploader is the sole write primitive a backend must supply to
// participate in BufferedFile's write-side staging buffer.
type ChunkUploader interface {
	// InitiateUpload begins a multipart upload for path, returning an
	// opaque backend-assigned location id (may be empty).
	InitiateUpload(ctx context.Context, path string) (location string, err error)
	// UploadChunk uploads the next chunk of a path's pending upload.
	// final is true on the last chunk (the force flush). ok is false
	// only for the "not ready yet" sentinel case (e.g. buffered below a
	// provider's minimum part size); offset does not advance when ok is
	// false.
	UploadChunk(ctx context.Context, path, location string, data []byte, final bool) (ok bool, err error)
}

// Stater optionally lets a backend answer Info directly instead of
// having the core derive it from Ls(Parent(path)).
type Stater interface {
	Stat(ctx context.Context, path string) (FileInfo, error)
}

// Maker optionally creates a directory (or bucket). Object stores
// without true directories return ErrNotImplemented.
type Maker interface {
	Mkdir(ctx context.Context, path string) error
}

// RmdirRemover optionally removes an empty directory.
type RmdirRemover interface {
	Rmdir(ctx context.Context, path string) error
}

// Toucher optionally creates a zero-length file directly, avoiding an
// open/close round trip.
type Toucher interface {
	Touch(ctx context.Context, path string) error
}

// Timestamper optionally exposes creation/modification times.
type Timestamper interface {
	Created(ctx context.Context, path string) (Timestamp, bool)
	Modified(ctx context.Context, path string) (Timestamp, bool)
}

// Signer optionally produces a pre-signed URL for path.
type Signer interface {
	Sign(ctx context.Context, path string) (string, error)
}

// Checksummer optionally supplies a true content hash, used instead of
// the core's FileInfo-derived default.
type Checksummer interface {
	Checksum(ctx context.Context, path string) (string, error)
}

// Bucketer optionally reports that a backend's directories are
// synthesized from object-key prefixes rather than stored as real
// filesystem nodes (object stores; this module's own memory backend).
// Callers use this to decide whether an empty "directory" can vanish as
// soon as its last object is removed.
type Bucketer interface {
	BucketBased() bool
}

// Timestamp is a narrow alias kept local so fs does not depend on the
// time package's zero-value ambiguity leaking into backend contracts
// that have no concept of mtime at all (hence the accompanying bool).
type Timestamp = int64

// Backend is the full capability set a concrete filesystem may
// implement. Only Lister and one of {Remover, RmdirRemover} plus the
// BufferedFile primitives (RangeFetcher/ChunkUploader) are required;
// everything else is detected via type assertion by fs/operations and
// by fs/bfile.
type Backend interface {
	Lister

	// Protocol returns the scheme name(s) this backend answers to.
	Protocol() []string
	// RootMarker is the string representing the absolute root.
	RootMarker() string
	// Sep is always "/" in the canonical model; exposed for symmetry
	// with the spec's data model.
	Sep() string
	// Blocksize is the default read/write chunk size in bytes.
	Blocksize() int64
}
