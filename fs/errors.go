package fs

import "errors"

// Sentinel errors returned by backends and derived operations.
//
// Backends should return these directly (or wrap them with
// fmt.Errorf("...: %w", ErrNotFound) / errors.Wrap) so callers can test
// with errors.Is.
var (
	// ErrNotFound means the path does not exist.
	ErrNotFound = errors.New("vfscore: path not found")

	// ErrNotADirectory means an operation expected a directory but found
	// a file or other entry.
	ErrNotADirectory = errors.New("vfscore: not a directory")

	// ErrIsADirectory means an operation expected a file but found a
	// directory.
	ErrIsADirectory = errors.New("vfscore: is a directory")

	// ErrNotImplemented means the backend does not support the requested
	// capability (sign, mkdir on a bucket store, timestamp updates, ...).
	ErrNotImplemented = errors.New("vfscore: not implemented")

	// ErrIllegalSeek means Seek was called on a file opened for writing.
	ErrIllegalSeek = errors.New("vfscore: illegal seek")

	// ErrClosed means an operation was attempted on a closed BufferedFile.
	ErrClosed = errors.New("vfscore: file already closed")

	// ErrWriteAfterForce means a write was attempted after the final
	// force-flush of a write-mode BufferedFile.
	ErrWriteAfterForce = errors.New("vfscore: write after force flush")

	// ErrDirectoryNotEmpty means rmdir was attempted on a non-empty
	// directory.
	ErrDirectoryNotEmpty = errors.New("vfscore: directory not empty")

	// ErrIsFile is returned by a backend constructor when the supplied
	// root turns out to name a file rather than a directory; the
	// returned handle is rooted at the file's parent.
	ErrIsFile = errors.New("vfscore: root is a file")
)
