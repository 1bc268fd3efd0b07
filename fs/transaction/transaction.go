// Package transaction implements the deferred-commit write grouping
// described in spec.md §4.4: files opened for write while a transaction
// is active are held in an ordered list, and their backend Commit or
// Discard call is made when the transaction completes or is discarded;
// directory-cache invalidations are queued until then as well. Closing
// such a file still force-flushes its final chunk to the backend, so
// whether its content is visible before the transaction completes
// depends on the backend: backend/memory and backend/local make it
// visible at close, and discarding afterwards does not remove it.
package transaction

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Stageable is anything a transaction can hold open and later finalize
// or abandon. fs/bfile.BufferedFile implements this for write-mode
// files.
type Stageable interface {
	Commit(ctx context.Context) error
	Discard(ctx context.Context) error
}

// Invalidator drops a path from a directory cache. fs/dircache.Cache
// satisfies this via its Invalidate method.
type Invalidator interface {
	Invalidate(path string)
}

// Transaction is the per-handle transaction object: an ordered list of
// pending write-mode files plus deferred cache invalidations.
type Transaction struct {
	Files                []Stageable
	pendingInvalidations []string
	log                  logrus.FieldLogger
}

// New returns a fresh, empty Transaction.
func New(log logrus.FieldLogger) *Transaction {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transaction{log: log}
}

// Stage appends a write-mode file to the transaction's pending list, in
// the order it was opened. Called by operations.Handle.OpenWrite at open
// time when autocommit is false and a transaction is active.
func (t *Transaction) Stage(f Stageable) {
	t.Files = append(t.Files, f)
}

// DeferInvalidate records a path to be invalidated at Complete time
// instead of immediately, per spec.md §4.4.
func (t *Transaction) DeferInvalidate(path string) {
	t.pendingInvalidations = append(t.pendingInvalidations, path)
}

// Complete commits every staged file in insertion order. If any commit
// fails, every remaining (not-yet-committed) file is discarded
// best-effort and the first error is returned. Pending invalidations
// always drain against dc, success or failure, per spec.md §4.4.
func (t *Transaction) Complete(ctx context.Context, dc Invalidator) error {
	var firstErr error
	for i, f := range t.Files {
		if firstErr != nil {
			if err := f.Discard(ctx); err != nil {
				t.log.WithError(err).Warn("transaction: best-effort discard failed")
			}
			continue
		}
		if err := f.Commit(ctx); err != nil {
			firstErr = err
			t.log.WithError(err).WithField("index", i).
				Warn("transaction: commit failed, discarding remainder")
		}
	}
	t.drainInvalidations(dc)
	return firstErr
}

// Discard abandons every staged file without committing any of them —
// used when the scoped acquisition around the transaction exits
// abnormally. Pending invalidations still drain: an in-flight operation
// may have optimistically recorded one before failing.
func (t *Transaction) Discard(ctx context.Context, dc Invalidator) {
	for _, f := range t.Files {
		if err := f.Discard(ctx); err != nil {
			t.log.WithError(err).Warn("transaction: discard failed")
		}
	}
	t.drainInvalidations(dc)
}

func (t *Transaction) drainInvalidations(dc Invalidator) {
	for _, p := range t.pendingInvalidations {
		dc.Invalidate(p)
	}
	t.pendingInvalidations = nil
}
