// Package operations implements the derived-operations engine of
// spec.md §4.6: every high-level filesystem call a caller uses, built
// on top of the small primitive set a Backend supplies.
package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/moradology/vfscore/fs"
	"github.com/moradology/vfscore/fs/bfile"
	"github.com/moradology/vfscore/fs/dircache"
	"github.com/moradology/vfscore/fs/transaction"
	"github.com/sirupsen/logrus"
)

// Backend is the capability set a Handle wraps: fs.Backend (listing and
// the naming attributes) plus bfile.Backend (the range-read and
// chunk-upload primitives OpenRead/OpenWrite use), both required by the
// type. Removal, copy, stat and the other optional capabilities are
// detected by type assertion.
type Backend interface {
	fs.Backend
	bfile.Backend
}

// HandleOptions configures a Handle at construction, corresponding to
// spec.md §6's constructor options.
type HandleOptions struct {
	UseListingsCache   bool
	ListingsExpiryTime int64 // seconds; 0 means no expiry
	MaxPaths           int
	BlockSize          int64
	CacheType          bfile.CacheType
	Log                logrus.FieldLogger
}

// Handle is the per-backend filesystem object of spec.md §3: the
// construction parameters plus the directory cache, the (possibly nil)
// active transaction, and the backend it delegates primitive calls to.
type Handle struct {
	Backend    Backend
	Token      string
	Options    HandleOptions
	dircache   *dircache.Cache
	transact   *transaction.Transaction
	inTransact bool
	features   *fs.Features
	log        logrus.FieldLogger
}

// New wraps backend in a Handle. token is a human-readable label this
// Handle was constructed under (kept for introspection/serialization).
// New itself never consults the instance cache: the root vfscore package's
// GetFilesystem is the construction path that makes a Handle idempotent
// per spec.md §4.3 — backend constructors (backend/memory.Open,
// backend/local.Open) route through it rather than calling New directly.
func New(backend Backend, token string, opt HandleOptions) *Handle {
	if opt.Log == nil {
		opt.Log = logrus.StandardLogger()
	}
	dc := dircache.New(dircache.Options{
		UseListingsCache:   opt.UseListingsCache,
		ListingsExpiryTime: time.Duration(opt.ListingsExpiryTime) * time.Second,
		MaxPaths:           opt.MaxPaths,
	})
	return &Handle{
		Backend:  backend,
		Token:    token,
		Options:  opt,
		dircache: dc,
		features: fs.Fill(backend),
		log:      opt.Log,
	}
}

// Features reports which optional backend capabilities were detected.
func (h *Handle) Features() *fs.Features { return h.features }

// RootMarker delegates to the backend.
func (h *Handle) RootMarker() string { return h.Backend.RootMarker() }

// StripProtocol delegates to fs.StripProtocol using this handle's root marker.
func (h *Handle) StripProtocol(path string) string { return fs.StripProtocol(path, h.RootMarker()) }

// Parent delegates to fs.Parent using this handle's root marker.
func (h *Handle) Parent(path string) string { return fs.Parent(path, h.RootMarker()) }

// InTransaction reports whether a transaction is currently active.
func (h *Handle) InTransaction() bool { return h.inTransact }

// StartTransaction begins a transaction: spec.md §4.4's start().
func (h *Handle) StartTransaction() {
	h.inTransact = true
	h.transact = transaction.New(h.log)
}

// CompleteTransaction commits every staged file in order; on the first
// failure it discards the remainder and returns that error. Always
// clears in_transaction afterward.
func (h *Handle) CompleteTransaction(ctx context.Context) error {
	if h.transact == nil {
		return nil
	}
	err := h.transact.Complete(ctx, h.dircache)
	h.transact = nil
	h.inTransact = false
	return err
}

// DiscardTransaction abandons every staged file without committing.
func (h *Handle) DiscardTransaction(ctx context.Context) {
	if h.transact == nil {
		h.inTransact = false
		return
	}
	h.transact.Discard(ctx, h.dircache)
	h.transact = nil
	h.inTransact = false
}

// WithTransaction is the scoped-acquisition helper of spec.md §9: start
// a transaction, run fn, and commit on a nil return or discard on a
// non-nil one (an abnormal exit). It returns fn's error, or the commit
// error if fn succeeded but commit failed.
func (h *Handle) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	h.StartTransaction()
	defer func() {
		if r := recover(); r != nil {
			h.DiscardTransaction(ctx)
			panic(r)
		}
	}()
	if ferr := fn(ctx); ferr != nil {
		h.DiscardTransaction(ctx)
		return ferr
	}
	return h.CompleteTransaction(ctx)
}

// OpenRead opens path for reading as a BufferedFile.
func (h *Handle) OpenRead(ctx context.Context, path string, cacheType bfile.CacheType) (*bfile.BufferedFile, error) {
	info, err := h.Info(ctx, path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("operations: open %q for read: %w", path, fs.ErrIsADirectory)
	}
	bs := h.Options.BlockSize
	if bs <= 0 {
		bs = h.Backend.Blocksize()
	}
	return bfile.Open(h.Backend, path, bfile.ModeRead, info, bfile.Options{BlockSize: bs, CacheType: cacheType}, h.log), nil
}

// OpenWrite opens path for writing. When a transaction is active and
// autocommit is false (the default inside a transaction, matching
// spec.md §4.4), the returned file is staged into the transaction at
// open time, so its backend Commit runs when the transaction completes.
// Closing it still force-flushes its final chunk to the backend.
func (h *Handle) OpenWrite(ctx context.Context, path string, autocommit *bool, cacheType bfile.CacheType) (*bfile.BufferedFile, error) {
	ac := !h.inTransact
	if autocommit != nil {
		ac = *autocommit
	}
	bs := h.Options.BlockSize
	if bs <= 0 {
		bs = h.Backend.Blocksize()
	}
	bf := bfile.Open(h.Backend, path, bfile.ModeWrite, fs.FileInfo{}, bfile.Options{BlockSize: bs, Autocommit: ac, CacheType: cacheType}, h.log)
	if !ac && h.transact != nil {
		h.transact.Stage(bf)
	}
	return bf, nil
}

// CloseFile closes f, always invalidating path's and its parent's
// directory-cache entries (or deferring that to the active transaction
// — see InvalidateCache).
func (h *Handle) CloseFile(ctx context.Context, f *bfile.BufferedFile) error {
	return f.Close(ctx, invalidatorFor(h), h.RootMarker())
}

// invalidatorFor returns a transaction.Invalidator-compatible wrapper
// that defers to the active transaction when one is running, or applies
// immediately otherwise.
func invalidatorFor(h *Handle) interface{ Invalidate(string) } {
	if h.inTransact && h.transact != nil {
		return deferredInvalidator{h: h}
	}
	return h.dircache
}

type deferredInvalidator struct{ h *Handle }

func (d deferredInvalidator) Invalidate(path string) {
	d.h.transact.DeferInvalidate(path)
}

// InvalidateCache drops path (and, when path == "", every entry) from
// the directory cache — immediately, or deferred to transaction commit
// if one is active.
func (h *Handle) InvalidateCache(path string) {
	if path == "" {
		if h.inTransact && h.transact != nil {
			// spec.md only defers single-path invalidations in its
			// model; a full-cache drop inside a transaction still
			// drops immediately since there is no "whole cache" token
			// to defer meaningfully across a partial commit.
			h.dircache.InvalidateAll()
			return
		}
		h.dircache.InvalidateAll()
		return
	}
	invalidatorFor(h).Invalidate(path)
}
