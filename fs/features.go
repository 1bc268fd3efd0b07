package fs

// Features records which optional capabilities a Backend implements,
// discovered once at construction time by type-asserting the backend
// value. Mirrors the teacher's Fs.Features()/Fill() pattern but as a
// plain value rather than a self-registering builder, since this core
// has a fixed, small capability set rather an extensible plugin system.
type Features struct {
	CanMkdir      bool
	CanRmdir      bool
	CanCopy       bool
	CanStat       bool
	CanTouch      bool
	CanTimestamp  bool
	CanSign       bool
	CanChecksum   bool
	// BucketBased reports that the backend has no true directories: they
	// are synthesized from object-key prefixes, so an empty one vanishes
	// once its last object is removed.
	BucketBased bool
}

// Fill inspects backend and sets the flags it satisfies.
func Fill(backend Backend) *Features {
	f := &Features{}
	if _, ok := backend.(Maker); ok {
		f.CanMkdir = true
	}
	if _, ok := backend.(RmdirRemover); ok {
		f.CanRmdir = true
	}
	if _, ok := backend.(Copier); ok {
		f.CanCopy = true
	}
	if _, ok := backend.(Stater); ok {
		f.CanStat = true
	}
	if _, ok := backend.(Toucher); ok {
		f.CanTouch = true
	}
	if _, ok := backend.(Timestamper); ok {
		f.CanTimestamp = true
	}
	if _, ok := backend.(Signer); ok {
		f.CanSign = true
	}
	if _, ok := backend.(Checksummer); ok {
		f.CanChecksum = true
	}
	if bb, ok := backend.(Bucketer); ok {
		f.BucketBased = bb.BucketBased()
	}
	return f
}
