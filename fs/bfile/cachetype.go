package bfile

import (
	"fmt"

	"github.com/spf13/pflag"
)

// CacheType selects a BufferedFile's read-mode byte-range provider.
// Implements pflag.Value (grounded on rclone's vfs.CacheMode, which is
// the teacher's equivalent flag-settable enum) so a CLI built on top of
// this core can expose --cache-type without this package depending on
// any CLI framework itself.
type CacheType int

// The four cache strategies named in spec.md §4.5.
const (
	CacheReadahead CacheType = iota
	CacheNone
	CacheBlock
	CacheBytes
)

var cacheTypeNames = [...]string{"readahead", "none", "block", "bytes"}

var _ pflag.Value = (*CacheType)(nil)

// String implements pflag.Value / fmt.Stringer.
func (c CacheType) String() string {
	if int(c) < 0 || int(c) >= len(cacheTypeNames) {
		return fmt.Sprintf("CacheType(%d)", int(c))
	}
	return cacheTypeNames[c]
}

// Set implements pflag.Value.
func (c *CacheType) Set(s string) error {
	for i, name := range cacheTypeNames {
		if name == s {
			*c = CacheType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown cache type %q", s)
}

// Type implements pflag.Value.
func (c CacheType) Type() string { return "CacheType" }
