package operations

import (
	"fmt"

	"github.com/spf13/pflag"
)

// OnErrorPolicy governs how bulk operations (Cat, Copy) treat per-item
// failures, per spec.md §7.
type OnErrorPolicy int

const (
	// OnErrorRaise propagates the first failure immediately.
	OnErrorRaise OnErrorPolicy = iota
	// OnErrorOmit drops the failing key from the result (Cat only).
	OnErrorOmit
	// OnErrorReturn places the error's message, as bytes, into the result
	// map (Cat only).
	OnErrorReturn
	// OnErrorIgnore skips the failing item and continues (Copy only).
	OnErrorIgnore
)

var onErrorNames = [...]string{"raise", "omit", "return", "ignore"}

var _ pflag.Value = (*OnErrorPolicy)(nil)

func (p OnErrorPolicy) String() string {
	if int(p) < 0 || int(p) >= len(onErrorNames) {
		return fmt.Sprintf("OnErrorPolicy(%d)", int(p))
	}
	return onErrorNames[p]
}

// Set implements pflag.Value.
func (p *OnErrorPolicy) Set(s string) error {
	for i, name := range onErrorNames {
		if name == s {
			*p = OnErrorPolicy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown on_error policy %q", s)
}

// Type implements pflag.Value.
func (p OnErrorPolicy) Type() string { return "OnErrorPolicy" }
