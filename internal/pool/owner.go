package pool

import "weak"

// Owner is the handle a logical connection retains for as long as it
// holds a checked-out session. The pool never stores a strong reference
// to it — only a weak.Pointer — so a caller that drops the handle without
// calling Return becomes visible to the leak-recovery scan once the
// garbage collector reclaims it.
type Owner struct {
	_ [0]func() // no accidental comparability/copy semantics beyond pointer identity
	// A zero-size Owner would never be reclaimed (its weak pointer would
	// never turn nil); a pointer field gives each handle its own
	// collectable heap object outside the tiny-object allocator.
	_ *byte
}

// NewOwner returns a fresh handle for a checkout. Callers keep it alive
// (a field on their connection wrapper works) until they return the
// session; dropping it early is exactly the leak scenario the leak scan
// exists to recover from.
func NewOwner() *Owner {
	return &Owner{}
}

// weakOwner wraps weak.Pointer[Owner] so the rest of the package doesn't
// need to spell out the generic instantiation everywhere.
type weakOwner struct {
	ptr weak.Pointer[Owner]
}

func newWeakOwner(o *Owner) weakOwner {
	return weakOwner{ptr: weak.Make(o)}
}

// resolve returns the live Owner, or nil if it has been garbage collected.
func (w weakOwner) resolve() *Owner {
	return w.ptr.Value()
}
