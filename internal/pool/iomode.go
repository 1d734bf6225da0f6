package pool

import "context"

// IOMode labels how an operation is being driven: ModeAsync for the
// background maintenance goroutines and the bench workers, ModeSync for
// blocking calls such as the registry's ClearAll at shutdown. The caller
// picks the mode; the pool runs the same code path for both. It does not
// change how cancellation is handled: the caller's context is honored at
// every suspension point regardless of mode.
type IOMode int

const (
	ModeAsync IOMode = iota
	ModeSync
)

// resolveContext exists as the single point every entry point routes
// through before touching ctx, so a future mode-specific adjustment has
// one place to live. Today it is a passthrough: callers' cancellation
// and deadlines are never overridden.
func resolveContext(ctx context.Context, _ IOMode) context.Context {
	return ctx
}
