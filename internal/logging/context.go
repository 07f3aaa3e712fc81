package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that keeps parent's values but ignores its
// cancellation.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from parent and applies its own deadline. The
// server uses it to deactivate the active mode after the serve context is cancelled:
//
//	ctx, cancel := logging.DetachContextWithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	err := orch.DeactivateActive(ctx)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(DetachContext(parent), timeout)
}
