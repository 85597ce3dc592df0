package system

import (
	"context"
	"time"
)

// WithTimeout creates a cancellable context with the provided timeout.
// A non-positive duration only adds cancellation.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if duration <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, duration)
}
