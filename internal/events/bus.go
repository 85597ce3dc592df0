package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes an event.
type Handler func(ctx context.Context, ev Event)

// Middleware wraps a handler to inject pre/post logic.
type Middleware func(Handler) Handler

// Bus maps event kinds to handlers.
type Bus struct {
	mu         sync.RWMutex
	handlers   map[Kind][]Handler
	middleware []Middleware
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]Handler)}
}

// Use appends global middleware applied to every handler.
func (b *Bus) Use(mw ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw...)
}

// On registers a handler for kind. Handlers of the same kind run in registration order.
func (b *Bus) On(kind Kind, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Subscribe registers a handler typed to a single payload.
func Subscribe[T Event](b *Bus, handler func(context.Context, T)) {
	var zero T
	b.On(zero.Kind(), func(ctx context.Context, ev Event) {
		if typed, ok := ev.(T); ok {
			handler(ctx, typed)
		}
	})
}

// Emit delivers ev to every handler registered for its kind.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if b == nil || ev == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[ev.Kind()]...)
	middleware := append([]Middleware(nil), b.middleware...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		for i := len(middleware) - 1; i >= 0; i-- {
			handler = middleware[i](handler)
		}
		handler(ctx, ev)
	}
}

// Recover stops a panicking handler from unwinding into the emitter, which is
// usually the gateway read loop, and logs the panic instead.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, ev Event) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "Event handler panicked", "kind", ev.Kind().String(), "panic", r)
				}
			}()
			next(ctx, ev)
		}
	}
}
