// Package modules loads feature modules once the client is connected.
package modules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"guildbot/internal/discord"
	"guildbot/internal/system"
)

// ErrDuplicate is returned when a module name is registered twice.
var ErrDuplicate = errors.New("module already registered")

// maxConcurrentInits bounds how many modules initialize at once.
const maxConcurrentInits = 4

// Module is a feature unit initialized with the shared client.
type Module interface {
	Name() string
	Init(ctx context.Context, client *discord.Client) error
}

// Observer is told the outcome of each module initialization.
type Observer interface {
	ObserveModule(name string, err error)
}

// Registry holds the modules to load and remembers which ones loaded.
type Registry struct {
	logger      *slog.Logger
	observer    Observer
	initTimeout time.Duration

	mu      sync.Mutex
	modules []Module
	names   map[string]struct{}
	loaded  []string
}

// NewRegistry creates an empty registry. observer may be nil.
func NewRegistry(logger *slog.Logger, observer Observer, initTimeout time.Duration) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:      logger,
		observer:    observer,
		initTimeout: initTimeout,
		names:       make(map[string]struct{}),
	}
}

// Register adds m to the load list.
func (r *Registry) Register(m Module) error {
	if m == nil {
		return errors.New("module is nil")
	}
	name := strings.TrimSpace(m.Name())
	if name == "" {
		return errors.New("module name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.names[name] = struct{}{}
	r.modules = append(r.modules, m)
	return nil
}

// LoadAll initializes every registered module concurrently. A module that
// fails is logged and skipped; the others still load. It returns the number
// of modules that loaded.
func (r *Registry) LoadAll(ctx context.Context, client *discord.Client) int {
	r.mu.Lock()
	pending := append([]Module(nil), r.modules...)
	r.mu.Unlock()

	var loaded atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentInits)
	for _, m := range pending {
		g.Go(func() error {
			name := strings.TrimSpace(m.Name())
			err := r.initModule(gctx, m, client)
			if r.observer != nil {
				r.observer.ObserveModule(name, err)
			}
			if err != nil {
				r.logger.Error("Failed to load module", "module", name, "error", err)
				return nil
			}

			r.logger.Info("Loaded module", "module", name)
			loaded.Add(1)
			r.markLoaded(name)
			return nil
		})
	}
	_ = g.Wait()
	return int(loaded.Load())
}

// initModule runs Init on its own goroutine so a hung module only costs its
// timeout. Panics are returned as errors.
func (r *Registry) initModule(ctx context.Context, m Module, client *discord.Client) error {
	initCtx, cancel := system.WithTimeout(ctx, r.initTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("panic: %v\n%s", rec, debug.Stack())
			}
		}()
		done <- m.Init(initCtx, client)
	}()

	select {
	case err := <-done:
		return err
	case <-initCtx.Done():
		return fmt.Errorf("init: %w", initCtx.Err())
	}
}

func (r *Registry) markLoaded(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, name)
}

// Loaded returns the names of the modules that loaded, sorted.
func (r *Registry) Loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.loaded...)
	sort.Strings(out)
	return out
}
