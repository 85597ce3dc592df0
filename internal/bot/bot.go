// Package bot wires the Discord client, the event forwarder and the feature
// modules together and runs them for the lifetime of the process.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"guildbot/internal/app"
	"guildbot/internal/commands"
	"guildbot/internal/discord"
	"guildbot/internal/events"
	"guildbot/internal/logging"
	"guildbot/internal/metrics"
	"guildbot/internal/modules"
	"guildbot/internal/system"
)

// ErrLoginFailed is returned by Run once the restart delay after a failed login has passed.
var ErrLoginFailed = errors.New("discord login failed")

// restartDelay is how long a failed login waits before the process exits.
const restartDelay = 5 * time.Minute

// Runner orchestrates the bot lifecycle.
type Runner struct {
	cfg    app.Config
	logger *slog.Logger

	after     func(time.Duration) <-chan time.Time
	newClient func(ctx context.Context, bus *events.Bus, opts discord.Options) (*discord.Client, error)
}

// New constructs a Runner with the provided configuration and logger.
func New(cfg app.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		after:  time.After,
	}
	r.newClient = func(ctx context.Context, bus *events.Bus, opts discord.Options) (*discord.Client, error) {
		return discord.New(ctx, r.cfg.Token, opts, bus)
	}
	return r
}

// Run connects to Discord and forwards client events to the logger until ctx
// is cancelled. A failed login is logged, then Run waits restartDelay and
// returns an error wrapping ErrLoginFailed.
func (r *Runner) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	lock, err := system.AcquireInstanceLock(r.cfg.LockFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn("Failed to release instance lock", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	bus := events.NewBus()
	bus.Use(events.Recover(r.logger))
	recorder.Register(bus)

	opts := discord.DefaultOptions()
	opts.LogLevel = discord.LibraryLogLevel(logging.ParseLevel(r.cfg.Log.Level))
	opts.InvalidRequestWarningInterval = r.cfg.InvalidRequestWarningInterval
	client, err := r.newClient(ctx, bus, opts)
	if err != nil {
		return fmt.Errorf("create discord client: %w", err)
	}

	loader := modules.NewRegistry(r.logger, recorder, r.cfg.ModuleInitTimeout)
	for _, m := range featureModules(r.cfg, r.logger, loader) {
		if err := loader.Register(m); err != nil {
			return fmt.Errorf("register module: %w", err)
		}
	}

	forwarder := NewForwarder(r.logger, func(ctx context.Context) {
		n := loader.LoadAll(ctx, client)
		r.logger.Debug("Module loading finished", "loaded", n)
	})
	forwarder.Register(bus)

	if r.cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, r.cfg.MetricsAddr, registry, r.logger); err != nil {
				r.logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if err := client.Open(); err != nil {
		return r.loginFailed(ctx, err)
	}
	if user := client.User(); user != nil {
		r.logger.Info("Logged in", "user", user.Username, "id", user.ID)
	}

	<-ctx.Done()
	if err := client.Close(); err != nil {
		r.logger.Warn("Failed to close Discord session", "error", err)
	}
	return ctx.Err()
}

// loginFailed writes the fatal line before the restart delay starts.
func (r *Runner) loginFailed(ctx context.Context, err error) error {
	logging.Fatal(ctx, r.logger, "Failed to log in to Discord", "error", err)
	r.logger.WarnContext(ctx, "Failed to connect to Discord API. Restarting in 5 minutes...")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.after(restartDelay):
	}
	return fmt.Errorf("%w: %w", ErrLoginFailed, err)
}

// featureModules is the static module table loaded after the first Ready.
func featureModules(cfg app.Config, logger *slog.Logger, loaded commands.Lister) []modules.Module {
	collector := metrics.NewCollector(metrics.Options{DiskTargets: cfg.DiskTargets})

	registry := commands.NewRegistry(commands.Dependencies{
		Config: cfg,
		Logger: logger,
	})
	registerCommands(registry, collector, loaded)
	registry.SetNotFound(func(ctx *commands.Context) error {
		return ctx.Reply(fmt.Sprintf("Unknown command. Try `%shelp`.", cfg.CommandPrefix))
	})
	registry.Use(logCommand(logger), commands.ReportErrors())

	return []modules.Module{
		commands.NewModule(registry),
	}
}

func registerCommands(registry *commands.Registry, collector *metrics.Collector, loaded commands.Lister) {
	registry.Handle("help", "Shows this help, or one command's", commands.ScopePublic, commands.NewHelpHandler(registry))
	registry.Handle("ping", "Gateway latency", commands.ScopePublic, commands.Ping)
	registry.Handle("stats", "Host CPU, memory, disk and uptime", commands.ScopePublic, commands.NewStatsHandler(collector))
	registry.Handle("modules", "Lists loaded modules", commands.ScopeOwner, commands.NewModulesHandler(loaded), commands.OwnerOnly())
}

func logCommand(logger *slog.Logger) commands.Middleware {
	return func(next commands.Handler) commands.Handler {
		return func(ctx *commands.Context) error {
			logger.Info("Command received", "command", ctx.Command, "author", ctx.AuthorID())
			return next(ctx)
		}
	}
}
