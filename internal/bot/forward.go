package bot

import (
	"context"
	"log/slog"
	"sync"

	"guildbot/internal/events"
)

// Forwarder turns client events into log lines. The first Ready also starts
// the module loader.
type Forwarder struct {
	logger       *slog.Logger
	onFirstReady func(context.Context)
	once         sync.Once
}

// NewForwarder creates a forwarder. onFirstReady runs on its own goroutine and may be nil.
func NewForwarder(logger *slog.Logger, onFirstReady func(context.Context)) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{logger: logger, onFirstReady: onFirstReady}
}

// Register attaches one handler per event kind to bus.
func (f *Forwarder) Register(bus *events.Bus) {
	events.Subscribe(bus, f.ready)
	events.Subscribe(bus, f.guildUnavailable)
	events.Subscribe(bus, f.guildUpdate)
	events.Subscribe(bus, f.shardDisconnect)
	events.Subscribe(bus, f.shardReconnecting)
	events.Subscribe(bus, f.shardResume)
	events.Subscribe(bus, f.shardError)
	events.Subscribe(bus, f.invalidRequestWarning)
	events.Subscribe(bus, f.rateLimit)
	events.Subscribe(bus, f.libraryDebug)
	events.Subscribe(bus, f.libraryWarn)
	events.Subscribe(bus, f.libraryError)
}

func (f *Forwarder) ready(ctx context.Context, ev events.Ready) {
	total, available := ev.Counts()
	f.logger.InfoContext(ctx, "Discord API connection established", "guilds", total, "available", available)

	f.once.Do(func() {
		if f.onFirstReady != nil {
			go f.onFirstReady(ctx)
		}
	})
}

func (f *Forwarder) guildUnavailable(ctx context.Context, ev events.GuildUnavailable) {
	f.logger.WarnContext(ctx, "Guild unavailable", "guild", ev.Guild.Name, "id", ev.Guild.ID)
}

// guildUpdate only reports an unavailable guild coming back. Updates that stay
// available, stay unavailable or go unavailable are not logged here; the last
// case is reported by guildUnavailable. This is narrower than logging every
// update except available to available.
func (f *Forwarder) guildUpdate(ctx context.Context, ev events.GuildUpdate) {
	if ev.Old.Available || !ev.New.Available {
		return
	}
	f.logger.InfoContext(ctx, "Guild now available", "guild", ev.New.Name, "id", ev.New.ID)
}

func (f *Forwarder) shardDisconnect(ctx context.Context, ev events.ShardDisconnect) {
	f.logger.WarnContext(ctx, "Shard disconnected", "shard", ev.ShardID, "code", ev.Code)
}

func (f *Forwarder) shardReconnecting(ctx context.Context, ev events.ShardReconnecting) {
	f.logger.DebugContext(ctx, "Shard reconnecting", "shard", ev.ShardID)
}

func (f *Forwarder) shardResume(ctx context.Context, ev events.ShardResume) {
	f.logger.WarnContext(ctx, "Shard resumed", "shard", ev.ShardID, "replayed", ev.ReplayedEvents)
}

func (f *Forwarder) shardError(ctx context.Context, ev events.ShardError) {
	f.logger.ErrorContext(ctx, "Shard error", "shard", ev.ShardID, "error", ev.Err)
}

func (f *Forwarder) invalidRequestWarning(ctx context.Context, ev events.InvalidRequestWarning) {
	f.logger.WarnContext(ctx, "Too many invalid requests",
		"count", ev.Count,
		"reset_in_seconds", int(ev.RemainingTime.Seconds()),
	)
}

func (f *Forwarder) rateLimit(ctx context.Context, ev events.RateLimit) {
	f.logger.WarnContext(ctx, "Rate limit hit",
		"timeout", ev.Timeout,
		"limit", ev.Limit,
		"method", ev.Method,
		"path", ev.Path,
		"route", ev.Route,
		"global", ev.Global,
	)
}

func (f *Forwarder) libraryDebug(ctx context.Context, ev events.Debug) {
	f.logger.DebugContext(ctx, ev.Message)
}

func (f *Forwarder) libraryWarn(ctx context.Context, ev events.Warn) {
	f.logger.WarnContext(ctx, ev.Message)
}

func (f *Forwarder) libraryError(ctx context.Context, ev events.Error) {
	if ev.Err == nil {
		return
	}
	f.logger.ErrorContext(ctx, ev.Err.Error())
}
