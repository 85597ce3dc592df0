package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/events"
)

// defaultReadyTimeout bounds how long Ready waits for guilds announced as unavailable.
const defaultReadyTimeout = 15 * time.Second

var closeCodePattern = regexp.MustCompile(`close (\d{4})`)

// gateway failures discordgo only reports through its logger
var shardErrorMarkers = []string{
	"error reading from gateway",
	"error sending heartbeat",
}

// Bridge turns discordgo handlers and log lines into bus events.
type Bridge struct {
	ctx          context.Context
	bus          *events.Bus
	closing      func() bool
	readyTimeout time.Duration

	mu            sync.Mutex
	guilds        map[string]events.Guild
	order         []string
	pending       map[string]struct{}
	readyTimer    *time.Timer
	readyWaiting  bool
	resuming      bool
	replayed      int
	lastCloseCode int
}

// NewBridge builds a bridge emitting on bus. closing reports whether the
// client is shutting down on purpose.
func NewBridge(ctx context.Context, bus *events.Bus, closing func() bool, readyTimeout time.Duration) *Bridge {
	if closing == nil {
		closing = func() bool { return false }
	}
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	return &Bridge{
		ctx:          ctx,
		bus:          bus,
		closing:      closing,
		readyTimeout: readyTimeout,
		guilds:       make(map[string]events.Guild),
		pending:      make(map[string]struct{}),
	}
}

// Attach registers the bridge handlers on session.
func (b *Bridge) Attach(session *discordgo.Session) {
	session.AddHandler(b.onReady)
	session.AddHandler(b.onGuildCreate)
	session.AddHandler(b.onGuildUpdate)
	session.AddHandler(b.onGuildDelete)
	session.AddHandler(b.onDisconnect)
	session.AddHandler(b.onResumed)
	session.AddHandler(b.onEvent)
}

// Stop cancels a pending Ready wait.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readyTimer != nil {
		b.readyTimer.Stop()
		b.readyTimer = nil
	}
	b.readyWaiting = false
}

func (b *Bridge) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.mu.Lock()
	b.resuming = false
	b.replayed = 0
	b.guilds = make(map[string]events.Guild, len(r.Guilds))
	b.order = b.order[:0]
	b.pending = make(map[string]struct{})
	for _, g := range r.Guilds {
		guild := toGuild(g, events.Guild{})
		b.guilds[g.ID] = guild
		b.order = append(b.order, g.ID)
		if !guild.Available {
			b.pending[g.ID] = struct{}{}
		}
	}
	if b.readyTimer != nil {
		b.readyTimer.Stop()
		b.readyTimer = nil
	}

	if len(b.pending) == 0 {
		ready := b.snapshotLocked()
		b.mu.Unlock()
		b.bus.Emit(b.ctx, ready)
		return
	}

	b.readyWaiting = true
	b.readyTimer = time.AfterFunc(b.readyTimeout, b.flushReady)
	b.mu.Unlock()
}

// flushReady emits Ready with whatever arrived before the timeout.
func (b *Bridge) flushReady() {
	b.mu.Lock()
	if !b.readyWaiting {
		b.mu.Unlock()
		return
	}
	b.readyWaiting = false
	b.readyTimer = nil
	b.pending = make(map[string]struct{})
	ready := b.snapshotLocked()
	b.mu.Unlock()

	b.bus.Emit(b.ctx, ready)
}

func (b *Bridge) snapshotLocked() events.Ready {
	guilds := make([]events.Guild, 0, len(b.order))
	for _, id := range b.order {
		guilds = append(guilds, b.guilds[id])
	}
	return events.Ready{Guilds: guilds}
}

func (b *Bridge) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g == nil || g.Guild == nil {
		return
	}

	b.mu.Lock()
	if _, ok := b.pending[g.ID]; ok && b.readyWaiting {
		b.guilds[g.ID] = toGuild(g.Guild, b.guilds[g.ID])
		delete(b.pending, g.ID)
		if len(b.pending) > 0 {
			b.mu.Unlock()
			return
		}
		b.readyWaiting = false
		if b.readyTimer != nil {
			b.readyTimer.Stop()
			b.readyTimer = nil
		}
		ready := b.snapshotLocked()
		b.mu.Unlock()
		b.bus.Emit(b.ctx, ready)
		return
	}
	b.mu.Unlock()

	b.observeGuild(g.Guild)
}

func (b *Bridge) onGuildUpdate(_ *discordgo.Session, g *discordgo.GuildUpdate) {
	if g == nil || g.Guild == nil {
		return
	}
	b.observeGuild(g.Guild)
}

// observeGuild emits GuildUpdate for tracked guilds and starts tracking new ones silently.
func (b *Bridge) observeGuild(g *discordgo.Guild) {
	b.mu.Lock()
	old, tracked := b.guilds[g.ID]
	updated := toGuild(g, old)
	b.guilds[g.ID] = updated
	if !tracked {
		b.order = append(b.order, g.ID)
	}
	b.mu.Unlock()

	if tracked {
		b.bus.Emit(b.ctx, events.GuildUpdate{Old: old, New: updated})
	}
}

func (b *Bridge) onGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g == nil || g.Guild == nil {
		return
	}

	b.mu.Lock()
	old, tracked := b.guilds[g.ID]
	if !g.Unavailable {
		delete(b.guilds, g.ID)
		delete(b.pending, g.ID)
		b.order = removeID(b.order, g.ID)
		b.mu.Unlock()
		return
	}

	guild := toGuild(g.Guild, old)
	if guild.Name == "" && g.BeforeDelete != nil {
		guild.Name = g.BeforeDelete.Name
	}
	guild.Available = false
	b.guilds[g.ID] = guild
	if !tracked {
		b.order = append(b.order, g.ID)
	}
	b.mu.Unlock()

	b.bus.Emit(b.ctx, events.GuildUnavailable{Guild: guild})
}

func (b *Bridge) onDisconnect(s *discordgo.Session, _ *discordgo.Disconnect) {
	b.mu.Lock()
	code := b.lastCloseCode
	b.lastCloseCode = 0
	reconnecting := !b.closing() && s.ShouldReconnectOnError
	if reconnecting {
		b.resuming = true
		b.replayed = 0
	}
	b.mu.Unlock()

	b.bus.Emit(b.ctx, events.ShardDisconnect{ShardID: s.ShardID, Code: code})
	if reconnecting {
		b.bus.Emit(b.ctx, events.ShardReconnecting{ShardID: s.ShardID})
	}
}

func (b *Bridge) onResumed(s *discordgo.Session, _ *discordgo.Resumed) {
	b.mu.Lock()
	replayed := b.replayed
	b.resuming = false
	b.replayed = 0
	b.mu.Unlock()

	b.bus.Emit(b.ctx, events.ShardResume{ShardID: s.ShardID, ReplayedEvents: replayed})
}

// onEvent sees every raw dispatch after its typed handlers ran.
func (b *Bridge) onEvent(_ *discordgo.Session, e *discordgo.Event) {
	if e == nil || e.Type == "" {
		return
	}
	b.mu.Lock()
	if b.resuming {
		b.replayed++
	}
	b.mu.Unlock()
}

// LibraryLog matches discordgo.Logger.
func (b *Bridge) LibraryLog(msgL, _ int, format string, a ...any) {
	msg := strings.TrimSpace(fmt.Sprintf(format, a...))

	if msgL <= discordgo.LogWarning && isShardError(msg) {
		b.mu.Lock()
		if code := parseCloseCode(msg); code != 0 {
			b.lastCloseCode = code
		}
		b.mu.Unlock()
		b.bus.Emit(b.ctx, events.ShardError{Err: errors.New(msg)})
		return
	}

	switch msgL {
	case discordgo.LogError:
		b.bus.Emit(b.ctx, events.Error{Err: errors.New(msg)})
	case discordgo.LogWarning:
		b.bus.Emit(b.ctx, events.Warn{Message: msg})
	default:
		b.bus.Emit(b.ctx, events.Debug{Message: msg})
	}
}

func isShardError(msg string) bool {
	for _, marker := range shardErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func parseCloseCode(msg string) int {
	match := closeCodePattern.FindStringSubmatch(msg)
	if len(match) != 2 {
		return 0
	}
	code, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return code
}

// toGuild keeps the previous name when the gateway sends a bare guild.
func toGuild(g *discordgo.Guild, prev events.Guild) events.Guild {
	name := g.Name
	if name == "" {
		name = prev.Name
	}
	return events.Guild{ID: g.ID, Name: name, Available: !g.Unavailable}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
