package bot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guildbot/internal/events"
	"guildbot/internal/logging"
)

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	data := append([]byte(nil), b.buf.Bytes()...)
	b.mu.Unlock()

	var out []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		out = append(out, entry)
	}
	return out
}

func (b *logBuffer) withMessage(t *testing.T, msg string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, entry := range b.entries(t) {
		if entry["msg"] == msg {
			out = append(out, entry)
		}
	}
	return out
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: logging.ReplaceLevel,
	})), buf
}

func newTestForwarder(onFirstReady func(context.Context)) (*events.Bus, *logBuffer) {
	logger, buf := newTestLogger()
	bus := events.NewBus()
	NewForwarder(logger, onFirstReady).Register(bus)
	return bus, buf
}

func TestForwarderReadySummaryStartsLoaderOnce(t *testing.T) {
	started := make(chan struct{}, 2)
	bus, logs := newTestForwarder(func(context.Context) { started <- struct{}{} })

	ready := events.Ready{Guilds: []events.Guild{
		{ID: "1", Available: true},
		{ID: "2", Available: false},
		{ID: "3", Available: true},
	}}
	bus.Emit(context.Background(), ready)
	bus.Emit(context.Background(), ready)

	lines := logs.withMessage(t, "Discord API connection established")
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.EqualValues(t, 3, lines[0]["guilds"])
	assert.EqualValues(t, 2, lines[0]["available"])

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("module loader not started")
	}
	select {
	case <-started:
		t.Fatal("module loader started twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForwarderGuildUnavailable(t *testing.T) {
	bus, logs := newTestForwarder(nil)

	bus.Emit(context.Background(), events.GuildUnavailable{Guild: events.Guild{ID: "123", Name: "Guild A"}})

	lines := logs.withMessage(t, "Guild unavailable")
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "Guild A", lines[0]["guild"])
	assert.Equal(t, "123", lines[0]["id"])
}

func TestForwarderGuildUpdateLogsRecoveryOnly(t *testing.T) {
	bus, logs := newTestForwarder(nil)
	ctx := context.Background()

	up := events.Guild{ID: "123", Name: "Guild A", Available: true}
	down := events.Guild{ID: "123", Name: "Guild A", Available: false}

	bus.Emit(ctx, events.GuildUpdate{Old: up, New: up})
	assert.Empty(t, logs.entries(t), "available to available is a no-op")

	bus.Emit(ctx, events.GuildUpdate{Old: up, New: down})
	assert.Empty(t, logs.entries(t), "going unavailable is reported elsewhere")

	bus.Emit(ctx, events.GuildUpdate{Old: down, New: down})
	assert.Empty(t, logs.entries(t), "still unavailable is not a recovery")

	bus.Emit(ctx, events.GuildUpdate{Old: down, New: up})
	lines := logs.withMessage(t, "Guild now available")
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "Guild A", lines[0]["guild"])
}

func TestForwarderShardEvents(t *testing.T) {
	bus, logs := newTestForwarder(nil)
	ctx := context.Background()

	bus.Emit(ctx, events.ShardDisconnect{ShardID: 0, Code: 4000})
	bus.Emit(ctx, events.ShardReconnecting{ShardID: 0})
	bus.Emit(ctx, events.ShardResume{ShardID: 0, ReplayedEvents: 7})
	bus.Emit(ctx, events.ShardError{ShardID: 0, Err: errors.New("websocket: close 1006")})

	disconnect := logs.withMessage(t, "Shard disconnected")
	require.Len(t, disconnect, 1)
	assert.Equal(t, "WARN", disconnect[0]["level"])
	assert.EqualValues(t, 4000, disconnect[0]["code"])
	assert.NotContains(t, disconnect[0], "reason")

	reconnecting := logs.withMessage(t, "Shard reconnecting")
	require.Len(t, reconnecting, 1)
	assert.Equal(t, "DEBUG", reconnecting[0]["level"])

	resumed := logs.withMessage(t, "Shard resumed")
	require.Len(t, resumed, 1)
	assert.Equal(t, "WARN", resumed[0]["level"])
	assert.EqualValues(t, 7, resumed[0]["replayed"])

	shardErr := logs.withMessage(t, "Shard error")
	require.Len(t, shardErr, 1)
	assert.Equal(t, "ERROR", shardErr[0]["level"])
	assert.Equal(t, "websocket: close 1006", shardErr[0]["error"])
}

func TestForwarderInvalidRequestWarning(t *testing.T) {
	bus, logs := newTestForwarder(nil)

	bus.Emit(context.Background(), events.InvalidRequestWarning{Count: 500, RemainingTime: 90*time.Second + 400*time.Millisecond})

	lines := logs.withMessage(t, "Too many invalid requests")
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.EqualValues(t, 500, lines[0]["count"])
	assert.EqualValues(t, 90, lines[0]["reset_in_seconds"])
}

func TestForwarderRateLimitKeepsZeroFields(t *testing.T) {
	bus, logs := newTestForwarder(nil)

	bus.Emit(context.Background(), events.RateLimit{Method: "GET", Path: "/gateway/bot", Route: "/gateway/bot"})

	lines := logs.withMessage(t, "Rate limit hit")
	require.Len(t, lines, 1)
	for _, key := range []string{"timeout", "limit", "method", "path", "route", "global"} {
		assert.Contains(t, lines[0], key)
	}
	assert.EqualValues(t, 0, lines[0]["timeout"])
	assert.EqualValues(t, 0, lines[0]["limit"])
	assert.Equal(t, false, lines[0]["global"])
}

func TestForwarderLibraryDiagnosticsVerbatim(t *testing.T) {
	bus, logs := newTestForwarder(nil)
	ctx := context.Background()

	bus.Emit(ctx, events.Debug{Message: "sending heartbeat"})
	bus.Emit(ctx, events.Warn{Message: "voice connection lost"})
	bus.Emit(ctx, events.Error{Err: errors.New("request failed")})
	bus.Emit(ctx, events.Error{})

	entries := logs.entries(t)
	require.Len(t, entries, 3)
	assert.Equal(t, "DEBUG", entries[0]["level"])
	assert.Equal(t, "sending heartbeat", entries[0]["msg"])
	assert.Equal(t, "WARN", entries[1]["level"])
	assert.Equal(t, "voice connection lost", entries[1]["msg"])
	assert.Equal(t, "ERROR", entries[2]["level"])
	assert.Equal(t, "request failed", entries[2]["msg"])
}
