// Package discord configures the discordgo session used by the bot and
// translates what the library reports into typed events.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/events"
)

// Options is the fixed client configuration.
type Options struct {
	Status string
	// AllowedMentions is applied to every message sent through the Client.
	AllowedMentions []discordgo.AllowedMentionType
	Intents         discordgo.Intent
	// PartialChannels lets Channel fetch channels missing from the state cache.
	PartialChannels bool
	// LogLevel is the discordgo verbosity forwarded to the bus. discordgo
	// drops anything above it before the Logger hook runs.
	LogLevel int

	InvalidRequestWarningInterval int
	ReadyTimeout                  time.Duration
}

// DefaultOptions returns the configuration the bot runs with.
func DefaultOptions() Options {
	return Options{
		Status: string(discordgo.StatusOnline),
		// No @everyone or @here.
		AllowedMentions: []discordgo.AllowedMentionType{
			discordgo.AllowedMentionTypeUsers,
			discordgo.AllowedMentionTypeRoles,
		},
		Intents:         discordgo.IntentsGuilds | discordgo.IntentsGuildMessages,
		PartialChannels: true,
		LogLevel:        discordgo.LogDebug,
		ReadyTimeout:    defaultReadyTimeout,
	}
}

// LibraryLogLevel maps the bot's log level to the discordgo level that lets
// through everything the logger would keep. Library informational lines are
// forwarded as debug events, so only a debug logger needs them.
func LibraryLogLevel(level slog.Level) int {
	switch {
	case level <= slog.LevelDebug:
		return discordgo.LogDebug
	case level < slog.LevelError:
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}

// Client is the process-wide handle to the Discord session. Feature modules
// receive it at init and send through it so the mention policy always applies.
type Client struct {
	session *discordgo.Session
	opts    Options
	bridge  *Bridge
	opened  atomic.Bool
	closing atomic.Bool
}

// New creates a session for token and wires it to bus.
func New(ctx context.Context, token string, opts Options, bus *events.Bus) (*Client, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return NewFromSession(ctx, session, opts, bus), nil
}

// NewFromSession applies opts to an existing session. A nil bus leaves the
// session without event forwarding.
func NewFromSession(ctx context.Context, session *discordgo.Session, opts Options, bus *events.Bus) *Client {
	if ctx == nil {
		ctx = context.Background()
	}

	session.Identify.Intents = opts.Intents
	session.Identify.Presence.Status = opts.Status
	session.SyncEvents = true
	session.StateEnabled = true
	session.ShouldReconnectOnError = true
	session.LogLevel = opts.LogLevel
	if session.State == nil {
		session.State = discordgo.NewState()
	}
	session.State.TrackChannels = true

	c := &Client{session: session, opts: opts}
	if bus == nil {
		return c
	}

	if session.Client == nil {
		session.Client = &http.Client{Timeout: 20 * time.Second}
	}
	session.Client.Transport = NewTransport(ctx, session.Client.Transport, bus, opts.InvalidRequestWarningInterval)

	c.bridge = NewBridge(ctx, bus, c.stopping, opts.ReadyTimeout)
	c.bridge.Attach(session)
	discordgo.Logger = c.bridge.LibraryLog

	return c
}

// Open connects to the gateway. The error is returned as-is from the handshake.
func (c *Client) Open() error {
	c.closing.Store(false)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	c.opened.Store(true)
	return nil
}

// stopping is true while no session should be re-established: before the
// first successful Open and after Close.
func (c *Client) stopping() bool {
	return c.closing.Load() || !c.opened.Load()
}

// Close disconnects without triggering a reconnect.
func (c *Client) Close() error {
	c.closing.Store(true)
	if c.bridge != nil {
		c.bridge.Stop()
	}
	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close gateway: %w", err)
	}
	return nil
}

// AddHandler registers a discordgo event handler and returns its remover.
func (c *Client) AddHandler(handler any) func() {
	return c.session.AddHandler(handler)
}

// User returns the bot user once the session is ready.
func (c *Client) User() *discordgo.User {
	if c.session.State == nil {
		return nil
	}
	return c.session.State.User
}

// HeartbeatLatency is the last measured gateway round trip.
func (c *Client) HeartbeatLatency() time.Duration {
	return c.session.HeartbeatLatency()
}

// Reply posts content as a reply to m.
func (c *Client) Reply(m *discordgo.Message, content string) (*discordgo.Message, error) {
	if m == nil {
		return nil, errors.New("cannot reply without message")
	}
	return c.send(m.ChannelID, &discordgo.MessageSend{
		Content:   content,
		Reference: m.Reference(),
	})
}

// EditMessage replaces the content of a message the bot sent.
func (c *Client) EditMessage(channelID, messageID, content string) (*discordgo.Message, error) {
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(content)
	edit.AllowedMentions = c.allowedMentions()
	msg, err := c.session.ChannelMessageEditComplex(edit)
	if err != nil {
		return nil, fmt.Errorf("edit message %s: %w", messageID, err)
	}
	return msg, nil
}

func (c *Client) allowedMentions() *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{
		Parse: append([]discordgo.AllowedMentionType(nil), c.opts.AllowedMentions...),
	}
}

func (c *Client) send(channelID string, data *discordgo.MessageSend) (*discordgo.Message, error) {
	data.AllowedMentions = c.allowedMentions()
	msg, err := c.session.ChannelMessageSendComplex(channelID, data)
	if err != nil {
		return nil, fmt.Errorf("send message to %s: %w", channelID, err)
	}
	return msg, nil
}

// Channel returns the cached channel, fetching and caching it when the cache
// only holds a partial view.
func (c *Client) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	if !c.opts.PartialChannels {
		return nil, fmt.Errorf("channel %s is not cached", channelID)
	}

	ch, err := c.session.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("fetch channel %s: %w", channelID, err)
	}
	if err := c.session.State.ChannelAdd(ch); err != nil {
		// Guild channels are only cached under a cached guild.
		c.debug("channel %s not added to state: %v", channelID, err)
	}
	return ch, nil
}

// debug reports a client diagnostic the way library debug lines are reported.
func (c *Client) debug(format string, args ...any) {
	if c.bridge == nil {
		return
	}
	c.bridge.bus.Emit(c.bridge.ctx, events.Debug{Message: fmt.Sprintf(format, args...)})
}
