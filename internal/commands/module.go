package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/discord"
	"guildbot/internal/system"
)

// Module is the feature module that answers prefixed or mentioned commands.
type Module struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration

	// spawn runs a dispatch off the gateway read loop.
	spawn func(func())
}

// NewModule wraps registry so it can be loaded by the module loader.
func NewModule(registry *Registry) *Module {
	return &Module{
		registry: registry,
		logger:   registry.deps.Logger,
		timeout:  registry.deps.Config.CommandTimeout,
		spawn:    func(f func()) { go f() },
	}
}

// Name implements modules.Module.
func (m *Module) Name() string {
	return "commands"
}

// Init subscribes to guild messages on client.
func (m *Module) Init(ctx context.Context, client *discord.Client) error {
	if client == nil {
		return errors.New("commands: client is nil")
	}
	// ctx only bounds initialization; commands keep running afterwards.
	base := context.WithoutCancel(ctx)
	client.AddHandler(func(_ *discordgo.Session, msg *discordgo.MessageCreate) {
		m.handle(base, client, msg)
	})
	return nil
}

func (m *Module) handle(ctx context.Context, client *discord.Client, msg *discordgo.MessageCreate) {
	if msg == nil || msg.Message == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	m.spawn(func() {
		runCtx, cancel := system.WithTimeout(ctx, m.timeout)
		defer cancel()

		err := m.registry.Dispatch(runCtx, client, msg)
		if err != nil && !errors.Is(err, ErrNotCommand) {
			m.logger.Error("Command dispatch failed", "channel", msg.ChannelID, "author", msg.Author.ID, "error", err)
		}
	})
}
