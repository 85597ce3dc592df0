package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/app"
	"guildbot/internal/discord"
)

// ErrNotCommand is returned by Dispatch for messages that do not address the bot.
var ErrNotCommand = errors.New("message is not a command")

// Handler processes a command request.
type Handler func(ctx *Context) error

// Middleware wraps a handler to inject pre/post logic.
type Middleware func(Handler) Handler

// registeredCommand stores metadata for a registered command.
type registeredCommand struct {
	Handler     Handler
	Description string
	Middlewares []Middleware
	Scope       CommandScope
}

// CommandScope describes the visibility of a command.
type CommandScope int

const (
	ScopePublic CommandScope = iota
	ScopeOwner
)

// Dependencies groups shared dependencies provided to handlers.
type Dependencies struct {
	Config app.Config
	Logger *slog.Logger
}

type Registry struct {
	deps       Dependencies
	commands   map[string]registeredCommand
	notFound   Handler
	middleware []Middleware
}

// NewRegistry creates a registry with the supplied dependencies.
func NewRegistry(deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Registry{
		deps:     deps,
		commands: make(map[string]registeredCommand),
	}
}

// Use appends global middleware applied to every handler.
func (r *Registry) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// Handle registers a command with its metadata.
func (r *Registry) Handle(name string, description string, scope CommandScope, handler Handler, middlewares ...Middleware) {
	r.add(name, registeredCommand{
		Handler:     handler,
		Description: description,
		Middlewares: middlewares,
		Scope:       scope,
	})
}

func (r *Registry) add(name string, cmd registeredCommand) {
	if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
		r.commands[name] = cmd
	}
}

// SetNotFound sets the fallback handler for unknown commands.
func (r *Registry) SetNotFound(handler Handler) {
	r.notFound = handler
}

// Dispatch resolves and executes the command referenced by the message.
func (r *Registry) Dispatch(ctx context.Context, client *discord.Client, m *discordgo.MessageCreate) error {
	if m == nil || m.Message == nil {
		return errors.New("event has no message")
	}

	botID := ""
	if client != nil {
		if user := client.User(); user != nil {
			botID = user.ID
		}
	}
	name, args, ok := parseCommand(m.Content, r.deps.Config.CommandPrefix, botID)
	if !ok {
		return ErrNotCommand
	}

	entry, ok := r.commands[name]
	if !ok {
		if r.notFound != nil {
			return r.notFound(r.buildContext(ctx, client, m, name, args))
		}
		return fmt.Errorf("command %q not found", name)
	}

	handler := wrap(wrap(entry.Handler, entry.Middlewares), r.middleware)
	return handler(r.buildContext(ctx, client, m, name, args))
}

// wrap applies mws so that mws[0] runs first.
func wrap(h Handler, mws []Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// List returns visible commands for the given scope.
func (r *Registry) List(scope CommandScope) map[string]string {
	result := make(map[string]string)
	for name, cmd := range r.commands {
		if cmd.Scope == scope && cmd.Description != "" {
			result[name] = cmd.Description
		}
	}
	return result
}

// Describe returns the description and scope of a registered command.
func (r *Registry) Describe(name string) (string, CommandScope, bool) {
	cmd, ok := r.commands[strings.ToLower(strings.TrimSpace(name))]
	return cmd.Description, cmd.Scope, ok
}

func (r *Registry) buildContext(ctx context.Context, client *discord.Client, m *discordgo.MessageCreate, command, args string) *Context {
	return &Context{
		AppConfig:      r.deps.Config,
		Logger:         r.deps.Logger,
		RequestContext: ctx,
		Client:         client,
		Message:        m,
		Command:        command,
		Arguments:      strings.TrimSpace(args),
	}
}

// parseCommand splits content addressed to the bot, either by prefix or by
// a leading mention, into a lower-cased command name and its arguments.
func parseCommand(content, prefix, botID string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)

	var rest string
	switch {
	case prefix != "" && strings.HasPrefix(content, prefix):
		rest = content[len(prefix):]
	case botID != "" && strings.HasPrefix(content, "<@"+botID+">"):
		rest = content[len("<@"+botID+">"):]
	case botID != "" && strings.HasPrefix(content, "<@!"+botID+">"):
		rest = content[len("<@!"+botID+">"):]
	default:
		return "", "", false
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// OwnerOnly middleware rejects requests from users not listed in OWNER_IDS.
func OwnerOnly() Middleware {
	return func(next Handler) Handler {
		return func(ctx *Context) error {
			if !ctx.IsOwner() {
				return ctx.Reply("Not authorized.")
			}
			return next(ctx)
		}
	}
}

// ReportErrors answers a failed command with a short notice and logs the cause.
func ReportErrors() Middleware {
	return func(next Handler) Handler {
		return func(ctx *Context) error {
			if err := next(ctx); err != nil {
				return ctx.ReplyError("That command failed. The error was logged.", err)
			}
			return nil
		}
	}
}
