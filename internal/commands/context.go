package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"guildbot/internal/app"
	"guildbot/internal/discord"
)

// Context wraps all the information required to process a command.
type Context struct {
	AppConfig app.Config
	Logger    *slog.Logger

	RequestContext context.Context
	Client         *discord.Client
	Message        *discordgo.MessageCreate
	Command        string
	Arguments      string
}

// ArgsList returns the arguments split by whitespace.
func (c *Context) ArgsList() []string {
	if c.Arguments == "" {
		return nil
	}
	fields := strings.Fields(c.Arguments)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Reply answers the triggering message.
func (c *Context) Reply(text string) error {
	_, err := c.ReplyMessage(text)
	return err
}

// ReplyMessage answers the triggering message and returns what was sent.
func (c *Context) ReplyMessage(text string) (*discordgo.Message, error) {
	if c.Client == nil || c.Message == nil || c.Message.Message == nil {
		return nil, fmt.Errorf("cannot reply without message context")
	}

	sent, err := c.Client.Reply(c.Message.Message, text)
	if err != nil {
		return nil, fmt.Errorf("send reply: %w", err)
	}
	return sent, nil
}

// Edit replaces the content of a message previously sent in this channel.
func (c *Context) Edit(messageID, text string) error {
	if c.Client == nil || c.Message == nil || c.Message.Message == nil {
		return fmt.Errorf("cannot edit without message context")
	}
	if _, err := c.Client.EditMessage(c.Message.ChannelID, messageID, text); err != nil {
		return err
	}
	return nil
}

// ReplyError sends a user-facing error message and logs the underlying error.
func (c *Context) ReplyError(userMessage string, err error) error {
	if err != nil && c.Logger != nil {
		c.Logger.Error("Command failed", "command", c.Command, "error", err)
	}
	return c.Reply(userMessage)
}

// AuthorID returns the ID of the user who sent the command.
func (c *Context) AuthorID() string {
	if c.Message == nil || c.Message.Message == nil || c.Message.Author == nil {
		return ""
	}
	return c.Message.Author.ID
}

// IsOwner reports whether the author is a configured owner.
func (c *Context) IsOwner() bool {
	return c.AppConfig.IsOwner(c.AuthorID())
}
