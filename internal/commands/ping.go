package commands

import (
	"fmt"
	"time"
)

// Ping reports the gateway heartbeat latency and the channel it was asked in.
func Ping(ctx *Context) error {
	latency := ctx.Client.HeartbeatLatency().Round(time.Millisecond)

	reply := fmt.Sprintf("Pong! Gateway latency %s", latency)
	if ch, err := ctx.Client.Channel(ctx.Message.ChannelID); err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Debug("Channel lookup failed", "channel", ctx.Message.ChannelID, "error", err)
		}
	} else if ch.Name != "" {
		reply += fmt.Sprintf(" in #%s", ch.Name)
	}

	return ctx.Reply(reply)
}
