package commands

import (
	"context"
	"errors"
	"fmt"

	"guildbot/internal/metrics"
)

// NewStatsHandler builds the handler that gathers and renders host metrics.
func NewStatsHandler(collector *metrics.Collector) Handler {
	return func(ctx *Context) error {
		sent, err := ctx.ReplyMessage("Collecting metrics...")
		if err != nil {
			return err
		}

		timeout := ctx.AppConfig.CommandTimeout + 2*collector.SampleInterval()
		gatherCtx, cancel := context.WithTimeout(ctx.RequestContext, timeout)
		defer cancel()

		stats, collectErr := collector.Collect(gatherCtx)
		if collectErr != nil {
			return ctx.Edit(sent.ID, fmt.Sprintf("**Could not collect metrics:** %s", collectErr.Error()))
		}

		if errors.Is(gatherCtx.Err(), context.DeadlineExceeded) {
			stats.Warnings = append(stats.Warnings, "Collection exceeded the configured timeout.")
		}

		return ctx.Edit(sent.ID, metrics.FormatMarkdown(stats))
	}
}
