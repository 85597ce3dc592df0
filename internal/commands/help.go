package commands

import (
	"fmt"
	"sort"
	"strings"
)

// NewHelpHandler builds a handler that renders the command catalog, or a
// single entry when a command name is given.
func NewHelpHandler(registry *Registry) Handler {
	return func(ctx *Context) error {
		prefix := ctx.AppConfig.CommandPrefix
		if args := ctx.ArgsList(); len(args) > 0 {
			return describeCommand(ctx, registry, prefix, strings.TrimPrefix(args[0], prefix))
		}

		public := registry.List(ScopePublic)
		owner := registry.List(ScopeOwner)

		var builder strings.Builder
		builder.WriteString("**Available commands**\n\n")

		if len(public) > 0 {
			builder.WriteString("**Public**\n")
			appendCommands(&builder, prefix, public)
			builder.WriteByte('\n')
		}

		if len(owner) > 0 && ctx.IsOwner() {
			builder.WriteString("**Owner only**\n")
			appendCommands(&builder, prefix, owner)
			builder.WriteByte('\n')
		}

		return ctx.Reply(strings.TrimRight(builder.String(), "\n"))
	}
}

func appendCommands(builder *strings.Builder, prefix string, commands map[string]string) {
	if len(commands) == 0 {
		return
	}

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		builder.WriteString("- `")
		builder.WriteString(prefix)
		builder.WriteString(name)
		builder.WriteString("` ")
		builder.WriteString(commands[name])
		builder.WriteByte('\n')
	}
}

func describeCommand(ctx *Context, registry *Registry, prefix, name string) error {
	desc, scope, ok := registry.Describe(name)
	if !ok || desc == "" || (scope == ScopeOwner && !ctx.IsOwner()) {
		return ctx.Reply(fmt.Sprintf("No command named `%s%s`.", prefix, strings.ToLower(name)))
	}
	return ctx.Reply(fmt.Sprintf("`%s%s` %s", prefix, strings.ToLower(name), desc))
}
