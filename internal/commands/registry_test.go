package commands

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"guildbot/internal/app"
)

func TestRegistryDispatchFlow(t *testing.T) {
	reg := NewRegistry(Dependencies{
		Config: app.Config{CommandPrefix: "!"},
	})

	var sequence []string
	reg.Use(func(next Handler) Handler {
		return func(ctx *Context) error {
			sequence = append(sequence, "global")
			return next(ctx)
		}
	})

	reg.Handle("ping", "desc", ScopePublic, func(ctx *Context) error {
		sequence = append(sequence, "handler")
		if ctx.Command != "ping" {
			t.Errorf("Command = %s, want ping", ctx.Command)
		}
		if ctx.Arguments != "value" {
			t.Errorf("Arguments = %q, want value", ctx.Arguments)
		}
		return nil
	}, func(next Handler) Handler {
		return func(ctx *Context) error {
			sequence = append(sequence, "command")
			return next(ctx)
		}
	})

	if err := reg.Dispatch(context.Background(), nil, newTestMessage("!PING value")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	want := []string{"global", "command", "handler"}
	if len(sequence) != len(want) {
		t.Fatalf("sequence length = %d, want %d", len(sequence), len(want))
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Fatalf("sequence[%d] = %q, want %q", i, sequence[i], want[i])
		}
	}
}

func TestRegistryDispatchByMention(t *testing.T) {
	client, _ := newTestClient()
	reg := NewRegistry(Dependencies{Config: app.Config{CommandPrefix: "!"}})

	var called int
	reg.Handle("help", "desc", ScopePublic, func(ctx *Context) error {
		called++
		return nil
	})

	for _, content := range []string{"<@42> help", "<@!42>   help"} {
		if err := reg.Dispatch(context.Background(), client, newTestMessage(content)); err != nil {
			t.Fatalf("Dispatch(%q) error = %v", content, err)
		}
	}
	if called != 2 {
		t.Fatalf("handler called %d times, want 2", called)
	}

	err := reg.Dispatch(context.Background(), client, newTestMessage("<@7> help"))
	if !errors.Is(err, ErrNotCommand) {
		t.Fatalf("Dispatch() for another user's mention = %v, want ErrNotCommand", err)
	}
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry(Dependencies{Config: app.Config{CommandPrefix: "!"}})
	var called bool
	reg.SetNotFound(func(ctx *Context) error {
		called = true
		if ctx.Command != "unknown" {
			t.Errorf("Command = %s, want unknown", ctx.Command)
		}
		return nil
	})

	if err := reg.Dispatch(context.Background(), nil, newTestMessage("!unknown arg")); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !called {
		t.Fatalf("expected not-found handler to be called")
	}

	reg.SetNotFound(nil)
	if err := reg.Dispatch(context.Background(), nil, newTestMessage("!unknown")); err == nil {
		t.Fatalf("expected error without not-found handler")
	}
}

func TestRegistryIgnoresPlainMessages(t *testing.T) {
	reg := NewRegistry(Dependencies{Config: app.Config{CommandPrefix: "!"}})
	reg.Handle("ping", "desc", ScopePublic, func(ctx *Context) error {
		t.Fatalf("handler must not run")
		return nil
	})

	for _, content := range []string{"hello there", "!", "  ", "ping"} {
		err := reg.Dispatch(context.Background(), nil, newTestMessage(content))
		if !errors.Is(err, ErrNotCommand) {
			t.Fatalf("Dispatch(%q) = %v, want ErrNotCommand", content, err)
		}
	}
	if err := reg.Dispatch(context.Background(), nil, nil); err == nil {
		t.Fatalf("Dispatch(nil) should fail")
	}
}

func TestRegistryListByScope(t *testing.T) {
	reg := NewRegistry(Dependencies{})
	reg.Handle("public", "visible", ScopePublic, func(ctx *Context) error { return nil })
	reg.Handle("owner", "owner command", ScopeOwner, func(ctx *Context) error { return nil })
	reg.Handle("quiet", "", ScopePublic, func(ctx *Context) error { return nil })
	reg.Handle("  ", "blank", ScopePublic, func(ctx *Context) error { return nil })

	public := reg.List(ScopePublic)
	if len(public) != 1 || public["public"] != "visible" {
		t.Fatalf("public list = %v, want only public", public)
	}

	owner := reg.List(ScopeOwner)
	if len(owner) != 1 || owner["owner"] != "owner command" {
		t.Fatalf("owner list = %v, want only owner", owner)
	}
	if _, ok := public["quiet"]; ok {
		t.Fatalf("command without description appeared in help list")
	}

	desc, scope, ok := reg.Describe(" OWNER ")
	if !ok || desc != "owner command" || scope != ScopeOwner {
		t.Fatalf("Describe(owner) = %q, %v, %v", desc, scope, ok)
	}
	if _, _, ok := reg.Describe("missing"); ok {
		t.Fatalf("Describe(missing) reported a command")
	}
}

func TestOwnerOnlyMiddleware(t *testing.T) {
	client, transport := newTestClient()
	ctx := newContext(client)
	ctx.Message.Author.ID = "99"

	var called bool
	handler := func(ctx *Context) error {
		called = true
		return nil
	}

	if err := OwnerOnly()(handler)(ctx); err != nil {
		t.Fatalf("OwnerOnly() returned error: %v", err)
	}
	if called {
		t.Fatalf("handler invoked for non-owner")
	}
	reqs := transport.RequestsTo(http.MethodPost, "/channels/555/messages")
	if len(reqs) != 1 || sentContent(t, reqs[0]) != "Not authorized." {
		t.Fatalf("expected rejection reply for non-owner, got %v", reqs)
	}

	ctx.Message.Author.ID = "321"
	if err := OwnerOnly()(handler)(ctx); err != nil {
		t.Fatalf("OwnerOnly() returned error for owner: %v", err)
	}
	if !called {
		t.Fatalf("handler not invoked for owner")
	}
	if len(transport.Requests()) != 1 {
		t.Fatalf("unexpected extra request recorded for owner")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		content  string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{content: "!ping", wantName: "ping", wantOK: true},
		{content: "  !Stats  now please ", wantName: "stats", wantArgs: "now please", wantOK: true},
		{content: "! ping", wantName: "ping", wantOK: true},
		{content: "<@42> modules", wantName: "modules", wantOK: true},
		{content: "<@!42>help me", wantName: "help", wantArgs: "me", wantOK: true},
		{content: "<@42>", wantOK: false},
		{content: "hello", wantOK: false},
		{content: "?ping", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, args, ok := parseCommand(tt.content, "!", "42")
			if ok != tt.wantOK || name != tt.wantName || args != tt.wantArgs {
				t.Fatalf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.content, name, args, ok, tt.wantName, tt.wantArgs, tt.wantOK)
			}
		})
	}
}

func TestReportErrorsRepliesAndSwallows(t *testing.T) {
	client, transport := newTestClient()
	ctx := newContext(client)

	failing := ReportErrors()(func(ctx *Context) error { return errors.New("boom") })
	if err := failing(ctx); err != nil {
		t.Fatalf("ReportErrors() returned %v, want nil after replying", err)
	}
	reqs := transport.RequestsTo(http.MethodPost, "/channels/555/messages")
	if len(reqs) != 1 || sentContent(t, reqs[0]) != "That command failed. The error was logged." {
		t.Fatalf("requests = %+v, want one failure notice", reqs)
	}

	ok := ReportErrors()(func(ctx *Context) error { return nil })
	if err := ok(ctx); err != nil {
		t.Fatalf("ReportErrors() on success = %v", err)
	}
	if len(transport.Requests()) != 1 {
		t.Fatalf("successful command must not reply")
	}
}
