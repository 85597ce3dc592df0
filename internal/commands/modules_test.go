package commands

import (
	"net/http"
	"testing"
)

type staticLister []string

func (l staticLister) Loaded() []string { return l }

func TestModulesHandler(t *testing.T) {
	tests := []struct {
		name   string
		lister staticLister
		want   string
	}{
		{name: "loaded", lister: staticLister{"commands", "welcome"}, want: "Loaded modules: commands, welcome"},
		{name: "empty", lister: nil, want: "No modules loaded."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newTestClient()
			if err := NewModulesHandler(tt.lister)(newContext(client)); err != nil {
				t.Fatalf("modules handler error = %v", err)
			}
			reqs := transport.RequestsTo(http.MethodPost, "/channels/555/messages")
			if len(reqs) != 1 {
				t.Fatalf("expected 1 reply, got %d", len(reqs))
			}
			if got := sentContent(t, reqs[0]); got != tt.want {
				t.Fatalf("reply = %q, want %q", got, tt.want)
			}
		})
	}
}
