package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// NewFakeGateway starts a websocket server that sends Hello, waits for the
// identify payload, then writes each dispatch in order and idles until the
// client disconnects. It returns the ws:// URL.
func NewFakeGateway(t testing.TB, dispatches ...string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"op":10,"d":{"heartbeat_interval":45000}}`)); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		for _, payload := range dispatches {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// GatewayResponse answers the session's GET /gateway with url.
func GatewayResponse(url string) FakeResponse {
	return FakeResponse{StatusCode: http.StatusOK, Body: `{"url":"` + url + `"}`}
}
