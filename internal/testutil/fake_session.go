package testutil

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// FakeResponse represents a queued HTTP response returned by the fake transport.
type FakeResponse struct {
	StatusCode int
	Body       string
	Header     http.Header
}

// CapturedRequest keeps the REST call made by the session.
type CapturedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// FakeTransport captures outgoing requests and returns queued responses.
type FakeTransport struct {
	mu        sync.Mutex
	responses []FakeResponse
	requests  []CapturedRequest
}

// NewFakeTransport constructs a FakeTransport with the provided responses.
func NewFakeTransport(responses ...FakeResponse) *FakeTransport {
	return &FakeTransport{responses: append([]FakeResponse(nil), responses...)}
}

// RoundTrip stores the request and returns the next queued response.
func (f *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		if err := req.Body.Close(); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, CapturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Body:   body,
	})

	var resp FakeResponse
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	} else {
		resp = FakeResponse{
			StatusCode: http.StatusOK,
			Body:       `{"id":"1","channel_id":"1","content":""}`,
		}
	}
	f.mu.Unlock()

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	return &http.Response{
		StatusCode: resp.StatusCode,
		Status:     http.StatusText(resp.StatusCode),
		Body:       io.NopCloser(bytes.NewReader([]byte(resp.Body))),
		Header:     header,
		Request:    req,
	}, nil
}

// Requests returns a snapshot of the captured requests.
func (f *FakeTransport) Requests() []CapturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CapturedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// RequestsTo returns captured requests whose path ends with suffix.
func (f *FakeTransport) RequestsTo(method, suffix string) []CapturedRequest {
	var out []CapturedRequest
	for _, req := range f.Requests() {
		if req.Method == method && strings.HasSuffix(req.Path, suffix) {
			out = append(out, req)
		}
	}
	return out
}

// NewFakeSession builds a discordgo session whose REST calls hit the fake transport.
func NewFakeSession(responses ...FakeResponse) (*discordgo.Session, *FakeTransport) {
	transport := NewFakeTransport(responses...)
	session, err := discordgo.New("Bot token")
	if err != nil {
		panic(err)
	}
	session.Client = &http.Client{Transport: transport}
	session.MaxRestRetries = 0
	session.State.User = &discordgo.User{
		ID:       "42",
		Username: "guildbot",
		Bot:      true,
	}
	return session, transport
}
