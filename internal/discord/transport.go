package discord

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"guildbot/internal/events"
)

// invalidRequestWindow is Discord's accounting window for 401/403/429 responses.
const invalidRequestWindow = 10 * time.Minute

var (
	apiPrefixPattern = regexp.MustCompile(`^/api(/v\d+)?`)
	snowflakePattern = regexp.MustCompile(`/\d{15,21}(/|$)`)
)

// Transport observes REST responses and emits rate limit and invalid request
// events. Requests are passed through unchanged.
type Transport struct {
	base     http.RoundTripper
	ctx      context.Context
	bus      *events.Bus
	interval int
	now      func() time.Time

	mu          sync.Mutex
	invalid     int
	windowStart time.Time
}

// NewTransport wraps base. interval is the invalid request warning period, 0 disables it.
func NewTransport(ctx context.Context, base http.RoundTripper, bus *events.Bus, interval int) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Transport{
		base:     base,
		ctx:      ctx,
		bus:      bus,
		interval: interval,
		now:      time.Now,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		t.bus.Emit(t.ctx, rateLimitEvent(req, resp))
	}
	if isInvalidRequest(resp) {
		if warning, ok := t.countInvalid(); ok {
			t.bus.Emit(t.ctx, warning)
		}
	}
	return resp, nil
}

func (t *Transport) countInvalid() (events.InvalidRequestWarning, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= invalidRequestWindow {
		t.windowStart = now
		t.invalid = 0
	}
	t.invalid++

	if t.interval <= 0 || t.invalid%t.interval != 0 {
		return events.InvalidRequestWarning{}, false
	}
	return events.InvalidRequestWarning{
		Count:         t.invalid,
		RemainingTime: t.windowStart.Add(invalidRequestWindow).Sub(now),
	}, true
}

func isInvalidRequest(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return true
	case http.StatusTooManyRequests:
		return resp.Header.Get("X-RateLimit-Scope") != "shared"
	default:
		return false
	}
}

func rateLimitEvent(req *http.Request, resp *http.Response) events.RateLimit {
	path := apiPrefixPattern.ReplaceAllString(req.URL.Path, "")
	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))

	return events.RateLimit{
		Timeout: retryAfter(resp.Header),
		Limit:   limit,
		Method:  req.Method,
		Path:    path,
		Route:   routeFor(path),
		Global:  strings.EqualFold(resp.Header.Get("X-RateLimit-Global"), "true"),
	}
}

// retryAfter reads the wait in seconds, preferring Retry-After.
func retryAfter(h http.Header) time.Duration {
	for _, key := range []string{"Retry-After", "X-RateLimit-Reset-After"} {
		raw := strings.TrimSpace(h.Get(key))
		if raw == "" {
			continue
		}
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil || seconds < 0 {
			continue
		}
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}

// routeFor replaces snowflake IDs with :id so requests group by endpoint.
func routeFor(path string) string {
	for {
		replaced := snowflakePattern.ReplaceAllString(path, "/:id$1")
		if replaced == path {
			return replaced
		}
		path = replaced
	}
}
