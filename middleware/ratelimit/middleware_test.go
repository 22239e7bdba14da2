package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedback-drop/middleware/ratelimit/domain"
	"feedback-drop/middleware/ratelimit/infra"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestClock() *clock { return &clock{t: time.Date(2026, 5, 5, 8, 0, 0, 0, time.UTC)} }

func doRequest(h http.Handler, remote string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "http://example/api/feedback", nil)
	r.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestMiddleware_EleventhRequestInWindowIsRejected(t *testing.T) {
	clk := newTestClock()
	store := infra.NewMemoryWindowStore(10, 15*time.Minute, infra.WithClock(clk.Now))

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Options{Store: store, Now: clk.Now})(next)

	for i := 1; i <= 10; i++ {
		if w := doRequest(h, "10.0.0.1:1234"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := doRequest(h, "10.0.0.1:4321")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "900" {
		t.Fatalf("expected Retry-After=900, got %q", got)
	}
	if got := w.Header().Get("RateLimit-Remaining"); got != "0" {
		t.Fatalf("expected RateLimit-Remaining=0, got %q", got)
	}
	if calls != 10 {
		t.Fatalf("expected next handler to run 10 times, got %d", calls)
	}
}

func TestMiddleware_AcceptsAgainAfterWindowElapses(t *testing.T) {
	clk := newTestClock()
	store := infra.NewMemoryWindowStore(2, 15*time.Minute, infra.WithClock(clk.Now))
	h := Middleware(Options{Store: store, Now: clk.Now})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	doRequest(h, "10.0.0.1:1")
	doRequest(h, "10.0.0.1:1")
	if w := doRequest(h, "10.0.0.1:1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	clk.t = clk.t.Add(15 * time.Minute)
	if w := doRequest(h, "10.0.0.1:1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after window, got %d", w.Code)
	}
}

func TestMiddleware_SetsStandardHeaders(t *testing.T) {
	clk := newTestClock()
	store := infra.NewMemoryWindowStore(10, time.Minute, infra.WithClock(clk.Now))
	h := Middleware(Options{Store: store, Now: clk.Now})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := doRequest(h, "10.0.0.1:1")
	if got := w.Header().Get("RateLimit-Limit"); got != "10" {
		t.Fatalf("expected RateLimit-Limit=10, got %q", got)
	}
	if got := w.Header().Get("RateLimit-Remaining"); got != "9" {
		t.Fatalf("expected RateLimit-Remaining=9, got %q", got)
	}
	if got := w.Header().Get("RateLimit-Reset"); got != "60" {
		t.Fatalf("expected RateLimit-Reset=60, got %q", got)
	}
}

func TestMiddleware_UsesCustomReject(t *testing.T) {
	store := infra.NewMemoryWindowStore(0, time.Minute)
	h := Middleware(Options{
		Store: store,
		OnReject: func(w http.ResponseWriter, r *http.Request, status int) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"slow down"}`))
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := doRequest(h, "10.0.0.1:1")
	if w.Code != http.StatusTooManyRequests || w.Body.String() != `{"error":"slow down"}` {
		t.Fatalf("unexpected reject response %d %q", w.Code, w.Body.String())
	}
}

func TestMiddleware_IdentitiesAreIndependent(t *testing.T) {
	store := infra.NewMemoryWindowStore(1, time.Minute)
	h := Middleware(Options{Store: store})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if w := doRequest(h, "10.0.0.1:1"); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doRequest(h, "10.0.0.2:1"); w.Code != http.StatusOK {
		t.Fatalf("expected other identity to pass, got %d", w.Code)
	}
}

type brokenStore struct{}

func (brokenStore) Hit(context.Context, domain.Key) (domain.Window, error) {
	return domain.Window{}, errors.New("unavailable")
}

func TestMiddleware_FailsOpenAndReportsDegraded(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	degraded := false
	h := Middleware(Options{
		Store: brokenStore{},
		Stats: stats,
		OnDecision: func(r *http.Request, dec domain.Decision) {
			degraded = dec.Degraded
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	if w := doRequest(h, "10.0.0.1:1"); w.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", w.Code)
	}
	if !degraded {
		t.Fatalf("expected degraded decision")
	}
	if got := stats.Total(); got.Allowed+got.Denied != 0 {
		t.Fatalf("degraded decisions must not be recorded, got %+v", got)
	}
}

func TestMiddleware_RecordsStatsByRoute(t *testing.T) {
	stats := infra.NewMemoryStatsStore()
	store := infra.NewMemoryWindowStore(1, time.Minute)
	h := Middleware(Options{
		Store:   store,
		Stats:   stats,
		RouteFn: func(*http.Request) string { return "feedback" },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	doRequest(h, "10.0.0.1:1")
	doRequest(h, "10.0.0.1:1")

	if got := stats.ByRoute()["feedback"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestRemoteAddrKey_IgnoresForwardingHeaders(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := RemoteAddrKey(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestRemoteAddrKey_FallsBackToRawAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "@unix"
	if got := RemoteAddrKey(r); got != "@unix" {
		t.Fatalf("expected raw addr, got %q", got)
	}

	r.RemoteAddr = ""
	if got := RemoteAddrKey(r); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestFormatSeconds_RoundsUp(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "0",
		-time.Second:            "0",
		time.Second:             "1",
		1500 * time.Millisecond: "2",
		15 * time.Minute:        "900",
	}
	for in, want := range cases {
		if got := formatSeconds(in); got != want {
			t.Fatalf("formatSeconds(%s) = %q, want %q", in, got, want)
		}
	}
}
