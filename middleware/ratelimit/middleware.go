package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"feedback-drop/middleware/ratelimit/application"
	"feedback-drop/middleware/ratelimit/domain"
)

type KeyFunc func(r *http.Request) string

// RejectFunc escreve a resposta de bloqueio. Os headers de rate limit já
// estão setados quando ela é chamada.
type RejectFunc func(w http.ResponseWriter, r *http.Request, status int)

// RouteFunc devolve o nome de rota usado nas estatísticas.
type RouteFunc func(r *http.Request) string

type Options struct {
	Store        domain.WindowStore
	Stats        domain.StatsStore
	KeyFn        KeyFunc
	RouteFn      RouteFunc
	RejectStatus int
	OnReject     RejectFunc
	// OnDecision recebe toda decisão (métricas, log de degradação).
	OnDecision func(r *http.Request, dec domain.Decision)
	Now        func() time.Time
}

// RemoteAddrKey usa apenas o host do endereço de transporte. Headers como
// X-Forwarded-For não são considerados.
func RemoteAddrKey(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}
	return "unknown"
}

func defaultRoute(r *http.Request) string { return r.Method + " " + r.URL.Path }

func defaultReject(w http.ResponseWriter, _ *http.Request, status int) {
	http.Error(w, http.StatusText(status), status)
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = RemoteAddrKey
	}
	if opts.RouteFn == nil {
		opts.RouteFn = defaultRoute
	}
	if opts.OnReject == nil {
		opts.OnReject = defaultReject
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	svc := application.Service{Store: opts.Store, Now: opts.Now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dec := svc.Decide(r.Context(), domain.Key(opts.KeyFn(r)))

			if opts.OnDecision != nil {
				opts.OnDecision(r, dec)
			}
			if opts.Stats != nil && !dec.Degraded {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Allowed: dec.Allowed,
					Route:   opts.RouteFn(r),
					At:      opts.Now(),
				})
			}

			if dec.Limit > 0 {
				setWindowHeaders(w.Header(), dec, opts.Now())
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				opts.OnReject(w, r, opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setWindowHeaders segue os headers RateLimit-* (draft IETF "standard headers").
func setWindowHeaders(h http.Header, dec domain.Decision, now time.Time) {
	h.Set("RateLimit-Limit", formatInt(dec.Limit))
	h.Set("RateLimit-Remaining", formatInt(dec.Remaining))
	h.Set("RateLimit-Reset", formatSeconds(dec.ResetAt.Sub(now)))
}
