package ratelimit

import (
	"net/http"
	"time"

	"feedback-drop/middleware/ratelimit/application"
	"feedback-drop/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max          int
	RejectStatus int
	Wait         time.Duration
	OnReject     RejectFunc
}

// ConcurrencyMiddleware limita requests em processamento simultâneo.
// Max <= 0 desliga o limite.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.OnReject == nil {
		opts.OnReject = defaultReject
	}

	svc := application.InFlightService{
		Pool: infra.NewSlotPool(opts.Max),
		Wait: opts.Wait,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				opts.OnReject(w, r, opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
