package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"feedback-drop/middleware/ratelimit"
	rldomain "feedback-drop/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions liga os colaboradores do roteador. O limiter é uma instância
// explícita, criada pelo chamador no start e compartilhada só por este roteador.
type RouterOptions struct {
	Limiter    rldomain.WindowStore
	Stats      rldomain.StatsStore
	OnDecision func(dec rldomain.Decision)
	OnPanic    func()

	MaxInFlight  int
	InFlightWait time.Duration

	EnablePprof bool
	Log         *slog.Logger
}

// Probes são as rotas de saúde, servidas pelo Server.
type Probes interface {
	HandleLivenessCheck(w http.ResponseWriter, r *http.Request)
	HandleReadinessCheck(w http.ResponseWriter, r *http.Request)
	HandleDrain(w http.ResponseWriter, r *http.Request)
	HandleUndrain(w http.ResponseWriter, r *http.Request)
}

func NewRouter(h *Handler, probes Probes, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = h.log
	}

	mux := chi.NewRouter()
	mux.Use(accessLog(log))
	mux.Use(recoverer(log, opts.OnPanic))
	mux.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:      opts.MaxInFlight,
		Wait:     opts.InFlightWait,
		OnReject: rejectUnavailable,
	}))

	mux.NotFound(h.NotFound)
	mux.MethodNotAllowed(h.NotFound)

	mux.Get("/", h.HandleIndex)

	// servida sem rate limit: dado público, carregado em todo page load
	mux.Get("/api/public-key", h.HandlePublicKey)

	mux.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(ratelimit.Options{
			Store:    opts.Limiter,
			Stats:    opts.Stats,
			RouteFn:  routeName,
			OnReject: rejectRateLimited,
			OnDecision: func(_ *http.Request, dec rldomain.Decision) {
				if dec.Degraded {
					log.Warn("Rate limiter degraded, request admitted")
				}
				if opts.OnDecision != nil {
					opts.OnDecision(dec)
				}
			},
		}))
		r.Post("/api/feedback", h.HandleFeedback)
		r.HandleFunc("/api/*", h.NotFound)
	})

	if probes != nil {
		mux.Get("/livez", probes.HandleLivenessCheck)
		mux.Get("/readyz", probes.HandleReadinessCheck)
		mux.Get("/drain", probes.HandleDrain)
		mux.Get("/undrain", probes.HandleUndrain)
	}

	if opts.EnablePprof {
		log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

// routeName usa o padrão da rota para não gravar paths arbitrários nas stats.
// O middleware roda antes do match final, então cai no path só para /api/feedback.
// Métodos fora da lista viram OTHER; o método vem do cliente.
func routeName(r *http.Request) string {
	method := r.Method
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		method = "OTHER"
	}
	if r.URL.Path == "/api/feedback" {
		return method + " /api/feedback"
	}
	return method + " /api/*"
}

func rejectRateLimited(w http.ResponseWriter, _ *http.Request, status int) {
	writeError(w, status, msgRateLimited)
}

func rejectUnavailable(w http.ResponseWriter, _ *http.Request, status int) {
	writeError(w, status, msgUnavailable)
}
