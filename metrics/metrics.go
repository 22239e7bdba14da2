// Package metrics expõe contadores Prometheus do servidor de feedback num
// listener separado da API.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"feedback-drop/feedback/application"
	rlinfra "feedback-drop/middleware/ratelimit/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implementa application.Recorder. Nenhum rótulo carrega dado do
// cliente: só resultado e decisão.
type Metrics struct {
	Registry *prometheus.Registry

	namespace   string
	submissions *prometheus.CounterVec
	publicKey   *prometheus.CounterVec
	rateLimit   *prometheus.CounterVec
	panics      prometheus.Counter
}

func New(namespace string) *Metrics {
	m := &Metrics{
		Registry:  prometheus.NewRegistry(),
		namespace: namespace,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Feedback submissions by outcome.",
		}, []string{"outcome"}),
		publicKey: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "public_key_requests_total",
			Help:      "Public key requests by outcome.",
		}, []string{"outcome"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limiter decisions.",
		}, []string{"allowed", "degraded"}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Recovered handler panics.",
		}),
	}
	m.Registry.MustRegister(
		m.submissions, m.publicKey, m.rateLimit, m.panics,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Submission(o application.Outcome) { m.submissions.WithLabelValues(string(o)).Inc() }
func (m *Metrics) PublicKey(o application.Outcome)  { m.publicKey.WithLabelValues(string(o)).Inc() }

func (m *Metrics) RateLimitDecision(allowed, degraded bool) {
	m.rateLimit.WithLabelValues(strconv.FormatBool(allowed), strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) Panic() { m.panics.Inc() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server é o listener de /metrics.
type Server struct {
	srv *http.Server
}

func NewServer(m *Metrics, addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (s *Server) ListenAndServe() error { return s.srv.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// RouteStats é a fonte dos contadores por rota do rate limit em memória.
type RouteStats interface {
	ByRoute() map[string]rlinfra.Counters
}

// RegisterRouteStats exporta as contagens allow/deny por rota como
// <namespace>_ratelimit_route_total{route,decision}.
func (m *Metrics) RegisterRouteStats(src RouteStats) {
	m.Registry.MustRegister(routeCollector{
		src: src,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(m.namespace, "", "ratelimit_route_total"),
			"Rate limiter decisions by route.",
			[]string{"route", "decision"}, nil,
		),
	})
}

type routeCollector struct {
	src  RouteStats
	desc *prometheus.Desc
}

func (c routeCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c routeCollector) Collect(ch chan<- prometheus.Metric) {
	for route, n := range c.src.ByRoute() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(n.Allowed), route, "allowed")
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(n.Denied), route, "denied")
	}
}
