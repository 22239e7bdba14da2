package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"feedback-drop/feedback/application"
	"feedback-drop/feedback/domain"
	"feedback-drop/feedback/httpapi"
	"feedback-drop/feedback/infra"
	"feedback-drop/metrics"
	rldomain "feedback-drop/middleware/ratelimit/domain"
	rlinfra "feedback-drop/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func main() {
	app := &cli.App{
		Name:    "feedbackd",
		Usage:   "Serve the encrypted feedback drop",
		Version: version,
		Flags:   append(append([]cli.Flag{}, serveFlags()...), logFlags()...),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server (default)",
				Action: runServe,
			},
			{
				Name:   "entries",
				Usage:  "print the number of stored entries per day, without payloads",
				Action: runEntries,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServe(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	cfg := configFromCLI(cCtx)
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
	}

	var limiter rldomain.WindowStore
	switch cfg.rateStore {
	case "redis":
		limiter = rlinfra.NewRedisWindowStore(rdb, cfg.rateLimitMax, cfg.rateLimitWindow,
			rlinfra.WithWindowPrefix(cfg.redisPrefix+":rl"))
	default:
		mem := rlinfra.NewMemoryWindowStore(cfg.rateLimitMax, cfg.rateLimitWindow)
		mem.StartJanitor(ctx)
		limiter = mem
	}

	m := metrics.New("feedback")

	var stats rldomain.StatsStore
	switch {
	case cfg.rateStats && rdb != nil:
		stats = &warnStats{
			next: rlinfra.NewRedisStatsStore(rdb, rlinfra.WithStatsPrefix(cfg.redisPrefix+":rlstats")),
			log:  logger,
			warn: rate.Sometimes{First: 1, Interval: time.Minute},
		}
	case cfg.rateStats:
		mem := rlinfra.NewMemoryStatsStore()
		m.RegisterRouteStats(mem)
		stats = mem
	}

	store := infra.NewAppendLog(cfg.feedbackPath(), logger)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Closing feedback log", "err", err)
		}
	}()

	svc := &application.Service{
		Validator: domain.NewValidator(domain.DefaultLimits),
		Store:     store,
		Keys:      infra.NewKeyFile(cfg.publicKeyPath()),
		Recorder:  m,
		Log:       logger,
	}
	h := httpapi.NewHandler(svc, logger,
		httpapi.WithMaxBodyBytes(cfg.maxBodyBytes),
		httpapi.WithIndexPage(cfg.indexPath()),
	)

	srv := httpapi.New(&httpapi.HTTPServerConfig{
		ListenAddr:               cfg.listenAddr(),
		MetricsAddr:              cfg.metricsAddr,
		Log:                      logger,
		DrainDuration:            cfg.drain,
		GracefulShutdownDuration: 30 * time.Second,
		ReadHeaderTimeout:        5 * time.Second,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
		IdleTimeout:              60 * time.Second,
	}, m, func(p httpapi.Probes) http.Handler {
		return httpapi.NewRouter(h, p, httpapi.RouterOptions{
			Limiter: limiter,
			Stats:   stats,
			OnDecision: func(dec rldomain.Decision) {
				m.RateLimitDecision(dec.Allowed, dec.Degraded)
			},
			OnPanic:      m.Panic,
			MaxInFlight:  cfg.concurrencyMax,
			InFlightWait: 100 * time.Millisecond,
			EnablePprof:  cfg.pprof,
			Log:          logger,
		})
	})

	logger.Info("Starting feedbackd",
		"listenAddress", cfg.listenAddr(),
		"rateStore", cfg.rateStore,
		"rateLimit", cfg.rateLimitMax,
		"rateWindow", cfg.rateLimitWindow,
	)
	srv.RunInBackground()

	<-ctx.Done()
	logger.Info("Shutting down")
	srv.Shutdown()
	return nil
}

func runEntries(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)
	cfg := configFromCLI(cCtx)

	store := infra.NewAppendLog(cfg.feedbackPath(), logger)
	defer func() { _ = store.Close() }()

	entries, err := store.ReadAll(cCtx.Context)
	if err != nil {
		return fmt.Errorf("reading %s: %w", cfg.feedbackPath(), err)
	}
	writeHistogram(cCtx.App.Writer, entries)
	return nil
}

func writeHistogram(w io.Writer, entries []domain.Entry) {
	perDay := map[string]int{}
	for _, e := range entries {
		perDay[e.Date]++
	}
	days := make([]string, 0, len(perDay))
	for d := range perDay {
		days = append(days, d)
	}
	sort.Strings(days)

	fmt.Fprintf(w, "entries: %d\n", len(entries))
	for _, d := range days {
		fmt.Fprintf(w, "%s %d\n", d, perDay[d])
	}
}

// warnStats avisa quando o backend de stats falha, no máximo uma vez por minuto.
type warnStats struct {
	next rldomain.StatsStore
	log  *slog.Logger
	warn rate.Sometimes
}

func (s *warnStats) Record(ctx context.Context, ev rldomain.StatsEvent) error {
	err := s.next.Record(ctx, ev)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.warn.Do(func() { s.log.Warn("Rate limit stats unavailable", "err", err) })
	}
	return err
}
