package main

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

type config struct {
	listenHost string
	port       int

	root          string
	publicKeyFile string
	feedbackFile  string
	indexFile     string

	maxBodyBytes   int64
	concurrencyMax int

	rateLimitMax    int
	rateLimitWindow time.Duration
	rateStore       string

	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string
	rateStats     bool

	metricsAddr string
	pprof       bool
	drain       time.Duration
}

func (c config) listenAddr() string {
	return net.JoinHostPort(c.listenHost, strconv.Itoa(c.port))
}

// resolve junta p ao root da implantação, exceto se já for absoluto.
func (c config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.root, p)
}

func (c config) publicKeyPath() string { return c.resolve(c.publicKeyFile) }
func (c config) feedbackPath() string  { return c.resolve(c.feedbackFile) }
func (c config) indexPath() string     { return c.resolve(c.indexFile) }

func (c config) validate() error {
	if c.port <= 0 || c.port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.port)
	}
	if c.rateLimitMax <= 0 {
		return errors.New("RATE_LIMIT_MAX must be > 0")
	}
	if c.rateLimitWindow <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.maxBodyBytes <= 0 {
		return errors.New("max-body-bytes must be > 0")
	}
	if c.concurrencyMax < 0 {
		return errors.New("concurrency-max must be >= 0")
	}
	if strings.TrimSpace(c.feedbackFile) == "" {
		return errors.New("FEEDBACK_FILE is required")
	}
	if strings.TrimSpace(c.publicKeyFile) == "" {
		return errors.New("PUBLIC_KEY_FILE is required")
	}
	switch c.rateStore {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.redisAddr) == "" {
			return errors.New("REDIS_ADDR is required when rate-store=redis")
		}
	default:
		return fmt.Errorf("rate-store must be 'memory' or 'redis', got %q", c.rateStore)
	}
	return nil
}

func (c config) usesRedis() bool {
	return c.rateStore == "redis" || (c.rateStats && strings.TrimSpace(c.redisAddr) != "")
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "listen-host", Value: "0.0.0.0", EnvVars: []string{"LISTEN_HOST"}, Usage: "interface to listen on"},
		&cli.IntFlag{Name: "port", Value: 3000, EnvVars: []string{"PORT"}, Usage: "port for the API"},
		&cli.StringFlag{Name: "root", Value: ".", EnvVars: []string{"DEPLOY_ROOT"}, Usage: "deployment root; relative paths resolve against it"},
		&cli.StringFlag{Name: "public-key-file", Value: "public-key.asc", EnvVars: []string{"PUBLIC_KEY_FILE"}, Usage: "armored PGP public key served to clients"},
		&cli.StringFlag{Name: "feedback-file", Value: "feedback.txt", EnvVars: []string{"FEEDBACK_FILE"}, Usage: "append-only feedback log"},
		&cli.StringFlag{Name: "index-file", Value: "public/index.html", EnvVars: []string{"INDEX_FILE"}, Usage: "entry page template"},
		&cli.Int64Flag{Name: "max-body-bytes", Value: 1 << 20, EnvVars: []string{"MAX_BODY_BYTES"}, Usage: "maximum request body size"},
		&cli.IntFlag{Name: "concurrency-max", Value: 100, EnvVars: []string{"CONCURRENCY_MAX"}, Usage: "maximum in-flight requests, 0 disables"},
		&cli.IntFlag{Name: "rate-limit-max", Value: 10, EnvVars: []string{"RATE_LIMIT_MAX"}, Usage: "submissions per client per window"},
		&cli.DurationFlag{Name: "rate-limit-window", Value: 15 * time.Minute, EnvVars: []string{"RATE_LIMIT_WINDOW"}, Usage: "rate limit window"},
		&cli.StringFlag{Name: "rate-store", Value: "memory", EnvVars: []string{"RATE_STORE"}, Usage: "where windows are counted: 'memory' or 'redis'"},
		&cli.BoolFlag{Name: "rate-stats", EnvVars: []string{"RATE_STATS"}, Usage: "record allow/deny counters per route (redis when REDIS_ADDR is set, else /metrics)"},
		&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}, Usage: "redis address"},
		&cli.StringFlag{Name: "redis-password", EnvVars: []string{"REDIS_PASSWORD"}, Usage: "redis password"},
		&cli.IntFlag{Name: "redis-db", EnvVars: []string{"REDIS_DB"}, Usage: "redis database"},
		&cli.StringFlag{Name: "redis-prefix", Value: "feedback", EnvVars: []string{"REDIS_PREFIX"}, Usage: "prefix for redis keys"},
		&cli.StringFlag{Name: "metrics-addr", Value: "127.0.0.1:8090", EnvVars: []string{"METRICS_ADDR"}, Usage: "address for Prometheus metrics, empty disables"},
		&cli.BoolFlag{Name: "pprof", Usage: "enable pprof debug endpoint"},
		&cli.Int64Flag{Name: "drain-seconds", Value: 0, Usage: "seconds to stay unready before shutting down"},
	}
}

func configFromCLI(cCtx *cli.Context) config {
	return config{
		listenHost:      cCtx.String("listen-host"),
		port:            cCtx.Int("port"),
		root:            cCtx.String("root"),
		publicKeyFile:   cCtx.String("public-key-file"),
		feedbackFile:    cCtx.String("feedback-file"),
		indexFile:       cCtx.String("index-file"),
		maxBodyBytes:    cCtx.Int64("max-body-bytes"),
		concurrencyMax:  cCtx.Int("concurrency-max"),
		rateLimitMax:    cCtx.Int("rate-limit-max"),
		rateLimitWindow: cCtx.Duration("rate-limit-window"),
		rateStore:       strings.ToLower(strings.TrimSpace(cCtx.String("rate-store"))),
		rateStats:       cCtx.Bool("rate-stats"),
		redisAddr:       cCtx.String("redis-addr"),
		redisPassword:   cCtx.String("redis-password"),
		redisDB:         cCtx.Int("redis-db"),
		redisPrefix:     strings.Trim(cCtx.String("redis-prefix"), ":"),
		metricsAddr:     cCtx.String("metrics-addr"),
		pprof:           cCtx.Bool("pprof"),
		drain:           time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
	}
}
