package main

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "log-json", EnvVars: []string{"LOG_JSON"}, Usage: "log in JSON format"},
		&cli.BoolFlag{Name: "log-debug", EnvVars: []string{"LOG_DEBUG"}, Usage: "log debug messages"},
		&cli.BoolFlag{Name: "log-uid", Usage: "generate a uuid and add to all log messages"},
		&cli.StringFlag{Name: "log-service", Value: "feedbackd", Usage: "add 'service' tag to logs"},
	}
}

func setupLogger(cCtx *cli.Context) *slog.Logger {
	level := slog.LevelInfo
	if cCtx.Bool("log-debug") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cCtx.Bool("log-json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler).With("service", cCtx.String("log-service"), "version", version)
	if cCtx.Bool("log-uid") {
		logger = logger.With("uid", uuid.Must(uuid.NewRandom()).String())
	}
	return logger
}
