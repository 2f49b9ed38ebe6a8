package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/shared"
)

const defaultConfigPath = "config.toml"

func main() {
	configPath := os.Getenv("VIKIFY_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loaded, err := shared.LoadConfig(configPath); err == nil {
			config = loaded
		} else {
			shared.NewLogger(nil).Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}

	logger := shared.NewLoggerFromConfig(config.Log)
	reporter, err := shared.NewReporter(config.Sentry)
	if err != nil {
		logger.Warn("error reporting disabled", "error", err)
		reporter = shared.NopReporter{}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Logger:     logger,
		Reporter:   reporter,
	})

	app := &cli.Command{
		Name:     "vikify-resolver",
		Usage:    "Resolve streams and lyrics, and sync imported playlists to the catalog",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		reporter.Flush(flushTimeout)
		logger.Fatalf("application error: %v", err)
	}
}
