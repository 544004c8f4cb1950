// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/opine-hq/opine/bot"
	"github.com/opine-hq/opine/lib/clock"
	"github.com/opine-hq/opine/lib/config"
	"github.com/opine-hq/opine/lib/secret"
	"github.com/opine-hq/opine/lib/version"
	"github.com/opine-hq/opine/store"
	"github.com/opine-hq/opine/surveydef"
	"github.com/opine-hq/opine/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		tokenFile   string
		showVersion bool
	)

	pflag.StringVar(&configPath, "config", "", "path to the YAML configuration file (defaults to $OPINE_CONFIG)")
	pflag.StringVar(&tokenFile, "token-file", "", "bot token file, '-' for stdin (overrides the config)")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("opine-bot %s\n", version.Info())
		return nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if tokenFile != "" {
		cfg.Telegram.TokenFile = tokenFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	// The bot token never touches the heap as a plain string.
	token, err := secret.ReadFromPath(cfg.Telegram.TokenFile)
	if err != nil {
		return fmt.Errorf("reading bot token: %w", err)
	}
	defer token.Close()

	resultStore, err := store.Open(store.Config{
		Path:     cfg.Database.Path,
		PoolSize: cfg.Database.PoolSize,
		Clock:    clk,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("opening result store: %w", err)
	}
	defer resultStore.Close()

	registry := surveydef.NewRegistry(bot.Locales)
	if err := registry.LoadDir(cfg.Surveys.Dir); err != nil {
		return fmt.Errorf("loading survey definitions: %w", err)
	}
	logger.Info("survey definitions loaded",
		"dir", cfg.Surveys.Dir,
		"surveys", registry.Len(),
	)

	// The HTTP timeout must outlast the long-poll window, or every
	// quiet getUpdates call would surface as an error.
	client, err := telegram.NewClient(telegram.ClientConfig{
		APIBaseURL: cfg.Telegram.APIBaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: cfg.Telegram.PollTimeout + 15*time.Second},
		Logger:     logger,
		Clock:      clk,
		SendRate:   cfg.Telegram.SendRate,
		SendBurst:  cfg.Telegram.SendBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}
	defer client.CloseIdleConnections()

	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("validating bot token: %w", err)
	}
	logger.Info("bot token valid",
		"bot_id", me.ID,
		"username", me.Username,
	)

	engine, err := bot.New(bot.Config{
		API:           client,
		Registry:      registry,
		Store:         resultStore,
		Clock:         clk,
		Logger:        logger,
		Admins:        cfg.Admins,
		SurveyDir:     cfg.Surveys.Dir,
		DefaultLocale: cfg.Locales.Default,
		IdleTTL:       cfg.Sessions.IdleTTL,
	})
	if err != nil {
		return fmt.Errorf("creating bot engine: %w", err)
	}

	logger.Info("opine bot running",
		"environment", cfg.Environment,
		"database", cfg.Database.Path,
		"admins", len(cfg.Admins),
	)

	// Blocks until the context is cancelled by SIGINT or SIGTERM.
	engine.Run(ctx, telegram.UpdateConfig{
		Timeout: cfg.Telegram.PollTimeout,
	})

	logger.Info("shut down cleanly")
	return nil
}
