package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PercyTuncar/bot-2026-sub001/internal/app"
	"github.com/PercyTuncar/bot-2026-sub001/internal/bot"
	"github.com/PercyTuncar/bot-2026-sub001/internal/config"
	"github.com/PercyTuncar/bot-2026-sub001/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	if err := cfg.RequireToken(); err != nil {
		config.Exitf("config: %v", err)
	}
	logger := cfg.Logger(os.Stderr)
	logger.Info("starting points bot", "db_driver", cfg.DBDriver, "db_path", cfg.DBPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "points-bot", cfg.OTelEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	a, err := app.Open(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if _, err := a.SeedCatalog(ctx, cfg.CatalogPath); err != nil {
		logger.Error("failed to apply catalog", "path", cfg.CatalogPath, "error", err)
		os.Exit(1)
	}

	telegramBot, err := bot.New(bot.Config{
		Token:             cfg.TelegramToken,
		Language:          cfg.Language,
		AdminIDs:          cfg.AdminIDs,
		WebhookURL:        cfg.WebhookURL,
		WebhookListenAddr: cfg.WebhookListenAddr,
		WebhookSecret:     cfg.WebhookSecret,
	}, bot.Services{
		Identity:   a.Identity,
		Ledger:     a.Ledger,
		Economy:    a.Economy,
		Moderation: a.Moderation,
		Configs:    a.Configs,
		Contacts:   a.Store,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize bot", "error", err)
		os.Exit(1)
	}

	logger.Info("bot is running, press Ctrl+C to stop")
	if err := a.Serve(ctx, telegramBot.Run, time.Hour); err != nil {
		logger.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}
