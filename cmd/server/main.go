package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"site-assistant/internal/app"
	"site-assistant/internal/config"
	"site-assistant/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.APIKey == "" && !cfg.UsesParamStore() {
		logger.Warn("OPENROUTER_API_KEY is not set; chat requests will fail until it is")
	}

	h, err := app.BuildHandler(ctx, cfg, logger, app.Deps{})
	if err != nil {
		logger.Error("failed to build handler", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Addr(), server.NewMux(h, cfg.StaticDir), logger)
	logger.Info("serving", "url", "http://localhost"+cfg.Addr(), "staticDir", cfg.StaticDir)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
