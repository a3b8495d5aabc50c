package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"site-assistant/internal/app"
	"site-assistant/internal/config"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// ---- Handler ----
	h, err := app.BuildHandler(ctx, cfg, logger, app.Deps{})
	if err != nil {
		logger.Error("failed to build handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
