// Package main содержит точку входа воркера пересчёта состояний подписки.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GRI-ESPCI/intrarez/internal/app/substateupdater"
	"github.com/GRI-ESPCI/intrarez/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting substate-updater", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := substateupdater.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize substate updater", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("substate updater stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("substate updater stopped gracefully")
}
