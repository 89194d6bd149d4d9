// Package main содержит точку входа воркера перегенерации файла DHCP.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GRI-ESPCI/intrarez/internal/app/dhcpwatcher"
	"github.com/GRI-ESPCI/intrarez/internal/config"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("starting dhcp-watcher", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := dhcpwatcher.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dhcp watcher", slog.Any("err", err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("dhcp watcher stopped with error", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("dhcp watcher stopped gracefully")
}
