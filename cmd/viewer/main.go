package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hajimehoshi/ebiten/v2"

	"beacon-trilateration/internal/config"
	"beacon-trilateration/internal/logging"
	"beacon-trilateration/internal/transport"
	"beacon-trilateration/internal/visualization"
	"beacon-trilateration/internal/visualization/viewer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scene := visualization.NewScene()
	estimates := make(chan transport.EstimateMessage, 16)
	client := transport.NewEstimateClient(cfg.ViewerURL, cfg.ReconnectDelay, logger)

	go func() {
		if err := client.Run(ctx, estimates); err != nil && ctx.Err() == nil {
			logger.Error("estimate stream stopped", "error", err)
		}
	}()
	go scene.Consume(ctx, estimates)

	ebiten.SetWindowSize(800, 800)
	ebiten.SetWindowTitle("Trilateration")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(viewer.NewRenderer(scene)); err != nil {
		logger.Error("viewer stopped", "error", err)
		os.Exit(1)
	}
}
