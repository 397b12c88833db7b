package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"beacon-trilateration/internal/api"
	"beacon-trilateration/internal/chart"
	"beacon-trilateration/internal/config"
	"beacon-trilateration/internal/estimator"
	"beacon-trilateration/internal/logging"
	"beacon-trilateration/internal/metrics"
	"beacon-trilateration/internal/observation"
	"beacon-trilateration/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	collector, err := metrics.NewCollector(nil)
	if err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}

	runtime := config.NewRuntime(cfg.Settings())
	broadcaster := transport.NewBroadcaster(collector, logger)
	latest := chart.NewLatest()

	est := estimator.New(runtime, estimator.Sinks{broadcaster, latest}, logger,
		estimator.WithRecorder(collector))
	source := newSource(cfg, collector, logger)

	srv := api.NewServer(cfg.HTTPAddr, api.Deps{
		Runtime:    runtime,
		Stream:     broadcaster,
		StreamPath: api.EstimateStreamPath,
		Latest:     latest,
		Metrics:    collector,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting estimator",
		"source", cfg.ReadingSource,
		"signal_velocity", runtime.SignalVelocity(),
		"object_velocity", runtime.ObjectVelocity(),
	)

	readings := make(chan observation.Reading, cfg.ReadingBuffer)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(readings)
		return source.Run(gctx, readings)
	})
	g.Go(func() error {
		return est.Run(gctx, readings)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		broadcaster.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("estimator stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("estimator stopped")
}

func newSource(cfg *config.Config, collector *metrics.Collector, logger *slog.Logger) transport.Source {
	if cfg.ReadingSource == config.SourceKafka {
		return transport.NewKafkaSource(transport.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			GroupID: cfg.KafkaGroup,
		}, logger)
	}
	return transport.NewWebSocketSource(transport.WebSocketConfig{
		URL:            cfg.BeaconURL,
		ReconnectDelay: cfg.ReconnectDelay,
	}, collector, logger)
}
