package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"beacon-trilateration/internal/api"
	"beacon-trilateration/internal/config"
	"beacon-trilateration/internal/logging"
	"beacon-trilateration/internal/observation"
	"beacon-trilateration/internal/simulation"
	"beacon-trilateration/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	runtime := config.NewRuntime(cfg.Settings())
	broadcaster := transport.NewBroadcaster(nil, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sim := simulation.New(simulation.DefaultBeacons, runtime, logger,
		simulation.WithRand(rng),
		simulation.WithNoise(simulation.GaussianNoise(rng, cfg.BeaconNoise)),
	)

	emit := func(ctx context.Context, readings []observation.Reading) error {
		msgs := make([]any, len(readings))
		for i, r := range readings {
			msgs[i] = r
		}
		return broadcaster.Broadcast(msgs...)
	}

	var publisher *transport.KafkaPublisher
	if cfg.ReadingSource == config.SourceKafka {
		publisher = transport.NewKafkaPublisher(transport.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, "beacons")
		wsEmit := emit
		emit = func(ctx context.Context, readings []observation.Reading) error {
			return errors.Join(wsEmit(ctx, readings), publisher.PublishReadings(ctx, readings))
		}
	}

	srv := api.NewServer(cfg.BeaconAddr, api.Deps{
		Runtime:    runtime,
		Stream:     broadcaster,
		StreamPath: api.ReadingStreamPath,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.Run(gctx, cfg.BeaconInterval, emit)
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
		err := srv.Shutdown(shutdownCtx)
		if publisher != nil {
			err = errors.Join(err, publisher.Close())
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("beacon simulator stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("beacon simulator stopped")
}
