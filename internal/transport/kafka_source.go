package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"beacon-trilateration/internal/observation"
)

// KafkaConfig holds Kafka connection configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MessageReader is the subset of *kafka.Reader used by KafkaSource.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource consumes readings published to a Kafka topic. Arrival order is
// preserved per partition, so producers should keep one estimator's beacons
// on a single partition.
type KafkaSource struct {
	reader MessageReader
	logger *slog.Logger
}

// NewKafkaSource creates a Kafka reading source.
func NewKafkaSource(config KafkaConfig, logger *slog.Logger) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.GroupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})
	return NewKafkaSourceFromReader(reader, logger)
}

// NewKafkaSourceFromReader wraps an existing reader.
func NewKafkaSourceFromReader(reader MessageReader, logger *slog.Logger) *KafkaSource {
	return &KafkaSource{reader: reader, logger: logger}
}

// Run forwards readings to out until ctx is cancelled or the reader closes.
func (s *KafkaSource) Run(ctx context.Context, out chan<- observation.Reading) error {
	defer s.reader.Close()

	for {
		msg, err := s.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return ErrClosed
			}
			return fmt.Errorf("read kafka message: %w", err)
		}

		r, err := DecodeReading(msg.Value)
		if err != nil {
			s.logger.Warn("dropping undecodable message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := deliver(ctx, out, r); err != nil {
			return err
		}
	}
}
