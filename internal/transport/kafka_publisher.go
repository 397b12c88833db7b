package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"beacon-trilateration/internal/observation"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes readings to a Kafka topic. All messages share one
// key so they land on one partition and keep their order.
type KafkaPublisher struct {
	writer MessageWriter
	key    []byte
}

// NewKafkaPublisher creates a publisher for config.Topic. key selects the
// partition.
func NewKafkaPublisher(config KafkaConfig, key string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaPublisherFromWriter(writer, key)
}

// NewKafkaPublisherFromWriter wraps an existing writer.
func NewKafkaPublisherFromWriter(writer MessageWriter, key string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, key: []byte(key)}
}

// PublishReadings writes readings as one ordered batch.
func (p *KafkaPublisher) PublishReadings(ctx context.Context, readings []observation.Reading) error {
	msgs := make([]kafka.Message, len(readings))
	now := time.Now()
	for i, r := range readings {
		data, err := EncodeReading(r)
		if err != nil {
			return fmt.Errorf("encode reading: %w", err)
		}
		msgs[i] = kafka.Message{Key: p.key, Value: data, Time: now}
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

// Close closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
