package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// EstimateClient subscribes to an estimator's estimate stream. Renderers use
// it; it reconnects after connection loss.
type EstimateClient struct {
	url            string
	reconnectDelay time.Duration
	logger         *slog.Logger
}

// NewEstimateClient creates a client for the stream at url.
func NewEstimateClient(url string, reconnectDelay time.Duration, logger *slog.Logger) *EstimateClient {
	if reconnectDelay <= 0 {
		reconnectDelay = 2 * time.Second
	}
	return &EstimateClient{url: url, reconnectDelay: reconnectDelay, logger: logger}
}

// Run forwards estimate messages to out until ctx is cancelled.
func (c *EstimateClient) Run(ctx context.Context, out chan<- EstimateMessage) error {
	for {
		err := c.stream(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("estimate stream interrupted", "url", c.url, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *EstimateClient) stream(ctx context.Context, out chan<- EstimateMessage) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var msg EstimateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping undecodable estimate", "error", err)
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
