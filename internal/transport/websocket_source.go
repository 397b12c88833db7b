package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"beacon-trilateration/internal/observation"
)

// WebSocketConfig configures a WebSocketSource.
type WebSocketConfig struct {
	URL            string
	ReconnectDelay time.Duration
}

// WebSocketSource reads beacon readings from a websocket push stream and
// reconnects after connection loss.
type WebSocketSource struct {
	config     WebSocketConfig
	dialer     *websocket.Dialer
	reconnects ReconnectCounter
	logger     *slog.Logger
}

// NewWebSocketSource creates a websocket reading source.
func NewWebSocketSource(config WebSocketConfig, reconnects ReconnectCounter, logger *slog.Logger) *WebSocketSource {
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = 2 * time.Second
	}
	if reconnects == nil {
		reconnects = nopCounter{}
	}
	return &WebSocketSource{
		config:     config,
		dialer:     websocket.DefaultDialer,
		reconnects: reconnects,
		logger:     logger,
	}
}

// Run connects and forwards readings to out until ctx is cancelled.
func (s *WebSocketSource) Run(ctx context.Context, out chan<- observation.Reading) error {
	connected := false
	for {
		dialed, err := s.stream(ctx, out, connected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if dialed {
			connected = true
		}
		s.logger.Warn("reading stream interrupted",
			"url", s.config.URL,
			"error", err,
			"retry_in", s.config.ReconnectDelay,
		)

		timer := time.NewTimer(s.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// stream handles one connection until it fails. The bool reports whether the
// connection was established at all.
func (s *WebSocketSource) stream(ctx context.Context, out chan<- observation.Reading, reconnect bool) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.config.URL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", s.config.URL, err)
	}
	defer conn.Close()

	if reconnect {
		s.reconnects.IncReconnects()
	}
	s.logger.Info("connected to beacon stream", "url", s.config.URL)

	// Closing the connection unblocks ReadMessage on cancellation.
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
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		r, err := DecodeReading(data)
		if err != nil {
			s.logger.Warn("dropping undecodable message", "error", err)
			continue
		}
		if err := deliver(ctx, out, r); err != nil {
			return true, err
		}
	}
}
