package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"beacon-trilateration/internal/estimator"
)

const (
	writeWait = 5 * time.Second
	// sendQueue is the number of pending broadcasts a client may lag behind
	// before it is disconnected.
	sendQueue = 64
)

// ClientGauge tracks the number of connected clients.
// *metrics.Collector satisfies it.
type ClientGauge interface {
	SetBroadcastClients(n int)
}

type nopGauge struct{}

func (nopGauge) SetBroadcastClients(int) {}

// client is one websocket connection with its own writer goroutine. Each
// queue entry holds the frames of one Broadcast call.
type client struct {
	conn *websocket.Conn
	send chan [][]byte
}

// Broadcaster pushes JSON messages to every connected websocket client.
// Broadcast only enqueues; network writes happen on per-client goroutines.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	gauge    ClientGauge
	logger   *slog.Logger
}

// NewBroadcaster creates a broadcaster accepting connections from any origin.
func NewBroadcaster(gauge ClientGauge, logger *slog.Logger) *Broadcaster {
	if gauge == nil {
		gauge = nopGauge{}
	}
	return &Broadcaster{
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		gauge:    gauge,
		logger:   logger,
	}
}

// Broadcast marshals each message once and queues them, in order, for every
// client. A client connecting concurrently receives either all of msgs or
// none. It never waits on the network; a client whose queue is full is
// disconnected.
func (b *Broadcaster) Broadcast(msgs ...any) error {
	frames := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal broadcast: %w", err)
		}
		frames = append(frames, data)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.clients {
		select {
		case c.send <- frames:
		default:
			b.logger.Warn("dropping slow websocket client", "client_id", id)
			b.removeLocked(id)
			c.conn.Close()
		}
	}
	return nil
}

// Publish sends an estimate to all clients. It makes Broadcaster an
// estimator.Sink.
func (b *Broadcaster) Publish(_ context.Context, est estimator.Estimate) error {
	return b.Broadcast(NewEstimateMessage(est))
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc that upgrades to a websocket and keeps
// the client registered until it disconnects.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade error", "error", err)
			return
		}
		id := uuid.NewString()
		c := &client{conn: conn, send: make(chan [][]byte, sendQueue)}

		b.mu.Lock()
		b.clients[id] = c
		b.gauge.SetBroadcastClients(len(b.clients))
		b.mu.Unlock()
		b.logger.Info("websocket client connected", "client_id", id, "remote_addr", r.RemoteAddr)

		go b.writeLoop(id, c)

		// The read loop only detects disconnects; clients send nothing.
		go func() {
			defer func() {
				b.remove(id)
				conn.Close()
				b.logger.Info("websocket client disconnected", "client_id", id)
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// writeLoop drains c.send until the client is removed, then sends a close
// frame. A failed write closes the connection, which ends the read loop.
func (b *Broadcaster) writeLoop(id string, c *client) {
	defer c.conn.Close()
	for frames := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		for _, data := range frames {
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				b.logger.Debug("websocket write failed", "client_id", id, "error", err)
				return
			}
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
		time.Now().Add(time.Second))
}

func (b *Broadcaster) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

// removeLocked unregisters a client and stops its writer. b.mu must be held.
func (b *Broadcaster) removeLocked(id string) {
	c, ok := b.clients[id]
	if !ok {
		return
	}
	delete(b.clients, id)
	close(c.send)
	b.gauge.SetBroadcastClients(len(b.clients))
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id := range b.clients {
		b.removeLocked(id)
	}
	b.gauge.SetBroadcastClients(0)
}
