package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beacon-trilateration/internal/common"
	"beacon-trilateration/internal/estimator"
	"beacon-trilateration/internal/logging"
	"beacon-trilateration/internal/observation"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

type countingReconnects struct{ n atomic.Int32 }

func (c *countingReconnects) IncReconnects() { c.n.Add(1) }

// beaconServer sends the given payloads on every connection, then closes it.
func beaconServer(t *testing.T, payloads []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, p := range payloads {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(p)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func TestWebSocketSourceDeliversAndReconnects(t *testing.T) {
	srv := beaconServer(t, []string{
		`{"x":1,"y":2,"sentTime":0,"receivedTime":10}`,
		`not json`,
		`{"x":3,"y":4,"sentTime":0,"receivedTime":20}`,
	})
	defer srv.Close()

	counter := &countingReconnects{}
	src := NewWebSocketSource(WebSocketConfig{URL: wsURL(srv.URL), ReconnectDelay: 10 * time.Millisecond}, counter, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan observation.Reading)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	// Two connections' worth of readings: the undecodable one is skipped.
	var got []observation.Reading
	for len(got) < 4 {
		select {
		case r := <-out:
			got = append(got, r)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d readings", len(got))
		}
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, observation.Reading{X: 1, Y: 2, SentTime: 0, ReceivedTime: 10}, got[0])
	assert.Equal(t, observation.Reading{X: 3, Y: 4, SentTime: 0, ReceivedTime: 20}, got[1])
	assert.Equal(t, got[:2], got[2:])
	assert.GreaterOrEqual(t, counter.n.Load(), int32(1))
}

func TestWebSocketSourceFirstConnectionIsNotAReconnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The beacon server is not up yet on the first attempt.
		if requests.Add(1) == 1 {
			http.Error(w, "starting", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"x":1,"y":2,"sentTime":0,"receivedTime":10}`))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	counter := &countingReconnects{}
	src := NewWebSocketSource(WebSocketConfig{URL: wsURL(srv.URL), ReconnectDelay: 10 * time.Millisecond}, counter, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan observation.Reading)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	next := func() {
		t.Helper()
		select {
		case <-out:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reading")
		}
	}

	next()
	assert.Equal(t, int32(0), counter.n.Load(), "first established connection")
	next()
	assert.Equal(t, int32(1), counter.n.Load(), "second established connection")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, requests.Load(), int32(3))
}

func TestWebSocketSourceStopsWhileDialFails(t *testing.T) {
	src := NewWebSocketSource(WebSocketConfig{URL: "ws://127.0.0.1:1", ReconnectDelay: 5 * time.Millisecond}, nil, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := src.Run(ctx, make(chan observation.Reading))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroadcasterPublishesToClients(t *testing.T) {
	b := NewBroadcaster(nil, logging.Discard())
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	est := estimator.Estimate{
		Seq:      1,
		Position: common.Point{X: 0.5, Y: -0.5},
		Beacons:  [3]common.Point{{X: 0, Y: 100}, {X: -100, Y: 0}, {X: 100, Y: 0}},
	}
	require.NoError(t, b.Publish(context.Background(), est))

	var msg EstimateMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, uint64(1), msg.Seq)
	assert.True(t, msg.Finite)
	assert.Equal(t, common.Point{X: 0.5, Y: -0.5}, msg.Object.Point())
	require.Len(t, msg.Beacons, 3)
	assert.Equal(t, common.Point{X: -100, Y: 0}, msg.Beacons[1].Point())

	conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcastDoesNotWaitForStalledClient(t *testing.T) {
	b := NewBroadcaster(nil, logging.Discard())
	defer b.Close()
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	// This client never reads, so its socket buffers fill up.
	stalled, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer stalled.Close()
	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	payload := map[string]string{"pad": strings.Repeat("x", 64<<10)}
	start := time.Now()
	for i := 0; i < 1000; i++ {
		require.NoError(t, b.Broadcast(payload))
	}
	assert.Less(t, time.Since(start), 3*time.Second)

	require.Eventually(t, func() bool { return b.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestBroadcastKeepsTickTogether(t *testing.T) {
	b := NewBroadcaster(nil, logging.Discard())
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	tick := []any{
		observation.Reading{X: 0, Y: 100, ReceivedTime: 1},
		observation.Reading{X: -100, Y: 0, ReceivedTime: 2},
		observation.Reading{X: 100, Y: 0, ReceivedTime: 3},
	}
	require.NoError(t, b.Broadcast(tick...))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for i := range tick {
		var r observation.Reading
		require.NoError(t, conn.ReadJSON(&r))
		assert.Equal(t, tick[i], r)
	}

	// Close drains the queue and then says goodbye.
	b.Close()
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, b.Clients())
}

func TestEstimateClientReceivesBroadcasts(t *testing.T) {
	b := NewBroadcaster(nil, logging.Discard())
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	client := NewEstimateClient(wsURL(srv.URL), 10*time.Millisecond, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan EstimateMessage, 1)
	go client.Run(ctx, out)

	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, b.Publish(ctx, estimator.Estimate{Seq: 7}))

	select {
	case msg := <-out:
		assert.Equal(t, uint64(7), msg.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("no estimate received")
	}
}

type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaSource(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Value: []byte(`{"x":1,"y":1,"sentTime":0,"receivedTime":1}`)},
		{Value: []byte(`garbage`)},
		{Value: []byte(`{"x":2,"y":2,"sentTime":0,"receivedTime":2}`)},
	}}
	src := NewKafkaSourceFromReader(reader, logging.Discard())

	out := make(chan observation.Reading, 4)
	err := src.Run(context.Background(), out)
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, reader.closed)

	close(out)
	var xs []float64
	for r := range out {
		xs = append(xs, r.X)
	}
	assert.Equal(t, []float64{1, 2}, xs)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherRoundTrip(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisherFromWriter(w, "beacons")

	readings := []observation.Reading{
		{X: -100, Y: 0, SentTime: 0, ReceivedTime: 3000},
		{X: 100, Y: 0, SentTime: 0, ReceivedTime: 3000},
	}
	require.NoError(t, p.PublishReadings(context.Background(), readings))
	require.Len(t, w.msgs, 2)

	for i, m := range w.msgs {
		assert.Equal(t, "beacons", string(m.Key))
		r, err := DecodeReading(m.Value)
		require.NoError(t, err)
		assert.Equal(t, readings[i], r)
	}

	w.err = errors.New("broker down")
	assert.Error(t, p.PublishReadings(context.Background(), readings))
}
