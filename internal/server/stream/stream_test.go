package stream

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/levyledger/levyd/internal/config"
	"github.com/levyledger/levyd/internal/events"
	"github.com/levyledger/levyd/internal/types"
)

func startServer(t *testing.T, bus *events.Bus) *Server {
	t.Helper()

	srv := NewServer(config.StreamConfig{
		Listen:      "127.0.0.1:0",
		SendBuffer:  16,
		PingSeconds: 30,
	}, bus, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("stream server did not stop")
		}
	})

	require.Eventually(t, func() bool { return srv.Addr() != "" },
		2*time.Second, 10*time.Millisecond)
	return srv
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, cmd map[string]interface{}) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(cmd))
}

func read(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestSubscribeReceivesSettlements(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)
	ws := dial(t, srv)

	send(t, ws, map[string]interface{}{
		"command": "subscribe",
		"id":      1,
		"streams": []string{"settlements"},
	})
	resp := read(t, ws)
	assert.Equal(t, "response", resp["type"])
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, float64(1), resp["id"])

	var sender types.AccountID
	sender[19] = 3
	bus.Publish(events.Settlement{
		Seq:    7,
		Time:   time.Now(),
		Sender: sender,
		Amount: 1000,
		Taxed:  true,
		Tax:    100,
		Net:    900,
		Result: "Success",
	})

	msg := read(t, ws)
	assert.Equal(t, "settlement", msg["type"])
	event, ok := msg["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), event["seq"])
	assert.Equal(t, sender.String(), event["sender"])
	assert.Equal(t, float64(100), event["tax"])
}

func TestEventsFilterByStream(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)
	ws := dial(t, srv)

	send(t, ws, map[string]interface{}{
		"command": "subscribe",
		"id":      1,
		"streams": []string{"distributions"},
	})
	_ = read(t, ws)

	// A settlement must not reach a distributions-only subscriber.
	bus.Publish(events.Settlement{Seq: 1, Time: time.Now(), Result: "Success"})
	bus.Publish(events.Distribution{
		ID:          "cycle-1",
		Time:        time.Now(),
		Category:    "sell",
		Distributed: 200,
		Result:      "Success",
	})

	msg := read(t, ws)
	assert.Equal(t, "distribution", msg["type"])
	event := msg["event"].(map[string]interface{})
	assert.Equal(t, "cycle-1", event["id"])
	assert.Equal(t, float64(200), event["distributed"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)
	ws := dial(t, srv)

	send(t, ws, map[string]interface{}{
		"command": "subscribe", "id": 1, "streams": []string{"settlements"},
	})
	resp := read(t, ws)
	require.Equal(t, "success", resp["status"])

	send(t, ws, map[string]interface{}{
		"command": "unsubscribe", "id": 2, "streams": []string{"settlements"},
	})
	resp = read(t, ws)
	require.Equal(t, "success", resp["status"])
	result := resp["result"].(map[string]interface{})
	assert.Empty(t, result["streams"])

	bus.Publish(events.Settlement{Seq: 1, Time: time.Now(), Result: "Success"})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var msg map[string]interface{}
	assert.Error(t, ws.ReadJSON(&msg), "expected no delivery after unsubscribe")
}

func TestPingCommand(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)
	ws := dial(t, srv)

	send(t, ws, map[string]interface{}{"command": "ping", "id": 42})
	resp := read(t, ws)
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, float64(42), resp["id"])
}

func TestUnknownCommandAndStreamRejected(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)
	ws := dial(t, srv)

	send(t, ws, map[string]interface{}{"command": "teleport", "id": 1})
	resp := read(t, ws)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "unknownCommand", resp["error"])

	send(t, ws, map[string]interface{}{
		"command": "subscribe", "id": 2, "streams": []string{"weather"},
	})
	resp = read(t, ws)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "invalidStream", resp["error"])

	send(t, ws, map[string]interface{}{"command": "subscribe", "id": 3})
	resp = read(t, ws)
	assert.Equal(t, "error", resp["status"])
	assert.Equal(t, "missingStreams", resp["error"])
}

func TestConnectionCountTracksClients(t *testing.T) {
	bus := events.NewBus()
	srv := startServer(t, bus)

	ws1 := dial(t, srv)
	ws2 := dial(t, srv)
	require.Eventually(t, func() bool { return srv.ConnCount() == 2 },
		2*time.Second, 10*time.Millisecond)

	_ = ws1.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	_ = ws2.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}
