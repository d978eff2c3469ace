package socket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spur-store/spur-chat-backend/internal/logger"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// startWSClient upgrades one connection, registers it on the hub and runs
// both pumps, the way the websocket handler wires a widget connection.
func startWSClient(t *testing.T, hub *Hub, channel string) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New() error = %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		client := NewClient(conn, hub, cancel, log)
		hub.Subscribe(client, []string{channel})
		go client.ReadLoop(ctx)
		go client.WriteLoop(ctx)
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return srv, conn
}

func (h *Hub) subscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func TestClientDisconnectTearsDownOnce(t *testing.T) {
	hub := newTestHub(t)
	channel := SessionChannel("abc")
	_, conn := startWSClient(t, hub, channel)

	if hub.subscriberCount(channel) != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.subscriberCount(channel))
	}

	// Dropping the peer makes the read pump fail and both pumps unwind;
	// the second deferred close must be a no-op, not a panic that would
	// take the process down.
	if err := conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.subscriberCount(channel) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was never unsubscribed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Broadcasting after teardown must not reach the dead client.
	hub.BroadcastGlobal(context.Background(), Message{Channel: channel, Payload: "hi"})
}

func TestClientCloseIsIdempotent(t *testing.T) {
	hub := newTestHub(t)
	channel := SessionChannel("abc")
	srv, conn := startWSClient(t, hub, channel)
	defer conn.Close()

	// Grab the server-side client straight off the hub.
	hub.mu.RLock()
	var client *Client
	for _, c := range hub.channels[channel] {
		client = c
	}
	hub.mu.RUnlock()
	if client == nil {
		t.Fatal("no server-side client registered")
	}

	client.close()
	client.close() // both pumps defer close; the repeat must not panic
	srv.Close()

	if hub.subscriberCount(channel) != 0 {
		t.Fatalf("subscribers = %d after close, want 0", hub.subscriberCount(channel))
	}
}
