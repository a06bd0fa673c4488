package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count stuck at %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastDeliversToClient(t *testing.T) {
	hub, url := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForCount(t, hub, 1)

	hub.Broadcast([]byte(`{"type":"telemetry"}`))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(msg) != `{"type":"telemetry"}` {
		t.Fatalf("unexpected payload: %s", msg)
	}
}

func TestDeadClientIsDropped(t *testing.T) {
	hub, url := newTestHub(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForCount(t, hub, 1)

	// Count readers polling while the hub drops the dead connection, the way
	// the poller checks for listeners between broadcasts.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				hub.ClientCount()
			}
		}
	}()
	defer close(done)

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("dead client still registered: %d", hub.ClientCount())
		}
		hub.Broadcast([]byte(`{"type":"telemetry"}`))
		time.Sleep(10 * time.Millisecond)
	}
}
