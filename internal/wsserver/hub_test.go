package wsserver

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tockanest/United-Chat/internal/message"
)

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients, have %d", want, h.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_FanOut(t *testing.T) {
	h, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	url := "ws://" + h.Addr() + "/"
	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial consumer %d: %v", i, err)
		}
		defer conn.Close()
		conns[i] = conn
	}
	waitForClients(t, h, 3)

	env := message.Envelope{
		Platform: message.PlatformTwitch,
		Data:     message.Unified{ID: "m1", Platform: message.PlatformTwitch, Message: "hello"},
	}
	h.Broadcast(env)

	want, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("consumer %d read: %v", i, err)
		}
		if kind != websocket.TextMessage {
			t.Errorf("consumer %d got frame type %d", i, kind)
		}
		if string(data) != string(want) {
			t.Errorf("consumer %d got %s, want %s", i, data, want)
		}
	}
}

func TestHub_DuplicateAddressRejected(t *testing.T) {
	h, err := New("127.0.0.1:0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer h.Close()

	existing := &client{addr: "10.0.0.1:5555", send: make(chan []byte, 1)}
	h.clients[existing.addr] = existing

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.handleWS(rec, req)

	if rec.Code != 409 {
		t.Errorf("duplicate connection should be refused, got status %d", rec.Code)
	}
	if got := h.clients[existing.addr]; got != existing {
		t.Errorf("existing registration must remain untouched")
	}
	if h.ClientCount() != 1 {
		t.Errorf("registry should still hold one entry, has %d", h.ClientCount())
	}
}

func TestHub_DisconnectedConsumerIsPruned(t *testing.T) {
	h, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+h.Addr()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)

	// Broadcasting with no consumers must be a no-op, not a failure.
	h.Broadcast(message.Envelope{Platform: message.PlatformYouTube})
}

func TestHub_CloseSeversConsumersAndIsIdempotent(t *testing.T) {
	h, err := Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+h.Addr()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, h, 1)

	h.Close()
	h.Close()

	if h.ClientCount() != 0 {
		t.Errorf("registry should be empty after close, has %d", h.ClientCount())
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
