package wsserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tockanest/United-Chat/internal/message"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub is the local broadcast server. Every unified message is fanned out to
// all connected consumers; delivery is best-effort and per-consumer isolated.
type Hub struct {
	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	clients map[string]*client // keyed by peer address

	closeOnce sync.Once
}

// New binds addr and returns a hub ready to serve. A bind failure is fatal
// for session start and is returned to the caller.
func New(addr string) (*Hub, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("broadcast listen on %s: %w", addr, err)
	}

	h := &Hub{
		listener: ln,
		clients:  make(map[string]*client),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleWS)
	h.server = &http.Server{Handler: mux}

	return h, nil
}

// Start binds addr and begins accepting consumers in the background.
func Start(addr string) (*Hub, error) {
	h, err := New(addr)
	if err != nil {
		return nil, err
	}
	log.Printf("Broadcast server listening on %s", h.Addr())

	go func() {
		if err := h.Run(); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Broadcast server error: %v", err)
		}
	}()
	return h, nil
}

// Run serves consumer connections until the hub is closed.
func (h *Hub) Run() error {
	return h.server.Serve(h.listener)
}

// Addr returns the bound listener address.
func (h *Hub) Addr() string {
	return h.listener.Addr().String()
}

// ClientCount returns the number of connected consumers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	addr := r.RemoteAddr

	h.mu.Lock()
	_, dup := h.clients[addr]
	h.mu.Unlock()
	if dup {
		log.Printf("Client already connected: %s", addr)
		http.Error(w, "already connected", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	c := newClient(h, conn, addr)

	h.mu.Lock()
	if _, dup := h.clients[addr]; dup {
		// Lost a race with a connection from the same peer; keep the
		// registered one.
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[addr] = c
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Accepted connection from %s (total: %d)", addr, total)

	go c.writePump()
	go c.readPump()
}

// unregister removes c from the registry if it is still the registered entry
// for its address, and closes its send channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.addr]; ok && cur == c {
		delete(h.clients, c.addr)
		close(c.send)
		log.Printf("Client disconnected: %s (total: %d)", c.addr, len(h.clients))
	}
}

// Broadcast serializes env once and enqueues it on every connected consumer.
// A consumer with a full send queue is skipped; it never blocks delivery to
// the others.
func (h *Hub) Broadcast(env message.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for addr, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("Send buffer full, dropping message for %s", addr)
		}
	}
}

// Close stops accepting consumers and severs every connection. Idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		log.Println("Shutting down the broadcast server...")
		h.listener.Close()

		h.mu.Lock()
		for addr, c := range h.clients {
			delete(h.clients, addr)
			close(c.send)
			c.conn.Close()
		}
		h.mu.Unlock()
	})
}
