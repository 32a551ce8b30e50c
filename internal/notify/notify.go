// Package notify broadcasts node state transitions over a websocket so a
// dashboard can watch a run live, wiring the teacher's gorilla/websocket
// dependency (otherwise unused in the retrieved source) into CEX's
// scheduler. Disabled by default; the engine only calls Hub methods when
// one has been attached via engine.WithObserver. Server wraps the Hub the
// same way the teacher's internal/gateway/server.Server wraps its own
// handler, behind golang.org/x/net/http2/h2c, so the observer's websocket
// upgrade and cleartext HTTP/2 share one listener.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Event describes one node state transition, broadcast as JSON.
type Event struct {
	Namespace string `json:"namespace"`
	Node      string `json:"node"`
	State     string `json:"state"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Hub tracks connected websocket clients and fans events out to all of
// them. The zero value is not usable; construct with NewHub.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a broadcast target until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	go h.drain(conn)
}

// drain discards client messages (this channel is one-way) until the
// connection errors, then deregisters it.
func (h *Hub) drain(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish broadcasts ev to every connected client, dropping any connection
// that fails to accept the write.
func (h *Hub) Publish(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Server wraps a Hub behind an h2c-upgradeable *http.Server, matching the
// teacher's internal/gateway/server.Server exactly: the websocket upgrade
// path (HTTP/1.1) is unaffected, but a client that speaks cleartext HTTP/2
// gets it for free.
type Server struct {
	httpServer *http.Server
}

// NewServer returns a Server listening on addr and broadcasting through hub.
func NewServer(addr string, hub *Hub) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: h2c.NewHandler(hub, &http2.Server{}),
		},
	}
}

// Start blocks serving until the server is shut down or fails, mirroring
// the teacher's Server.Start (ErrServerClosed is not an error).
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
