package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"asset-console/internal/event"
)

// Hub relays bus events to every connected UI socket.
type Hub struct {
	// Registered clients. Owned by Run.
	clients map[*Client]bool

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed once Run returns.
	done chan struct{}

	bus      event.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger
	count    atomic.Int32
}

// NewHub builds a hub. Origins restricts the browser origins allowed to
// connect; an empty list or "*" allows any.
func NewHub(bus event.Bus, origins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		bus:        bus,
		logger:     logger.With("component", "ws_hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(origins),
	}
	return h
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// Run fans events out until ctx is done. Every client is closed on exit.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)
	defer func() {
		for client := range h.clients {
			h.drop(client)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
			h.count.Add(1)
			h.logger.Debug("ui client connected", "client", client.id)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Debug("ui client disconnected", "client", client.id)
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			message, err := json.Marshal(e)
			if err != nil {
				h.logger.Error("failed to marshal event", "type", e.Type, "error", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("dropping slow ui client", "client", client.id)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Add(-1)
}

// Clients reports the number of connected sockets.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// ServeHTTP upgrades the request and attaches the socket to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn)
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
