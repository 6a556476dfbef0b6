package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-gaze/internal/log"
)

// Hub maintains the set of viewers of one dashboard stream and broadcasts
// messages to them
type Hub struct {
	name string
	log  *slog.Logger

	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns; register and unregister never block after it
	done chan struct{}

	// Guards clients for ClientCount
	mu sync.RWMutex

	// Sent to every client right after it registers, if set
	greeting func() (Message, bool)
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        log.With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetGreeting installs a function producing the first message for new
// clients (e.g. the current stats). Call before Run.
func (h *Hub) SetGreeting(fn func() (Message, bool)) {
	h.greeting = fn
}

// Run starts the hub's main loop until ctx is done, then closes every
// client's send channel. Call it once, in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.greeting != nil {
				if msg, ok := h.greeting(); ok {
					select {
					case client.send <- msg:
					default:
					}
				}
			}
			h.log.Debug("viewer connected", "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("viewer disconnected", "clients", count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer is full - drop it
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("dropped slow viewer")
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers c, reporting false when the hub has stopped
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters c; after shutdown the hub has already released it
func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastJSON encodes and broadcasts a JSON message
func (h *Hub) BroadcastJSON(v any) error {
	msg, err := Encode(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
