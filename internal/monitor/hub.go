// Package monitor implements the admin/live-input websocket broadcaster
// spec.md §6 treats as an outer surface: a read-only feed of input
// telemetry (who played what, on which port, and the outcome) for a
// dashboard to render. Grounded on the teacher's pty.Hub
// register/unregister event loop, simplified to one-way broadcast since
// viewers here never write back into the game.
package monitor

import (
	"encoding/json"
	"sync"
)

// Frame is one telemetry event broadcast to every connected viewer.
type Frame struct {
	Type       string `json:"type"`
	SequenceID string `json:"sequence_id,omitempty"`
	User       string `json:"user,omitempty"`
	Port       int    `json:"port,omitempty"`
	Raw        string `json:"raw,omitempty"`
	Result     string `json:"result,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
	Message    string `json:"message,omitempty"`
	Degraded   bool   `json:"degraded,omitempty"`
	Connected  bool   `json:"connected,omitempty"`
}

// Hub fans telemetry frames out to every connected dashboard client. One
// owner goroutine (Run) serializes registration against broadcast, the
// same shape as the teacher's PTY hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}

	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	stop       chan struct{}
}

// NewHub creates an idle Hub; call Run to start its event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[chan []byte]struct{}),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 64),
		stop:       make(chan struct{}),
	}
}

// Run drives the hub's event loop until Stop is called. Intended to run
// in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client <- data:
				default:
					// Slow client: drop the frame rather than block the hub.
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				close(client)
			}
			h.clients = make(map[chan []byte]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and closes every connected client channel.
func (h *Hub) Stop() {
	close(h.stop)
}

// Register adds a client channel to receive broadcast frames.
func (h *Hub) Register(client chan []byte) {
	h.register <- client
}

// Unregister removes a client channel.
func (h *Hub) Unregister(client chan []byte) {
	h.unregister <- client
}

// Publish marshals f and broadcasts it to every connected client.
// Non-blocking: a full broadcast buffer just drops the frame.
func (h *Hub) Publish(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// ClientCount reports the number of connected dashboard clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
