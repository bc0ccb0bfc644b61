// Package live pushes readings and alert events to WebSocket clients.
package live

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
)

// Message types sent to clients.
const (
	TypeReading = "reading"
	TypeAlert   = "alert"
)

// Message is the frame written to clients.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	done    chan struct{}
}

// NewHub constructs a hub. Call Run to start dispatching.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		logger:     logger,
		clients:    make(map[*Client]struct{}),
		done:       make(chan struct{}),
	}
}

// Run dispatches until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("live client connected", zap.String("remote", client.remote))
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("live client too slow, dropped", zap.String("remote", client.remote))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishReading implements telemetry ReadingPublisher.
func (h *Hub) PublishReading(_ context.Context, event telemetryapp.ReadingEvent) {
	h.publish(Message{Type: TypeReading, Payload: event})
}

// Notify implements AlertNotifier.
func (h *Hub) Notify(_ context.Context, event alertapp.AlertEvent) {
	h.publish(Message{Type: TypeAlert, Payload: event})
}

func (h *Hub) publish(msg Message) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("marshal live message failed", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	default:
		h.logger.Warn("live broadcast queue full, message dropped", zap.String("type", msg.Type))
	}
}

func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.logger.Debug("live client disconnected", zap.String("remote", client.remote))
	}
}
