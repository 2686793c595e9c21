// Package server exposes the companion over HTTP: a websocket event
// stream for dashboards and a JSON snapshot of the scene.
package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
)

// wireEvent is the JSON shape pushed to connected dashboards.
type wireEvent struct {
	ID   string    `json:"id"`
	Kind string    `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Hub fans events out to every connected websocket client. It
// implements engine.EventSink.
type Hub struct {
	log        *zap.Logger
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
}

// NewHub constructs an idle hub; call Run to start it.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log.Named("hub"),
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run pumps registrations and broadcasts until the broadcast channel is
// starved by shutdown. Run in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Info("client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.Warn("dropping client", zap.Error(err))
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish serializes the event and queues it for broadcast. Never
// blocks the caller: if the queue is full the event is dropped, the
// dashboards are best-effort mirrors, not the system of record.
func (h *Hub) Publish(event core.Event) {
	payload, err := json.Marshal(wireEvent{
		ID:   event.ID,
		Kind: event.Kind.String(),
		Text: event.Text,
		At:   event.At,
	})
	if err != nil {
		h.log.Warn("could not encode event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.log.Debug("broadcast queue full, dropping event", zap.String("text", event.Text))
	}
}

// ClientCount reports the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
