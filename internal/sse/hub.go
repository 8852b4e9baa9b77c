package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_storefront/internal/models"
)

// CollectionEvent is the change signal broadcast to a session's open views.
// Consumers must re-read collection state; the payload is advisory only.
type CollectionEvent struct {
	Event      string                `json:"event"`
	SessionID  string                `json:"sessionId"`
	Kind       models.CollectionKind `json:"kind"`
	Line       *models.Line          `json:"line,omitempty"`
	Removed    bool                  `json:"removed,omitempty"`
	TotalItems int                   `json:"totalItems"`
	Timestamp  time.Time             `json:"timestamp"`
}

// Message is a serialized event ready for streaming.
type Message struct {
	Event string
	Data  []byte
}

// Client represents a connected SSE client.
type Client struct {
	ID        string
	SessionID string
	Events    chan Message
}

// Hub manages SSE client connections and broadcasts.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client subscribed to one session and returns it for streaming.
func (h *Hub) Register(clientID, sessionID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := &Client{
		ID:        clientID,
		SessionID: sessionID,
		Events:    make(chan Message, 64),
	}
	h.clients[clientID] = c
	log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client connected")
	return c
}

// Unregister removes a client and closes its channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[clientID]; ok {
		close(c.Events)
		delete(h.clients, clientID)
		log.Info().Str("client_id", clientID).Int("total_clients", len(h.clients)).Msg("SSE client disconnected")
	}
}

// Broadcast sends an event to every client of the event's session.
// Non-blocking: drops message if client buffer is full.
func (h *Hub) Broadcast(event *CollectionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	msg := Message{Event: event.Event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if c.SessionID != event.SessionID {
			continue
		}
		select {
		case c.Events <- msg:
		default:
			log.Warn().Str("client_id", c.ID).Msg("SSE client buffer full, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
