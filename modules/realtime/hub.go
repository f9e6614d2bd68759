// Package realtime fans task and chat events out to connected
// WebSocket clients. Delivery is at-most-once per connection; clients
// recover missed updates by re-fetching state over HTTP and merging by
// status rank.
package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of the WebSocket connection the hub writes to.
// Narrowed to an interface so tests can drive the hub without sockets.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents one connected WebSocket client.
type Client struct {
	ID       string
	UserID   string
	Conn     Conn
	subjects map[string]bool
}

// Envelope is the wire frame pushed to clients. Subject names the
// stream ("task.<id>", "room.<id>", "tasks.open"), Kind names the
// event inside it.
type Envelope struct {
	Subject string          `json:"subject"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Hub manages WebSocket connections and subject subscriptions.
type Hub struct {
	clients    map[string]*Client
	subjects   map[string]map[string]bool // subject -> set of clientIDs
	register   chan *Client
	unregister chan *Client
	publish    chan *Envelope
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		subjects:   make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan *Envelope, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It accepts a context for graceful
// shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[realtime] Hub shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case env := <-h.publish:
			h.handlePublish(env)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish queues an envelope for every subscriber of its subject. A
// full queue drops the envelope; clients reconcile on reconnect or
// re-fetch, so a dropped push never corrupts state.
func (h *Hub) Publish(subject, kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[realtime] Failed to marshal %s payload: %v", kind, err)
		return
	}
	env := &Envelope{Subject: subject, Kind: kind, Payload: data}

	select {
	case h.publish <- env:
	default:
		log.Printf("[realtime] Publish queue full, dropping %s on %s", kind, subject)
	}
}

// Subscribe adds a client to a subject's subscriber set.
func (h *Hub) Subscribe(clientID, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	client.subjects[subject] = true
	if h.subjects[subject] == nil {
		h.subjects[subject] = make(map[string]bool)
	}
	h.subjects[subject][clientID] = true
	log.Printf("[realtime] Client %s subscribed to %s", clientID, subject)
}

// Unsubscribe removes a client from a subject's subscriber set.
func (h *Hub) Unsubscribe(clientID, subject string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(client.subjects, subject)
	h.removeFromSubject(clientID, subject)
	log.Printf("[realtime] Client %s unsubscribed from %s", clientID, subject)
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to a
// subject.
func (h *Hub) SubscriberCount(subject string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subjects[subject])
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.subjects == nil {
		client.subjects = make(map[string]bool)
	}
	h.clients[client.ID] = client
	for subject := range client.subjects {
		if h.subjects[subject] == nil {
			h.subjects[subject] = make(map[string]bool)
		}
		h.subjects[subject][client.ID] = true
	}
	log.Printf("[realtime] Client %s (user %s) registered", client.ID, client.UserID)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for subject := range client.subjects {
		h.removeFromSubject(client.ID, subject)
	}
	delete(h.clients, client.ID)
	log.Printf("[realtime] Client %s (user %s) unregistered", client.ID, client.UserID)
}

// removeFromSubject requires h.mu held for writing.
func (h *Hub) removeFromSubject(clientID, subject string) {
	if h.subjects[subject] == nil {
		return
	}
	delete(h.subjects[subject], clientID)
	if len(h.subjects[subject]) == 0 {
		delete(h.subjects, subject)
	}
}

func (h *Hub) handlePublish(env *Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[realtime] Failed to marshal envelope: %v", err)
		return
	}

	for clientID := range h.subjects[env.Subject] {
		client, ok := h.clients[clientID]
		if !ok {
			continue
		}
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[realtime] Failed to send to client %s: %v", clientID, err)
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.subjects = make(map[string]map[string]bool)
}
