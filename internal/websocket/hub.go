package websocket

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Hub fans room events of one guild out to its dashboard clients. All
// client bookkeeping happens on the Run goroutine.
type Hub struct {
	guildID string

	// Registered clients (only accessed by hub goroutine)
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	done       chan struct{}

	sent    atomic.Int64
	dropped atomic.Int64
	active  atomic.Int64

	log *slog.Logger
}

type HubMetrics struct {
	ConnectedClients int64 `json:"connected_clients"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

func NewHub(guildID string, log *slog.Logger) *Hub {
	return &Hub{
		guildID:    guildID,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the main event loop - handles ALL state changes sequentially
func (h *Hub) Run() {
	defer close(h.done)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case data := <-h.broadcast:
			h.handleBroadcast(data)

		case <-ticker.C:
			h.log.Debug("hub stats",
				"guild_id", h.guildID,
				"clients", len(h.clients),
				"sent", h.sent.Load(),
				"dropped", h.dropped.Load())

		case <-h.shutdown:
			h.handleShutdown()
			return
		}
	}
}

// Register adds a client; false means the hub is already shut down
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	h.active.Store(int64(len(h.clients)))

	h.log.Info("client registered",
		"guild_id", h.guildID,
		"subject", client.subject,
		"total_clients", len(h.clients),
	)

	if data, err := NewConnected(h.guildID, client.subject).ToJSON(); err == nil {
		client.send <- data
	}
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.active.Store(int64(len(h.clients)))

		h.log.Info("client unregistered",
			"guild_id", h.guildID,
			"subject", client.subject,
			"remaining_clients", len(h.clients),
		)
	}
}

func (h *Hub) handleBroadcast(data []byte) {
	for client := range h.clients {
		select {
		case client.send <- data:
			h.sent.Add(1)
		default:
			// Client is too slow, disconnect it
			h.log.Warn("client buffer full, disconnecting",
				"subject", client.subject,
				"guild_id", h.guildID,
			)
			h.dropped.Add(1)
			h.handleUnregister(client)
		}
	}
}

func (h *Hub) handleShutdown() {
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.active.Store(0)
	h.log.Info("hub shut down", "guild_id", h.guildID)
}

// Send queues a message without blocking the caller
func (h *Hub) Send(message *Message) {
	data, err := message.ToJSON()
	if err != nil {
		h.log.Error("failed to marshal message", "error", err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Error("hub broadcast channel full", "guild_id", h.guildID)
		h.dropped.Add(1)
	}
}

func (h *Hub) Metrics() HubMetrics {
	return HubMetrics{
		ConnectedClients: h.active.Load(),
		MessagesSent:     h.sent.Load(),
		MessagesDropped:  h.dropped.Load(),
	}
}

func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}
