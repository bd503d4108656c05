package websocket

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rx3lixir/tempvoice/internal/room"
)

// Manager owns one hub per guild and implements room.Notifier
type Manager struct {
	hubs           sync.Map // map[string]*Hub
	originPatterns []string
	log            *slog.Logger

	mu     sync.Mutex
	closed bool
}

func NewManager(originPatterns []string, log *slog.Logger) *Manager {
	return &Manager{
		originPatterns: originPatterns,
		log:            log,
	}
}

// GetOrCreateHub returns existing hub or creates new one
func (m *Manager) GetOrCreateHub(guildID string) *Hub {
	if hub, ok := m.hubs.Load(guildID); ok {
		return hub.(*Hub)
	}

	hub := NewHub(guildID, m.log)
	actual, loaded := m.hubs.LoadOrStore(guildID, hub)

	if !loaded {
		go hub.Run()
		m.log.Debug("created hub", "guild_id", guildID)
	}

	return actual.(*Hub)
}

// Publish forwards a room event to the guild's dashboards. Guilds nobody
// watches are skipped.
func (m *Manager) Publish(ev room.Event) {
	if hub, ok := m.hubs.Load(ev.GuildID); ok {
		hub.(*Hub).Send(NewRoomEvent(ev))
	}
}

// ServeWS upgrades the request and blocks until the client goes away
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request, subject, guildID string) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return nil
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: m.originPatterns,
	})
	if err != nil {
		return err
	}

	hub := m.GetOrCreateHub(guildID)
	client := NewClient(subject, guildID, conn, hub, m.log)

	if !hub.Register(client) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return nil
	}

	ctx := r.Context()
	go client.writePump(ctx)
	client.readPump(ctx)

	return nil
}

// Shutdown closes every hub and its clients
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.hubs.Range(func(key, value any) bool {
		value.(*Hub).Shutdown()
		m.hubs.Delete(key)
		return true
	})
}

// Metrics returns per-guild hub counters
func (m *Manager) Metrics() map[string]HubMetrics {
	metrics := make(map[string]HubMetrics)
	m.hubs.Range(func(key, value any) bool {
		metrics[key.(string)] = value.(*Hub).Metrics()
		return true
	})
	return metrics
}
