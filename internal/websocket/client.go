package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Send pings to peer with this period
	pingPeriod = 30 * time.Second

	// Dashboards only listen; anything bigger than this is not ours
	maxMessageSize = 512

	sendBuffer = 64
)

// Client represents a single dashboard connection
type Client struct {
	subject string
	guildID string
	conn    *websocket.Conn
	hub     *Hub
	send    chan []byte
	log     *slog.Logger
}

func NewClient(subject, guildID string, conn *websocket.Conn, hub *Hub, log *slog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)

	return &Client{
		subject: subject,
		guildID: guildID,
		conn:    conn,
		hub:     hub,
		send:    make(chan []byte, sendBuffer),
		log:     log,
	}
}

// readPump only detects disconnects; clients never send anything useful.
// It blocks until the connection closes.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, _, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				c.log.Debug("client disconnected normally",
					"subject", c.subject,
					"guild_id", c.guildID,
				)
			} else {
				c.log.Warn("websocket read error",
					"subject", c.subject,
					"guild_id", c.guildID,
					"error", err,
				)
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the connection
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()

			if err != nil {
				c.log.Warn("failed to write message",
					"subject", c.subject,
					"guild_id", c.guildID,
					"error", err,
				)
				return
			}

		case <-ticker.C:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(writeCtx)
			cancel()

			if err != nil {
				c.log.Warn("failed to send ping",
					"subject", c.subject,
					"guild_id", c.guildID,
					"error", err,
				)
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
