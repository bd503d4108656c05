package websocket

import (
	"encoding/json"
	"time"

	"github.com/rx3lixir/tempvoice/internal/room"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeConnected MessageType = "connected"
	MessageTypeRoomEvent MessageType = "room_event"
	MessageTypeError     MessageType = "error"
)

// Message is the envelope of everything sent to dashboard clients
type Message struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ConnectedData confirms successful connection
type ConnectedData struct {
	GuildID string `json:"guild_id"`
	Subject string `json:"subject"`
}

// ErrorData represents an error message
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewConnected(guildID, subject string) *Message {
	return &Message{
		Type:      MessageTypeConnected,
		Data:      ConnectedData{GuildID: guildID, Subject: subject},
		Timestamp: time.Now().Unix(),
	}
}

func NewRoomEvent(ev room.Event) *Message {
	return &Message{
		Type:      MessageTypeRoomEvent,
		Data:      ev,
		Timestamp: ev.At.Unix(),
	}
}

func NewError(code, message string) *Message {
	return &Message{
		Type:      MessageTypeError,
		Data:      ErrorData{Code: code, Message: message},
		Timestamp: time.Now().Unix(),
	}
}

// ToJSON converts a message to JSON bytes
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
