package room

import (
	"time"

	"github.com/google/uuid"
)

// RoomSystem binds a trigger voice channel to the category new rooms are created under
type RoomSystem struct {
	ID               uuid.UUID `json:"id"`
	GuildID          string    `json:"guild_id"`
	TriggerChannelID string    `json:"trigger_channel_id"`
	ParentID         string    `json:"parent_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// Room is one active ephemeral session. TextChannelID and RoleID are empty
// when the system runs without paired text channels or access roles.
type Room struct {
	ID               uuid.UUID `json:"id"`
	SystemID         uuid.UUID `json:"system_id"`
	GuildID          string    `json:"guild_id"`
	VoiceChannelID   string    `json:"voice_channel_id"`
	TextChannelID    string    `json:"text_channel_id,omitempty"`
	RoleID           string    `json:"role_id,omitempty"`
	OwnerID          string    `json:"owner_id"`
	Name             string    `json:"name"`
	Closed           bool      `json:"closed"`
	Locked           bool      `json:"locked"`
	ControlMessageID string    `json:"control_message_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ChatChannelID is where room messages go: the paired text channel if there
// is one, otherwise the voice channel's own chat.
func (r *Room) ChatChannelID() string {
	if r.TextChannelID != "" {
		return r.TextChannelID
	}
	return r.VoiceChannelID
}

// DisplayName is the channel name as shown on the platform
func (r *Room) DisplayName() string {
	if r.Closed {
		return r.Name + closedMarker
	}
	return r.Name
}

// ReadyCheckEntry is one resident's ready flag inside a room
type ReadyCheckEntry struct {
	RoomID     uuid.UUID `json:"room_id"`
	UserID     string    `json:"user_id"`
	DisplayTag string    `json:"display_tag"`
	Ready      bool      `json:"ready"`
	JoinedAt   time.Time `json:"joined_at"`
}

// State is the lifecycle stage of a room, used in logs and archive records
type State string

const (
	StateProvisioning State = "provisioning"
	StateActive       State = "active"
	StateClosed       State = "closed"
	StateTearingDown  State = "tearing_down"
	StateDeleted      State = "deleted"
)

// VoiceTransition is a single presence change as delivered by the platform.
// Before and After are voice channel ids, empty when not connected.
type VoiceTransition struct {
	GuildID    string
	UserID     string
	DisplayTag string
	Before     string
	After      string
}

// ScheduledSession is the part of a scheduled event the reminder action needs
type ScheduledSession struct {
	ID          uuid.UUID `json:"id"`
	GuildID     string    `json:"guild_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	SchedulerID string    `json:"scheduler_id"`
	StartsAt    time.Time `json:"starts_at"`
}

// SessionRecord is what gets archived once a room is gone
type SessionRecord struct {
	RoomID    uuid.UUID `json:"room_id"`
	SystemID  uuid.UUID `json:"system_id"`
	GuildID   string    `json:"guild_id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	Closed    bool      `json:"closed"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	DeletedAt time.Time `json:"deleted_at"`
}

// ReconcileReport summarizes one reconciliation sweep
type ReconcileReport struct {
	Checked  int `json:"checked"`
	TornDown int `json:"torn_down"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
