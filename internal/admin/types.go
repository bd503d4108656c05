package admin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/tempvoice/internal/room"
	"github.com/rx3lixir/tempvoice/internal/schedule"
)

// Rooms is the part of room.Manager exposed to operators
type Rooms interface {
	CreateSystem(ctx context.Context, guildID, triggerID, parentID string) (*room.RoomSystem, error)
	DeleteSystem(ctx context.Context, systemID uuid.UUID) error
	ListSystems(ctx context.Context, guildID string) ([]*room.RoomSystem, error)
	ListRooms(ctx context.Context, systemID uuid.UUID) ([]*room.Room, error)
	Reconcile(ctx context.Context) (room.ReconcileReport, error)
}

type Sessions interface {
	CreateSession(ctx context.Context, req schedule.CreateSessionRequest) (*room.ScheduledSession, error)
	ListUpcoming(ctx context.Context, guildID string, since time.Time) ([]*room.ScheduledSession, error)
	AddRSVP(ctx context.Context, sessionID uuid.UUID, userID string) error
}

type ArchiveReader interface {
	ListDay(ctx context.Context, day time.Time, guildID string) ([]room.SessionRecord, error)
}

type Authenticator interface {
	Login(username, pass string) (string, time.Time, error)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type CreateSystemRequest struct {
	TriggerChannelID string `json:"trigger_channel_id"`
	ParentID         string `json:"parent_id"`
}

type SystemResponse struct {
	System *room.RoomSystem `json:"system"`
}

type RoomsResponse struct {
	Rooms []*room.Room `json:"rooms"`
	Count int          `json:"count"`
}

type SetRoleRequest struct {
	RoleID string `json:"role_id"`
}

type SetChannelRequest struct {
	ChannelID string `json:"channel_id"`
}

type RSVPRequest struct {
	UserID string `json:"user_id"`
}
