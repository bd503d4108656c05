package room

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	CreateSystem(ctx context.Context, system *RoomSystem) error
	GetSystem(ctx context.Context, id uuid.UUID) (*RoomSystem, error)
	GetSystemByTrigger(ctx context.Context, guildID, triggerID string) (*RoomSystem, error)
	ListSystems(ctx context.Context, guildID string) ([]*RoomSystem, error)
	DeleteSystem(ctx context.Context, id uuid.UUID) error

	CreateRoom(ctx context.Context, room *Room) error
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	GetRoomByVoice(ctx context.Context, voiceChannelID string) (*Room, error)
	// GetRoomByChannel matches either the voice or the text channel
	GetRoomByChannel(ctx context.Context, channelID string) (*Room, error)
	ListRooms(ctx context.Context, systemID uuid.UUID) ([]*Room, error)
	ListAllRooms(ctx context.Context) ([]*Room, error)
	ListRoomNames(ctx context.Context, guildID string) ([]string, error)
	UpdateRoomOwner(ctx context.Context, id uuid.UUID, ownerID string) error
	UpdateRoomName(ctx context.Context, id uuid.UUID, name string) error
	// SetRoomClosed reports whether this call flipped the flag
	SetRoomClosed(ctx context.Context, id uuid.UUID) (bool, error)
	SetRoomLocked(ctx context.Context, id uuid.UUID, locked bool) error
	SetControlMessage(ctx context.Context, id uuid.UUID, messageID string) error
	// DeleteRoom removes the room and its ready-check rows. It reports false
	// when the row was already gone.
	DeleteRoom(ctx context.Context, id uuid.UUID) (bool, error)

	UpsertReadyEntry(ctx context.Context, entry *ReadyCheckEntry) error
	// SetReady reports false when there is no entry for the user
	SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (bool, error)
	DeleteReadyEntry(ctx context.Context, roomID uuid.UUID, userID string) error
	ListReadyEntries(ctx context.Context, roomID uuid.UUID) ([]*ReadyCheckEntry, error)
}
