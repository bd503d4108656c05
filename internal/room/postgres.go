package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db DBTX
}

func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db}
}

const roomColumns = `
	id, system_id, guild_id, voice_channel_id, text_channel_id, role_id,
	owner_id, name, closed, locked, control_message_id, created_at, updated_at
`

func scanRoom(row pgx.Row) (*Room, error) {
	r := &Room{}
	err := row.Scan(
		&r.ID,
		&r.SystemID,
		&r.GuildID,
		&r.VoiceChannelID,
		&r.TextChannelID,
		&r.RoleID,
		&r.OwnerID,
		&r.Name,
		&r.Closed,
		&r.Locked,
		&r.ControlMessageID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CreateSystem registers a trigger channel for a guild
func (s *PostgresStore) CreateSystem(ctx context.Context, system *RoomSystem) error {
	query := `
		INSERT INTO room_systems (id, guild_id, trigger_channel_id, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	system.ID = uuid.New()
	system.CreatedAt = time.Now()

	_, err := s.db.Exec(ctx, query,
		system.ID,
		system.GuildID,
		system.TriggerChannelID,
		system.ParentID,
		system.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrSystemExists
		}
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to create room system: %w", err)
	}

	return nil
}

func (s *PostgresStore) getSystem(ctx context.Context, query string, args ...any) (*RoomSystem, error) {
	system := &RoomSystem{}
	err := s.db.QueryRow(ctx, query, args...).Scan(
		&system.ID,
		&system.GuildID,
		&system.TriggerChannelID,
		&system.ParentID,
		&system.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSystemNotFound
		}
		return nil, fmt.Errorf("failed to get room system: %w", err)
	}

	return system, nil
}

// GetSystem retrieves a room system by its ID
func (s *PostgresStore) GetSystem(ctx context.Context, id uuid.UUID) (*RoomSystem, error) {
	return s.getSystem(ctx, `
		SELECT id, guild_id, trigger_channel_id, parent_id, created_at
		FROM room_systems
		WHERE id = $1
	`, id)
}

// GetSystemByTrigger looks up the system a trigger channel belongs to
func (s *PostgresStore) GetSystemByTrigger(ctx context.Context, guildID, triggerID string) (*RoomSystem, error) {
	return s.getSystem(ctx, `
		SELECT id, guild_id, trigger_channel_id, parent_id, created_at
		FROM room_systems
		WHERE guild_id = $1 AND trigger_channel_id = $2
	`, guildID, triggerID)
}

// ListSystems lists every room system of a guild
func (s *PostgresStore) ListSystems(ctx context.Context, guildID string) ([]*RoomSystem, error) {
	query := `
		SELECT id, guild_id, trigger_channel_id, parent_id, created_at
		FROM room_systems
		WHERE guild_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list room systems: %w", err)
	}
	defer rows.Close()

	systems := []*RoomSystem{}
	for rows.Next() {
		system := &RoomSystem{}
		err := rows.Scan(
			&system.ID,
			&system.GuildID,
			&system.TriggerChannelID,
			&system.ParentID,
			&system.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room system: %w", err)
		}
		systems = append(systems, system)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room systems: %w", err)
	}

	return systems, nil
}

// DeleteSystem deletes a system (cascades to rooms and ready checks)
func (s *PostgresStore) DeleteSystem(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM room_systems WHERE id = $1`

	result, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete room system: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSystemNotFound
	}

	return nil
}

// CreateRoom persists a freshly provisioned room
func (s *PostgresStore) CreateRoom(ctx context.Context, room *Room) error {
	query := `
		INSERT INTO rooms (` + roomColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	_, err := s.db.Exec(ctx, query,
		room.ID,
		room.SystemID,
		room.GuildID,
		room.VoiceChannelID,
		room.TextChannelID,
		room.RoleID,
		room.OwnerID,
		room.Name,
		room.Closed,
		room.Locked,
		room.ControlMessageID,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return ErrRoomExists
		case pgForeignKeyViolation:
			return ErrSystemNotFound
		}
		if ctx.Err() != nil {
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (s *PostgresStore) getRoom(ctx context.Context, where string, arg any) (*Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE ` + where

	room, err := scanRoom(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return room, nil
}

// GetRoomByID retrieves a room by its ID
func (s *PostgresStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return s.getRoom(ctx, `id = $1`, id)
}

// GetRoomByVoice retrieves the room owning a voice channel
func (s *PostgresStore) GetRoomByVoice(ctx context.Context, voiceChannelID string) (*Room, error) {
	return s.getRoom(ctx, `voice_channel_id = $1`, voiceChannelID)
}

// GetRoomByChannel retrieves a room by its voice or text channel
func (s *PostgresStore) GetRoomByChannel(ctx context.Context, channelID string) (*Room, error) {
	return s.getRoom(ctx, `voice_channel_id = $1 OR (text_channel_id <> '' AND text_channel_id = $1) LIMIT 1`, channelID)
}

func (s *PostgresStore) listRooms(ctx context.Context, query string, args ...any) ([]*Room, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, nil
}

// ListRooms lists active rooms of one system
func (s *PostgresStore) ListRooms(ctx context.Context, systemID uuid.UUID) ([]*Room, error) {
	return s.listRooms(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE system_id = $1
		ORDER BY created_at ASC
	`, systemID)
}

// ListAllRooms lists every active room, used by reconciliation
func (s *PostgresStore) ListAllRooms(ctx context.Context) ([]*Room, error) {
	return s.listRooms(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		ORDER BY created_at ASC
	`)
}

// ListRoomNames returns names in use by active rooms of a guild
func (s *PostgresStore) ListRoomNames(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM rooms WHERE guild_id = $1`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list room names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan room name: %w", err)
		}
		names = append(names, name)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating room names: %w", err)
	}

	return names, nil
}

func (s *PostgresStore) updateRoom(ctx context.Context, set string, id uuid.UUID, arg any) error {
	query := `UPDATE rooms SET ` + set + `, updated_at = $3 WHERE id = $1`

	result, err := s.db.Exec(ctx, query, id, arg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// UpdateRoomOwner overwrites the owner, last writer wins
func (s *PostgresStore) UpdateRoomOwner(ctx context.Context, id uuid.UUID, ownerID string) error {
	return s.updateRoom(ctx, `owner_id = $2`, id, ownerID)
}

func (s *PostgresStore) UpdateRoomName(ctx context.Context, id uuid.UUID, name string) error {
	return s.updateRoom(ctx, `name = $2`, id, name)
}

func (s *PostgresStore) SetRoomLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	return s.updateRoom(ctx, `locked = $2`, id, locked)
}

func (s *PostgresStore) SetControlMessage(ctx context.Context, id uuid.UUID, messageID string) error {
	return s.updateRoom(ctx, `control_message_id = $2`, id, messageID)
}

// SetRoomClosed flags the room closed unless it already is
func (s *PostgresStore) SetRoomClosed(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE rooms
		SET closed = TRUE, updated_at = $2
		WHERE id = $1 AND closed = FALSE
	`

	result, err := s.db.Exec(ctx, query, id, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to close room: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// DeleteRoom deletes a room; ready checks go with it via ON DELETE CASCADE
func (s *PostgresStore) DeleteRoom(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete room: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// UpsertReadyEntry inserts a not-ready entry, replacing any leftover row
// from a previous visit
func (s *PostgresStore) UpsertReadyEntry(ctx context.Context, entry *ReadyCheckEntry) error {
	query := `
		INSERT INTO ready_checks (room_id, user_id, display_tag, ready, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET display_tag = EXCLUDED.display_tag,
		    ready = EXCLUDED.ready,
		    joined_at = EXCLUDED.joined_at
	`

	entry.JoinedAt = time.Now()

	_, err := s.db.Exec(ctx, query,
		entry.RoomID,
		entry.UserID,
		entry.DisplayTag,
		entry.Ready,
		entry.JoinedAt,
	)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to upsert ready entry: %w", err)
	}

	return nil
}

func (s *PostgresStore) SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (bool, error) {
	query := `
		UPDATE ready_checks
		SET ready = $3
		WHERE room_id = $1 AND user_id = $2
	`

	result, err := s.db.Exec(ctx, query, roomID, userID, ready)
	if err != nil {
		return false, fmt.Errorf("failed to set ready state: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteReadyEntry is a no-op when the entry is already gone
func (s *PostgresStore) DeleteReadyEntry(ctx context.Context, roomID uuid.UUID, userID string) error {
	query := `
		DELETE FROM ready_checks
		WHERE room_id = $1 AND user_id = $2
	`

	if _, err := s.db.Exec(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("failed to delete ready entry: %w", err)
	}

	return nil
}

// ListReadyEntries lists residents of a room in the order they joined
func (s *PostgresStore) ListReadyEntries(ctx context.Context, roomID uuid.UUID) ([]*ReadyCheckEntry, error) {
	query := `
		SELECT room_id, user_id, display_tag, ready, joined_at
		FROM ready_checks
		WHERE room_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := s.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ready entries: %w", err)
	}
	defer rows.Close()

	entries := []*ReadyCheckEntry{}
	for rows.Next() {
		e := &ReadyCheckEntry{}
		if err := rows.Scan(&e.RoomID, &e.UserID, &e.DisplayTag, &e.Ready, &e.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ready entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ready entries: %w", err)
	}

	return entries, nil
}
