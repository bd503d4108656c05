package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the part of pgxpool.Pool the schema bootstrap needs
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS room_systems (
		id                 UUID PRIMARY KEY,
		guild_id           TEXT NOT NULL,
		trigger_channel_id TEXT NOT NULL,
		parent_id          TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		UNIQUE (guild_id, trigger_channel_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id                 UUID PRIMARY KEY,
		system_id          UUID NOT NULL REFERENCES room_systems(id) ON DELETE CASCADE,
		guild_id           TEXT NOT NULL,
		voice_channel_id   TEXT NOT NULL UNIQUE,
		text_channel_id    TEXT NOT NULL DEFAULT '',
		role_id            TEXT NOT NULL DEFAULT '',
		owner_id           TEXT NOT NULL,
		name               TEXT NOT NULL,
		closed             BOOLEAN NOT NULL DEFAULT FALSE,
		locked             BOOLEAN NOT NULL DEFAULT FALSE,
		control_message_id TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS rooms_guild_id_idx ON rooms (guild_id)`,
	`CREATE INDEX IF NOT EXISTS rooms_text_channel_id_idx ON rooms (text_channel_id)`,
	`CREATE TABLE IF NOT EXISTS ready_checks (
		room_id     UUID NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		user_id     TEXT NOT NULL,
		display_tag TEXT NOT NULL,
		ready       BOOLEAN NOT NULL DEFAULT FALSE,
		joined_at   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (room_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS guild_settings (
		guild_id           TEXT PRIMARY KEY,
		moderator_role_id  TEXT NOT NULL DEFAULT '',
		support_channel_id TEXT NOT NULL DEFAULT '',
		updated_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS scheduled_sessions (
		id           UUID PRIMARY KEY,
		guild_id     TEXT NOT NULL,
		title        TEXT NOT NULL,
		link         TEXT NOT NULL DEFAULT '',
		scheduler_id TEXT NOT NULL,
		starts_at    TIMESTAMPTZ NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_rsvps (
		session_id UUID NOT NULL REFERENCES scheduled_sessions(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (session_id, user_id)
	)`,
}

// EnsureSchema creates missing tables and indexes. Every statement is
// idempotent so it runs on each startup.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
