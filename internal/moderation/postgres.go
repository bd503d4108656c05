package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// GetSettings retrieves the settings row of a guild
func (s *PostgresStore) GetSettings(ctx context.Context, guildID string) (*Settings, error) {
	query := `
		SELECT guild_id, moderator_role_id, support_channel_id, updated_at
		FROM guild_settings
		WHERE guild_id = $1
	`
	settings := &Settings{}
	err := s.pool.QueryRow(ctx, query, guildID).Scan(
		&settings.GuildID,
		&settings.ModeratorRoleID,
		&settings.SupportChannelID,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}

	return settings, nil
}

func (s *PostgresStore) SetModeratorRole(ctx context.Context, guildID, roleID string) (*Settings, error) {
	return s.upsert(ctx, guildID, "moderator_role_id", roleID)
}

func (s *PostgresStore) SetSupportChannel(ctx context.Context, guildID, channelID string) (*Settings, error) {
	return s.upsert(ctx, guildID, "support_channel_id", channelID)
}

// upsert writes a single column; column is always one of the constants above
func (s *PostgresStore) upsert(ctx context.Context, guildID, column, value string) (*Settings, error) {
	query := `
		INSERT INTO guild_settings (guild_id, ` + column + `, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id) DO UPDATE
		SET ` + column + ` = EXCLUDED.` + column + `,
		    updated_at = EXCLUDED.updated_at
		RETURNING guild_id, moderator_role_id, support_channel_id, updated_at
	`
	settings := &Settings{}
	err := s.pool.QueryRow(ctx, query, guildID, value, time.Now()).Scan(
		&settings.GuildID,
		&settings.ModeratorRoleID,
		&settings.SupportChannelID,
		&settings.UpdatedAt,
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to update guild settings: %w", err)
	}

	return settings, nil
}
