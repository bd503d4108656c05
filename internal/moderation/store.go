package moderation

import (
	"context"
	"errors"
	"time"
)

var ErrSettingsNotFound = errors.New("guild settings not found")

// Settings are per-guild knobs managed through the admin API
type Settings struct {
	GuildID          string    `json:"guild_id"`
	ModeratorRoleID  string    `json:"moderator_role_id"`
	SupportChannelID string    `json:"support_channel_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Store interface {
	GetSettings(ctx context.Context, guildID string) (*Settings, error)
	SetModeratorRole(ctx context.Context, guildID, roleID string) (*Settings, error)
	SetSupportChannel(ctx context.Context, guildID, channelID string) (*Settings, error)
}
