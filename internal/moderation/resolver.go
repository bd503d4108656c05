package moderation

import (
	"context"
	"errors"
)

// Resolver answers which role counts as moderator in a guild. A guild
// without settings falls back to the configured default role, which may be
// empty.
type Resolver struct {
	store       Store
	defaultRole string
}

func NewResolver(store Store, defaultRole string) *Resolver {
	return &Resolver{store: store, defaultRole: defaultRole}
}

func (r *Resolver) ModeratorRole(ctx context.Context, guildID string) (string, error) {
	settings, err := r.store.GetSettings(ctx, guildID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return r.defaultRole, nil
		}
		return "", err
	}
	if settings.ModeratorRoleID == "" {
		return r.defaultRole, nil
	}
	return settings.ModeratorRoleID, nil
}

// SupportChannel returns the guild's support channel id, empty when unset
func (r *Resolver) SupportChannel(ctx context.Context, guildID string) (string, error) {
	settings, err := r.store.GetSettings(ctx, guildID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return "", nil
		}
		return "", err
	}
	return settings.SupportChannelID, nil
}
