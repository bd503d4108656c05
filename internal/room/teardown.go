package room

import (
	"context"
	"errors"
	"fmt"
)

// teardown deletes the room behind voiceID once nobody is left in it.
//
// Any number of concurrent calls for the same room are safe: the record is
// re-read first (gone means someone else finished), residency is read live
// from the platform right before acting, not-found from a delete counts as
// success, and the record is deleted last.
func (m *Manager) teardown(ctx context.Context, voiceID string) error {
	r, err := m.store.GetRoomByVoice(ctx, voiceID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up room: %w", err)
	}

	residents, err := m.residents(ctx, r)
	if err != nil {
		return err
	}
	if residents > 0 {
		return nil
	}

	log := m.log.With("room_id", r.ID, "guild_id", r.GuildID)
	log.Debug("tearing down room", "state", StateTearingDown)

	if err := m.destroy(ctx, r); err != nil {
		// Record stays so a later leave event or the sweep can retry
		log.Error("failed to delete room resources", "error", err)
		return err
	}

	deleted, err := m.store.DeleteRoom(ctx, r.ID)
	if err != nil {
		return err
	}
	if !deleted {
		log.Debug("room record already removed")
		return nil
	}

	log.Info("room deleted", "name", r.Name, "state", StateDeleted)
	m.finish(ctx, r)

	return nil
}

// residents counts members in the room's voice channel; a vanished channel
// counts as empty
func (m *Manager) residents(ctx context.Context, r *Room) (int, error) {
	n, err := m.platform.VoiceMemberCount(ctx, r.GuildID, r.VoiceChannelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count residents: %w", err)
	}
	return n, nil
}

// destroy deletes whatever platform resources the room has. Not-found is
// success. It does not touch the Store.
func (m *Manager) destroy(ctx context.Context, r *Room) error {
	var errs []error

	for _, channelID := range []string{r.VoiceChannelID, r.TextChannelID} {
		if channelID == "" {
			continue
		}
		if err := m.platform.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("failed to delete channel %s: %w", channelID, err))
		}
	}

	if r.RoleID != "" {
		if err := m.platform.DeleteRole(ctx, r.GuildID, r.RoleID); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("failed to delete role %s: %w", r.RoleID, err))
		}
	}

	return errors.Join(errs...)
}

// finish runs once per room, after the call that actually removed the record
func (m *Manager) finish(ctx context.Context, r *Room) {
	rec := SessionRecord{
		RoomID:    r.ID,
		SystemID:  r.SystemID,
		GuildID:   r.GuildID,
		Name:      r.Name,
		OwnerID:   r.OwnerID,
		Closed:    r.Closed,
		State:     StateDeleted,
		CreatedAt: r.CreatedAt,
		DeletedAt: m.now(),
	}

	if err := m.archive.ArchiveSession(ctx, rec); err != nil {
		m.log.Warn("failed to archive room session",
			"room_id", r.ID,
			"error", err)
	}

	m.publish(EventRoomDeleted, r, "")
}
