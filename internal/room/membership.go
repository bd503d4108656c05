package room

import (
	"context"
	"errors"
	"fmt"
)

// OnEnteredRoom grants room access and records a not-ready entry. Channels
// that are not rooms are ignored.
func (m *Manager) OnEnteredRoom(ctx context.Context, guildID, voiceID, userID, displayTag string) error {
	r, err := m.store.GetRoomByVoice(ctx, voiceID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up room: %w", err)
	}

	if err := m.grantAccess(ctx, r, userID); err != nil {
		// The room may have been torn down between the lookup and the grant
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to grant room access: %w", err)
		}
	}

	if displayTag == "" {
		displayTag = "<@" + userID + ">"
	}

	err = m.store.UpsertReadyEntry(ctx, &ReadyCheckEntry{
		RoomID:     r.ID,
		UserID:     userID,
		DisplayTag: displayTag,
	})
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return err
	}

	m.log.Debug("member entered room",
		"room_id", r.ID,
		"user_id", userID)
	m.publish(EventMemberJoined, r, userID)

	return nil
}

// OnLeftRoom revokes access and drops the ready entry, then hands over to
// teardown for the same channel
func (m *Manager) OnLeftRoom(ctx context.Context, guildID, voiceID, userID string) error {
	r, err := m.store.GetRoomByVoice(ctx, voiceID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up room: %w", err)
	}

	var errs []error

	if err := m.revokeAccess(ctx, r, userID); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("failed to revoke room access: %w", err))
	}

	if err := m.store.DeleteReadyEntry(ctx, r.ID, userID); err != nil {
		errs = append(errs, err)
	}

	m.log.Debug("member left room",
		"room_id", r.ID,
		"user_id", userID)
	m.publish(EventMemberLeft, r, userID)

	if err := m.teardown(ctx, voiceID); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (m *Manager) grantAccess(ctx context.Context, r *Room, userID string) error {
	switch {
	case r.RoleID != "":
		return m.platform.AddMemberRole(ctx, r.GuildID, userID, r.RoleID)
	case r.TextChannelID != "":
		return m.platform.SetOverwrite(ctx, r.TextChannelID, Overwrite{
			TargetID: userID,
			Kind:     TargetMember,
			Allow:    permTextMember,
		})
	}
	return nil
}

// revokeAccess never strips the owner's overwrite; owners keep their text
// channel access until ownership moves
func (m *Manager) revokeAccess(ctx context.Context, r *Room, userID string) error {
	switch {
	case r.RoleID != "":
		return m.platform.RemoveMemberRole(ctx, r.GuildID, userID, r.RoleID)
	case r.TextChannelID != "" && userID != r.OwnerID:
		return m.platform.RemoveOverwrite(ctx, r.TextChannelID, userID)
	}
	return nil
}
