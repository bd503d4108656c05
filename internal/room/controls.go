package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MinNameLength = 4
	MaxNameLength = 50

	closedMarker = " [closed]"
)

// Button ids on the control message
const (
	ActionClose  = "room:close"
	ActionLock   = "room:lock"
	ActionUnlock = "room:unlock"
)

func controlMessage(r *Room) Message {
	return Message{
		Content: fmt.Sprintf(
			"**%s** belongs to <@%s>.\n"+
				"Owner and moderators can rename (`.rename <name>`), hand over (`.transfer @user`), "+
				"lock or close the room. Everyone can use `.ready`, `.unready` and `.readycheck`.",
			r.Name, r.OwnerID),
		Buttons: []Button{
			{ID: ActionLock, Label: "Lock", Style: ButtonSecondary},
			{ID: ActionUnlock, Label: "Unlock", Style: ButtonSecondary},
			{ID: ActionClose, Label: "Close", Style: ButtonDanger},
		},
	}
}

var errForbidden = userError("Only the room owner or a moderator can do that.", ErrForbidden)

func (m *Manager) roomForChannel(ctx context.Context, channelID string) (*Room, error) {
	r, err := m.store.GetRoomByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, userError("This only works inside a room.", ErrRoomNotFound)
		}
		return nil, err
	}
	return r, nil
}

func (m *Manager) isModerator(ctx context.Context, guildID, userID string) (bool, error) {
	modRole, err := m.moderatorRole(ctx, guildID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve moderator role: %w", err)
	}
	if modRole == "" {
		return false, nil
	}
	return m.platform.MemberHasRole(ctx, guildID, userID, modRole)
}

// authorize checks the persisted owner first, then the live moderator role
func (m *Manager) authorize(ctx context.Context, r *Room, callerID string) error {
	if r.OwnerID == callerID {
		return nil
	}
	ok, err := m.isModerator(ctx, r.GuildID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return errForbidden
	}
	return nil
}

func (m *Manager) authorizedRoom(ctx context.Context, channelID, callerID string) (*Room, error) {
	r, err := m.roomForChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, r, callerID); err != nil {
		m.log.Warn("room action denied",
			"room_id", r.ID,
			"caller_id", callerID)
		return nil, err
	}
	return r, nil
}

// Rename changes the room's display name
func (m *Manager) Rename(ctx context.Context, channelID, callerID, name string) (*Room, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return nil, userError(
			fmt.Sprintf("Room names must be between %d and %d characters.", MinNameLength, MaxNameLength),
			ErrInvalidName)
	}

	r, err := m.authorizedRoom(ctx, channelID, callerID)
	if err != nil {
		return nil, err
	}

	r.Name = name
	if err := m.platform.RenameChannel(ctx, r.VoiceChannelID, r.DisplayName()); err != nil {
		return nil, fmt.Errorf("failed to rename voice channel: %w", err)
	}
	if err := m.store.UpdateRoomName(ctx, r.ID, name); err != nil {
		return nil, err
	}

	m.log.Info("room renamed",
		"room_id", r.ID,
		"name", name,
		"by", callerID)
	m.publish(EventRoomUpdated, r, callerID)

	return r, nil
}

// Close marks the room closed. Closing twice is a no-op.
func (m *Manager) Close(ctx context.Context, channelID, callerID string) (*Room, error) {
	r, err := m.authorizedRoom(ctx, channelID, callerID)
	if err != nil {
		return nil, err
	}
	if r.Closed {
		return r, nil
	}

	// Marker goes on before the flag is stored, so a failed rename stays
	// retryable
	r.Closed = true
	if err := m.platform.RenameChannel(ctx, r.VoiceChannelID, r.DisplayName()); err != nil {
		return nil, fmt.Errorf("failed to mark voice channel closed: %w", err)
	}

	changed, err := m.store.SetRoomClosed(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return r, nil
	}

	m.log.Info("room closed",
		"room_id", r.ID,
		"by", callerID,
		"state", StateClosed)
	m.publish(EventRoomUpdated, r, callerID)

	return r, nil
}

// Lock stops non-moderators from joining; residents stay
func (m *Manager) Lock(ctx context.Context, channelID, callerID string) (*Room, error) {
	return m.setLocked(ctx, channelID, callerID, true)
}

func (m *Manager) Unlock(ctx context.Context, channelID, callerID string) (*Room, error) {
	return m.setLocked(ctx, channelID, callerID, false)
}

func (m *Manager) setLocked(ctx context.Context, channelID, callerID string, locked bool) (*Room, error) {
	r, err := m.authorizedRoom(ctx, channelID, callerID)
	if err != nil {
		return nil, err
	}

	if err := m.platform.SetOverwrite(ctx, r.VoiceChannelID, everyoneVoiceOverwrite(r.GuildID, locked)); err != nil {
		return nil, fmt.Errorf("failed to update voice channel permissions: %w", err)
	}
	if err := m.store.SetRoomLocked(ctx, r.ID, locked); err != nil {
		return nil, err
	}
	r.Locked = locked

	m.log.Info("room lock changed",
		"room_id", r.ID,
		"locked", locked,
		"by", callerID)
	m.publish(EventRoomUpdated, r, callerID)

	return r, nil
}

// TransferOwnership hands the room to another guild member and re-renders
// the control message
func (m *Manager) TransferOwnership(ctx context.Context, channelID, callerID, newOwnerID string) (*Room, error) {
	r, err := m.authorizedRoom(ctx, channelID, callerID)
	if err != nil {
		return nil, err
	}
	if newOwnerID == r.OwnerID {
		return nil, userError(fmt.Sprintf("<@%s> already owns this room.", newOwnerID), nil)
	}

	member, err := m.platform.IsGuildMember(ctx, r.GuildID, newOwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member: %w", err)
	}
	if !member {
		return nil, userError("I can't find that member on this server.", ErrNotGuildMember)
	}

	if err := m.store.UpdateRoomOwner(ctx, r.ID, newOwnerID); err != nil {
		return nil, err
	}
	previous := r.OwnerID
	r.OwnerID = newOwnerID

	// New owner must be able to rejoin a locked room
	err = m.platform.SetOverwrite(ctx, r.VoiceChannelID, Overwrite{
		TargetID: newOwnerID,
		Kind:     TargetMember,
		Allow:    permVoiceMember,
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Warn("failed to grant voice access to new owner",
			"room_id", r.ID,
			"error", err)
	}

	m.revokeFormerOwner(ctx, r, previous)
	m.rerenderControlMessage(ctx, r)

	m.log.Info("room ownership transferred",
		"room_id", r.ID,
		"from", previous,
		"to", newOwnerID,
		"by", callerID)
	m.publish(EventOwnerChanged, r, newOwnerID)

	return r, nil
}

// revokeFormerOwner drops the member overwrites provisioning gave the old
// owner. A resident keeps text access until they leave.
func (m *Manager) revokeFormerOwner(ctx context.Context, r *Room, previous string) {
	if err := m.platform.RemoveOverwrite(ctx, r.VoiceChannelID, previous); err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Warn("failed to revoke voice access from former owner",
			"room_id", r.ID,
			"user_id", previous,
			"error", err)
	}

	if r.TextChannelID == "" {
		return
	}
	current, err := m.platform.MemberVoiceChannel(ctx, r.GuildID, previous)
	if err == nil && current == r.VoiceChannelID {
		return
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Warn("failed to resolve former owner's voice channel",
			"room_id", r.ID,
			"user_id", previous,
			"error", err)
		return
	}
	if err := m.platform.RemoveOverwrite(ctx, r.TextChannelID, previous); err != nil && !errors.Is(err, ErrNotFound) {
		m.log.Warn("failed to revoke text access from former owner",
			"room_id", r.ID,
			"user_id", previous,
			"error", err)
	}
}

func (m *Manager) rerenderControlMessage(ctx context.Context, r *Room) {
	if r.ControlMessageID == "" {
		m.postControlMessage(ctx, r)
		return
	}

	err := m.platform.EditMessage(ctx, r.ChatChannelID(), r.ControlMessageID, controlMessage(r))
	if err == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		// Someone deleted the old one
		m.postControlMessage(ctx, r)
		return
	}
	m.log.Warn("failed to update control message",
		"room_id", r.ID,
		"error", err)
}

// SendReminder pings everyone who RSVPed to a scheduled session inside the
// room's chat. Only moderators and the person who scheduled it may send it.
func (m *Manager) SendReminder(ctx context.Context, channelID, callerID string, sessionID uuid.UUID) (int, error) {
	if m.attendees == nil {
		return 0, userError("Reminders are not available on this server.", ErrSessionNotFound)
	}

	r, err := m.roomForChannel(ctx, channelID)
	if err != nil {
		return 0, err
	}

	session, err := m.attendees.Session(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return 0, userError("I can't find that scheduled session.", err)
		}
		return 0, err
	}
	if session.GuildID != r.GuildID {
		return 0, userError("I can't find that scheduled session.", ErrSessionNotFound)
	}

	if session.SchedulerID != callerID {
		ok, err := m.isModerator(ctx, r.GuildID, callerID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, userError("Only moderators or whoever scheduled the session can send reminders.", ErrForbidden)
		}
	}

	attendees, err := m.attendees.Attendees(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	if len(attendees) == 0 {
		return 0, userError("Nobody has RSVPed to that session yet.", ErrNoAttendees)
	}

	if _, err := m.platform.SendMessage(ctx, r.ChatChannelID(), reminderMessage(session, r, attendees)); err != nil {
		return 0, fmt.Errorf("failed to send reminder: %w", err)
	}

	m.log.Info("reminder sent",
		"room_id", r.ID,
		"session_id", sessionID,
		"attendees", len(attendees),
		"by", callerID)

	return len(attendees), nil
}

func reminderMessage(s *ScheduledSession, r *Room, attendees []string) Message {
	mentions := make([]string, len(attendees))
	for i, id := range attendees {
		mentions[i] = "<@" + id + ">"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reminder: **%s** is happening in <#%s>.\n", s.Title, r.VoiceChannelID)
	b.WriteString(strings.Join(mentions, " "))
	if s.Link != "" {
		b.WriteString("\n")
		b.WriteString(s.Link)
	}

	return Message{Content: b.String()}
}
