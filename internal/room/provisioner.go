package room

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// OnEnteredTrigger provisions a room when someone joins a configured trigger
// channel. Channels that are not triggers are ignored.
//
// The saga is: create role/channels, persist the Room, move the member in.
// If the move fails the created resources and the record are removed again.
func (m *Manager) OnEnteredTrigger(ctx context.Context, guildID, triggerID, userID string) error {
	system, err := m.store.GetSystemByTrigger(ctx, guildID, triggerID)
	if err != nil {
		if errors.Is(err, ErrSystemNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up room system: %w", err)
	}

	log := m.log.With(
		"guild_id", guildID,
		"system_id", system.ID,
		"user_id", userID)

	modRole, err := m.moderatorRole(ctx, guildID)
	if err != nil || modRole == "" {
		log.Warn("room not provisioned - moderator role unavailable", "error", err)
		m.notifyUser(ctx, guildID, userID, "I couldn't open a room for you because this server has no moderator role set up. "+
			"Please let a server admin know.")
		if err != nil {
			return fmt.Errorf("failed to resolve moderator role: %w", err)
		}
		return ErrNoModeratorRole
	}

	name, err := m.names.Pick(ctx, guildID)
	if err != nil {
		return err
	}

	r := &Room{
		ID:       uuid.New(),
		SystemID: system.ID,
		GuildID:  guildID,
		OwnerID:  userID,
		Name:     name,
	}
	log = log.With("room_id", r.ID, "name", name)
	log.Debug("provisioning room", "state", StateProvisioning)

	if err := m.createResources(ctx, system, r, modRole); err != nil {
		log.Error("failed to create room resources", "error", err)
		m.rollback(ctx, r, false)
		return err
	}

	if err := m.store.CreateRoom(ctx, r); err != nil {
		log.Error("failed to persist room", "error", err)
		m.rollback(ctx, r, false)
		return err
	}

	if err := m.platform.MoveMember(ctx, guildID, userID, r.VoiceChannelID); err != nil {
		m.rollback(ctx, r, true)
		if errors.Is(err, ErrMemberDisconnected) {
			log.Info("owner left before the move, room rolled back")
			return nil
		}
		log.Error("failed to move owner into room, room rolled back", "error", err)
		return fmt.Errorf("failed to move member into room: %w", err)
	}

	log.Info("room provisioned",
		"voice_channel_id", r.VoiceChannelID,
		"text_channel_id", r.TextChannelID,
		"state", StateActive)

	m.publish(EventRoomCreated, r, userID)
	m.postControlMessage(ctx, r)

	return nil
}

func (m *Manager) useAccessRoles() bool {
	return m.opts.TextChannels && m.opts.AccessRoles
}

// createResources fills in the room's platform ids as it goes, so a partial
// failure leaves exactly the ids rollback needs
func (m *Manager) createResources(ctx context.Context, system *RoomSystem, r *Room, modRole string) error {
	bot := m.platform.BotUserID()

	if m.useAccessRoles() {
		roleID, err := m.platform.CreateRole(ctx, r.GuildID, "room-"+strings.ToLower(r.Name))
		if err != nil {
			return fmt.Errorf("failed to create access role: %w", err)
		}
		r.RoleID = roleID
	}

	voiceID, err := m.platform.CreateChannel(ctx, r.GuildID, ChannelSpec{
		Name:     r.Name,
		Kind:     ChannelVoice,
		ParentID: system.ParentID,
		Overwrites: []Overwrite{
			everyoneVoiceOverwrite(r.GuildID, false),
			{TargetID: modRole, Kind: TargetRole, Allow: permVoiceMember},
			{TargetID: bot, Kind: TargetMember, Allow: permBot},
			{TargetID: r.OwnerID, Kind: TargetMember, Allow: permVoiceMember},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create voice channel: %w", err)
	}
	r.VoiceChannelID = voiceID

	if !m.opts.TextChannels {
		return nil
	}

	overwrites := []Overwrite{
		{TargetID: r.GuildID, Kind: TargetRole, Deny: PermView},
		{TargetID: modRole, Kind: TargetRole, Allow: permTextMember},
		{TargetID: bot, Kind: TargetMember, Allow: permBot},
		{TargetID: r.OwnerID, Kind: TargetMember, Allow: permTextMember},
	}
	if r.RoleID != "" {
		overwrites = append(overwrites, Overwrite{TargetID: r.RoleID, Kind: TargetRole, Allow: permTextMember})
	}

	textID, err := m.platform.CreateChannel(ctx, r.GuildID, ChannelSpec{
		Name:       strings.ToLower(r.Name) + "-chat",
		Kind:       ChannelText,
		ParentID:   system.ParentID,
		Overwrites: overwrites,
	})
	if err != nil {
		return fmt.Errorf("failed to create text channel: %w", err)
	}
	r.TextChannelID = textID

	return nil
}

// everyoneVoiceOverwrite is the @everyone overwrite on a room's voice
// channel; the @everyone role id equals the guild id
func everyoneVoiceOverwrite(guildID string, locked bool) Overwrite {
	if locked {
		return Overwrite{TargetID: guildID, Kind: TargetRole, Allow: PermView, Deny: PermConnect}
	}
	return Overwrite{TargetID: guildID, Kind: TargetRole, Allow: PermView | PermConnect}
}

// rollback is the compensating step of provisioning
func (m *Manager) rollback(ctx context.Context, r *Room, persisted bool) {
	if err := m.destroy(ctx, r); err != nil {
		m.log.Error("failed to roll back room resources",
			"room_id", r.ID,
			"error", err)
	}
	if !persisted {
		return
	}
	if _, err := m.store.DeleteRoom(ctx, r.ID); err != nil {
		m.log.Error("failed to roll back room record",
			"room_id", r.ID,
			"error", err)
	}
}

func (m *Manager) moderatorRole(ctx context.Context, guildID string) (string, error) {
	if m.moderators == nil {
		return "", nil
	}
	return m.moderators.ModeratorRole(ctx, guildID)
}

func (m *Manager) notifyUser(ctx context.Context, guildID, userID, content string) {
	if hint := m.SupportHint(ctx, guildID); hint != "" {
		content += " " + hint
	}
	if err := m.platform.NotifyUser(ctx, userID, content); err != nil {
		m.log.Warn("failed to notify user",
			"user_id", userID,
			"error", err)
	}
}

func (m *Manager) postControlMessage(ctx context.Context, r *Room) {
	msgID, err := m.platform.SendMessage(ctx, r.ChatChannelID(), controlMessage(r))
	if err != nil {
		m.log.Warn("failed to post control message",
			"room_id", r.ID,
			"error", err)
		return
	}

	r.ControlMessageID = msgID
	if err := m.store.SetControlMessage(ctx, r.ID, msgID); err != nil && !errors.Is(err, ErrRoomNotFound) {
		m.log.Warn("failed to store control message id",
			"room_id", r.ID,
			"error", err)
	}
}
