package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	placeholderNobodyReady  = "_Nobody is ready yet._"
	placeholderAllReady     = "_Everyone is ready!_"
	placeholderEmptyReadies = "_Nobody is in this room._"
)

// ReadyReport partitions a room's residents by ready state, in join order
type ReadyReport struct {
	RoomName string
	Ready    []*ReadyCheckEntry
	NotReady []*ReadyCheckEntry
}

// Render formats the report as a chat message
func (r *ReadyReport) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Ready check for %s**\n", r.RoomName)
	if len(r.Ready) == 0 && len(r.NotReady) == 0 {
		b.WriteString(placeholderEmptyReadies)
		return b.String()
	}

	b.WriteString("**Ready**\n")
	writeEntries(&b, r.Ready, placeholderNobodyReady)
	b.WriteString("\n**Not ready**\n")
	writeEntries(&b, r.NotReady, placeholderAllReady)

	return b.String()
}

func writeEntries(b *strings.Builder, entries []*ReadyCheckEntry, placeholder string) {
	if len(entries) == 0 {
		b.WriteString(placeholder)
		return
	}
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(e.DisplayTag)
	}
}

// currentRoom resolves the room the caller is sitting in right now
func (m *Manager) currentRoom(ctx context.Context, guildID, userID string) (*Room, error) {
	voiceID, err := m.platform.MemberVoiceChannel(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMemberDisconnected) {
			return nil, userError("You need to be in a room to do that.", ErrNotInRoom)
		}
		return nil, fmt.Errorf("failed to resolve voice channel: %w", err)
	}
	if voiceID == "" {
		return nil, userError("You need to be in a room to do that.", ErrNotInRoom)
	}

	r, err := m.store.GetRoomByVoice(ctx, voiceID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, userError("You need to be in a room to do that.", ErrNotInRoom)
		}
		return nil, err
	}

	return r, nil
}

// SetReady marks the caller ready or not ready in their current room
func (m *Manager) SetReady(ctx context.Context, guildID, userID, displayTag string, ready bool) (*Room, error) {
	r, err := m.currentRoom(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	updated, err := m.store.SetReady(ctx, r.ID, userID, ready)
	if err != nil {
		return nil, err
	}

	// Residents that joined while the bot was offline have no entry yet
	if !updated {
		if displayTag == "" {
			displayTag = "<@" + userID + ">"
		}
		entry := &ReadyCheckEntry{RoomID: r.ID, UserID: userID, DisplayTag: displayTag, Ready: ready}
		if err := m.store.UpsertReadyEntry(ctx, entry); err != nil {
			return nil, err
		}
	}

	m.log.Debug("ready state changed",
		"room_id", r.ID,
		"user_id", userID,
		"ready", ready)

	return r, nil
}

// ReadyCheck reports who in the caller's room is ready
func (m *Manager) ReadyCheck(ctx context.Context, guildID, userID string) (*ReadyReport, error) {
	r, err := m.currentRoom(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	entries, err := m.store.ListReadyEntries(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	report := &ReadyReport{RoomName: r.Name}
	for _, e := range entries {
		if e.Ready {
			report.Ready = append(report.Ready, e)
		} else {
			report.NotReady = append(report.NotReady, e)
		}
	}

	return report, nil
}
