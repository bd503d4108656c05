package discord

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rx3lixir/tempvoice/internal/room"
)

const (
	cmdReady      = "ready"
	cmdUnready    = "unready"
	cmdReadyCheck = "readycheck"
	cmdRename     = "rename"
	cmdClose      = "close"
	cmdLock       = "lock"
	cmdUnlock     = "unlock"
	cmdTransfer   = "transfer"
	cmdRemind     = "remind"
)

var knownCommands = map[string]bool{
	cmdReady: true, cmdUnready: true, cmdReadyCheck: true,
	cmdRename: true, cmdClose: true, cmdLock: true, cmdUnlock: true,
	cmdTransfer: true, cmdRemind: true,
}

// Command is a parsed text command
type Command struct {
	Name string
	Args string
}

// ParseCommand extracts a known command from a chat message. Command names
// are case-insensitive; arguments are kept verbatim.
func ParseCommand(prefix, content string) (Command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Command{}, false
	}

	rest := strings.TrimPrefix(content, prefix)
	name, args, _ := strings.Cut(rest, " ")
	name = strings.ToLower(name)
	if !knownCommands[name] {
		return Command{}, false
	}

	return Command{Name: name, Args: strings.TrimSpace(args)}, true
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$|^(\d{15,25})$`)

// parseUserID accepts a user mention or a bare snowflake
func parseUserID(arg string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(arg))
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return m[1], true
	}
	return m[2], true
}

// Rooms is what the command surface needs from room.Manager
type Rooms interface {
	OnVoiceStateUpdate(ctx context.Context, t room.VoiceTransition) error
	SetReady(ctx context.Context, guildID, userID, displayTag string, ready bool) (*room.Room, error)
	ReadyCheck(ctx context.Context, guildID, userID string) (*room.ReadyReport, error)
	Rename(ctx context.Context, channelID, callerID, name string) (*room.Room, error)
	Close(ctx context.Context, channelID, callerID string) (*room.Room, error)
	Lock(ctx context.Context, channelID, callerID string) (*room.Room, error)
	Unlock(ctx context.Context, channelID, callerID string) (*room.Room, error)
	TransferOwnership(ctx context.Context, channelID, callerID, newOwnerID string) (*room.Room, error)
	SendReminder(ctx context.Context, channelID, callerID string, sessionID uuid.UUID) (int, error)
	SupportHint(ctx context.Context, guildID string) string
}

// Invocation is who ran a command and where
type Invocation struct {
	GuildID    string
	ChannelID  string
	UserID     string
	DisplayTag string
}

func userInputError(msg string) error {
	return &room.UserError{Message: msg}
}

// execute runs cmd and returns the reply text
func execute(ctx context.Context, rooms Rooms, cmd Command, inv Invocation) (string, error) {
	switch cmd.Name {
	case cmdReady, cmdUnready:
		ready := cmd.Name == cmdReady
		r, err := rooms.SetReady(ctx, inv.GuildID, inv.UserID, inv.DisplayTag, ready)
		if err != nil {
			return "", err
		}
		if ready {
			return fmt.Sprintf("You're marked ready in **%s**.", r.Name), nil
		}
		return fmt.Sprintf("You're marked not ready in **%s**.", r.Name), nil

	case cmdReadyCheck:
		report, err := rooms.ReadyCheck(ctx, inv.GuildID, inv.UserID)
		if err != nil {
			return "", err
		}
		return report.Render(), nil

	case cmdRename:
		if cmd.Args == "" {
			return "", userInputError("Usage: `rename <new name>`")
		}
		r, err := rooms.Rename(ctx, inv.ChannelID, inv.UserID, cmd.Args)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Room renamed to **%s**.", r.Name), nil

	case cmdClose:
		if _, err := rooms.Close(ctx, inv.ChannelID, inv.UserID); err != nil {
			return "", err
		}
		return "Room closed. It goes away once everyone leaves.", nil

	case cmdLock:
		if _, err := rooms.Lock(ctx, inv.ChannelID, inv.UserID); err != nil {
			return "", err
		}
		return "Room locked. Nobody new can join.", nil

	case cmdUnlock:
		if _, err := rooms.Unlock(ctx, inv.ChannelID, inv.UserID); err != nil {
			return "", err
		}
		return "Room unlocked.", nil

	case cmdTransfer:
		newOwner, ok := parseUserID(cmd.Args)
		if !ok {
			return "", userInputError("Usage: `transfer @user`")
		}
		if _, err := rooms.TransferOwnership(ctx, inv.ChannelID, inv.UserID, newOwner); err != nil {
			return "", err
		}
		return fmt.Sprintf("<@%s> now owns this room.", newOwner), nil

	case cmdRemind:
		sessionID, err := uuid.Parse(cmd.Args)
		if err != nil {
			return "", userInputError("Usage: `remind <session id>`")
		}
		n, err := rooms.SendReminder(ctx, inv.ChannelID, inv.UserID, sessionID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Reminded %d attendee(s).", n), nil
	}

	return "", fmt.Errorf("unhandled command %q", cmd.Name)
}

// executeAction handles control message buttons
func executeAction(ctx context.Context, rooms Rooms, action string, inv Invocation) (string, error) {
	switch action {
	case room.ActionClose:
		return execute(ctx, rooms, Command{Name: cmdClose}, inv)
	case room.ActionLock:
		return execute(ctx, rooms, Command{Name: cmdLock}, inv)
	case room.ActionUnlock:
		return execute(ctx, rooms, Command{Name: cmdUnlock}, inv)
	}
	return "", userInputError("That button doesn't do anything anymore.")
}
