package room

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PermissionSet is a bitset of the channel permissions rooms care about
type PermissionSet uint32

const (
	PermView PermissionSet = 1 << iota
	PermConnect
	PermSendMessages
	PermReadHistory
	PermManageChannel
	PermMoveMembers
)

const (
	permVoiceMember = PermView | PermConnect
	permTextMember  = PermView | PermSendMessages | PermReadHistory
	permBot         = PermView | PermConnect | PermSendMessages | PermReadHistory | PermManageChannel | PermMoveMembers
)

func (p PermissionSet) Has(perm PermissionSet) bool {
	return p&perm == perm
}

type TargetKind int

const (
	TargetRole TargetKind = iota
	TargetMember
)

// Overwrite is a per-channel permission override for a role or a member
type Overwrite struct {
	TargetID string
	Kind     TargetKind
	Allow    PermissionSet
	Deny     PermissionSet
}

type ChannelKind int

const (
	ChannelVoice ChannelKind = iota
	ChannelText
)

type ChannelSpec struct {
	Name       string
	Kind       ChannelKind
	ParentID   string
	Overwrites []Overwrite
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonDanger
)

type Button struct {
	ID    string
	Label string
	Style ButtonStyle
}

// Message is a chat message with optional action buttons
type Message struct {
	Content string
	Buttons []Button
}

// Platform is the chat platform's channel, role and presence API.
// Deletes and revokes return ErrNotFound when the target is already gone;
// MoveMember returns ErrMemberDisconnected when the member left voice.
type Platform interface {
	BotUserID() string

	CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetOverwrite(ctx context.Context, channelID string, ow Overwrite) error
	RemoveOverwrite(ctx context.Context, channelID, targetID string) error

	CreateRole(ctx context.Context, guildID, name string) (string, error)
	DeleteRole(ctx context.Context, guildID, roleID string) error
	AddMemberRole(ctx context.Context, guildID, userID, roleID string) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error

	MoveMember(ctx context.Context, guildID, userID, channelID string) error
	VoiceMemberCount(ctx context.Context, guildID, channelID string) (int, error)
	MemberVoiceChannel(ctx context.Context, guildID, userID string) (string, error)
	MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	IsGuildMember(ctx context.Context, guildID, userID string) (bool, error)

	SendMessage(ctx context.Context, channelID string, msg Message) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, msg Message) error
	NotifyUser(ctx context.Context, userID, content string) error
}

// ModeratorResolver reads per-guild moderation settings. Both methods
// return "" when nothing is configured.
type ModeratorResolver interface {
	ModeratorRole(ctx context.Context, guildID string) (string, error)
	SupportChannel(ctx context.Context, guildID string) (string, error)
}

// AttendeeSource supplies scheduled sessions and who RSVPed to them
type AttendeeSource interface {
	Session(ctx context.Context, id uuid.UUID) (*ScheduledSession, error)
	Attendees(ctx context.Context, id uuid.UUID) ([]string, error)
}

// Archiver stores a summary of a finished room
type Archiver interface {
	ArchiveSession(ctx context.Context, rec SessionRecord) error
}

type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventRoomDeleted  EventType = "room_deleted"
	EventMemberJoined EventType = "member_joined"
	EventMemberLeft   EventType = "member_left"
	EventOwnerChanged EventType = "owner_changed"
	EventRoomUpdated  EventType = "room_updated"
)

// Event is a room lifecycle notification for dashboards
type Event struct {
	Type    EventType `json:"type"`
	GuildID string    `json:"guild_id"`
	RoomID  uuid.UUID `json:"room_id"`
	UserID  string    `json:"user_id,omitempty"`
	Name    string    `json:"name,omitempty"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Publish(ev Event)
}

type nopArchiver struct{}

func (nopArchiver) ArchiveSession(context.Context, SessionRecord) error { return nil }

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}
