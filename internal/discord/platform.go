package discord

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/bwmarrin/discordgo"
	"github.com/rx3lixir/tempvoice/internal/room"
)

// Platform implements room.Platform on a discordgo session. Presence and
// membership are read from the gateway state cache first and fall back to
// REST when the cache has nothing.
type Platform struct {
	s *discordgo.Session
}

func NewPlatform(s *discordgo.Session) *Platform {
	return &Platform{s: s}
}

var permissionBits = []struct {
	perm room.PermissionSet
	bit  int64
}{
	{room.PermView, discordgo.PermissionViewChannel},
	{room.PermConnect, discordgo.PermissionVoiceConnect},
	{room.PermSendMessages, discordgo.PermissionSendMessages},
	{room.PermReadHistory, discordgo.PermissionReadMessageHistory},
	{room.PermManageChannel, discordgo.PermissionManageChannels},
	{room.PermMoveMembers, discordgo.PermissionVoiceMoveMembers},
}

func permissionBitsFor(set room.PermissionSet) int64 {
	var bits int64
	for _, p := range permissionBits {
		if set.Has(p.perm) {
			bits |= p.bit
		}
	}
	return bits
}

func overwriteType(kind room.TargetKind) discordgo.PermissionOverwriteType {
	if kind == room.TargetMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

func toOverwrites(ows []room.Overwrite) []*discordgo.PermissionOverwrite {
	out := make([]*discordgo.PermissionOverwrite, 0, len(ows))
	for _, ow := range ows {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    ow.TargetID,
			Type:  overwriteType(ow.Kind),
			Allow: permissionBitsFor(ow.Allow),
			Deny:  permissionBitsFor(ow.Deny),
		})
	}
	return out
}

func toComponents(buttons []room.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}

	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		style := discordgo.SecondaryButton
		switch b.Style {
		case room.ButtonPrimary:
			style = discordgo.PrimaryButton
		case room.ButtonDanger:
			style = discordgo.DangerButton
		}
		row.Components = append(row.Components, discordgo.Button{
			Label:    b.Label,
			Style:    style,
			CustomID: b.ID,
		})
	}

	return []discordgo.MessageComponent{row}
}

func (p *Platform) BotUserID() string {
	if p.s.State == nil || p.s.State.User == nil {
		return ""
	}
	return p.s.State.User.ID
}

func (p *Platform) CreateChannel(ctx context.Context, guildID string, spec room.ChannelSpec) (string, error) {
	kind := discordgo.ChannelTypeGuildVoice
	if spec.Kind == room.ChannelText {
		kind = discordgo.ChannelTypeGuildText
	}

	ch, err := p.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 kind,
		ParentID:             spec.ParentID,
		PermissionOverwrites: toOverwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", translate("create channel", err)
	}
	return ch.ID, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := p.s.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return translate("delete channel", err)
}

func (p *Platform) RenameChannel(ctx context.Context, channelID, name string) error {
	_, err := p.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return translate("rename channel", err)
}

func (p *Platform) SetOverwrite(ctx context.Context, channelID string, ow room.Overwrite) error {
	err := p.s.ChannelPermissionSet(channelID, ow.TargetID, overwriteType(ow.Kind),
		permissionBitsFor(ow.Allow), permissionBitsFor(ow.Deny), discordgo.WithContext(ctx))
	return translate("set overwrite", err)
}

func (p *Platform) RemoveOverwrite(ctx context.Context, channelID, targetID string) error {
	err := p.s.ChannelPermissionDelete(channelID, targetID, discordgo.WithContext(ctx))
	return translate("remove overwrite", err)
}

func (p *Platform) CreateRole(ctx context.Context, guildID, name string) (string, error) {
	mentionable := false
	role, err := p.s.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        name,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", translate("create role", err)
	}
	return role.ID, nil
}

func (p *Platform) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return translate("delete role", p.s.GuildRoleDelete(guildID, roleID, discordgo.WithContext(ctx)))
}

func (p *Platform) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return translate("add member role", p.s.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (p *Platform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	return translate("remove member role", p.s.GuildMemberRoleRemove(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (p *Platform) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	return translate("move member", p.s.GuildMemberMove(guildID, userID, &channelID, discordgo.WithContext(ctx)))
}

// errGuildNotSynced means the gateway has not delivered the guild's voice
// states yet. It never wraps room.ErrNotFound: only a missing channel reads
// as a deleted room.
var errGuildNotSynced = errors.New("guild voice states not synced")

// VoiceMemberCount counts voice states in the channel. The channel itself is
// checked over REST when the cache does not know it, so a deleted channel
// reports ErrNotFound instead of zero.
func (p *Platform) VoiceMemberCount(ctx context.Context, guildID, channelID string) (int, error) {
	if _, err := p.s.State.Channel(channelID); err != nil {
		if _, err := p.s.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
			return 0, translate("get channel", err)
		}
	}

	guild, err := p.s.State.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("count voice members in %s: %w", guildID, errGuildNotSynced)
	}

	p.s.State.RLock()
	defer p.s.State.RUnlock()

	if guild.Unavailable {
		return 0, fmt.Errorf("count voice members in %s: guild unavailable: %w", guildID, errGuildNotSynced)
	}

	n := 0
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID {
			n++
		}
	}
	return n, nil
}

func (p *Platform) MemberVoiceChannel(ctx context.Context, guildID, userID string) (string, error) {
	vs, err := p.s.State.VoiceState(guildID, userID)
	if err != nil {
		return "", translate("get voice state", err)
	}
	if vs.ChannelID == "" {
		return "", room.ErrNotFound
	}
	return vs.ChannelID, nil
}

func (p *Platform) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if m, err := p.s.State.Member(guildID, userID); err == nil {
		return m, nil
	}
	m, err := p.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate("get member", err)
	}
	return m, nil
}

func (p *Platform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	m, err := p.member(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(m.Roles, roleID), nil
}

func (p *Platform) IsGuildMember(ctx context.Context, guildID, userID string) (bool, error) {
	_, err := p.member(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, msg room.Message) (string, error) {
	sent, err := p.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:    msg.Content,
		Components: toComponents(msg.Buttons),
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", translate("send message", err)
	}
	return sent.ID, nil
}

func (p *Platform) EditMessage(ctx context.Context, channelID, messageID string, msg room.Message) error {
	components := toComponents(msg.Buttons)
	edit := discordgo.NewMessageEdit(channelID, messageID).SetContent(msg.Content)
	edit.Components = &components

	_, err := p.s.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return translate("edit message", err)
}

func (p *Platform) NotifyUser(ctx context.Context, userID, content string) error {
	dm, err := p.s.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return translate("open dm", err)
	}
	_, err = p.s.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx))
	return translate("send dm", err)
}
