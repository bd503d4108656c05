package room

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnEnteredTrigger_ProvisionsAndMovesOwner(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	env.platform.connect("alice", testTrigger)
	err := env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: "alice", After: testTrigger,
	})
	require.NoError(t, err)

	rooms, err := env.store.ListAllRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	r := rooms[0]
	assert.Equal(t, "Mango", r.Name)
	assert.Equal(t, "alice", r.OwnerID)
	assert.Equal(t, env.system.ID, r.SystemID)
	assert.NotEmpty(t, r.TextChannelID)
	assert.Empty(t, r.RoleID)
	assert.NotEmpty(t, r.ControlMessageID)

	voiceID, err := env.platform.MemberVoiceChannel(ctx, testGuild, "alice")
	require.NoError(t, err)
	assert.Equal(t, r.VoiceChannelID, voiceID)

	voice, ok := env.platform.channel(r.VoiceChannelID)
	require.True(t, ok)
	assert.Equal(t, ChannelVoice, voice.kind)
	assert.Equal(t, testParent, voice.parentID)
	assert.True(t, voice.overwrites[testModRole].Allow.Has(PermConnect))
	assert.True(t, voice.overwrites["alice"].Allow.Has(PermConnect))

	text, ok := env.platform.channel(r.TextChannelID)
	require.True(t, ok)
	assert.Equal(t, "mango-chat", text.name)
	assert.True(t, text.overwrites[testGuild].Deny.Has(PermView))
	assert.True(t, text.overwrites["alice"].Allow.Has(PermSendMessages))

	assert.Equal(t, 1, env.notifier.count(EventRoomCreated))
}

func TestOnEnteredTrigger_AccessRoles(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, AccessRoles: true})

	r := env.provision(t, "alice")
	require.NotEmpty(t, r.RoleID)

	text, ok := env.platform.channel(r.TextChannelID)
	require.True(t, ok)
	assert.True(t, text.overwrites[r.RoleID].Allow.Has(PermView))
}

func TestOnEnteredTrigger_AccessRolesNeedTextChannels(t *testing.T) {
	env := newTestEnv(t, Options{AccessRoles: true})

	r := env.provision(t, "alice")
	assert.Empty(t, r.RoleID)
	assert.Empty(t, r.TextChannelID)
	assert.Equal(t, r.VoiceChannelID, r.ChatChannelID())
}

func TestOnEnteredTrigger_UnconfiguredChannel(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	env.platform.connect("alice", "lobby")
	err := env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: "alice", After: "lobby",
	})
	require.NoError(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
}

func TestOnEnteredTrigger_NoModeratorRole(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, SupportHint: "Ask in #help."})
	env.m.moderators = fakeModerators{}
	ctx := context.Background()

	env.platform.connect("alice", testTrigger)
	err := env.m.OnEnteredTrigger(ctx, testGuild, testTrigger, "alice")
	require.ErrorIs(t, err, ErrNoModeratorRole)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())

	require.Len(t, env.platform.dms["alice"], 1)
	assert.Contains(t, env.platform.dms["alice"][0], "Ask in #help.")
}

func TestOnEnteredTrigger_NoModeratorRolePointsAtSupportChannel(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, SupportHint: "Ask in #help."})
	env.m.moderators = fakeModerators{support: map[string]string{testGuild: "chan-support"}}
	ctx := context.Background()

	env.platform.connect("alice", testTrigger)
	err := env.m.OnEnteredTrigger(ctx, testGuild, testTrigger, "alice")
	require.ErrorIs(t, err, ErrNoModeratorRole)

	require.Len(t, env.platform.dms["alice"], 1)
	assert.Contains(t, env.platform.dms["alice"][0], "Ask in <#chan-support>.")
	assert.NotContains(t, env.platform.dms["alice"][0], "#help")
}

func TestSupportHint(t *testing.T) {
	env := newTestEnv(t, Options{SupportHint: "Ask in #help."})
	ctx := context.Background()

	assert.Equal(t, "Ask in #help.", env.m.SupportHint(ctx, testGuild))

	env.m.moderators = fakeModerators{support: map[string]string{testGuild: "chan-support"}}
	assert.Equal(t, "Ask in <#chan-support>.", env.m.SupportHint(ctx, testGuild))
	assert.Equal(t, "Ask in #help.", env.m.SupportHint(ctx, "guild-2"))

	env.m.moderators = fakeModerators{supportErr: assert.AnError}
	assert.Equal(t, "Ask in #help.", env.m.SupportHint(ctx, testGuild))
}

func TestOnEnteredTrigger_MemberDisconnectedRollsBack(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, AccessRoles: true})
	ctx := context.Background()

	// alice never shows up in voice state, so the move reports disconnected
	err := env.m.OnEnteredTrigger(ctx, testGuild, testTrigger, "alice")
	require.NoError(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
	assert.Empty(t, env.platform.roles)
	assert.Zero(t, env.notifier.count(EventRoomCreated))
}

func TestOnEnteredTrigger_MoveFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	env.platform.moveErr = errors.New("rate limited")
	ctx := context.Background()

	env.platform.connect("alice", testTrigger)
	err := env.m.OnEnteredTrigger(ctx, testGuild, testTrigger, "alice")
	require.Error(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
}

func TestOnEnteredTrigger_PartialCreateRollsBack(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	env.platform.failCreate[ChannelText] = errors.New("missing permissions")
	ctx := context.Background()

	env.platform.connect("alice", testTrigger)
	err := env.m.OnEnteredTrigger(ctx, testGuild, testTrigger, "alice")
	require.Error(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
	assert.Len(t, env.platform.channelDeletes, 1)
}

func TestOnEnteredTrigger_SecondRoomGetsNextName(t *testing.T) {
	env := newTestEnv(t, Options{})

	first := env.provision(t, "alice")
	second := env.provision(t, "bob")

	assert.Equal(t, "Mango", first.Name)
	assert.Equal(t, "Papaya", second.Name)
	assert.NotEqual(t, first.VoiceChannelID, second.VoiceChannelID)
}
