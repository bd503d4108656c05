package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnEnteredRoom_GrantsTextAccess(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})

	r := env.provision(t, "alice")
	env.join(t, "bob", r)

	text, ok := env.platform.channel(r.TextChannelID)
	require.True(t, ok)
	assert.True(t, text.overwrites["bob"].Allow.Has(PermSendMessages))
	assert.Equal(t, 2, env.notifier.count(EventMemberJoined))
}

func TestOnEnteredRoom_GrantsRole(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, AccessRoles: true})

	r := env.provision(t, "alice")
	env.join(t, "bob", r)

	ok, err := env.platform.MemberHasRole(context.Background(), testGuild, "bob", r.RoleID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOnEnteredRoom_DuplicateEventKeepsOneEntry(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.join(t, "bob", r)
	require.NoError(t, env.m.OnEnteredRoom(ctx, testGuild, r.VoiceChannelID, "bob", "bob"))

	entries, err := env.store.ListReadyEntries(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestOnLeftRoom_RevokesAccessButNotOwner(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.join(t, "bob", r)
	env.join(t, "carol", r)

	env.platform.disconnect("bob")
	require.NoError(t, env.m.OnLeftRoom(ctx, testGuild, r.VoiceChannelID, "bob"))

	text, ok := env.platform.channel(r.TextChannelID)
	require.True(t, ok)
	_, hasBob := text.overwrites["bob"]
	assert.False(t, hasBob)

	env.platform.disconnect("alice")
	require.NoError(t, env.m.OnLeftRoom(ctx, testGuild, r.VoiceChannelID, "alice"))

	_, hasAlice := text.overwrites["alice"]
	assert.True(t, hasAlice)

	entries, err := env.store.ListReadyEntries(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "carol", entries[0].UserID)
}

func TestOnVoiceStateUpdate_MoveBetweenRooms(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	mango := env.provision(t, "alice")
	papaya := env.provision(t, "bob")

	env.platform.connect("alice", papaya.VoiceChannelID)
	err := env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: "alice", DisplayTag: "alice",
		Before: mango.VoiceChannelID, After: papaya.VoiceChannelID,
	})
	require.NoError(t, err)

	_, err = env.store.GetRoomByVoice(ctx, mango.VoiceChannelID)
	assert.ErrorIs(t, err, ErrRoomNotFound)

	entries, err := env.store.ListReadyEntries(ctx, papaya.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestOnVoiceStateUpdate_SameChannelIsNoop(t *testing.T) {
	env := newTestEnv(t, Options{})

	r := env.provision(t, "alice")
	err := env.m.OnVoiceStateUpdate(context.Background(), VoiceTransition{
		GuildID: testGuild, UserID: "alice", Before: r.VoiceChannelID, After: r.VoiceChannelID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.store.roomCount())
}
