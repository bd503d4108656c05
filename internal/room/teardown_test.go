package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barrier holds every caller until n have arrived, so concurrent handlers
// all read residency before any of them deletes
func barrier(n int) func() {
	var mu sync.Mutex
	arrived := 0
	release := make(chan struct{})

	return func() {
		mu.Lock()
		arrived++
		if arrived == n {
			close(release)
		}
		mu.Unlock()

		select {
		case <-release:
		case <-time.After(time.Second):
		}
	}
}

func TestTeardown_LastLeaveDeletesRoom(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")

	env.platform.disconnect("alice")
	err := env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: "alice", Before: r.VoiceChannelID,
	})
	require.NoError(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
	assert.Equal(t, 1, env.notifier.count(EventRoomDeleted))

	require.Len(t, env.archive.records, 1)
	assert.Equal(t, r.ID, env.archive.records[0].RoomID)
	assert.Equal(t, StateDeleted, env.archive.records[0].State)
}

func TestTeardown_ResidentsKeepRoom(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.join(t, "bob", r)

	env.platform.disconnect("alice")
	err := env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: "alice", Before: r.VoiceChannelID,
	})
	require.NoError(t, err)

	got, err := env.store.GetRoomByVoice(ctx, r.VoiceChannelID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, 2, env.platform.channelCount())
}

func TestTeardown_ConcurrentDuplicateLeaves(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true, AccessRoles: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.platform.disconnect("alice")

	const n = 8
	env.platform.countHook = barrier(n)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
				GuildID: testGuild, UserID: "alice", Before: r.VoiceChannelID,
			})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	assert.Zero(t, env.store.roomCount())
	assert.Equal(t, 1, env.store.deletes())
	assert.Equal(t, 1, env.platform.channelDeletes[r.VoiceChannelID])
	assert.Equal(t, 1, env.platform.channelDeletes[r.TextChannelID])
	assert.Equal(t, 1, env.platform.roleDeletes[r.RoleID])
	assert.Equal(t, 1, env.notifier.count(EventRoomDeleted))
}

// Owner creates Mango, a friend joins, both leave at the same moment
func TestTeardown_OwnerAndFriendLeaveTogether(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	require.Equal(t, "Mango", r.Name)

	env.join(t, "bob", r)
	text, ok := env.platform.channel(r.TextChannelID)
	require.True(t, ok)
	assert.True(t, text.overwrites["bob"].Allow.Has(PermView))

	entries, err := env.store.ListReadyEntries(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.False(t, e.Ready)
	}

	env.platform.disconnect("alice")
	env.platform.disconnect("bob")
	env.platform.countHook = barrier(2)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- env.m.OnVoiceStateUpdate(ctx, VoiceTransition{
				GuildID: testGuild, UserID: user, Before: r.VoiceChannelID,
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Zero(t, env.store.roomCount())
	assert.Equal(t, 1, env.store.deletes())
	assert.Equal(t, 1, env.platform.channelDeletes[r.VoiceChannelID])
	assert.Equal(t, 1, env.platform.channelDeletes[r.TextChannelID])
}

func TestTeardown_ChannelAlreadyGone(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.platform.disconnect("alice")

	// Someone removed both channels by hand
	require.NoError(t, env.platform.DeleteChannel(ctx, r.VoiceChannelID))
	require.NoError(t, env.platform.DeleteChannel(ctx, r.TextChannelID))

	err := env.m.OnLeftRoom(ctx, testGuild, r.VoiceChannelID, "alice")
	require.NoError(t, err)

	assert.Zero(t, env.store.roomCount())
	assert.Equal(t, 1, env.notifier.count(EventRoomDeleted))
}

func TestTeardown_DeleteFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	r := env.provision(t, "alice")
	env.platform.disconnect("alice")
	env.platform.deleteErr = errors.New("gateway timeout")

	err := env.m.OnLeftRoom(ctx, testGuild, r.VoiceChannelID, "alice")
	require.Error(t, err)

	_, err = env.store.GetRoomByVoice(ctx, r.VoiceChannelID)
	require.NoError(t, err)
	assert.Zero(t, env.notifier.count(EventRoomDeleted))

	// A retry after the platform recovers finishes the job
	env.platform.deleteErr = nil
	require.NoError(t, env.m.OnLeftRoom(ctx, testGuild, r.VoiceChannelID, "alice"))
	assert.Zero(t, env.store.roomCount())
}

func TestTeardown_UnknownChannelIsIgnored(t *testing.T) {
	env := newTestEnv(t, Options{})

	err := env.m.OnLeftRoom(context.Background(), testGuild, "not-a-room", "alice")
	require.NoError(t, err)
	assert.Zero(t, env.store.deletes())
}

func TestDeleteSystem_RemovesOccupiedRooms(t *testing.T) {
	env := newTestEnv(t, Options{TextChannels: true})
	ctx := context.Background()

	env.provision(t, "alice")
	env.provision(t, "bob")

	require.NoError(t, env.m.DeleteSystem(ctx, env.system.ID))

	assert.Zero(t, env.store.roomCount())
	assert.Zero(t, env.platform.channelCount())
	assert.Equal(t, 2, env.notifier.count(EventRoomDeleted))

	_, err := env.store.GetSystem(ctx, env.system.ID)
	assert.ErrorIs(t, err, ErrSystemNotFound)
}
