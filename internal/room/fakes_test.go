package room

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rx3lixir/tempvoice/pkg/logger"
)

const (
	testGuild   = "guild-1"
	testTrigger = "trigger-1"
	testParent  = "category-1"
	testModRole = "role-mods"
	testBot     = "bot-1"
)

// fakeStore is an in-memory Store for unit tests only
type fakeStore struct {
	mu      sync.Mutex
	systems map[uuid.UUID]*RoomSystem
	rooms   map[uuid.UUID]*Room
	ready   map[uuid.UUID][]*ReadyCheckEntry

	roomDeletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		systems: make(map[uuid.UUID]*RoomSystem),
		rooms:   make(map[uuid.UUID]*Room),
		ready:   make(map[uuid.UUID][]*ReadyCheckEntry),
	}
}

func (f *fakeStore) CreateSystem(ctx context.Context, system *RoomSystem) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.systems {
		if s.GuildID == system.GuildID && s.TriggerChannelID == system.TriggerChannelID {
			return ErrSystemExists
		}
	}
	system.ID = uuid.New()
	system.CreatedAt = time.Now()
	cp := *system
	f.systems[system.ID] = &cp
	return nil
}

func (f *fakeStore) GetSystem(ctx context.Context, id uuid.UUID) (*RoomSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.systems[id]
	if !ok {
		return nil, ErrSystemNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) GetSystemByTrigger(ctx context.Context, guildID, triggerID string) (*RoomSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.systems {
		if s.GuildID == guildID && s.TriggerChannelID == triggerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSystemNotFound
}

func (f *fakeStore) ListSystems(ctx context.Context, guildID string) ([]*RoomSystem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*RoomSystem{}
	for _, s := range f.systems {
		if s.GuildID == guildID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteSystem(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.systems[id]; !ok {
		return ErrSystemNotFound
	}
	delete(f.systems, id)
	for rid, r := range f.rooms {
		if r.SystemID == id {
			delete(f.rooms, rid)
			delete(f.ready, rid)
		}
	}
	return nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, room *Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.systems[room.SystemID]; !ok {
		return ErrSystemNotFound
	}
	for _, r := range f.rooms {
		if r.VoiceChannelID == room.VoiceChannelID {
			return ErrRoomExists
		}
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = time.Now()
	room.UpdatedAt = room.CreatedAt
	cp := *room
	f.rooms[room.ID] = &cp
	return nil
}

func (f *fakeStore) findRoom(match func(*Room) bool) (*Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.rooms {
		if match(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (f *fakeStore) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	return f.findRoom(func(r *Room) bool { return r.ID == id })
}

func (f *fakeStore) GetRoomByVoice(ctx context.Context, voiceChannelID string) (*Room, error) {
	return f.findRoom(func(r *Room) bool { return r.VoiceChannelID == voiceChannelID })
}

func (f *fakeStore) GetRoomByChannel(ctx context.Context, channelID string) (*Room, error) {
	return f.findRoom(func(r *Room) bool {
		return r.VoiceChannelID == channelID || (r.TextChannelID != "" && r.TextChannelID == channelID)
	})
}

func (f *fakeStore) listRooms(match func(*Room) bool) []*Room {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []*Room{}
	for _, r := range f.rooms {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (f *fakeStore) ListRooms(ctx context.Context, systemID uuid.UUID) ([]*Room, error) {
	return f.listRooms(func(r *Room) bool { return r.SystemID == systemID }), nil
}

func (f *fakeStore) ListAllRooms(ctx context.Context) ([]*Room, error) {
	return f.listRooms(func(*Room) bool { return true }), nil
}

func (f *fakeStore) ListRoomNames(ctx context.Context, guildID string) ([]string, error) {
	names := []string{}
	for _, r := range f.listRooms(func(r *Room) bool { return r.GuildID == guildID }) {
		names = append(names, r.Name)
	}
	return names, nil
}

func (f *fakeStore) update(id uuid.UUID, fn func(*Room)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	fn(r)
	r.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) UpdateRoomOwner(ctx context.Context, id uuid.UUID, ownerID string) error {
	return f.update(id, func(r *Room) { r.OwnerID = ownerID })
}

func (f *fakeStore) UpdateRoomName(ctx context.Context, id uuid.UUID, name string) error {
	return f.update(id, func(r *Room) { r.Name = name })
}

func (f *fakeStore) SetRoomLocked(ctx context.Context, id uuid.UUID, locked bool) error {
	return f.update(id, func(r *Room) { r.Locked = locked })
}

func (f *fakeStore) SetControlMessage(ctx context.Context, id uuid.UUID, messageID string) error {
	return f.update(id, func(r *Room) { r.ControlMessageID = messageID })
}

func (f *fakeStore) SetRoomClosed(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.rooms[id]
	if !ok || r.Closed {
		return false, nil
	}
	r.Closed = true
	return true, nil
}

func (f *fakeStore) DeleteRoom(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[id]; !ok {
		return false, nil
	}
	delete(f.rooms, id)
	delete(f.ready, id)
	f.roomDeletes++
	return true, nil
}

func (f *fakeStore) UpsertReadyEntry(ctx context.Context, entry *ReadyCheckEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.rooms[entry.RoomID]; !ok {
		return ErrRoomNotFound
	}
	entry.JoinedAt = time.Now()
	cp := *entry

	entries := f.ready[entry.RoomID]
	for i, e := range entries {
		if e.UserID == entry.UserID {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	f.ready[entry.RoomID] = append(entries, &cp)
	return nil
}

func (f *fakeStore) SetReady(ctx context.Context, roomID uuid.UUID, userID string, ready bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.ready[roomID] {
		if e.UserID == userID {
			e.Ready = ready
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) DeleteReadyEntry(ctx context.Context, roomID uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := f.ready[roomID]
	for i, e := range entries {
		if e.UserID == userID {
			f.ready[roomID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ListReadyEntries(ctx context.Context, roomID uuid.UUID) ([]*ReadyCheckEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*ReadyCheckEntry, 0, len(f.ready[roomID]))
	for _, e := range f.ready[roomID] {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) roomCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms)
}

func (f *fakeStore) deletes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roomDeletes
}

func (f *fakeStore) seedSystem(t *testing.T) *RoomSystem {
	t.Helper()
	s := &RoomSystem{GuildID: testGuild, TriggerChannelID: testTrigger, ParentID: testParent}
	if err := f.CreateSystem(context.Background(), s); err != nil {
		t.Fatalf("seed system: %v", err)
	}
	return s
}

type fakeChannel struct {
	guildID    string
	name       string
	kind       ChannelKind
	parentID   string
	overwrites map[string]Overwrite
}

// fakePlatform keeps channels, roles and voice presence in memory
type fakePlatform struct {
	mu sync.Mutex

	nextID      int
	channels    map[string]*fakeChannel
	roles       map[string]string
	memberRoles map[string]map[string]bool
	voice       map[string]string
	members     map[string]bool
	messages    map[string]Message
	dms         map[string][]string

	channelDeletes map[string]int
	roleDeletes    map[string]int

	moveErr       error
	renameErr     error
	failCreate    map[ChannelKind]error
	deleteErr     error
	countHook     func()
	countsStarted int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:       make(map[string]*fakeChannel),
		roles:          make(map[string]string),
		memberRoles:    make(map[string]map[string]bool),
		voice:          make(map[string]string),
		members:        make(map[string]bool),
		messages:       make(map[string]Message),
		dms:            make(map[string][]string),
		channelDeletes: make(map[string]int),
		roleDeletes:    make(map[string]int),
		failCreate:     make(map[ChannelKind]error),
	}
}

func (p *fakePlatform) id(prefix string) string {
	p.nextID++
	return fmt.Sprintf("%s-%d", prefix, p.nextID)
}

func (p *fakePlatform) BotUserID() string { return testBot }

func (p *fakePlatform) CreateChannel(ctx context.Context, guildID string, spec ChannelSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.failCreate[spec.Kind]; err != nil {
		return "", err
	}
	id := p.id("chan")
	ch := &fakeChannel{
		guildID:    guildID,
		name:       spec.Name,
		kind:       spec.Kind,
		parentID:   spec.ParentID,
		overwrites: make(map[string]Overwrite),
	}
	for _, ow := range spec.Overwrites {
		ch.overwrites[ow.TargetID] = ow
	}
	p.channels[id] = ch
	return id, nil
}

func (p *fakePlatform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.deleteErr != nil {
		return p.deleteErr
	}
	if _, ok := p.channels[channelID]; !ok {
		return ErrNotFound
	}
	delete(p.channels, channelID)
	p.channelDeletes[channelID]++
	return nil
}

func (p *fakePlatform) RenameChannel(ctx context.Context, channelID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.renameErr != nil {
		return p.renameErr
	}
	ch, ok := p.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	ch.name = name
	return nil
}

func (p *fakePlatform) SetOverwrite(ctx context.Context, channelID string, ow Overwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	ch.overwrites[ow.TargetID] = ow
	return nil
}

func (p *fakePlatform) RemoveOverwrite(ctx context.Context, channelID, targetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[channelID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := ch.overwrites[targetID]; !ok {
		return ErrNotFound
	}
	delete(ch.overwrites, targetID)
	return nil
}

func (p *fakePlatform) CreateRole(ctx context.Context, guildID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.id("role")
	p.roles[id] = guildID
	return id, nil
}

func (p *fakePlatform) DeleteRole(ctx context.Context, guildID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.roles[roleID]; !ok {
		return ErrNotFound
	}
	delete(p.roles, roleID)
	p.roleDeletes[roleID]++
	for _, roles := range p.memberRoles {
		delete(roles, roleID)
	}
	return nil
}

func (p *fakePlatform) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.roles[roleID]; !ok && roleID != testModRole {
		return ErrNotFound
	}
	if p.memberRoles[userID] == nil {
		p.memberRoles[userID] = make(map[string]bool)
	}
	p.memberRoles[userID][roleID] = true
	return nil
}

func (p *fakePlatform) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.memberRoles[userID][roleID] {
		return ErrNotFound
	}
	delete(p.memberRoles[userID], roleID)
	return nil
}

func (p *fakePlatform) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.moveErr != nil {
		return p.moveErr
	}
	if _, ok := p.voice[userID]; !ok {
		return ErrMemberDisconnected
	}
	p.voice[userID] = channelID
	return nil
}

func (p *fakePlatform) VoiceMemberCount(ctx context.Context, guildID, channelID string) (int, error) {
	p.mu.Lock()
	p.countsStarted++
	hook := p.countHook
	p.mu.Unlock()

	if hook != nil {
		hook()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelID]; !ok {
		return 0, ErrNotFound
	}
	n := 0
	for _, ch := range p.voice {
		if ch == channelID {
			n++
		}
	}
	return n, nil
}

func (p *fakePlatform) MemberVoiceChannel(ctx context.Context, guildID, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.voice[userID]
	if !ok {
		return "", ErrNotFound
	}
	return ch, nil
}

func (p *fakePlatform) MemberHasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.memberRoles[userID][roleID], nil
}

func (p *fakePlatform) IsGuildMember(ctx context.Context, guildID, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[userID], nil
}

func (p *fakePlatform) SendMessage(ctx context.Context, channelID string, msg Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelID]; !ok {
		return "", ErrNotFound
	}
	id := p.id("msg")
	p.messages[id] = msg
	return id, nil
}

func (p *fakePlatform) EditMessage(ctx context.Context, channelID, messageID string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.messages[messageID]; !ok {
		return ErrNotFound
	}
	p.messages[messageID] = msg
	return nil
}

func (p *fakePlatform) NotifyUser(ctx context.Context, userID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms[userID] = append(p.dms[userID], content)
	return nil
}

// connect puts a member into a voice channel, the way the gateway state
// would look right before the matching event is dispatched
func (p *fakePlatform) connect(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voice[userID] = channelID
	p.members[userID] = true
}

func (p *fakePlatform) disconnect(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.voice, userID)
}

func (p *fakePlatform) channel(id string) (*fakeChannel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[id]
	return ch, ok
}

func (p *fakePlatform) channelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

type fakeModerators struct {
	roles      map[string]string
	support    map[string]string
	supportErr error
}

func (f fakeModerators) ModeratorRole(ctx context.Context, guildID string) (string, error) {
	return f.roles[guildID], nil
}

func (f fakeModerators) SupportChannel(ctx context.Context, guildID string) (string, error) {
	return f.support[guildID], f.supportErr
}

type fakeAttendees struct {
	sessions  map[uuid.UUID]*ScheduledSession
	attendees map[uuid.UUID][]string
}

func (f *fakeAttendees) Session(ctx context.Context, id uuid.UUID) (*ScheduledSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeAttendees) Attendees(ctx context.Context, id uuid.UUID) ([]string, error) {
	return f.attendees[id], nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Publish(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) count(typ EventType) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Type == typ {
			c++
		}
	}
	return c
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []SessionRecord
}

func (a *recordingArchiver) ArchiveSession(ctx context.Context, rec SessionRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

type testEnv struct {
	m        *Manager
	store    *fakeStore
	platform *fakePlatform
	system   *RoomSystem
	notifier *recordingNotifier
	archive  *recordingArchiver
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	store := newFakeStore()
	platform := newFakePlatform()
	notifier := &recordingNotifier{}
	archive := &recordingArchiver{}

	names := NewNameAllocator(store, nil)
	names.shuffle = nil

	m := NewManager(Deps{
		Store:      store,
		Platform:   platform,
		Moderators: fakeModerators{roles: map[string]string{testGuild: testModRole}},
		Archive:    archive,
		Notifier:   notifier,
		Names:      names,
		Log:        logger.Discard(),
	}, opts)

	return &testEnv{
		m:        m,
		store:    store,
		platform: platform,
		system:   store.seedSystem(t),
		notifier: notifier,
		archive:  archive,
	}
}

// provision runs the trigger entry for userID and returns the new room
func (e *testEnv) provision(t *testing.T, userID string) *Room {
	t.Helper()
	ctx := context.Background()

	e.platform.connect(userID, testTrigger)
	err := e.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: userID, DisplayTag: userID, After: testTrigger,
	})
	if err != nil {
		t.Fatalf("provision: %v", err)
	}

	voiceID, _ := e.platform.MemberVoiceChannel(ctx, testGuild, userID)
	r, err := e.store.GetRoomByVoice(ctx, voiceID)
	if err != nil {
		t.Fatalf("provision: room not persisted: %v", err)
	}

	// The move produces its own presence event
	err = e.m.OnVoiceStateUpdate(ctx, VoiceTransition{
		GuildID: testGuild, UserID: userID, DisplayTag: userID, Before: testTrigger, After: voiceID,
	})
	if err != nil {
		t.Fatalf("provision: move event: %v", err)
	}
	return r
}

func (e *testEnv) join(t *testing.T, userID string, r *Room) {
	t.Helper()
	e.platform.connect(userID, r.VoiceChannelID)
	err := e.m.OnVoiceStateUpdate(context.Background(), VoiceTransition{
		GuildID: testGuild, UserID: userID, DisplayTag: userID, After: r.VoiceChannelID,
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
}
