package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Options struct {
	// TextChannels pairs every voice room with a private text channel
	TextChannels bool
	// AccessRoles grants room access through a per-room role instead of
	// member overwrites on the text channel
	AccessRoles bool
	// SupportHint is appended to apologies, e.g. "Ask in #support."
	SupportHint string
	// ReconcileGrace keeps the sweep away from rooms still being provisioned
	ReconcileGrace time.Duration
}

type Deps struct {
	Store      Store
	Platform   Platform
	Moderators ModeratorResolver
	Attendees  AttendeeSource
	Archive    Archiver
	Notifier   Notifier
	Names      *NameAllocator
	Log        *slog.Logger
}

// Manager owns the room lifecycle: provisioning on trigger entry, membership
// and ready tracking, teardown when the last resident leaves, and the
// owner/moderator control actions. It keeps no state of its own between
// calls; the Store and live Platform reads are the only authorities.
type Manager struct {
	store      Store
	platform   Platform
	moderators ModeratorResolver
	attendees  AttendeeSource
	archive    Archiver
	notifier   Notifier
	names      *NameAllocator
	log        *slog.Logger
	opts       Options
	now        func() time.Time
}

func NewManager(deps Deps, opts Options) *Manager {
	if deps.Archive == nil {
		deps.Archive = nopArchiver{}
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Names == nil {
		deps.Names = NewNameAllocator(deps.Store, nil)
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if opts.ReconcileGrace == 0 {
		opts.ReconcileGrace = time.Minute
	}

	return &Manager{
		store:      deps.Store,
		platform:   deps.Platform,
		moderators: deps.Moderators,
		attendees:  deps.Attendees,
		archive:    deps.Archive,
		notifier:   deps.Notifier,
		names:      deps.Names,
		log:        deps.Log,
		opts:       opts,
		now:        time.Now,
	}
}

// SupportHint is the escalation pointer appended to apologies: a mention of
// the guild's support channel when one is set, else the configured hint
func (m *Manager) SupportHint(ctx context.Context, guildID string) string {
	if m.moderators == nil || guildID == "" {
		return m.opts.SupportHint
	}
	channelID, err := m.moderators.SupportChannel(ctx, guildID)
	if err != nil {
		m.log.Warn("failed to resolve support channel",
			"guild_id", guildID,
			"error", err)
		return m.opts.SupportHint
	}
	if channelID == "" {
		return m.opts.SupportHint
	}
	return fmt.Sprintf("Ask in <#%s>.", channelID)
}

// OnVoiceStateUpdate is the single entry point for presence changes. The
// leave side runs first (membership, then teardown), then the enter side
// (provisioning, then membership). Every step is idempotent so the same
// transition may be delivered any number of times.
func (m *Manager) OnVoiceStateUpdate(ctx context.Context, t VoiceTransition) error {
	if t.Before == t.After {
		return nil
	}

	var errs []error

	if t.Before != "" {
		if err := m.OnLeftRoom(ctx, t.GuildID, t.Before, t.UserID); err != nil {
			errs = append(errs, err)
		}
	}

	if t.After != "" {
		if err := m.OnEnteredTrigger(ctx, t.GuildID, t.After, t.UserID); err != nil {
			errs = append(errs, err)
		}
		if err := m.OnEnteredRoom(ctx, t.GuildID, t.After, t.UserID, t.DisplayTag); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) publish(typ EventType, r *Room, userID string) {
	m.notifier.Publish(Event{
		Type:    typ,
		GuildID: r.GuildID,
		RoomID:  r.ID,
		UserID:  userID,
		Name:    r.Name,
		At:      m.now(),
	})
}

// CreateSystem registers a trigger channel and the category its rooms go under
func (m *Manager) CreateSystem(ctx context.Context, guildID, triggerID, parentID string) (*RoomSystem, error) {
	system := &RoomSystem{
		GuildID:          guildID,
		TriggerChannelID: triggerID,
		ParentID:         parentID,
	}

	if err := m.store.CreateSystem(ctx, system); err != nil {
		return nil, err
	}

	m.log.Info("room system created",
		"system_id", system.ID,
		"guild_id", guildID,
		"trigger_channel_id", triggerID)

	return system, nil
}

// DeleteSystem tears down every active room of the system regardless of
// residents, then removes the system itself
func (m *Manager) DeleteSystem(ctx context.Context, systemID uuid.UUID) error {
	if _, err := m.store.GetSystem(ctx, systemID); err != nil {
		return err
	}

	rooms, err := m.store.ListRooms(ctx, systemID)
	if err != nil {
		return err
	}

	for _, r := range rooms {
		if err := m.destroy(ctx, r); err != nil {
			m.log.Error("failed to delete room resources during system teardown",
				"system_id", systemID,
				"room_id", r.ID,
				"error", err)
			continue
		}
		if deleted, err := m.store.DeleteRoom(ctx, r.ID); err == nil && deleted {
			m.finish(ctx, r)
		}
	}

	if err := m.store.DeleteSystem(ctx, systemID); err != nil {
		return fmt.Errorf("failed to delete room system: %w", err)
	}

	m.log.Info("room system deleted",
		"system_id", systemID,
		"room_count", len(rooms))

	return nil
}

func (m *Manager) ListSystems(ctx context.Context, guildID string) ([]*RoomSystem, error) {
	return m.store.ListSystems(ctx, guildID)
}

func (m *Manager) ListRooms(ctx context.Context, systemID uuid.UUID) ([]*Room, error) {
	if _, err := m.store.GetSystem(ctx, systemID); err != nil {
		return nil, err
	}
	return m.store.ListRooms(ctx, systemID)
}
