package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rx3lixir/tempvoice/internal/room"
)

const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildVoiceStates |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers

// Cooldown limits how often one user may run text commands
type Cooldown interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

type BotConfig struct {
	Prefix       string
	EventTimeout time.Duration
}

// Bot wires gateway events to the room manager. discordgo runs each handler
// on its own goroutine.
type Bot struct {
	session  *discordgo.Session
	rooms    Rooms
	cooldown Cooldown
	cfg      BotConfig
	log      *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	removes []func()
}

func NewBot(session *discordgo.Session, rooms Rooms, cooldown Cooldown, cfg BotConfig, log *slog.Logger) *Bot {
	if cfg.Prefix == "" {
		cfg.Prefix = "."
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bot{
		session:  session,
		rooms:    rooms,
		cooldown: cooldown,
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open registers handlers and connects to the gateway
func (b *Bot) Open() error {
	b.session.Identify.Intents = Intents
	b.session.StateEnabled = true

	b.removes = append(b.removes,
		b.session.AddHandler(b.onReady),
		b.session.AddHandler(b.onVoiceStateUpdate),
		b.session.AddHandler(b.onMessageCreate),
		b.session.AddHandler(b.onInteractionCreate),
	)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway session: %w", err)
	}
	return nil
}

// Close stops accepting events, waits for running handlers and disconnects
func (b *Bot) Close(ctx context.Context) error {
	for _, remove := range b.removes {
		remove()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		b.log.Warn("handlers still running at shutdown")
	}
	b.cancel()

	return b.session.Close()
}

// run wraps one event handler: bounded context, panic recovery
func (b *Bot) run(event string, fn func(ctx context.Context)) {
	b.wg.Add(1)
	defer b.wg.Done()

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.EventTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in event handler",
				"event", event,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	fn(ctx)
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info("connected to gateway",
		"user", r.User.Username,
		"guilds", len(r.Guilds))
}

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	b.run("voice_state_update", func(ctx context.Context) {
		t := transitionFrom(vsu)
		if t.Before == t.After {
			return
		}

		if err := b.rooms.OnVoiceStateUpdate(ctx, t); err != nil {
			b.log.Error("failed to handle voice state update",
				"guild_id", t.GuildID,
				"user_id", t.UserID,
				"before", t.Before,
				"after", t.After,
				"error", err)
		}
	})
}

func transitionFrom(vsu *discordgo.VoiceStateUpdate) room.VoiceTransition {
	t := room.VoiceTransition{
		GuildID:    vsu.GuildID,
		UserID:     vsu.UserID,
		DisplayTag: displayTag(vsu.Member),
		After:      vsu.ChannelID,
	}
	if vsu.BeforeUpdate != nil {
		t.Before = vsu.BeforeUpdate.ChannelID
	}
	return t
}

// displayTag is how a member shows up in ready checks
func displayTag(m *discordgo.Member) string {
	if m == nil {
		return ""
	}
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	cmd, ok := ParseCommand(b.cfg.Prefix, m.Content)
	if !ok {
		return
	}

	b.run("message_create", func(ctx context.Context) {
		inv := Invocation{
			GuildID:    m.GuildID,
			ChannelID:  m.ChannelID,
			UserID:     m.Author.ID,
			DisplayTag: displayTag(m.Member),
		}
		if inv.DisplayTag == "" {
			inv.DisplayTag = m.Author.Username
		}

		log := b.log.With(
			"command", cmd.Name,
			"guild_id", inv.GuildID,
			"user_id", inv.UserID)

		if !b.allow(ctx, log, inv) {
			b.reply(ctx, log, m, slowDownMessage(b.cooldown.Window()))
			return
		}

		out, err := execute(ctx, b.rooms, cmd, inv)
		if err != nil {
			b.logFailure(log, err)
			out = room.UserMessage(err, b.rooms.SupportHint(ctx, inv.GuildID))
		}
		b.reply(ctx, log, m, out)
	})
}

// allow fails open: a cooldown outage must not take commands down
func (b *Bot) allow(ctx context.Context, log *slog.Logger, inv Invocation) bool {
	if b.cooldown == nil {
		return true
	}
	ok, err := b.cooldown.Allow(ctx, inv.GuildID+":"+inv.UserID)
	if err != nil {
		log.Warn("cooldown check failed", "error", err)
		return true
	}
	return ok
}

func slowDownMessage(window time.Duration) string {
	if window < time.Second {
		return "Slow down a little, try again in a moment."
	}
	return fmt.Sprintf("Slow down a little, try again in %s.", window.Round(time.Second))
}

func (b *Bot) logFailure(log *slog.Logger, err error) {
	var ue *room.UserError
	if errors.As(err, &ue) {
		log.Debug("command rejected", "reason", err)
		return
	}
	log.Error("command failed", "error", err)
}

func (b *Bot) reply(ctx context.Context, log *slog.Logger, m *discordgo.MessageCreate, content string) {
	_, err := b.session.ChannelMessageSendReply(m.ChannelID, content, m.Reference(), discordgo.WithContext(ctx))
	if err != nil {
		log.Warn("failed to send reply", "error", err)
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent || i.Member == nil || i.Member.User == nil {
		return
	}

	b.run("interaction_create", func(ctx context.Context) {
		action := i.MessageComponentData().CustomID
		inv := Invocation{
			GuildID:    i.GuildID,
			ChannelID:  i.ChannelID,
			UserID:     i.Member.User.ID,
			DisplayTag: displayTag(i.Member),
		}

		log := b.log.With(
			"action", action,
			"guild_id", inv.GuildID,
			"user_id", inv.UserID)

		out, err := executeAction(ctx, b.rooms, action, inv)
		if err != nil {
			b.logFailure(log, err)
			out = room.UserMessage(err, b.rooms.SupportHint(ctx, inv.GuildID))
		}

		err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: out,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}, discordgo.WithContext(ctx))
		if err != nil {
			log.Warn("failed to respond to interaction", "error", err)
		}
	})
}
