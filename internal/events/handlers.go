package events

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/eventbus"
	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

type Dispatcher interface {
	Handle(ctx context.Context, i *discordgo.Interaction)
	Definitions() []*discordgo.ApplicationCommand
}

type MessageObserver interface {
	OnMessage(ctx context.Context, m *discordgo.Message)
}

type Deps struct {
	// Context bounds every handler; it is canceled on shutdown.
	Context context.Context
	API     discord.API
	Router  Dispatcher
	Users   MessageObserver
	Bus     eventbus.Bus
	GuildID string
	Log     *logx.Logger

	// RegisterTimeout bounds command registration on Ready.
	RegisterTimeout time.Duration
}

// Handlers holds the gateway event handlers.
type Handlers struct {
	d Deps
}

func NewHandlers(d Deps) *Handlers {
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.RegisterTimeout <= 0 {
		d.RegisterTimeout = 30 * time.Second
	}
	return &Handlers{d: d}
}

// Events lists the handlers in load order.
func (h *Handlers) Events() []Event {
	return []Event{
		{Name: "ready", Once: true, Handler: func(_ *discordgo.Session, r *discordgo.Ready) { h.Ready(r) }},
		{Name: "interactionCreate", Handler: func(_ *discordgo.Session, i *discordgo.InteractionCreate) { h.Interaction(i.Interaction) }},
		{Name: "messageCreate", Handler: func(_ *discordgo.Session, m *discordgo.MessageCreate) { h.Message(m.Message) }},
		{Name: "voiceStateUpdate", Handler: func(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) { h.VoiceState(v) }},
	}
}

// Ready logs the bot identity and registers guild commands. Registration
// failures are logged only.
func (h *Handlers) Ready(r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	h.d.Log.Info("logged in as " + discord.UserTag(r.User))

	appID := r.User.ID
	if r.Application != nil && r.Application.ID != "" {
		appID = r.Application.ID
	}
	ctx, cancel := context.WithTimeout(h.d.Context, h.d.RegisterTimeout)
	defer cancel()
	if err := RegisterCommands(ctx, h.d.API, appID, h.d.GuildID, h.d.Router.Definitions(), h.d.Log); err != nil {
		h.d.Log.Error(err)
	}
}

func (h *Handlers) Interaction(i *discordgo.Interaction) {
	h.d.Router.Handle(h.d.Context, i)
}

// Message handles guild messages from humans.
func (h *Handlers) Message(m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if h.d.Users != nil {
		h.d.Users.OnMessage(h.d.Context, m)
	}
	if h.d.Bus != nil {
		h.d.Bus.Publish(eventbus.Event{
			Type: eventbus.MessageCreated,
			Time: m.Timestamp,
			Data: eventbus.MessageData{
				GuildID:   m.GuildID,
				ChannelID: m.ChannelID,
				UserID:    m.Author.ID,
				UserTag:   discord.UserTag(m.Author),
			},
		})
	}
}

// VoiceState turns voice state changes into join and leave events. A move
// between channels is a leave followed by a join.
func (h *Handlers) VoiceState(v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil || h.d.Bus == nil {
		return
	}
	if v.Member != nil && v.Member.User != nil && v.Member.User.Bot {
		return
	}
	before := ""
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate.ChannelID
	}
	after := v.ChannelID
	if before == after {
		return
	}
	now := time.Now()
	if before != "" {
		h.d.Bus.Publish(eventbus.Event{Type: eventbus.VoiceLeft, Time: now, Data: eventbus.VoiceData{
			GuildID: v.GuildID, ChannelID: before, UserID: v.UserID,
		}})
	}
	if after != "" {
		h.d.Bus.Publish(eventbus.Event{Type: eventbus.VoiceJoined, Time: now, Data: eventbus.VoiceData{
			GuildID: v.GuildID, ChannelID: after, UserID: v.UserID,
		}})
	}
}

// RegisterCommands replaces the guild's slash commands with defs.
func RegisterCommands(ctx context.Context, api discord.API, appID, guildID string, defs []*discordgo.ApplicationCommand, log *logx.Logger) error {
	if appID == "" || guildID == "" {
		return fmt.Errorf("register commands: application id and guild id are required")
	}
	log.Info(fmt.Sprintf("registering %d guild commands", len(defs)), logx.Fields{"guild_id": guildID})
	out, err := api.OverwriteGuildCommands(ctx, appID, guildID, defs)
	if err != nil {
		return fmt.Errorf("register commands in guild %s: %w", guildID, err)
	}
	log.Info(fmt.Sprintf("registered %d guild commands", len(out)), logx.Fields{"guild_id": guildID})
	return nil
}
