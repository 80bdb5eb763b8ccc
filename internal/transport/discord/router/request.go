package router

import (
	"context"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

// Request is one slash-command invocation.
type Request struct {
	// ID is a ULID correlating the log lines of this invocation.
	ID          string
	Interaction *discordgo.Interaction
	Data        discordgo.ApplicationCommandInteractionData
	User        *discordgo.User
	API         discord.API
	Log         *logx.Logger

	acked atomic.Bool
}

func (r *Request) Command() string { return r.Data.Name }

func (r *Request) GuildID() string   { return r.Interaction.GuildID }
func (r *Request) ChannelID() string { return r.Interaction.ChannelID }

// InGuild is false for direct-message interactions.
func (r *Request) InGuild() bool { return r.Interaction.GuildID != "" }

// Acknowledged reports whether an initial response was already sent.
func (r *Request) Acknowledged() bool { return r.acked.Load() }

// Option finds a top-level option by name.
func (r *Request) Option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range r.Data.Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// UserOption resolves a user option, or nil when it was not given.
func (r *Request) UserOption(name string) *discordgo.User {
	o := r.Option(name)
	if o == nil {
		return nil
	}
	id, _ := o.Value.(string)
	if r.Data.Resolved != nil {
		if u, ok := r.Data.Resolved.Users[id]; ok {
			return u
		}
	}
	if id == "" {
		return nil
	}
	return &discordgo.User{ID: id}
}

// IntOption returns an integer option, or def when it was not given.
func (r *Request) IntOption(name string, def int64) int64 {
	o := r.Option(name)
	if o == nil {
		return def
	}
	// Numbers arrive as float64 from JSON.
	switch v := o.Value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return def
}

// StringOption returns a string option, or def when it was not given.
func (r *Request) StringOption(name, def string) string {
	o := r.Option(name)
	if o == nil {
		return def
	}
	if s, ok := o.Value.(string); ok {
		return s
	}
	return def
}

// Respond sends the initial interaction response.
func (r *Request) Respond(ctx context.Context, resp *discordgo.InteractionResponse) error {
	if err := r.API.Respond(ctx, r.Interaction, resp); err != nil {
		return err
	}
	r.acked.Store(true)
	return nil
}

// Reply responds with embeds, optionally visible to the invoker only.
func (r *Request) Reply(ctx context.Context, ephemeral bool, embeds ...*discordgo.MessageEmbed) error {
	data := &discordgo.InteractionResponseData{Embeds: embeds}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

// Defer acknowledges now and lets the handler edit the response later.
func (r *Request) Defer(ctx context.Context, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return r.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

// Edit replaces the initial response's embeds.
func (r *Request) Edit(ctx context.Context, embeds ...*discordgo.MessageEmbed) (*discordgo.Message, error) {
	return r.API.EditResponse(ctx, r.Interaction, &discordgo.WebhookEdit{Embeds: &embeds})
}

// Followup posts an additional message after the initial response.
func (r *Request) Followup(ctx context.Context, ephemeral bool, content string) error {
	params := &discordgo.WebhookParams{Content: content}
	if ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := r.API.Followup(ctx, r.Interaction, params)
	return err
}

// notice sends a plain ephemeral text, as a reply or a follow-up depending
// on whether the interaction was already acknowledged.
func (r *Request) notice(ctx context.Context, text string) error {
	if r.Acknowledged() {
		return r.Followup(ctx, true, text)
	}
	return r.Respond(ctx, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: text, Flags: discordgo.MessageFlagsEphemeral},
	})
}
