// Package discordtest provides an in-memory discord.API for tests.
package discordtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/transport/discord"
)

// Fake records every call. Channel history is served from Messages, and
// the *Err fields inject failures.
type Fake struct {
	mu sync.Mutex

	Responses []*discordgo.InteractionResponse
	Edits     []*discordgo.WebhookEdit
	Followups []*discordgo.WebhookParams
	Sent      []string
	Deleted   []string
	Bulk      [][]string
	Overwrite []*discordgo.ApplicationCommand

	Messages map[string][]*discordgo.Message
	Roles    map[string]string
	Channels map[string]string
	Ping     time.Duration

	// EditTimestamp is stamped on messages returned by EditResponse and
	// OriginalResponse.
	EditTimestamp time.Time

	RespondErr   error
	HistoryErr   error
	BulkErr      error
	OverwriteErr error
}

var _ discord.API = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Messages: map[string][]*discordgo.Message{},
		Roles:    map[string]string{},
		Channels: map[string]string{},
	}
}

func (f *Fake) Respond(_ context.Context, _ *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RespondErr != nil {
		return f.RespondErr
	}
	f.Responses = append(f.Responses, resp)
	return nil
}

func (f *Fake) EditResponse(_ context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Edits = append(f.Edits, edit)
	ts := f.EditTimestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &discordgo.Message{ID: "edit-" + i.ID, Timestamp: ts}, nil
}

func (f *Fake) OriginalResponse(_ context.Context, i *discordgo.Interaction) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.EditTimestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &discordgo.Message{ID: "original-" + i.ID, Timestamp: ts}, nil
}

func (f *Fake) Followup(_ context.Context, _ *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Followups = append(f.Followups, params)
	return &discordgo.Message{ID: fmt.Sprintf("followup-%d", len(f.Followups))}, nil
}

func (f *Fake) RecentMessages(_ context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.HistoryErr != nil {
		return nil, f.HistoryErr
	}
	msgs := f.Messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]*discordgo.Message(nil), msgs...), nil
}

func (f *Fake) BulkDelete(_ context.Context, _ string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BulkErr != nil {
		return f.BulkErr
	}
	f.Bulk = append(f.Bulk, append([]string(nil), ids...))
	return nil
}

func (f *Fake) DeleteMessage(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, id)
	return nil
}

func (f *Fake) SendMessage(_ context.Context, _ string, content string) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *Fake) OverwriteGuildCommands(_ context.Context, _, _ string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OverwriteErr != nil {
		return nil, f.OverwriteErr
	}
	f.Overwrite = append([]*discordgo.ApplicationCommand(nil), cmds...)
	return cmds, nil
}

func (f *Fake) Latency() time.Duration { return f.Ping }

func (f *Fake) RoleName(_, roleID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Roles[roleID]
}

func (f *Fake) ChannelName(channelID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Channels[channelID]
}

// ResponseCount and friends read recorded calls under the lock.
func (f *Fake) ResponseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Responses)
}

func (f *Fake) LastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Responses) == 0 {
		return nil
	}
	return f.Responses[len(f.Responses)-1]
}

func (f *Fake) LastEdit() *discordgo.WebhookEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Edits) == 0 {
		return nil
	}
	return f.Edits[len(f.Edits)-1]
}

// Handlers captures gateway handlers registered through discord.Registrar.
type Handlers struct {
	mu sync.Mutex

	OnHandlers   []any
	OnceHandlers []any
}

var _ discord.Registrar = (*Handlers)(nil)

func (h *Handlers) On(handler any) func() {
	h.mu.Lock()
	h.OnHandlers = append(h.OnHandlers, handler)
	h.mu.Unlock()
	return func() {}
}

func (h *Handlers) Once(handler any) func() {
	h.mu.Lock()
	h.OnceHandlers = append(h.OnceHandlers, handler)
	h.mu.Unlock()
	return func() {}
}

// CommandInteraction builds a guild slash-command interaction.
func CommandInteraction(name, guildID, userID string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i-" + name,
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   guildID,
		ChannelID: "chan",
		Member:    &discordgo.Member{User: &discordgo.User{ID: userID, Username: "user" + userID}},
		Data: discordgo.ApplicationCommandInteractionData{
			ID:      "cmd-" + name,
			Name:    name,
			Options: opts,
		},
	}
}
