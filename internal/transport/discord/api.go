// Package discord defines the slice of the Discord API the bot depends on.
// The adapter subpackage implements it over discordgo; tests use fakes.
package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord only bulk-deletes messages younger than this.
const BulkDeleteMaxAge = 14 * 24 * time.Hour

// Discord caps message history requests at this page size.
const MaxHistoryPage = 100

type API interface {
	Respond(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error
	EditResponse(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error)
	// OriginalResponse fetches the message created by Respond.
	OriginalResponse(ctx context.Context, i *discordgo.Interaction) (*discordgo.Message, error)
	Followup(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error)

	RecentMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	BulkDelete(ctx context.Context, channelID string, messageIDs []string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error)

	OverwriteGuildCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error)

	// Latency is the gateway heartbeat round trip.
	Latency() time.Duration
	// RoleName and ChannelName resolve from the gateway cache and return ""
	// when unknown.
	RoleName(guildID, roleID string) string
	ChannelName(channelID string) string
}

// Registrar attaches gateway event handlers. Handlers use discordgo's
// signature, e.g. func(*discordgo.Session, *discordgo.MessageCreate).
type Registrar interface {
	On(handler any) (remove func())
	Once(handler any) (remove func())
}

// UserTag renders a user the way Discord shows it: "name#1234" for legacy
// discriminators, otherwise the bare username.
func UserTag(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.Discriminator != "" && u.Discriminator != "0" {
		return u.Username + "#" + u.Discriminator
	}
	return u.Username
}

// InteractionUser returns the invoking user for guild and DM interactions.
func InteractionUser(i *discordgo.Interaction) *discordgo.User {
	if i == nil {
		return nil
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}
