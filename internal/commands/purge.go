package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/embeds"
	"modbot/internal/services"
	"modbot/internal/transport/discord"
	"modbot/internal/transport/discord/router"
)

const purgeNote = "\n\n*(Some messages were not deleted because they are older than 14 days or an error occurred.)*"

func Purge(d Deps) router.Command {
	return router.Command{
		Definition: &discordgo.ApplicationCommand{
			Name:                     "purge",
			Description:              "Deletes the given number of messages from this channel.",
			DefaultMemberPermissions: int64Ptr(discordgo.PermissionManageMessages),
			DMPermission:             boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Number of messages to delete (1-100)",
					Required:    true,
					MinValue:    float64Ptr(1),
					MaxValue:    discord.MaxHistoryPage,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Only delete messages from this user",
				},
			},
		},
		Cooldown: 10 * time.Second,
		Handle: func(ctx context.Context, req *router.Request) error {
			if err := req.Defer(ctx, true); err != nil {
				return err
			}
			amount := int(req.IntOption("amount", 1))
			target := req.UserOption("user")
			targetID := ""
			if target != nil {
				targetID = target.ID
			}

			n, err := d.Chat.Purge(ctx, req.ChannelID(), !req.InGuild(), amount, targetID)
			if err != nil {
				msg := "An unexpected error occurred while deleting messages."
				if errors.Is(err, services.ErrDMChannel) {
					msg = "Messages can't be purged in direct messages."
				}
				_, editErr := req.Edit(ctx, d.Embeds.Error(req.User, embeds.Options{Description: msg}))
				return editErr
			}

			desc := fmt.Sprintf("Deleted **%d** messages", n)
			if target != nil {
				desc += " from " + discord.UserTag(target)
			}
			desc += "."
			if n < amount {
				desc += purgeNote
			}
			_, err = req.Edit(ctx, d.Embeds.Success(req.User, embeds.Options{Description: desc}))
			return err
		},
	}
}
