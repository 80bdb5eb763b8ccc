package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/embeds"
	"modbot/internal/transport/discord"
	"modbot/internal/transport/discord/router"
)

func Warn(d Deps) router.Command {
	return router.Command{
		Definition: &discordgo.ApplicationCommand{
			Name:                     "warn",
			Description:              "Issues a warning to a member.",
			DefaultMemberPermissions: int64Ptr(discordgo.PermissionModerateMembers),
			DMPermission:             boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to warn",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "Why the member is warned",
					MaxLength:   512,
				},
			},
		},
		Handle: func(ctx context.Context, req *router.Request) error {
			target := req.UserOption("user")
			if target == nil {
				return errors.New("warn: missing user option")
			}
			if target.Bot || target.ID == req.User.ID {
				return req.Reply(ctx, true, d.Embeds.Error(req.User, embeds.Options{
					Description: "You can't warn that user.",
				}))
			}
			reason := req.StringOption("reason", "")

			p, err := d.Moderation.Warn(ctx, req.GuildID(), target, req.User, reason)
			if err != nil {
				return err
			}
			desc := fmt.Sprintf("%s has been warned. Case **#%d**.", discord.UserTag(target), p.CaseID)
			fields := []*discordgo.MessageEmbedField{}
			if reason != "" {
				fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: reason})
			}
			return req.Reply(ctx, false, d.Embeds.Success(req.User, embeds.Options{
				Description: desc,
				Fields:      fields,
			}))
		},
	}
}
