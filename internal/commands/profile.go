package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"modbot/internal/domain"
	"modbot/internal/embeds"
	"modbot/internal/storage"
	"modbot/internal/transport/discord"
	"modbot/internal/transport/discord/router"
)

func Profile(d Deps) router.Command {
	return router.Command{
		Definition: &discordgo.ApplicationCommand{
			Name:         "profile",
			Description:  "Shows a member's activity and moderation history.",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "Member to look up (defaults to you)",
				},
			},
		},
		Cooldown: 5 * time.Second,
		Handle: func(ctx context.Context, req *router.Request) error {
			who := req.UserOption("user")
			if who == nil {
				who = req.User
			}
			u, err := d.Profiles.Full(ctx, who.ID)
			if errors.Is(err, storage.ErrNotFound) {
				return req.Reply(ctx, true, d.Embeds.Info(req.User, embeds.Options{
					Description: fmt.Sprintf("No activity recorded for %s yet.", discord.UserTag(who)),
				}))
			}
			if err != nil {
				return err
			}
			return req.Reply(ctx, true, d.Embeds.Info(req.User, embeds.Options{
				Title:       discord.UserTag(who),
				Description: "Member profile",
				Thumbnail:   who.AvatarURL("128"),
				Fields:      profileFields(u, req.GuildID(), time.Now()),
			}))
		},
	}
}

func profileFields(u *domain.User, guildID string, now time.Time) []*discordgo.MessageEmbedField {
	var messages int64
	var voice time.Duration
	for _, a := range u.Activity {
		if a.GuildID == guildID {
			messages = a.MessageCount
			voice = time.Duration(a.VoiceTimeInSeconds) * time.Second
		}
	}
	received, active := 0, 0
	for _, p := range u.PunishmentsReceived {
		if p.GuildID != guildID {
			continue
		}
		received++
		if p.Active && !p.Expired(now) {
			active++
		}
	}
	issued := 0
	for _, p := range u.PunishmentsIssued {
		if p.GuildID == guildID {
			issued++
		}
	}
	return []*discordgo.MessageEmbedField{
		{Name: "Messages", Value: humanize.Comma(messages), Inline: true},
		{Name: "Voice time", Value: formatVoice(voice), Inline: true},
		{Name: "First seen", Value: humanize.RelTime(u.CreatedAt, now, "ago", "from now"), Inline: true},
		{Name: "Punishments", Value: fmt.Sprintf("%s received (%s active)", humanize.Comma(int64(received)), humanize.Comma(int64(active))), Inline: true},
		{Name: "Issued", Value: humanize.Comma(int64(issued)), Inline: true},
		{Name: "All servers", Value: fmt.Sprintf("%s messages", humanize.Comma(u.TotalMessages())), Inline: true},
	}
}

func formatVoice(d time.Duration) string {
	if d < time.Minute {
		return "none"
	}
	h := int64(d / time.Hour)
	m := int64(d%time.Hour) / int64(time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%sh %dm", humanize.Comma(h), m)
}
