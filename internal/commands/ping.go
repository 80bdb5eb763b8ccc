package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/services"
	"modbot/internal/transport/discord/router"
)

func Ping(d Deps) router.Command {
	return router.Command{
		Definition: &discordgo.ApplicationCommand{
			Name:        "ping",
			Description: "Checks bot and Discord API latency.",
		},
		Cooldown: 20 * time.Second,
		Handle: func(ctx context.Context, req *router.Request) error {
			if err := req.Reply(ctx, true, d.Ping.Pending(req.User)); err != nil {
				return err
			}
			sent, err := req.API.OriginalResponse(ctx, req.Interaction)
			if err != nil {
				return fmt.Errorf("fetch reply: %w", err)
			}
			rt := services.RoundTrip(req.Interaction.ID, sent)
			_, err = req.Edit(ctx, d.Ping.Result(req.User, rt))
			return err
		},
	}
}
