package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/embeds"
	"modbot/internal/transport/discord"
)

// PingService measures bot latency.
type PingService struct {
	api    discord.API
	embeds *embeds.Factory
}

func NewPingService(api discord.API, f *embeds.Factory) *PingService {
	return &PingService{api: api, embeds: f}
}

func (s *PingService) Name() string                   { return "ping" }
func (s *PingService) Init(context.Context) error     { return nil }
func (s *PingService) Shutdown(context.Context) error { return nil }

// RoundTrip is the time between the interaction's creation and the bot's
// response, both taken from Discord's clocks.
func RoundTrip(interactionID string, reply *discordgo.Message) time.Duration {
	created, err := discordgo.SnowflakeTimestamp(interactionID)
	if err != nil || reply == nil || reply.Timestamp.IsZero() {
		return 0
	}
	return reply.Timestamp.Sub(created)
}

// Pending is shown while the round trip is measured.
func (s *PingService) Pending(u *discordgo.User) *discordgo.MessageEmbed {
	return s.embeds.Info(u, embeds.Options{Description: "🏓 Pinging..."})
}

// Result builds the latency embed.
func (s *PingService) Result(u *discordgo.User, roundTrip time.Duration) *discordgo.MessageEmbed {
	return s.embeds.Success(u, embeds.Options{
		Title: "Pong!",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Round trip", Value: fmt.Sprintf("`%d ms`", roundTrip.Milliseconds()), Inline: true},
			{Name: "WebSocket", Value: fmt.Sprintf("`%d ms`", s.api.Latency().Milliseconds()), Inline: true},
		},
	})
}
