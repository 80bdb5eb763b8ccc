// Package commands defines the bot's slash commands.
package commands

import (
	"context"
	"time"

	"modbot/internal/domain"
	"modbot/internal/embeds"
	"modbot/internal/eventbus"
	"modbot/internal/services"
	"modbot/internal/transport/discord/router"
	"modbot/pkg/logx"
)

// ProfileStore loads a user with activity and punishment history.
type ProfileStore interface {
	Full(ctx context.Context, discordID string) (*domain.User, error)
}

type Deps struct {
	Log        *logx.Logger
	Embeds     *embeds.Factory
	Ping       *services.PingService
	Chat       *services.ChatService
	Moderation *services.ModerationService
	Profiles   ProfileStore
	// Bus and StartedAt feed /sysinfo.
	Bus       eventbus.Bus
	StartedAt time.Time
}

// All returns every command whose dependencies are present.
func All(d Deps) []router.Command {
	if d.Embeds == nil {
		d.Embeds = embeds.NewFactory()
	}
	var out []router.Command
	if d.Ping != nil {
		out = append(out, Ping(d))
	}
	if d.Chat != nil {
		out = append(out, Purge(d))
	}
	if d.Moderation != nil {
		out = append(out, Warn(d))
	}
	if d.Profiles != nil {
		out = append(out, Profile(d))
	}
	out = append(out, Sysinfo(d))
	return out
}

func int64Ptr(v int64) *int64 { return &v }

func float64Ptr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
