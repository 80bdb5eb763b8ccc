// Package embeds builds the bot's standard success, error and info embeds.
package embeds

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	ColorSuccess = 0x68bb82
	ColorError   = 0xcf6b6d
	ColorInfo    = 0x7a81c7
)

type Options struct {
	Title       string
	Description string
	Fields      []*discordgo.MessageEmbedField
	Author      *discordgo.MessageEmbedAuthor
	Thumbnail   string
	Image       string
	// Footer replaces the default "ID: <user id>" footer.
	Footer *discordgo.MessageEmbedFooter
}

type Factory struct {
	now func() time.Time
}

func NewFactory() *Factory { return &Factory{now: time.Now} }

// WithClock returns a copy of f that stamps embeds with now.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	return &Factory{now: now}
}

func (f *Factory) Success(u *discordgo.User, o Options) *discordgo.MessageEmbed {
	return f.build(u, ColorSuccess, "✅", o)
}

func (f *Factory) Error(u *discordgo.User, o Options) *discordgo.MessageEmbed {
	return f.build(u, ColorError, "❌", o)
}

func (f *Factory) Info(u *discordgo.User, o Options) *discordgo.MessageEmbed {
	return f.build(u, ColorInfo, "ℹ️", o)
}

func (f *Factory) build(u *discordgo.User, color int, icon string, o Options) *discordgo.MessageEmbed {
	now := time.Now
	if f != nil && f.now != nil {
		now = f.now
	}
	e := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Color:       color,
		Title:       o.Title,
		Description: strings.TrimSpace(icon + " " + o.Description),
		Fields:      o.Fields,
		Author:      o.Author,
		Footer:      o.Footer,
		Timestamp:   now().UTC().Format(time.RFC3339),
	}
	if o.Thumbnail != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: o.Thumbnail}
	}
	if o.Image != "" {
		e.Image = &discordgo.MessageEmbedImage{URL: o.Image}
	}
	if e.Footer == nil && u != nil {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "ID: " + u.ID, IconURL: u.AvatarURL("")}
	}
	return e
}
