package commands

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"modbot/internal/embeds"
	"modbot/internal/transport/discord/router"
)

// Sysinfo reports process health to bot developers.
func Sysinfo(d Deps) router.Command {
	return router.Command{
		Definition: &discordgo.ApplicationCommand{
			Name:        "sysinfo",
			Description: "Runtime information (developers only).",
		},
		DevOnly: true,
		Handle: func(ctx context.Context, req *router.Request) error {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)

			fields := []*discordgo.MessageEmbedField{
				{Name: "Go", Value: runtime.Version(), Inline: true},
				{Name: "Goroutines", Value: humanize.Comma(int64(runtime.NumGoroutine())), Inline: true},
				{Name: "Heap", Value: humanize.IBytes(ms.HeapAlloc), Inline: true},
				{Name: "GC cycles", Value: humanize.Comma(int64(ms.NumGC)), Inline: true},
				{Name: "Gateway latency", Value: fmt.Sprintf("`%d ms`", req.API.Latency().Milliseconds()), Inline: true},
			}
			if !d.StartedAt.IsZero() {
				fields = append(fields, &discordgo.MessageEmbedField{
					Name: "Started", Value: humanize.RelTime(d.StartedAt, time.Now(), "ago", ""), Inline: true,
				})
			}
			if d.Bus != nil {
				fields = append(fields, &discordgo.MessageEmbedField{
					Name: "Dropped events", Value: humanize.Comma(int64(d.Bus.Dropped())), Inline: true,
				})
			}
			return req.Reply(ctx, true, d.Embeds.Info(req.User, embeds.Options{Title: "System", Fields: fields}))
		},
	}
}
