// Package events wires Discord gateway events to the router, services and
// the event bus.
package events

import (
	"fmt"

	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

// Event binds a discordgo handler, e.g.
// func(*discordgo.Session, *discordgo.MessageCreate), to the gateway.
type Event struct {
	Name    string
	Once    bool
	Handler any
}

type Loader struct {
	log *logx.Logger
}

func NewLoader(log *logx.Logger) *Loader { return &Loader{log: log} }

// Load registers events and returns functions that detach them.
func (l *Loader) Load(reg discord.Registrar, events []Event) []func() {
	l.log.Info("loading events")
	if len(events) == 0 {
		l.log.Warn("no events to load")
		return nil
	}
	removers := make([]func(), 0, len(events))
	for _, e := range events {
		if e.Handler == nil {
			l.log.Warn("event without handler skipped", logx.Fields{"event": e.Name})
			continue
		}
		if e.Once {
			removers = append(removers, reg.Once(e.Handler))
		} else {
			removers = append(removers, reg.On(e.Handler))
		}
		l.log.Debug(fmt.Sprintf("event %s registered", e.Name), logx.Fields{"once": e.Once})
	}
	l.log.Info(fmt.Sprintf("loaded %d event handlers", len(removers)))
	return removers
}
