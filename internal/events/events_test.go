package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/eventbus"
	"modbot/internal/transport/discord/discordtest"
	"modbot/pkg/logx"
)

type fakeRouter struct {
	mu      sync.Mutex
	handled []*discordgo.Interaction
	defs    []*discordgo.ApplicationCommand
}

func (f *fakeRouter) Handle(_ context.Context, i *discordgo.Interaction) {
	f.mu.Lock()
	f.handled = append(f.handled, i)
	f.mu.Unlock()
}

func (f *fakeRouter) Definitions() []*discordgo.ApplicationCommand { return f.defs }

type fakeUsers struct{ seen []string }

func (f *fakeUsers) OnMessage(_ context.Context, m *discordgo.Message) {
	f.seen = append(f.seen, m.ID)
}

func newTestHandlers(t *testing.T) (*Handlers, *discordtest.Fake, *fakeRouter, *fakeUsers, eventbus.Bus) {
	t.Helper()
	api := discordtest.New()
	r := &fakeRouter{defs: []*discordgo.ApplicationCommand{{Name: "ping"}, {Name: "purge"}}}
	users := &fakeUsers{}
	bus := eventbus.New()
	h := NewHandlers(Deps{API: api, Router: r, Users: users, Bus: bus, GuildID: "g1", Log: logx.Nop()})
	return h, api, r, users, bus
}

func TestLoader_Load(t *testing.T) {
	h, _, _, _, _ := newTestHandlers(t)
	reg := &discordtest.Handlers{}

	removers := NewLoader(logx.Nop()).Load(reg, h.Events())

	assert.Len(t, removers, 4)
	assert.Len(t, reg.OnceHandlers, 1)
	assert.Len(t, reg.OnHandlers, 3)
	assert.IsType(t, func(*discordgo.Session, *discordgo.Ready) {}, reg.OnceHandlers[0])
}

func TestLoader_Empty(t *testing.T) {
	reg := &discordtest.Handlers{}
	assert.Nil(t, NewLoader(logx.Nop()).Load(reg, nil))
	assert.Len(t, NewLoader(logx.Nop()).Load(reg, []Event{{Name: "broken"}}), 0)
}

func TestReady_RegistersCommands(t *testing.T) {
	h, api, _, _, _ := newTestHandlers(t)

	h.Ready(&discordgo.Ready{User: &discordgo.User{ID: "bot", Username: "modbot"}, Application: &discordgo.Application{ID: "app"}})

	require.Len(t, api.Overwrite, 2)
	assert.Equal(t, "ping", api.Overwrite[0].Name)
}

func TestReady_RegistrationFailureIsNotFatal(t *testing.T) {
	h, api, _, _, _ := newTestHandlers(t)
	api.OverwriteErr = errors.New("forbidden")

	assert.NotPanics(t, func() {
		h.Ready(&discordgo.Ready{User: &discordgo.User{ID: "bot"}})
	})
	assert.Empty(t, api.Overwrite)
}

func TestRegisterCommands_RequiresIDs(t *testing.T) {
	err := RegisterCommands(context.Background(), discordtest.New(), "", "g1", nil, logx.Nop())
	assert.Error(t, err)
}

func TestInteraction_Delegates(t *testing.T) {
	h, _, r, _, _ := newTestHandlers(t)
	i := discordtest.CommandInteraction("ping", "g1", "u1")
	h.Interaction(i)
	require.Len(t, r.handled, 1)
	assert.Same(t, i, r.handled[0])
}

func TestMessage(t *testing.T) {
	h, _, _, users, bus := newTestHandlers(t)
	ch, unsubscribe := bus.Subscribe(8, eventbus.MessageCreated)
	defer unsubscribe()

	h.Message(&discordgo.Message{ID: "bot", GuildID: "g1", Author: &discordgo.User{ID: "b", Bot: true}})
	h.Message(&discordgo.Message{ID: "dm", Author: &discordgo.User{ID: "u1"}})
	h.Message(&discordgo.Message{ID: "m1", GuildID: "g1", ChannelID: "c1", Author: &discordgo.User{ID: "u1", Username: "alice"}})

	assert.Equal(t, []string{"m1"}, users.seen)
	select {
	case e := <-ch:
		assert.Equal(t, eventbus.MessageData{GuildID: "g1", ChannelID: "c1", UserID: "u1", UserTag: "alice"}, e.Data)
	case <-time.After(time.Second):
		t.Fatal("no bus event")
	}
	assert.Empty(t, ch)
}

func TestVoiceState(t *testing.T) {
	h, _, _, _, bus := newTestHandlers(t)
	ch, unsubscribe := bus.Subscribe(8)
	defer unsubscribe()

	vs := func(channel, before string) *discordgo.VoiceStateUpdate {
		u := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{GuildID: "g1", UserID: "u1", ChannelID: channel}}
		if before != "" {
			u.BeforeUpdate = &discordgo.VoiceState{ChannelID: before}
		}
		return u
	}

	h.VoiceState(vs("v1", ""))   // join
	h.VoiceState(vs("v1", "v1")) // mute toggle
	h.VoiceState(vs("v2", "v1")) // move
	h.VoiceState(vs("", "v2"))   // leave

	var got []string
	for len(ch) > 0 {
		e := <-ch
		got = append(got, e.Type+":"+e.Data.(eventbus.VoiceData).ChannelID)
	}
	assert.Equal(t, []string{
		"voice.joined:v1",
		"voice.left:v1", "voice.joined:v2",
		"voice.left:v2",
	}, got)
}
