package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/transport/discord/discordtest"
	"modbot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func replyHandler(text string) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		return req.Respond(ctx, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: text},
		})
	}
}

func command(name string, h HandlerFunc) Command {
	return Command{
		Definition: &discordgo.ApplicationCommand{Name: name, Description: name},
		Handle:     h,
	}
}

func newTestManager(t *testing.T, p Policy, opts ...Option) (*Manager, *discordtest.Fake) {
	t.Helper()
	api := discordtest.New()
	return New(api, logx.Nop(), p, opts...), api
}

func TestHandle_UnknownCommand(t *testing.T) {
	m, api := newTestManager(t, Policy{})

	m.Handle(context.Background(), discordtest.CommandInteraction("nope", "g1", "u1"))

	resp := api.LastResponse()
	require.NotNil(t, resp)
	assert.Equal(t, MsgUnknownCommand, resp.Data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, resp.Data.Flags)
}

func TestHandle_IgnoresNonCommandInteractions(t *testing.T) {
	m, api := newTestManager(t, Policy{})
	i := discordtest.CommandInteraction("ping", "g1", "u1")
	i.Type = discordgo.InteractionMessageComponent
	i.Data = discordgo.MessageComponentInteractionData{CustomID: "x"}

	m.Handle(context.Background(), i)
	m.Handle(context.Background(), nil)

	assert.Zero(t, api.ResponseCount())
}

func TestHandle_RunsCommand(t *testing.T) {
	m, api := newTestManager(t, Policy{})
	var got *Request
	require.NoError(t, m.Register(command("ping", func(ctx context.Context, req *Request) error {
		got = req
		return replyHandler("pong")(ctx, req)
	})))

	m.Handle(context.Background(), discordtest.CommandInteraction("Ping", "g1", "u1"))

	require.NotNil(t, got)
	assert.Len(t, got.ID, 26)
	assert.Equal(t, "u1", got.User.ID)
	assert.True(t, got.Acknowledged())
	assert.Equal(t, "pong", api.LastResponse().Data.Content)
}

func TestHandle_Disabled(t *testing.T) {
	called := false
	m, api := newTestManager(t, Policy{Disabled: []string{" PING "}})
	require.NoError(t, m.Register(command("ping", func(context.Context, *Request) error {
		called = true
		return nil
	})))

	m.Handle(context.Background(), discordtest.CommandInteraction("ping", "g1", "u1"))

	assert.False(t, called)
	assert.Equal(t, MsgDisabled, api.LastResponse().Data.Content)
}

func TestHandle_DevOnly(t *testing.T) {
	m, api := newTestManager(t, Policy{DevIDs: []string{"dev"}})
	cmd := command("reload", replyHandler("ok"))
	cmd.DevOnly = true
	require.NoError(t, m.Register(cmd))

	m.Handle(context.Background(), discordtest.CommandInteraction("reload", "g1", "u1"))
	assert.Equal(t, MsgDevOnly, api.LastResponse().Data.Content)

	m.Handle(context.Background(), discordtest.CommandInteraction("reload", "g1", "dev"))
	assert.Equal(t, "ok", api.LastResponse().Data.Content)
}

func TestHandle_Cooldown(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, api := newTestManager(t, Policy{}, WithClock(clock.now))
	cmd := command("ping", replyHandler("pong"))
	cmd.Cooldown = 5 * time.Second
	require.NoError(t, m.Register(cmd))

	ctx := context.Background()
	m.Handle(ctx, discordtest.CommandInteraction("ping", "g1", "u1"))
	assert.Equal(t, "pong", api.LastResponse().Data.Content)

	clock.advance(2 * time.Second)
	m.Handle(ctx, discordtest.CommandInteraction("ping", "g1", "u1"))
	assert.Equal(t, "Please wait 3s before using /ping again.", api.LastResponse().Data.Content)

	// Other users are unaffected.
	m.Handle(ctx, discordtest.CommandInteraction("ping", "g1", "u2"))
	assert.Equal(t, "pong", api.LastResponse().Data.Content)

	clock.advance(3*time.Second + time.Millisecond)
	m.Handle(ctx, discordtest.CommandInteraction("ping", "g1", "u1"))
	assert.Equal(t, "pong", api.LastResponse().Data.Content)
}

func TestHandle_PolicyCooldownOverride(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	m, api := newTestManager(t, Policy{Cooldowns: map[string]time.Duration{"ping": 0}}, WithClock(clock.now))
	cmd := command("ping", replyHandler("pong"))
	cmd.Cooldown = time.Minute
	require.NoError(t, m.Register(cmd))

	for range 3 {
		m.Handle(context.Background(), discordtest.CommandInteraction("ping", "g1", "u1"))
		assert.Equal(t, "pong", api.LastResponse().Data.Content)
	}
}

func TestHandle_ErrorRepliesGeneric(t *testing.T) {
	m, api := newTestManager(t, Policy{})
	require.NoError(t, m.Register(command("boom", func(context.Context, *Request) error {
		return errors.New("db down")
	})))

	m.Handle(context.Background(), discordtest.CommandInteraction("boom", "g1", "u1"))

	assert.Equal(t, MsgCommandFailed, api.LastResponse().Data.Content)
	assert.Empty(t, api.Followups)
}

func TestHandle_PanicAfterDeferUsesFollowup(t *testing.T) {
	m, api := newTestManager(t, Policy{})
	require.NoError(t, m.Register(command("boom", func(ctx context.Context, req *Request) error {
		if err := req.Defer(ctx, false); err != nil {
			return err
		}
		panic("kaboom")
	})))

	require.NotPanics(t, func() {
		m.Handle(context.Background(), discordtest.CommandInteraction("boom", "g1", "u1"))
	})

	assert.Equal(t, 1, api.ResponseCount())
	require.Len(t, api.Followups, 1)
	assert.Equal(t, MsgCommandFailed, api.Followups[0].Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, api.Followups[0].Flags)
}

func TestHandle_TimeoutReachesHandler(t *testing.T) {
	m, _ := newTestManager(t, Policy{Timeout: 20 * time.Millisecond})
	var deadline bool
	require.NoError(t, m.Register(command("slow", func(ctx context.Context, _ *Request) error {
		_, deadline = ctx.Deadline()
		return nil
	})))

	m.Handle(context.Background(), discordtest.CommandInteraction("slow", "g1", "u1"))
	assert.True(t, deadline)
}

func TestSetPolicy(t *testing.T) {
	m, api := newTestManager(t, Policy{})
	require.NoError(t, m.Register(command("ping", replyHandler("pong"))))

	m.SetPolicy(Policy{Disabled: []string{"ping"}})
	m.Handle(context.Background(), discordtest.CommandInteraction("ping", "g1", "u1"))
	assert.Equal(t, MsgDisabled, api.LastResponse().Data.Content)

	m.SetPolicy(Policy{})
	m.Handle(context.Background(), discordtest.CommandInteraction("ping", "g1", "u1"))
	assert.Equal(t, "pong", api.LastResponse().Data.Content)
}

func TestRegister(t *testing.T) {
	m, _ := newTestManager(t, Policy{})
	require.NoError(t, m.Register(command("b", replyHandler("")), command("a", replyHandler(""))))

	assert.Error(t, m.Register(command("A", replyHandler(""))))
	assert.Error(t, m.Register(Command{Definition: &discordgo.ApplicationCommand{Name: "c"}}))
	assert.Error(t, m.Register(Command{Handle: replyHandler("")}))

	defs := m.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Name)
	assert.Equal(t, "b", defs[1].Name)
	assert.Equal(t, 2, m.Len())
}

func TestRequestOptions(t *testing.T) {
	i := discordtest.CommandInteraction("warn", "g1", "u1",
		&discordgo.ApplicationCommandInteractionDataOption{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: "u9"},
		&discordgo.ApplicationCommandInteractionDataOption{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(12)},
		&discordgo.ApplicationCommandInteractionDataOption{Name: "reason", Type: discordgo.ApplicationCommandOptionString, Value: "spam"},
	)
	data := i.ApplicationCommandData()
	data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{
		Users: map[string]*discordgo.User{"u9": {ID: "u9", Username: "target"}},
	}
	req := &Request{Interaction: i, Data: data}

	assert.Equal(t, "target", req.UserOption("user").Username)
	assert.Nil(t, req.UserOption("missing"))
	assert.Equal(t, int64(12), req.IntOption("amount", 1))
	assert.Equal(t, int64(1), req.IntOption("missing", 1))
	assert.Equal(t, "spam", req.StringOption("reason", ""))
	assert.Equal(t, "none", req.StringOption("missing", "none"))
	assert.True(t, req.InGuild())
}
