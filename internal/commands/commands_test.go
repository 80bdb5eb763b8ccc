package commands

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/embeds"
	"modbot/internal/eventbus"
	"modbot/internal/services"
	"modbot/internal/storage"
	"modbot/internal/transport/discord/discordtest"
	"modbot/internal/transport/discord/router"
	"modbot/pkg/logx"
)

type harness struct {
	api   *discordtest.Fake
	store *storage.Storage
	mgr   *router.Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := storage.Open(context.Background(), "file:"+filepath.Join(t.TempDir(), "bot.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	api := discordtest.New()
	log := logx.Nop()
	f := embeds.NewFactory()
	cmds := All(Deps{
		Log:        log,
		Embeds:     f,
		Ping:       services.NewPingService(api, f),
		Chat:       services.NewChatService(api, log),
		Moderation: services.NewModerationService(store.Punishments, "", log),
		Profiles:   store.Users,
		Bus:        eventbus.New(),
		StartedAt:  time.Now(),
	})
	mgr := router.New(api, log, router.Policy{DevIDs: []string{"dev"}})
	require.NoError(t, mgr.Register(cmds...))
	return &harness{api: api, store: store, mgr: mgr}
}

func userOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: id}
}

func TestAll_Definitions(t *testing.T) {
	h := newHarness(t)
	var names []string
	for _, d := range h.mgr.Definitions() {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Description)
	}
	assert.Equal(t, []string{"ping", "profile", "purge", "sysinfo", "warn"}, names)

	// only the always-available command without dependencies
	assert.Len(t, All(Deps{}), 1)
}

func TestPing(t *testing.T) {
	h := newHarness(t)
	h.api.Ping = 35 * time.Millisecond

	h.mgr.Handle(context.Background(), discordtest.CommandInteraction("ping", "g1", "u1"))

	first := h.api.LastResponse()
	require.NotNil(t, first)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, first.Data.Flags)
	require.Len(t, first.Data.Embeds, 1)
	assert.Equal(t, embeds.ColorInfo, first.Data.Embeds[0].Color)

	edit := h.api.LastEdit()
	require.NotNil(t, edit)
	require.Len(t, *edit.Embeds, 1)
	result := (*edit.Embeds)[0]
	assert.Equal(t, "Pong!", result.Title)
	assert.Equal(t, "`35 ms`", result.Fields[1].Value)
}

func TestPurge(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	for _, id := range []string{"m1", "m2", "m3"} {
		h.api.Messages["chan"] = append(h.api.Messages["chan"], &discordgo.Message{
			ID: id, Author: &discordgo.User{ID: "u9"}, Timestamp: now,
		})
	}
	i := discordtest.CommandInteraction("purge", "g1", "u1",
		&discordgo.ApplicationCommandInteractionDataOption{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(5)})

	h.mgr.Handle(context.Background(), i)

	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, h.api.LastResponse().Type)
	require.Len(t, h.api.Bulk, 1)
	assert.Equal(t, []string{"m1", "m2", "m3"}, h.api.Bulk[0])

	edit := h.api.LastEdit()
	require.NotNil(t, edit)
	desc := (*edit.Embeds)[0].Description
	assert.True(t, strings.HasPrefix(desc, "✅ Deleted **3** messages."), desc)
	assert.Contains(t, desc, "older than 14 days")
}

func TestPurge_DM(t *testing.T) {
	h := newHarness(t)
	i := discordtest.CommandInteraction("purge", "", "u1",
		&discordgo.ApplicationCommandInteractionDataOption{Name: "amount", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(5)})
	i.Member = nil
	i.User = &discordgo.User{ID: "u1"}

	h.mgr.Handle(context.Background(), i)

	edit := h.api.LastEdit()
	require.NotNil(t, edit)
	assert.Equal(t, embeds.ColorError, (*edit.Embeds)[0].Color)
}

func TestWarnAndProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	warn := discordtest.CommandInteraction("warn", "g1", "mod", userOpt("user", "u2"),
		&discordgo.ApplicationCommandInteractionDataOption{Name: "reason", Type: discordgo.ApplicationCommandOptionString, Value: "spam"})
	h.mgr.Handle(ctx, warn)

	resp := h.api.LastResponse()
	require.Len(t, resp.Data.Embeds, 1)
	assert.Contains(t, resp.Data.Embeds[0].Description, "Case **#1**")
	assert.Zero(t, resp.Data.Flags)

	h.mgr.Handle(ctx, warn)
	assert.Contains(t, h.api.LastResponse().Data.Embeds[0].Description, "Case **#2**")

	require.NoError(t, h.store.Activity.AddMessages(ctx, "u2", "g1", 1234))

	h.mgr.Handle(ctx, discordtest.CommandInteraction("profile", "g1", "someone", userOpt("user", "u2")))
	fields := h.api.LastResponse().Data.Embeds[0].Fields
	require.NotEmpty(t, fields)
	assert.Equal(t, "1,234", fields[0].Value)
	assert.Equal(t, "2 received (2 active)", fields[3].Value)
}

func TestWarn_Self(t *testing.T) {
	h := newHarness(t)
	h.mgr.Handle(context.Background(), discordtest.CommandInteraction("warn", "g1", "u1", userOpt("user", "u1")))
	resp := h.api.LastResponse()
	assert.Equal(t, embeds.ColorError, resp.Data.Embeds[0].Color)
}

func TestProfile_Unknown(t *testing.T) {
	h := newHarness(t)
	h.mgr.Handle(context.Background(), discordtest.CommandInteraction("profile", "g1", "nobody"))
	assert.Contains(t, h.api.LastResponse().Data.Embeds[0].Description, "No activity recorded")
}

func TestSysinfo_DevOnly(t *testing.T) {
	h := newHarness(t)
	h.mgr.Handle(context.Background(), discordtest.CommandInteraction("sysinfo", "g1", "u1"))
	assert.Equal(t, router.MsgDevOnly, h.api.LastResponse().Data.Content)

	h.mgr.Handle(context.Background(), discordtest.CommandInteraction("sysinfo", "g1", "dev"))
	resp := h.api.LastResponse()
	require.Len(t, resp.Data.Embeds, 1)
	assert.Equal(t, "System", resp.Data.Embeds[0].Title)
}

func TestFormatVoice(t *testing.T) {
	assert.Equal(t, "none", formatVoice(30*time.Second))
	assert.Equal(t, "5m", formatVoice(5*time.Minute))
	assert.Equal(t, "2h 3m", formatVoice(2*time.Hour+3*time.Minute))
}
