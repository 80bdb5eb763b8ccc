package services

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/domain"
	"modbot/internal/transport/discord/discordtest"
	"modbot/pkg/logx"
)

type fakeUsers struct {
	upserts [][2]string
	err     error
}

func (f *fakeUsers) Upsert(_ context.Context, discordID, tag string) (*domain.User, error) {
	f.upserts = append(f.upserts, [2]string{discordID, tag})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.User{DiscordID: discordID, Tag: tag}, nil
}

func guildMessage() *discordgo.Message {
	return &discordgo.Message{
		ID:        "m1",
		GuildID:   "g1",
		ChannelID: "c1",
		Author:    &discordgo.User{ID: "u1", Username: "alice"},
		Member:    &discordgo.Member{Nick: "Al", Roles: []string{"r1", "g1", "r2", "r3"}},
	}
}

func TestUserService_Details(t *testing.T) {
	api := discordtest.New()
	api.Channels["c1"] = "general"
	api.Roles["r1"] = "Moderator"
	api.Roles["r2"] = "@everyone"

	s := NewUserService(api, nil, logx.Nop())
	d, ok := s.Details(guildMessage())
	require.True(t, ok)
	assert.Equal(t, UserDetails{
		ID:       "u1",
		Tag:      "alice",
		Nickname: "Al",
		Channel:  "general",
		Roles:    []string{"Moderator"},
	}, d)

	dm := guildMessage()
	dm.GuildID = ""
	dm.Member = nil
	_, ok = s.Details(dm)
	assert.False(t, ok)
}

func TestUserService_OnMessageUpserts(t *testing.T) {
	users := &fakeUsers{}
	s := NewUserService(discordtest.New(), users, logx.Nop())

	s.OnMessage(context.Background(), guildMessage())
	assert.Equal(t, [][2]string{{"u1", "alice"}}, users.upserts)

	dm := guildMessage()
	dm.Member = nil
	s.OnMessage(context.Background(), dm)
	assert.Len(t, users.upserts, 1)

	users.err = errors.New("db down")
	assert.NotPanics(t, func() { s.OnMessage(context.Background(), guildMessage()) })
}
