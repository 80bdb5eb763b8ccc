package services

import (
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/embeds"
	"modbot/internal/transport/discord/discordtest"
)

func TestRoundTrip(t *testing.T) {
	// snowflake for 2024-01-01T00:00:00Z
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := created.UnixMilli() - 1420070400000
	id := strconv.FormatInt(ms<<22, 10)

	got := RoundTrip(id, &discordgo.Message{Timestamp: created.Add(150 * time.Millisecond)})
	assert.Equal(t, 150*time.Millisecond, got)

	assert.Zero(t, RoundTrip("not-a-snowflake", &discordgo.Message{Timestamp: created}))
	assert.Zero(t, RoundTrip(id, nil))
}

func TestPingService_Result(t *testing.T) {
	api := discordtest.New()
	api.Ping = 42 * time.Millisecond
	s := NewPingService(api, embeds.NewFactory())

	e := s.Result(&discordgo.User{ID: "1"}, 120*time.Millisecond)
	assert.Equal(t, "Pong!", e.Title)
	assert.Equal(t, embeds.ColorSuccess, e.Color)
	require.Len(t, e.Fields, 2)
	assert.Equal(t, "`120 ms`", e.Fields[0].Value)
	assert.Equal(t, "`42 ms`", e.Fields[1].Value)

	assert.Equal(t, embeds.ColorInfo, s.Pending(&discordgo.User{ID: "1"}).Color)
}
