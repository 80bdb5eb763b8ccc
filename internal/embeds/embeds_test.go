package embeds

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Templates(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	f := NewFactory().WithClock(func() time.Time { return at })
	u := &discordgo.User{ID: "42", Username: "mod"}

	cases := []struct {
		name  string
		build func(*discordgo.User, Options) *discordgo.MessageEmbed
		color int
		desc  string
	}{
		{"success", f.Success, ColorSuccess, "✅ done"},
		{"error", f.Error, ColorError, "❌ done"},
		{"info", f.Info, ColorInfo, "ℹ️ done"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := tc.build(u, Options{Description: "done"})
			assert.Equal(t, tc.color, e.Color)
			assert.Equal(t, tc.desc, e.Description)
			assert.Equal(t, "2024-05-06T07:08:09Z", e.Timestamp)
			require.NotNil(t, e.Footer)
			assert.Equal(t, "ID: 42", e.Footer.Text)
			assert.NotEmpty(t, e.Footer.IconURL)
		})
	}
}

func TestFactory_EmptyDescriptionIsTrimmed(t *testing.T) {
	t.Parallel()

	e := NewFactory().Success(&discordgo.User{ID: "1"}, Options{Title: "Pong!"})
	assert.Equal(t, "✅", e.Description)
	assert.Equal(t, "Pong!", e.Title)
}

func TestFactory_Overrides(t *testing.T) {
	t.Parallel()

	footer := &discordgo.MessageEmbedFooter{Text: "custom"}
	e := NewFactory().Info(&discordgo.User{ID: "1"}, Options{
		Footer:    footer,
		Thumbnail: "https://example.com/t.png",
		Image:     "https://example.com/i.png",
		Fields:    []*discordgo.MessageEmbedField{{Name: "a", Value: "b", Inline: true}},
	})
	assert.Same(t, footer, e.Footer)
	assert.Equal(t, "https://example.com/t.png", e.Thumbnail.URL)
	assert.Equal(t, "https://example.com/i.png", e.Image.URL)
	assert.Len(t, e.Fields, 1)
}
