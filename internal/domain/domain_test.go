package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePunishmentType(t *testing.T) {
	pt, err := ParsePunishmentType(" ban ")
	require.NoError(t, err)
	assert.Equal(t, PunishmentBan, pt)

	_, err = ParsePunishmentType("jail")
	assert.Error(t, err)
}

func TestPunishmentExpired(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	assert.False(t, (&Punishment{}).Expired(now))
	assert.True(t, (&Punishment{ExpiresAt: &past}).Expired(now))
	assert.True(t, (&Punishment{ExpiresAt: &now}).Expired(now))
	assert.False(t, (&Punishment{ExpiresAt: &future}).Expired(now))
}

func TestUserTotals(t *testing.T) {
	u := &User{
		Activity: []*UserActivity{
			{GuildID: "a", MessageCount: 3, VoiceTimeInSeconds: 60},
			{GuildID: "b", MessageCount: 4, VoiceTimeInSeconds: 30},
		},
		PunishmentsReceived: []*Punishment{{Active: true}, {Active: false}, {Active: true}},
	}
	assert.EqualValues(t, 7, u.TotalMessages())
	assert.Equal(t, 90*time.Second, u.TotalVoiceTime())
	assert.Equal(t, 2, u.ActivePunishments())
}
