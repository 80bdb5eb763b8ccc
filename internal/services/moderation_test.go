package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modbot/internal/domain"
	"modbot/internal/storage"
	"modbot/pkg/logx"
)

type fakePunishments struct {
	mu      sync.Mutex
	created []storage.NewPunishment
	expired []time.Time
	next    int64
}

func (f *fakePunishments) Create(_ context.Context, in storage.NewPunishment) (*domain.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	f.next++
	return &domain.Punishment{
		ID:        "p",
		CaseID:    f.next,
		GuildID:   in.GuildID,
		Type:      in.Type,
		Reason:    in.Reason,
		ExpiresAt: in.ExpiresAt,
		Active:    true,
	}, nil
}

func (f *fakePunishments) ForTarget(_ context.Context, guildID, target string) ([]*domain.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Punishment
	for i, in := range f.created {
		if in.GuildID == guildID && in.TargetDiscordID == target {
			out = append(out, &domain.Punishment{CaseID: int64(i + 1), Type: in.Type})
		}
	}
	return out, nil
}

func (f *fakePunishments) ExpireDue(_ context.Context, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, at)
	return 2, nil
}

func (f *fakePunishments) sweeps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.expired)
}

var (
	testTarget    = &discordgo.User{ID: "t1", Username: "target"}
	testModerator = &discordgo.User{ID: "m1", Username: "mod", Discriminator: "0042"}
)

func TestModeration_Warn(t *testing.T) {
	repo := &fakePunishments{}
	s := NewModerationService(repo, "", logx.Nop())

	p, err := s.Warn(context.Background(), "g1", testTarget, testModerator, "  spam ")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.CaseID)
	assert.Equal(t, domain.PunishmentWarn, p.Type)

	in := repo.created[0]
	require.NotNil(t, in.Reason)
	assert.Equal(t, "spam", *in.Reason)
	assert.Nil(t, in.ExpiresAt)
	assert.Equal(t, "mod#0042", in.ModeratorTag)
	assert.Equal(t, "t1", in.TargetDiscordID)

	p, err = s.Warn(context.Background(), "g1", testTarget, testModerator, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.CaseID)
	assert.Nil(t, repo.created[1].Reason)

	cases, err := s.Cases(context.Background(), "g1", "t1")
	require.NoError(t, err)
	assert.Len(t, cases, 2)
}

func TestModeration_IssueWithDuration(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakePunishments{}
	s := NewModerationService(repo, "", logx.Nop(), WithModerationClock(func() time.Time { return now }))

	p, err := s.Issue(context.Background(), "g1", domain.PunishmentMute, testTarget, testModerator, "", time.Hour)
	require.NoError(t, err)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, now.Add(time.Hour), *p.ExpiresAt)

	_, err = s.Issue(context.Background(), "", domain.PunishmentMute, testTarget, testModerator, "", 0)
	assert.Error(t, err)
	_, err = s.Issue(context.Background(), "g1", domain.PunishmentMute, nil, testModerator, "", 0)
	assert.Error(t, err)
}

func TestModeration_ExpireDue(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &fakePunishments{}
	s := NewModerationService(repo, "", logx.Nop(), WithModerationClock(func() time.Time { return now }))

	n, err := s.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []time.Time{now}, repo.expired)
}

func TestModeration_CronSweep(t *testing.T) {
	repo := &fakePunishments{}
	s := NewModerationService(repo, "@every 1s", logx.Nop())
	require.NoError(t, s.Init(context.Background()))
	assert.Error(t, s.Init(context.Background()))

	require.Eventually(t, func() bool { return repo.sweeps() > 0 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestModeration_BadSchedule(t *testing.T) {
	s := NewModerationService(&fakePunishments{}, "not a schedule", logx.Nop())
	assert.Error(t, s.Init(context.Background()))
}
