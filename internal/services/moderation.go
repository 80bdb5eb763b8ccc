package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"

	"modbot/internal/domain"
	"modbot/internal/storage"
	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

type PunishmentRepository interface {
	Create(ctx context.Context, in storage.NewPunishment) (*domain.Punishment, error)
	ForTarget(ctx context.Context, guildID, targetDiscordID string) ([]*domain.Punishment, error)
	ExpireDue(ctx context.Context, at time.Time) (int64, error)
}

// ModerationService records punishments and expires timed ones on a cron
// schedule.
type ModerationService struct {
	repo     PunishmentRepository
	log      *logx.Logger
	schedule string
	now      func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

type ModerationOption func(*ModerationService)

func WithModerationClock(now func() time.Time) ModerationOption {
	return func(s *ModerationService) { s.now = now }
}

// NewModerationService sweeps expired punishments on schedule, a standard
// cron spec or descriptor such as "@every 1m".
func NewModerationService(repo PunishmentRepository, schedule string, log *logx.Logger, opts ...ModerationOption) *ModerationService {
	if strings.TrimSpace(schedule) == "" {
		schedule = "@every 1m"
	}
	s := &ModerationService{repo: repo, log: log, schedule: schedule, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *ModerationService) Name() string { return "moderation" }

// Init starts the expiry sweep.
func (s *ModerationService) Init(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("moderation service already running")
	}
	cl := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("expiry schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Shutdown stops the sweep and waits for a running one to finish.
func (s *ModerationService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ModerationService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := s.ExpireDue(ctx); err != nil {
		s.log.Error(err)
	}
}

// ExpireDue deactivates punishments whose expiry has passed.
func (s *ModerationService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(fmt.Sprintf("expired %d punishments", n))
	}
	return n, nil
}

// Issue records a punishment. A positive duration sets its expiry.
func (s *ModerationService) Issue(ctx context.Context, guildID string, typ domain.PunishmentType, target, moderator *discordgo.User, reason string, duration time.Duration) (*domain.Punishment, error) {
	if target == nil || moderator == nil {
		return nil, errors.New("issue punishment: target and moderator are required")
	}
	if guildID == "" {
		return nil, errors.New("issue punishment: guild id is empty")
	}
	in := storage.NewPunishment{
		GuildID:            guildID,
		Type:               typ,
		TargetDiscordID:    target.ID,
		TargetTag:          discord.UserTag(target),
		ModeratorDiscordID: moderator.ID,
		ModeratorTag:       discord.UserTag(moderator),
	}
	if r := strings.TrimSpace(reason); r != "" {
		in.Reason = &r
	}
	if duration > 0 {
		exp := s.now().Add(duration).UTC()
		in.ExpiresAt = &exp
	}
	p, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	s.log.Info(fmt.Sprintf("case #%d: %s issued to %s", p.CaseID, p.Type, in.TargetTag), logx.Fields{
		"guild_id":     guildID,
		"case_id":      p.CaseID,
		"target_id":    target.ID,
		"moderator_id": moderator.ID,
	})
	return p, nil
}

// Warn records a WARN punishment.
func (s *ModerationService) Warn(ctx context.Context, guildID string, target, moderator *discordgo.User, reason string) (*domain.Punishment, error) {
	return s.Issue(ctx, guildID, domain.PunishmentWarn, target, moderator, reason, 0)
}

// Cases lists a user's punishments in a guild, oldest first.
func (s *ModerationService) Cases(ctx context.Context, guildID, targetID string) ([]*domain.Punishment, error) {
	return s.repo.ForTarget(ctx, guildID, targetID)
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log *logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(fmt.Errorf("cron: %s: %w", msg, err), kvFields(keysAndValues))
}

func kvFields(kv []any) logx.Fields {
	f := logx.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
