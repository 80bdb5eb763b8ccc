package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modbot/internal/domain"
)

type PunishmentStore struct{ s *Storage }

// NewPunishment is the input to Create. Parties are Discord ids; missing
// users are created on the fly.
type NewPunishment struct {
	GuildID            string
	Type               domain.PunishmentType
	Reason             *string
	ExpiresAt          *time.Time
	TargetDiscordID    string
	TargetTag          string
	ModeratorDiscordID string
	ModeratorTag       string
}

// case ids are allocated as max+1 per guild; concurrent writers may collide
// on the unique key, in which case allocation is retried.
const caseIDAttempts = 5

// Create stores an active punishment with the next case id for its guild.
func (p *PunishmentStore) Create(ctx context.Context, in NewPunishment) (*domain.Punishment, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("create punishment: invalid type %q", in.Type)
	}
	var (
		id  string
		err error
	)
	for attempt := 0; attempt < caseIDAttempts; attempt++ {
		id, err = p.create(ctx, in)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create punishment: %w", err)
	}
	return p.ByID(ctx, id)
}

func (p *PunishmentStore) create(ctx context.Context, in NewPunishment) (string, error) {
	id := uuid.NewString()
	err := p.s.inTx(ctx, func(tx *sqlx.Tx) error {
		targetID, err := p.s.Users.ensure(ctx, tx, in.TargetDiscordID, in.TargetTag)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		modID, err := p.s.Users.ensure(ctx, tx, in.ModeratorDiscordID, in.ModeratorTag)
		if err != nil {
			return fmt.Errorf("moderator: %w", err)
		}

		var next int64
		if err := sqlx.GetContext(ctx, tx, &next, p.s.q(
			`SELECT COALESCE(MAX(case_id), 0) + 1 FROM punishments WHERE guild_id = ?`), in.GuildID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, p.s.q(
			`INSERT INTO punishments (id, case_id, guild_id, type, reason, expires_at, active, target_id, moderator_id, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			id, next, in.GuildID, string(in.Type), nullStr(in.Reason), nullTime(in.ExpiresAt), true, targetID, modID, now())
		return err
	})
	return id, err
}

func (p *PunishmentStore) ByID(ctx context.Context, id string) (*domain.Punishment, error) {
	out, err := p.query(ctx, `WHERE p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// ByCase finds a punishment by its guild-scoped case number.
func (p *PunishmentStore) ByCase(ctx context.Context, guildID string, caseID int64) (*domain.Punishment, error) {
	out, err := p.query(ctx, `WHERE p.guild_id = ? AND p.case_id = ?`, guildID, caseID)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// ForTarget lists the punishments a user received in a guild, oldest first.
func (p *PunishmentStore) ForTarget(ctx context.Context, guildID, targetDiscordID string) ([]*domain.Punishment, error) {
	return p.query(ctx, `WHERE p.guild_id = ? AND t.discord_id = ? ORDER BY p.case_id`, guildID, targetDiscordID)
}

func (p *PunishmentStore) query(ctx context.Context, where string, args ...any) ([]*domain.Punishment, error) {
	var rows []punishmentJoinRow
	if err := sqlx.SelectContext(ctx, p.s.db, &rows, p.s.q(punishmentJoinSelect+"\n"+where), args...); err != nil {
		return nil, err
	}
	out := make([]*domain.Punishment, 0, len(rows))
	for _, r := range rows {
		out = append(out, punishmentJoinToDomain(r))
	}
	return out, nil
}

// Deactivate marks a punishment inactive.
func (p *PunishmentStore) Deactivate(ctx context.Context, id string) error {
	res, err := p.s.db.ExecContext(ctx, p.s.q(`UPDATE punishments SET active = ? WHERE id = ?`), false, id)
	if err != nil {
		return fmt.Errorf("deactivate punishment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpireDue deactivates active punishments whose expiry is at or before
// at and returns how many were changed.
func (p *PunishmentStore) ExpireDue(ctx context.Context, at time.Time) (int64, error) {
	res, err := p.s.db.ExecContext(ctx, p.s.q(
		`UPDATE punishments SET active = ? WHERE active = ? AND expires_at IS NOT NULL AND expires_at <= ?`),
		false, true, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire punishments: %w", err)
	}
	return res.RowsAffected()
}
