package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modbot/internal/domain"
)

type UserStore struct{ s *Storage }

// Upsert creates the user or refreshes its tag.
func (u *UserStore) Upsert(ctx context.Context, discordID, tag string) (*domain.User, error) {
	var out *domain.User
	err := u.s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := u.ensure(ctx, tx, discordID, tag); err != nil {
			return err
		}
		usr, err := u.byDiscordID(ctx, tx, discordID)
		out = usr
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user %s: %w", discordID, err)
	}
	return out, nil
}

// ensure makes sure a user row exists and returns its id. An empty tag
// never overwrites a known one.
func (u *UserStore) ensure(ctx context.Context, q sqlx.ExtContext, discordID, tag string) (string, error) {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return "", fmt.Errorf("discord id is empty")
	}
	ts := now()
	insertTag := tag
	if insertTag == "" {
		insertTag = discordID
	}
	query := `INSERT INTO users (id, discord_id, tag, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (discord_id) DO NOTHING`
	args := []any{uuid.NewString(), discordID, insertTag, ts, ts}
	if tag != "" {
		query = `INSERT INTO users (id, discord_id, tag, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (discord_id) DO UPDATE SET tag = excluded.tag, updated_at = excluded.updated_at`
	}
	if _, err := q.ExecContext(ctx, u.s.q(query), args...); err != nil {
		return "", err
	}
	var id string
	if err := sqlx.GetContext(ctx, q, &id, u.s.q(`SELECT id FROM users WHERE discord_id = ?`), discordID); err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func (u *UserStore) ByDiscordID(ctx context.Context, discordID string) (*domain.User, error) {
	return u.byDiscordID(ctx, u.s.db, discordID)
}

func (u *UserStore) byDiscordID(ctx context.Context, q sqlx.QueryerContext, discordID string) (*domain.User, error) {
	var r userRow
	err := sqlx.GetContext(ctx, q, &r, u.s.q(
		`SELECT id, discord_id, tag, created_at, updated_at FROM users WHERE discord_id = ?`), discordID)
	if err != nil {
		return nil, notFound(err)
	}
	return userToDomain(r), nil
}

// Full loads the user with its activity and both sides of its punishment
// history. Relations point back at the returned user.
func (u *UserStore) Full(ctx context.Context, discordID string) (*domain.User, error) {
	usr, err := u.ByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}

	var acts []activityRow
	if err := sqlx.SelectContext(ctx, u.s.db, &acts, u.s.q(
		`SELECT id, user_id, guild_id, message_count, voice_time_seconds, created_at, updated_at
		 FROM user_activity WHERE user_id = ? ORDER BY guild_id`), usr.ID); err != nil {
		return nil, fmt.Errorf("load activity: %w", err)
	}
	for _, r := range acts {
		a := activityToDomain(r)
		a.User = usr
		usr.Activity = append(usr.Activity, a)
	}

	received, err := u.s.Punishments.query(ctx, `WHERE p.target_id = ? ORDER BY p.created_at, p.case_id`, usr.ID)
	if err != nil {
		return nil, fmt.Errorf("load punishments received: %w", err)
	}
	for _, p := range received {
		p.Target = usr
	}
	usr.PunishmentsReceived = received

	issued, err := u.s.Punishments.query(ctx, `WHERE p.moderator_id = ? ORDER BY p.created_at, p.case_id`, usr.ID)
	if err != nil {
		return nil, fmt.Errorf("load punishments issued: %w", err)
	}
	for _, p := range issued {
		p.Moderator = usr
	}
	usr.PunishmentsIssued = issued
	return usr, nil
}
