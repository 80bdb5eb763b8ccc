package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"modbot/internal/domain"
)

type ActivityStore struct{ s *Storage }

// AddMessages adds n to the user's message count in guildID, creating the
// user and the counter row as needed.
func (a *ActivityStore) AddMessages(ctx context.Context, discordID, guildID string, n int64) error {
	if n <= 0 {
		return nil
	}
	return a.add(ctx, discordID, guildID, n, 0)
}

// AddVoiceTime adds seconds to the user's voice time in guildID.
func (a *ActivityStore) AddVoiceTime(ctx context.Context, discordID, guildID string, seconds int64) error {
	if seconds <= 0 {
		return nil
	}
	return a.add(ctx, discordID, guildID, 0, seconds)
}

func (a *ActivityStore) add(ctx context.Context, discordID, guildID string, messages, seconds int64) error {
	err := a.s.inTx(ctx, func(tx *sqlx.Tx) error {
		userID, err := a.s.Users.ensure(ctx, tx, discordID, "")
		if err != nil {
			return err
		}
		ts := now()
		_, err = tx.ExecContext(ctx, a.s.q(
			`INSERT INTO user_activity (id, user_id, guild_id, message_count, voice_time_seconds, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (user_id, guild_id) DO UPDATE SET
			   message_count = user_activity.message_count + excluded.message_count,
			   voice_time_seconds = user_activity.voice_time_seconds + excluded.voice_time_seconds,
			   updated_at = excluded.updated_at`),
			uuid.NewString(), userID, guildID, messages, seconds, ts, ts)
		return err
	})
	if err != nil {
		return fmt.Errorf("add activity for %s in %s: %w", discordID, guildID, err)
	}
	return nil
}

// ForUser returns the user's activity across guilds. Unknown users yield an
// empty slice.
func (a *ActivityStore) ForUser(ctx context.Context, discordID string) ([]*domain.UserActivity, error) {
	var rows []activityRow
	err := sqlx.SelectContext(ctx, a.s.db, &rows, a.s.q(
		`SELECT ua.id, ua.user_id, ua.guild_id, ua.message_count, ua.voice_time_seconds, ua.created_at, ua.updated_at
		 FROM user_activity ua JOIN users u ON u.id = ua.user_id
		 WHERE u.discord_id = ? ORDER BY ua.guild_id`), discordID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.UserActivity, 0, len(rows))
	for _, r := range rows {
		out = append(out, activityToDomain(r))
	}
	return out, nil
}
