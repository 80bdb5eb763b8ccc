package storage

import (
	"database/sql"
	"time"

	"modbot/internal/domain"
)

// Row types mirror table columns; the mappers below turn them into domain
// entities.

type userRow struct {
	ID        string    `db:"id"`
	DiscordID string    `db:"discord_id"`
	Tag       string    `db:"tag"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type activityRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	GuildID          string    `db:"guild_id"`
	MessageCount     int64     `db:"message_count"`
	VoiceTimeSeconds int64     `db:"voice_time_seconds"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

type punishmentRow struct {
	ID          string         `db:"id"`
	CaseID      int64          `db:"case_id"`
	GuildID     string         `db:"guild_id"`
	Type        string         `db:"type"`
	Reason      sql.NullString `db:"reason"`
	ExpiresAt   sql.NullTime   `db:"expires_at"`
	Active      bool           `db:"active"`
	TargetID    string         `db:"target_id"`
	ModeratorID string         `db:"moderator_id"`
	CreatedAt   time.Time      `db:"created_at"`
}

// punishmentJoinRow is a punishment with both parties joined in.
type punishmentJoinRow struct {
	punishmentRow
	TargetDiscordID    string    `db:"target_discord_id"`
	TargetTag          string    `db:"target_tag"`
	TargetCreatedAt    time.Time `db:"target_created_at"`
	TargetUpdatedAt    time.Time `db:"target_updated_at"`
	ModeratorDiscordID string    `db:"moderator_discord_id"`
	ModeratorTag       string    `db:"moderator_tag"`
	ModeratorCreatedAt time.Time `db:"moderator_created_at"`
	ModeratorUpdatedAt time.Time `db:"moderator_updated_at"`
}

const punishmentJoinSelect = `SELECT p.id, p.case_id, p.guild_id, p.type, p.reason, p.expires_at, p.active,
	p.target_id, p.moderator_id, p.created_at,
	t.discord_id AS target_discord_id, t.tag AS target_tag,
	t.created_at AS target_created_at, t.updated_at AS target_updated_at,
	m.discord_id AS moderator_discord_id, m.tag AS moderator_tag,
	m.created_at AS moderator_created_at, m.updated_at AS moderator_updated_at
FROM punishments p
JOIN users t ON t.id = p.target_id
JOIN users m ON m.id = p.moderator_id`

func userToDomain(r userRow) *domain.User {
	return &domain.User{
		ID:        r.ID,
		DiscordID: r.DiscordID,
		Tag:       r.Tag,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func activityToDomain(r activityRow) *domain.UserActivity {
	return &domain.UserActivity{
		ID:                 r.ID,
		UserID:             r.UserID,
		GuildID:            r.GuildID,
		MessageCount:       r.MessageCount,
		VoiceTimeInSeconds: r.VoiceTimeSeconds,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func punishmentToDomain(r punishmentRow) *domain.Punishment {
	p := &domain.Punishment{
		ID:          r.ID,
		CaseID:      r.CaseID,
		GuildID:     r.GuildID,
		Type:        domain.PunishmentType(r.Type),
		Active:      r.Active,
		TargetID:    r.TargetID,
		ModeratorID: r.ModeratorID,
		CreatedAt:   r.CreatedAt,
	}
	if r.Reason.Valid {
		reason := r.Reason.String
		p.Reason = &reason
	}
	if r.ExpiresAt.Valid {
		at := r.ExpiresAt.Time
		p.ExpiresAt = &at
	}
	return p
}

func punishmentJoinToDomain(r punishmentJoinRow) *domain.Punishment {
	p := punishmentToDomain(r.punishmentRow)
	p.Target = &domain.User{
		ID:        r.TargetID,
		DiscordID: r.TargetDiscordID,
		Tag:       r.TargetTag,
		CreatedAt: r.TargetCreatedAt,
		UpdatedAt: r.TargetUpdatedAt,
	}
	p.Moderator = &domain.User{
		ID:        r.ModeratorID,
		DiscordID: r.ModeratorDiscordID,
		Tag:       r.ModeratorTag,
		CreatedAt: r.ModeratorCreatedAt,
		UpdatedAt: r.ModeratorUpdatedAt,
	}
	return p
}
