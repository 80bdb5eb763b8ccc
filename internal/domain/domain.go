// Package domain holds the persisted entities the bot works with.
package domain

import (
	"fmt"
	"strings"
	"time"
)

type PunishmentType string

const (
	PunishmentWarn PunishmentType = "WARN"
	PunishmentMute PunishmentType = "MUTE"
	PunishmentKick PunishmentType = "KICK"
	PunishmentBan  PunishmentType = "BAN"
)

func (t PunishmentType) Valid() bool {
	switch t {
	case PunishmentWarn, PunishmentMute, PunishmentKick, PunishmentBan:
		return true
	default:
		return false
	}
}

// ParsePunishmentType accepts any casing.
func ParsePunishmentType(s string) (PunishmentType, error) {
	t := PunishmentType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown punishment type %q", s)
	}
	return t, nil
}

// User is a Discord user known to the bot. The relation slices are only
// populated by full lookups.
type User struct {
	ID        string
	DiscordID string
	Tag       string
	CreatedAt time.Time
	UpdatedAt time.Time

	Activity            []*UserActivity
	PunishmentsReceived []*Punishment
	PunishmentsIssued   []*Punishment
}

// UserActivity is a per-guild activity counter for one user.
type UserActivity struct {
	ID                 string
	UserID             string
	GuildID            string
	MessageCount       int64
	VoiceTimeInSeconds int64
	CreatedAt          time.Time
	UpdatedAt          time.Time

	User *User
}

type Punishment struct {
	ID          string
	CaseID      int64
	GuildID     string
	Type        PunishmentType
	Reason      *string
	ExpiresAt   *time.Time
	Active      bool
	TargetID    string
	ModeratorID string
	CreatedAt   time.Time

	Target    *User
	Moderator *User
}

// Expired reports whether a timed punishment has run out at now.
func (p *Punishment) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// TotalMessages sums message counts across guilds.
func (u *User) TotalMessages() int64 {
	var n int64
	for _, a := range u.Activity {
		n += a.MessageCount
	}
	return n
}

// TotalVoiceTime sums voice time across guilds.
func (u *User) TotalVoiceTime() time.Duration {
	var n int64
	for _, a := range u.Activity {
		n += a.VoiceTimeInSeconds
	}
	return time.Duration(n) * time.Second
}

// ActivePunishments counts received punishments still in effect.
func (u *User) ActivePunishments() int {
	n := 0
	for _, p := range u.PunishmentsReceived {
		if p.Active {
			n++
		}
	}
	return n
}
