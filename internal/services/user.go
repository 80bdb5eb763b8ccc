package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/domain"
	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

type UserRepository interface {
	Upsert(ctx context.Context, discordID, tag string) (*domain.User, error)
}

// UserService records who is talking.
type UserService struct {
	api   discord.API
	users UserRepository
	log   *logx.Logger
}

func NewUserService(api discord.API, users UserRepository, log *logx.Logger) *UserService {
	return &UserService{api: api, users: users, log: log}
}

func (s *UserService) Name() string                   { return "user" }
func (s *UserService) Init(context.Context) error     { return nil }
func (s *UserService) Shutdown(context.Context) error { return nil }

// UserDetails is what gets logged for a guild message author.
type UserDetails struct {
	ID       string
	Tag      string
	Nickname string
	Channel  string
	Roles    []string
}

// Details resolves names for a guild message. ok is false for DMs and
// messages without member data.
func (s *UserService) Details(m *discordgo.Message) (UserDetails, bool) {
	if m == nil || m.Author == nil || m.Member == nil || m.GuildID == "" {
		return UserDetails{}, false
	}
	d := UserDetails{
		ID:       m.Author.ID,
		Tag:      discord.UserTag(m.Author),
		Nickname: m.Member.Nick,
		Channel:  s.api.ChannelName(m.ChannelID),
	}
	if d.Channel == "" {
		d.Channel = m.ChannelID
	}
	for _, id := range m.Member.Roles {
		// @everyone has the guild's id.
		if id == m.GuildID {
			continue
		}
		name := s.api.RoleName(m.GuildID, id)
		if name == "" || name == "@everyone" {
			continue
		}
		d.Roles = append(d.Roles, name)
	}
	return d, true
}

// OnMessage logs the author's details and refreshes the stored user.
func (s *UserService) OnMessage(ctx context.Context, m *discordgo.Message) {
	d, ok := s.Details(m)
	if !ok {
		tag := ""
		if m != nil {
			tag = discord.UserTag(m.Author)
		}
		s.log.Warn(fmt.Sprintf("no member data for %s, probably a direct message", tag))
		return
	}
	nick := d.Nickname
	if nick == "" {
		nick = "none"
	}
	roles := strings.Join(d.Roles, ", ")
	if roles == "" {
		roles = "no roles"
	}
	s.log.Info("message author", logx.Fields{
		"user_id":  d.ID,
		"tag":      d.Tag,
		"nickname": nick,
		"channel":  "#" + d.Channel,
		"roles":    "[" + roles + "]",
	})

	if s.users == nil {
		return
	}
	if _, err := s.users.Upsert(ctx, d.ID, d.Tag); err != nil {
		s.log.Warn("failed to store user", logx.Fields{"user_id": d.ID, "err": err.Error()})
	}
}
