package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

// ErrDMChannel is returned when a purge targets a direct-message channel.
var ErrDMChannel = errors.New("purge is not supported in direct messages")

// ChatService manages messages in guild text channels.
type ChatService struct {
	api discord.API
	log *logx.Logger
	now func() time.Time
}

func NewChatService(api discord.API, log *logx.Logger) *ChatService {
	return &ChatService{api: api, log: log, now: time.Now}
}

func (s *ChatService) Name() string                   { return "chat" }
func (s *ChatService) Init(context.Context) error     { return nil }
func (s *ChatService) Shutdown(context.Context) error { return nil }

// Purge deletes up to amount of the channel's latest messages, only those
// by targetUserID when it is set. Messages past the bulk-delete age are
// skipped. It returns how many were deleted; on error that is 0.
func (s *ChatService) Purge(ctx context.Context, channelID string, isDM bool, amount int, targetUserID string) (int, error) {
	if isDM {
		s.log.Warn("purge requested in a DM channel, ignoring", logx.Fields{"channel_id": channelID})
		return 0, ErrDMChannel
	}
	if amount <= 0 {
		return 0, nil
	}
	amount = min(amount, discord.MaxHistoryPage)
	fields := logx.Fields{"channel_id": channelID, "amount": amount}
	if targetUserID != "" {
		fields["target_id"] = targetUserID
	}
	s.log.Info(fmt.Sprintf("purging %d messages", amount), fields)

	msgs, err := s.api.RecentMessages(ctx, channelID, discord.MaxHistoryPage)
	if err != nil {
		s.log.Error(fmt.Errorf("purge %s: fetch messages: %w", channelID, err), fields)
		return 0, err
	}

	picked := make([]*discordgo.Message, 0, amount)
	for _, m := range msgs {
		if len(picked) >= amount {
			break
		}
		if targetUserID != "" && (m.Author == nil || m.Author.ID != targetUserID) {
			continue
		}
		picked = append(picked, m)
	}

	cutoff := s.now().Add(-discord.BulkDeleteMaxAge)
	ids := make([]string, 0, len(picked))
	for _, m := range picked {
		if messageTime(m).Before(cutoff) {
			continue
		}
		ids = append(ids, m.ID)
	}

	switch len(ids) {
	case 0:
		s.log.Info("no messages to delete", fields)
		return 0, nil
	case 1:
		err = s.api.DeleteMessage(ctx, channelID, ids[0])
	default:
		err = s.api.BulkDelete(ctx, channelID, ids)
	}
	if err != nil {
		s.log.Error(fmt.Errorf("purge %s: delete: %w", channelID, err), fields)
		return 0, err
	}
	s.log.Info(fmt.Sprintf("deleted %d messages", len(ids)), fields)
	return len(ids), nil
}

func messageTime(m *discordgo.Message) time.Time {
	if !m.Timestamp.IsZero() {
		return m.Timestamp
	}
	t, err := discordgo.SnowflakeTimestamp(m.ID)
	if err != nil {
		return time.Time{}
	}
	return t
}
