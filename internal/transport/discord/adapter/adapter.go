// Package adapter implements discord.API over a discordgo gateway session.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

// Intents requested on login.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsMessageContent |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildVoiceStates

type Config struct {
	Token string
}

type Adapter struct {
	log *logx.Logger
	s   *discordgo.Session

	runMu   sync.Mutex
	running bool

	ready atomic.Bool
	appID atomic.Value // string
}

var (
	_ discord.API       = (*Adapter)(nil)
	_ discord.Registrar = (*Adapter)(nil)
)

func New(cfg Config, log *logx.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = Intents
	s.LogLevel = discordgo.LogWarning
	routeLibraryLogs(log)

	a := &Adapter{log: log, s: s}
	a.appID.Store("")
	s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		if r.Application != nil && r.Application.ID != "" {
			a.appID.Store(r.Application.ID)
		} else if r.User != nil {
			a.appID.Store(r.User.ID)
		}
		a.ready.Store(true)
	})
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { a.ready.Store(true) })
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) { a.ready.Store(false) })
	return a, nil
}

// routeLibraryLogs sends discordgo's own diagnostics through log.
func routeLibraryLogs(log *logx.Logger) {
	discordgo.Logger = func(level, _ int, format string, a ...any) {
		msg := fmt.Sprintf(format, a...)
		fields := logx.Fields{"comp": "discordgo"}
		switch level {
		case discordgo.LogError:
			log.Error(msg, fields)
		case discordgo.LogWarning:
			log.Warn(msg, fields)
		case discordgo.LogInformational:
			log.Info(msg, fields)
		default:
			log.Debug(msg, fields)
		}
	}
}

// Session exposes the underlying session for event handlers.
func (a *Adapter) Session() *discordgo.Session { return a.s }

// Start opens the gateway connection. It returns once the websocket is
// established; readiness is reported by Ready.
func (a *Adapter) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}
	errCh := make(chan error, 1)
	go func() { errCh <- a.s.Open() }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("discord login: %w", err)
		}
	case <-ctx.Done():
		_ = a.s.Close()
		return ctx.Err()
	}
	a.running = true
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if !a.running {
		return nil
	}
	a.running = false
	a.ready.Store(false)

	done := make(chan error, 1)
	go func() { done <- a.s.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the gateway session is identified and connected.
func (a *Adapter) Ready() bool { return a.ready.Load() }

// ApplicationID is known after the first Ready event.
func (a *Adapter) ApplicationID() string {
	id, _ := a.appID.Load().(string)
	return id
}

// FetchApplicationID returns the application id, asking the REST API when
// no Ready event has been seen yet.
func (a *Adapter) FetchApplicationID(ctx context.Context) (string, error) {
	if id := a.ApplicationID(); id != "" {
		return id, nil
	}
	type result struct {
		app *discordgo.Application
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		app, err := a.s.Application("@me")
		resCh <- result{app, err}
	}()
	select {
	case res := <-resCh:
		if res.err != nil {
			return "", fmt.Errorf("fetch application: %w", res.err)
		}
		a.appID.Store(res.app.ID)
		return res.app.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Adapter) On(handler any) func()   { return a.s.AddHandler(handler) }
func (a *Adapter) Once(handler any) func() { return a.s.AddHandlerOnce(handler) }

func (a *Adapter) Respond(ctx context.Context, i *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	return a.s.InteractionRespond(i, resp, discordgo.WithContext(ctx))
}

func (a *Adapter) EditResponse(ctx context.Context, i *discordgo.Interaction, edit *discordgo.WebhookEdit) (*discordgo.Message, error) {
	return a.s.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx))
}

func (a *Adapter) OriginalResponse(ctx context.Context, i *discordgo.Interaction) (*discordgo.Message, error) {
	return a.s.InteractionResponse(i, discordgo.WithContext(ctx))
}

func (a *Adapter) Followup(ctx context.Context, i *discordgo.Interaction, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return a.s.FollowupMessageCreate(i, true, params, discordgo.WithContext(ctx))
}

func (a *Adapter) RecentMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	limit = min(max(limit, 1), discord.MaxHistoryPage)
	return a.s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
}

func (a *Adapter) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	return a.s.ChannelMessagesBulkDelete(channelID, messageIDs, discordgo.WithContext(ctx))
}

func (a *Adapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return a.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (a *Adapter) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	return a.s.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
}

func (a *Adapter) OverwriteGuildCommands(ctx context.Context, appID, guildID string, cmds []*discordgo.ApplicationCommand) ([]*discordgo.ApplicationCommand, error) {
	return a.s.ApplicationCommandBulkOverwrite(appID, guildID, cmds, discordgo.WithContext(ctx))
}

func (a *Adapter) Latency() time.Duration { return a.s.HeartbeatLatency() }

func (a *Adapter) RoleName(guildID, roleID string) string {
	if a.s.State == nil {
		return ""
	}
	r, err := a.s.State.Role(guildID, roleID)
	if err != nil || r == nil {
		return ""
	}
	return r.Name
}

func (a *Adapter) ChannelName(channelID string) string {
	if a.s.State == nil {
		return ""
	}
	c, err := a.s.State.Channel(channelID)
	if err != nil || c == nil {
		return ""
	}
	return c.Name
}

// ChannelSender returns a log sink posting into channelID.
func (a *Adapter) ChannelSender(channelID string) logx.Sender {
	return channelSender{a: a, channelID: channelID}
}

type channelSender struct {
	a         *Adapter
	channelID string
}

func (c channelSender) SendLog(ctx context.Context, text string) error {
	if !c.a.Ready() {
		return nil
	}
	_, err := c.a.SendMessage(ctx, c.channelID, text)
	return err
}
