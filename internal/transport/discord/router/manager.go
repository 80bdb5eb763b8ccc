// Package router dispatches slash-command interactions to registered
// commands, applying the live command policy on the way.
package router

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/oklog/ulid/v2"

	"modbot/internal/transport/discord"
	"modbot/pkg/logx"
)

// Replies sent by the router itself.
const (
	MsgUnknownCommand = "I don't know this command. It may have been removed."
	MsgDisabled       = "This command is currently disabled."
	MsgDevOnly        = "This command is only available to bot developers."
	MsgCommandFailed  = "There was an error while executing this command!"
)

type Command struct {
	Definition *discordgo.ApplicationCommand
	// Cooldown is per user; zero disables it. Policy may override it.
	Cooldown time.Duration
	// DevOnly restricts the command to the configured developer ids.
	DevOnly bool
	Handle  HandlerFunc
}

func (c Command) Name() string { return c.Definition.Name }

// Policy is the part of command handling that follows configuration
// reloads.
type Policy struct {
	Timeout   time.Duration
	Disabled  []string
	Cooldowns map[string]time.Duration
	DevIDs    []string
}

type policy struct {
	timeout   time.Duration
	disabled  map[string]bool
	cooldowns map[string]time.Duration
	devIDs    map[string]bool
}

func compilePolicy(p Policy) *policy {
	out := &policy{
		timeout:   p.Timeout,
		disabled:  make(map[string]bool, len(p.Disabled)),
		cooldowns: make(map[string]time.Duration, len(p.Cooldowns)),
		devIDs:    make(map[string]bool, len(p.DevIDs)),
	}
	for _, n := range p.Disabled {
		out.disabled[strings.ToLower(strings.TrimSpace(n))] = true
	}
	for n, d := range p.Cooldowns {
		out.cooldowns[strings.ToLower(strings.TrimSpace(n))] = d
	}
	for _, id := range p.DevIDs {
		out.devIDs[strings.TrimSpace(id)] = true
	}
	return out
}

type Manager struct {
	api discord.API
	log *logx.Logger
	now func() time.Time

	mu       sync.RWMutex
	commands map[string]*entry

	policy    atomic.Pointer[policy]
	cooldowns *cooldowns

	entropyMu sync.Mutex
	entropy   *ulid.MonotonicEntropy
}

type entry struct {
	cmd Command
}

type Option func(*Manager)

// WithClock replaces time.Now for cooldown accounting.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(api discord.API, log *logx.Logger, p Policy, opts ...Option) *Manager {
	m := &Manager{
		api:       api,
		log:       log,
		now:       time.Now,
		commands:  map[string]*entry{},
		cooldowns: newCooldowns(),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}
	for _, o := range opts {
		o(m)
	}
	m.policy.Store(compilePolicy(p))
	return m
}

// SetPolicy swaps the command policy; in-flight commands keep the old one.
func (m *Manager) SetPolicy(p Policy) { m.policy.Store(compilePolicy(p)) }

// Register adds commands. Names must be unique.
func (m *Manager) Register(cmds ...Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cmds {
		if c.Definition == nil || strings.TrimSpace(c.Definition.Name) == "" {
			return fmt.Errorf("register command: missing definition or name")
		}
		if c.Handle == nil {
			return fmt.Errorf("register command %q: missing handler", c.Definition.Name)
		}
		name := strings.ToLower(c.Definition.Name)
		if _, dup := m.commands[name]; dup {
			return fmt.Errorf("register command %q: duplicate name", name)
		}
		m.commands[name] = &entry{cmd: c}
	}
	return nil
}

// Definitions returns command definitions sorted by name, ready for a bulk
// overwrite.
func (m *Manager) Definitions() []*discordgo.ApplicationCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*discordgo.ApplicationCommand, 0, len(m.commands))
	for _, e := range m.commands {
		out = append(out, e.cmd.Definition)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len is the number of registered commands.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.commands)
}

func (m *Manager) newID() string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

// Handle dispatches one interaction. Only chat-input application commands
// are handled; everything else is ignored.
func (m *Manager) Handle(ctx context.Context, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	user := discord.InteractionUser(i)
	if user == nil {
		user = &discordgo.User{}
	}
	req := &Request{
		ID:          m.newID(),
		Interaction: i,
		Data:        data,
		User:        user,
		API:         m.api,
		Log:         m.log,
	}
	name := strings.ToLower(data.Name)
	pol := m.policy.Load()

	m.mu.RLock()
	e := m.commands[name]
	m.mu.RUnlock()

	if e == nil {
		m.log.Warn(fmt.Sprintf("no command matching %s was found", data.Name), logx.Fields{"request_id": req.ID})
		m.reply(ctx, req, MsgUnknownCommand)
		return
	}
	if pol.disabled[name] {
		m.reply(ctx, req, MsgDisabled)
		return
	}
	if e.cmd.DevOnly && !pol.devIDs[user.ID] {
		m.log.Warn("dev-only command refused", logx.Fields{"request_id": req.ID, "command": name, "user_id": user.ID})
		m.reply(ctx, req, MsgDevOnly)
		return
	}

	every := e.cmd.Cooldown
	if d, ok := pol.cooldowns[name]; ok {
		every = d
	}
	if wait := m.cooldowns.take(name, user.ID, every, m.now()); wait > 0 {
		secs := int(math.Ceil(wait.Seconds()))
		m.reply(ctx, req, fmt.Sprintf("Please wait %ds before using /%s again.", secs, name))
		return
	}

	h := Chain(e.cmd.Handle, MWRequestLog(), MWTimeout(pol.timeout), MWPanicRecover())
	if err := h(ctx, req); err != nil {
		m.reply(ctx, req, MsgCommandFailed)
	}
}

func (m *Manager) reply(ctx context.Context, req *Request, text string) {
	if err := req.notice(ctx, text); err != nil {
		m.log.Warn("failed to send command reply", logx.Fields{"request_id": req.ID, "err": err.Error()})
	}
}
