// Package app wires the bot together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"modbot/internal/admin"
	"modbot/internal/commands"
	"modbot/internal/config"
	"modbot/internal/embeds"
	"modbot/internal/eventbus"
	"modbot/internal/events"
	"modbot/internal/logarchive"
	"modbot/internal/runtime/supervisor"
	"modbot/internal/services"
	"modbot/internal/storage"
	"modbot/internal/transport/discord"
	"modbot/internal/transport/discord/adapter"
	"modbot/internal/transport/discord/router"
	"modbot/pkg/logx"
)

// Gateway is the Discord connection the app drives.
type Gateway interface {
	discord.API
	discord.Registrar
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ready() bool
}

// Options overrides parts of the composition. The zero value builds
// everything from the config.
type Options struct {
	// Manager enables live config reload.
	Manager *config.Manager
	// Logger replaces the logger built from cfg.Logging. The app does not
	// close a logger it did not build.
	Logger *logx.Logger
	// Gateway replaces the discordgo adapter.
	Gateway Gateway
}

type App struct {
	cfg     *config.Config
	cfgm    *config.Manager
	log     *logx.Logger
	ownsLog bool
	files   *logx.FileTransport

	gw       Gateway
	store    *storage.Storage
	bus      eventbus.Bus
	registry *services.Registry
	router   *router.Manager
	cmds     []router.Command
	users    *services.UserService
	loader   *events.Loader
	admin    *admin.Server

	sup       *supervisor.Supervisor
	detach    []func()
	startedAt time.Time
	stopped   atomic.Bool
}

// New composes the bot from cfg. Nothing connects until Start.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	a := &App{cfg: cfg, cfgm: opts.Manager, startedAt: time.Now()}

	sink := &lateSender{}
	if opts.Logger != nil {
		a.log = opts.Logger
	} else {
		a.log, a.files = buildLogger(cfg.Logging, sink)
		a.ownsLog = true
	}

	a.gw = opts.Gateway
	if a.gw == nil {
		ad, err := adapter.New(adapter.Config{Token: cfg.Token}, a.log)
		if err != nil {
			return nil, err
		}
		a.gw = ad
	}
	if id := strings.TrimSpace(cfg.Logging.Channel.ChannelID); id != "" {
		if cs, ok := a.gw.(interface{ ChannelSender(string) logx.Sender }); ok {
			sink.set(cs.ChannelSender(id))
		}
	}

	store, err := storage.New(cfg.DatabaseURL, a.log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.bus = eventbus.New()

	emb := embeds.NewFactory()
	a.users = services.NewUserService(a.gw, store.Users, a.log)
	chat := services.NewChatService(a.gw, a.log)
	ping := services.NewPingService(a.gw, emb)
	activity := services.NewActivityService(a.bus, store.Activity, cfg.Activity.FlushIntervalOrDefault(), a.log)
	moderation := services.NewModerationService(store.Punishments, cfg.Moderation.ExpiryScheduleOrDefault(), a.log)

	a.registry = services.NewRegistry(a.log)
	a.registry.Register(a.users, chat, ping, activity, moderation)

	a.router = router.New(a.gw, a.log, commandPolicy(cfg))
	a.cmds = commands.All(commands.Deps{
		Log:        a.log,
		Embeds:     emb,
		Ping:       ping,
		Chat:       chat,
		Moderation: moderation,
		Profiles:   store.Users,
		Bus:        a.bus,
		StartedAt:  a.startedAt,
	})
	a.loader = events.NewLoader(a.log)

	if cfg.Admin.Enabled {
		acfg, err := adminConfig(cfg.Admin)
		if err != nil {
			return nil, err
		}
		a.admin = admin.New(acfg, a.log, map[string]admin.Check{
			"database": store.Ping,
			"gateway": func(context.Context) error {
				if !a.gw.Ready() {
					return errors.New("not connected")
				}
				return nil
			},
		})
	}
	return a, nil
}

func commandPolicy(cfg *config.Config) router.Policy {
	return router.Policy{
		Timeout:   cfg.Commands.TimeoutOrDefault(),
		Disabled:  cfg.Commands.Disabled,
		Cooldowns: cfg.Commands.CooldownOverrides(),
		DevIDs:    cfg.DevOnlyIDs,
	}
}

func adminConfig(c config.AdminConfig) (admin.Config, error) {
	read, err := config.ParseDurationOrDefault("admin.read_timeout", c.ReadTimeout, 10*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	write, err := config.ParseDurationOrDefault("admin.write_timeout", c.WriteTimeout, 30*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("admin.idle_timeout", c.IdleTimeout, 60*time.Second)
	if err != nil {
		return admin.Config{}, err
	}
	return admin.Config{
		Addr:          c.AddrOrDefault(),
		Pprof:         c.Pprof,
		AllowInsecure: c.AllowInsecure,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}

func (a *App) Logger() *logx.Logger { return a.log }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start loads commands, connects storage, initializes services, attaches
// event handlers and logs in. A failed login undoes everything before it.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.archiveLogs()

	if err := a.loadCommands(); err != nil {
		a.sup.Cancel()
		return err
	}

	if err := a.store.Connect(ctx); err != nil {
		a.sup.Cancel()
		return fmt.Errorf("connect storage: %w", err)
	}
	a.registry.InitAll(a.sup.Context())

	handlers := events.NewHandlers(events.Deps{
		Context: a.sup.Context(),
		API:     a.gw,
		Router:  a.router,
		Users:   a.users,
		Bus:     a.bus,
		GuildID: a.cfg.GuildID,
		Log:     a.log,
	})
	a.detach = a.loader.Load(a.gw, handlers.Events())

	if a.admin != nil {
		if err := a.admin.Start(a.sup.Context()); err != nil {
			a.log.Error(err)
		}
	}

	if err := a.gw.Start(ctx); err != nil {
		a.log.Error(fmt.Errorf("login failed: %w", err))
		a.undoStart()
		return err
	}

	if a.cfgm != nil {
		a.watchConfig()
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Fields{"err": err.Error()})
	} else if ok {
		a.log.Debug("systemd notified ready")
	}
	a.log.Info("app started")
	return nil
}

func (a *App) loadCommands() error {
	if a.router.Len() > 0 {
		return nil
	}
	if err := a.router.Register(a.cmds...); err != nil {
		return err
	}
	a.log.Info(fmt.Sprintf("loaded %d commands", a.router.Len()))
	return nil
}

// RegisterCommands overwrites the guild's slash commands over REST, without
// a gateway session.
func (a *App) RegisterCommands(ctx context.Context) error {
	if err := a.loadCommands(); err != nil {
		return err
	}
	f, ok := a.gw.(interface {
		FetchApplicationID(context.Context) (string, error)
	})
	if !ok {
		return errors.New("gateway cannot resolve the application id")
	}
	appID, err := f.FetchApplicationID(ctx)
	if err != nil {
		return err
	}
	return events.RegisterCommands(ctx, a.gw, appID, a.cfg.GuildID, a.router.Definitions(), a.log)
}

func (a *App) undoStart() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.detachHandlers()
	a.registry.ShutdownAll(ctx)
	if a.admin != nil {
		_ = a.admin.Stop(ctx)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close storage failed", logx.Fields{"err": err.Error()})
	}
	a.sup.Cancel()
	_ = a.sup.Wait(ctx)
}

func (a *App) detachHandlers() {
	for _, remove := range a.detach {
		remove()
	}
	a.detach = nil
}

func (a *App) archiveLogs() {
	if a.files == nil || !a.cfg.Logging.Archive.OnStart {
		return
	}
	base := filepath.Dir(a.files.Dir())
	keep := a.cfg.Logging.Archive.KeepOrDefault()
	a.sup.Go0("logs.archive", func(context.Context) {
		written, err := logarchive.Archive(base, keep, logarchive.WithCurrent(a.files.Dir()), logarchive.WithLogger(a.log))
		if err != nil {
			a.log.Warn("log archive failed", logx.Fields{"err": err.Error()})
		}
		if len(written) > 0 {
			a.log.Info(fmt.Sprintf("archived %d log runs", len(written)))
		}
	})
}

// watchConfig applies reloaded configs. Only the command policy and dev ids
// change live; other sections log a restart hint.
func (a *App) watchConfig() {
	a.cfgm.SetLogger(a.log)
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		if lastApplied == nil {
			lastApplied = a.cfg
		}
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, next)
				lastApplied = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
}

func (a *App) applyConfig(prev, next *config.Config) {
	if next == nil {
		return
	}
	ch := config.SummarizeChange(prev, next)
	if !ch.Changed() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.router.SetPolicy(commandPolicy(next))

	fields := logx.Fields{"changed": strings.Join(ch.Sections, ",")}
	for k, v := range ch.Fields {
		fields[k] = v
	}
	a.log.Info("config reloaded", fields)
	if ch.RestartRequired {
		a.log.Warn("some config changes take effect after a restart", logx.Fields{"changed": strings.Join(ch.Sections, ",")})
	}
}

// Stop shuts down in order: gateway, services (the expiry cron stops with
// moderation), admin server, storage, supervisor, logger. Each step is
// bounded; Stop never blocks past ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil || !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.log.Info("stopping")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.Fields{"name": name, "max": max.String()})

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.Fields{"name": name, "err": err.Error()})
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.Fields{"name": name, "took": took.String()})
			} else {
				a.log.Debug("stop step end", logx.Fields{"name": name, "took": took.String()})
			}
		case <-stepCtx.Done():
			// fn must honor stepCtx; anything still running past here leaks.
			a.log.Warn("stop step deadline reached (continuing)", logx.Fields{
				"name":    name,
				"err":     stepCtx.Err().Error(),
				"elapsed": time.Since(start).String(),
			})
			go func() {
				err := <-done
				fields := logx.Fields{"name": name, "took": time.Since(start).String()}
				if err != nil {
					fields["err"] = err.Error()
					a.log.Warn("stop step finished after deadline", fields)
					return
				}
				a.log.Info("stop step finished after deadline", fields)
			}()
		}
	}

	step("discord", 3*time.Second, func(c context.Context) error {
		a.detachHandlers()
		return a.gw.Stop(c)
	})
	step("services", 5*time.Second, func(c context.Context) error {
		a.registry.ShutdownAll(c)
		return nil
	})
	step("admin", time.Second, func(c context.Context) error {
		if a.admin == nil {
			return nil
		}
		return a.admin.Stop(c)
	})
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	// Finally, wait for supervised goroutines (config watch/reload, log archive).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.ownsLog {
		return a.log.Close(ctx)
	}
	return a.log.Wait(ctx)
}

// lateSender lets the logger exist before the gateway whose channel it
// mirrors into. Records sent before set are dropped.
type lateSender struct {
	mu sync.RWMutex
	s  logx.Sender
}

func (l *lateSender) set(s logx.Sender) {
	l.mu.Lock()
	l.s = s
	l.mu.Unlock()
}

func (l *lateSender) SendLog(ctx context.Context, text string) error {
	l.mu.RLock()
	s := l.s
	l.mu.RUnlock()
	if s == nil {
		return nil
	}
	return s.SendLog(ctx, text)
}
