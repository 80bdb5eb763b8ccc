package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"modbot/internal/app"
	"modbot/internal/config"
	"modbot/internal/logarchive"
	"modbot/internal/storage"
	"modbot/pkg/logx"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const stopTimeout = 15 * time.Second

func main() {
	if err := NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewApp() *cli.App {
	return &cli.App{
		Name:    "modbot",
		Usage:   "Discord moderation and activity bot",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				EnvVars: []string{"MODBOT_CONFIG"},
				Usage:   "path to a JSON or YAML config file (environment only when empty)",
			},
			&cli.StringSliceFlag{
				Name:  "env-file",
				Value: cli.NewStringSlice(".env"),
				Usage: "dotenv files loaded before the environment is read",
			},
		},
		Before: func(c *cli.Context) error {
			return config.LoadDotEnv(c.StringSlice("env-file")...)
		},
		Action: runAction,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "connect to Discord and serve commands (default)",
				Action: runAction,
			},
			{
				Name:   "register",
				Usage:  "overwrite the guild's slash commands and exit",
				Action: registerAction,
			},
			{
				Name:   "migrate",
				Usage:  "apply the database schema and exit",
				Action: migrateAction,
			},
			{
				Name:  "logs",
				Usage: "manage log run directories",
				Subcommands: []*cli.Command{
					{
						Name:  "archive",
						Usage: "compress old run directories",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "dir", Usage: "log base directory (logging.dir when empty)"},
							&cli.IntFlag{Name: "keep", Usage: "newest runs left uncompressed (logging.archive.keep when 0)"},
						},
						Action: archiveAction,
					},
				},
			},
		},
	}
}

// consoleLogger serves commands that exit quickly and the window before the
// app's own logger exists.
func consoleLogger() *logx.Logger {
	return logx.New(logx.Options{Level: logx.LevelInfo, Transports: []logx.Transport{logx.NewConsoleTransport()}})
}

func loadConfig(c *cli.Context) (*config.Manager, *config.Config, error) {
	m := config.NewManager(c.String("config"))
	cfg, err := m.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return m, cfg, nil
}

func runAction(c *cli.Context) error {
	boot := consoleLogger()
	defer boot.Close(context.Background())

	m, cfg, err := loadConfig(c)
	if err != nil {
		boot.Error(err)
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, app.Options{Manager: m})
	if err != nil {
		boot.Error(err)
		return err
	}
	log := a.Logger()
	if err := a.Start(ctx); err != nil {
		stopApp(a)
		return err
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case <-a.Done():
		log.Warn("app stopped on its own")
	}

	ignore := make(chan os.Signal, 1)
	signal.Notify(ignore, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(ignore)
	stopped := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ignore:
				log.Warn("shutdown already in progress, signal ignored", logx.Fields{"signal": sig.String()})
			case <-stopped:
				return
			}
		}
	}()

	stopApp(a)
	close(stopped)
	return a.Err()
}

func stopApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	_ = a.Stop(ctx)
}

func registerAction(c *cli.Context) error {
	log := consoleLogger()
	defer log.Close(context.Background())

	_, cfg, err := loadConfig(c)
	if err != nil {
		log.Error(err)
		return err
	}
	a, err := app.New(cfg, app.Options{Logger: log})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	return a.RegisterCommands(ctx)
}

func migrateAction(c *cli.Context) error {
	log := consoleLogger()
	defer log.Close(context.Background())

	// Only the database is needed here; skip full validation.
	cfg, err := config.NewManager(c.String("config")).Parse()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: %s", config.ErrMissing, config.EnvDatabaseURL)
	}
	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()
	s, err := storage.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	log.Info("schema applied", logx.Fields{"driver": s.Driver()})
	return s.Close()
}

func archiveAction(c *cli.Context) error {
	log := consoleLogger()
	defer log.Close(context.Background())

	cfg, err := config.NewManager(c.String("config")).Parse()
	if err != nil {
		return err
	}
	dir := c.String("dir")
	if dir == "" {
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		dir = "logs"
	}
	keep := c.Int("keep")
	if keep <= 0 {
		keep = cfg.Logging.Archive.KeepOrDefault()
	}
	written, err := logarchive.Archive(dir, keep, logarchive.WithLogger(log))
	for _, p := range written {
		log.Info("archived", logx.Fields{"path": p})
	}
	if err != nil {
		return err
	}
	if len(written) == 0 {
		log.Info("nothing to archive", logx.Fields{"dir": dir, "keep": keep})
	}
	return nil
}
