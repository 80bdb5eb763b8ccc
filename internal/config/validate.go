package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrMissing is wrapped by Validate for every required value that is unset.
var ErrMissing = errors.New("missing required configuration")

var validLevels = map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks required values and parses every duration and schedule.
// All problems are reported at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, name))
	}
	if strings.TrimSpace(cfg.Token) == "" {
		missing(EnvToken)
	}
	if strings.TrimSpace(cfg.GuildID) == "" {
		missing(EnvGuildID)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		missing(EnvDatabaseURL)
	}

	if !validLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Level))] {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if !validLevels[strings.ToLower(strings.TrimSpace(cfg.Logging.Channel.MinLevel))] {
		errs = append(errs, fmt.Errorf("logging.channel.min_level: unknown level %q", cfg.Logging.Channel.MinLevel))
	}
	if cfg.Logging.Channel.RatePerSec < 0 {
		errs = append(errs, errors.New("logging.channel.rate_per_sec must be >= 0"))
	}
	if cfg.Logging.Archive.Keep < 0 {
		errs = append(errs, errors.New("logging.archive.keep must be >= 0"))
	}

	durations := map[string]string{
		"commands.timeout":        cfg.Commands.Timeout,
		"activity.flush_interval": cfg.Activity.FlushInterval,
		"admin.read_timeout":      cfg.Admin.ReadTimeout,
		"admin.write_timeout":     cfg.Admin.WriteTimeout,
		"admin.idle_timeout":      cfg.Admin.IdleTimeout,
	}
	for name, raw := range cfg.Commands.Cooldowns {
		durations["commands.cooldowns."+name] = raw
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := cron.ParseStandard(cfg.Moderation.ExpiryScheduleOrDefault()); err != nil {
		errs = append(errs, fmt.Errorf("moderation.expiry_schedule: %w", err))
	}

	if cfg.Admin.Enabled && !cfg.Admin.AllowInsecure {
		if err := requireLoopback(cfg.Admin.AddrOrDefault()); err != nil {
			errs = append(errs, fmt.Errorf("admin.addr: %w", err))
		}
	}
	return errors.Join(errs...)
}

func requireLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address (set allow_insecure to override)", addr)
	}
	return nil
}
