package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultCommandTimeout = 30 * time.Second
	DefaultFlushInterval  = 30 * time.Second
	DefaultExpirySchedule = "@every 1m"
	DefaultAdminAddr      = "127.0.0.1:6060"
	DefaultArchiveKeep    = 5
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// The accessors below assume a validated config and fall back to defaults.

func (c CommandsConfig) TimeoutOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("commands.timeout", c.Timeout, DefaultCommandTimeout)
	if err != nil {
		return DefaultCommandTimeout
	}
	return d
}

// CooldownOverrides returns the parsed per-command cooldowns. Invalid
// entries are skipped.
func (c CommandsConfig) CooldownOverrides() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Cooldowns))
	for name, raw := range c.Cooldowns {
		d, err := ParseDurationField("commands.cooldowns."+name, raw)
		if err != nil {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(name))] = d
	}
	return out
}

func (a ActivityConfig) FlushIntervalOrDefault() time.Duration {
	d, err := ParseDurationOrDefault("activity.flush_interval", a.FlushInterval, DefaultFlushInterval)
	if err != nil {
		return DefaultFlushInterval
	}
	return d
}

func (m ModerationConfig) ExpiryScheduleOrDefault() string {
	if s := strings.TrimSpace(m.ExpirySchedule); s != "" {
		return s
	}
	return DefaultExpirySchedule
}

func (a AdminConfig) AddrOrDefault() string {
	if s := strings.TrimSpace(a.Addr); s != "" {
		return s
	}
	return DefaultAdminAddr
}

func (l LoggingArchive) KeepOrDefault() int {
	if l.Keep > 0 {
		return l.Keep
	}
	return DefaultArchiveKeep
}
