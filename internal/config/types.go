package config

// Config is the bot configuration. It is assembled from an optional config
// file (JSON or YAML) overlaid with environment variables, which always win.
type Config struct {
	// Token is the bot token. Never log it.
	Token       string   `json:"token,omitempty"`
	GuildID     string   `json:"guild_id,omitempty"`
	DatabaseURL string   `json:"database_url,omitempty"`
	DevOnlyIDs  []string `json:"dev_only_ids,omitempty"`

	Logging    LoggingConfig    `json:"logging"`
	Commands   CommandsConfig   `json:"commands"`
	Activity   ActivityConfig   `json:"activity"`
	Moderation ModerationConfig `json:"moderation"`
	Admin      AdminConfig      `json:"admin"`
}

type LoggingConfig struct {
	// Level is one of debug|info|warn|error. Default: info.
	Level string `json:"level,omitempty"`
	// Console defaults to true when omitted.
	Console *bool `json:"console,omitempty"`
	// Dir is the base directory for per-run log directories. Default: "logs".
	Dir string `json:"dir,omitempty"`
	// File defaults to true when omitted.
	File *bool `json:"file,omitempty"`

	Channel LoggingChannel `json:"channel"`
	Archive LoggingArchive `json:"archive"`
}

// LoggingChannel mirrors log records into a Discord text channel.
type LoggingChannel struct {
	ChannelID  string `json:"channel_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`    // default: warn
	RatePerSec int    `json:"rate_per_sec,omitempty"` // default: 1
}

// LoggingArchive controls compression of old run directories.
type LoggingArchive struct {
	// Keep is how many newest run directories stay uncompressed. Default: 5.
	Keep int `json:"keep,omitempty"`
	// OnStart archives old runs when the bot starts.
	OnStart bool `json:"on_start,omitempty"`
}

// CommandsConfig is the live-reloadable command policy.
type CommandsConfig struct {
	// Timeout bounds a single command execution. Default: "30s".
	Timeout string `json:"timeout,omitempty"`
	// Disabled command names reply with a notice instead of running.
	Disabled []string `json:"disabled,omitempty"`
	// Cooldowns overrides per-command cooldowns (Go duration strings).
	Cooldowns map[string]string `json:"cooldowns,omitempty"`
}

type ActivityConfig struct {
	// FlushInterval is how often buffered message counts are persisted. Default: "30s".
	FlushInterval string `json:"flush_interval,omitempty"`
}

type ModerationConfig struct {
	// ExpirySchedule is a cron spec for the punishment expiry sweep. Default: "@every 1m".
	ExpirySchedule string `json:"expiry_schedule,omitempty"`
}

// AdminConfig controls the optional health/pprof HTTP server.
//
// Prefer binding to localhost. Non-loopback addresses require allow_insecure.
type AdminConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	Pprof         bool   `json:"pprof,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ConsoleEnabled reports whether console logging is on (default true).
func (l LoggingConfig) ConsoleEnabled() bool { return boolOr(l.Console, true) }

// FileEnabled reports whether file logging is on (default true).
func (l LoggingConfig) FileEnabled() bool { return boolOr(l.File, true) }
