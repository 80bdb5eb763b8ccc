package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvToken        = "TOKEN"
	EnvGuildID      = "GUILD_ID"
	EnvDatabaseURL  = "DATABASE_URL"
	EnvLogLevel     = "LOG_LEVEL"
	EnvDevOnlyIDs   = "DEV_ONLY_IDS"
	EnvLogDir       = "LOG_DIR"
	EnvLogChannelID = "LOG_CHANNEL_ID"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Variables that are already set
// are left alone, and missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. lookup is usually
// os.LookupEnv. Empty values are treated as unset.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get(EnvToken); ok {
		cfg.Token = v
	}
	if v, ok := get(EnvGuildID); ok {
		cfg.GuildID = v
	}
	if v, ok := get(EnvDatabaseURL); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get(EnvDevOnlyIDs); ok {
		cfg.DevOnlyIDs = SplitList(v)
	}
	if v, ok := get(EnvLogDir); ok {
		cfg.Logging.Dir = v
	}
	if v, ok := get(EnvLogChannelID); ok {
		cfg.Logging.Channel.ChannelID = v
	}
}

// SplitList splits a comma separated list, trimming entries and dropping
// empty ones.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
