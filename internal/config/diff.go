package config

import (
	"reflect"
	"sort"
	"strings"

	"modbot/pkg/logx"
)

// Change describes the difference between two configs.
type Change struct {
	// Sections lists changed top-level sections, sorted.
	Sections []string
	// Fields are safe to log: secrets are reported as booleans only.
	Fields logx.Fields
	// RestartRequired is set when a section that is only read at startup
	// changed (token, guild, database, logging, admin).
	RestartRequired bool
}

// Changed reports whether any section differs.
func (c Change) Changed() bool { return len(c.Sections) > 0 }

// SummarizeChange compares oldCfg and newCfg section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	ch := Change{Fields: logx.Fields{}}
	mark := func(section string, restart bool) {
		ch.Sections = append(ch.Sections, section)
		ch.RestartRequired = ch.RestartRequired || restart
	}

	if oldCfg.Token != newCfg.Token {
		mark("token", true)
		ch.Fields["token_set"] = strings.TrimSpace(newCfg.Token) != ""
	}
	if oldCfg.GuildID != newCfg.GuildID {
		mark("guild_id", true)
		ch.Fields["guild_id"] = newCfg.GuildID
	}
	if oldCfg.DatabaseURL != newCfg.DatabaseURL {
		// may embed credentials
		mark("database_url", true)
	}
	if !reflect.DeepEqual(oldCfg.DevOnlyIDs, newCfg.DevOnlyIDs) {
		mark("dev_only_ids", false)
		ch.Fields["dev_only_count"] = len(newCfg.DevOnlyIDs)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging", true)
		ch.Fields["logging.level"] = newCfg.Logging.Level
		ch.Fields["logging.console"] = newCfg.Logging.ConsoleEnabled()
		ch.Fields["logging.file"] = newCfg.Logging.FileEnabled()
		ch.Fields["logging.channel_set"] = newCfg.Logging.Channel.ChannelID != ""
	}
	if !reflect.DeepEqual(oldCfg.Commands, newCfg.Commands) {
		mark("commands", false)
		ch.Fields["commands.timeout"] = newCfg.Commands.TimeoutOrDefault().String()
		ch.Fields["commands.disabled"] = len(newCfg.Commands.Disabled)
		ch.Fields["commands.cooldowns"] = len(newCfg.Commands.Cooldowns)
	}
	if oldCfg.Activity != newCfg.Activity {
		mark("activity", true)
		ch.Fields["activity.flush_interval"] = newCfg.Activity.FlushIntervalOrDefault().String()
	}
	if oldCfg.Moderation != newCfg.Moderation {
		mark("moderation", true)
		ch.Fields["moderation.expiry_schedule"] = newCfg.Moderation.ExpiryScheduleOrDefault()
	}
	if oldCfg.Admin != newCfg.Admin {
		mark("admin", true)
		ch.Fields["admin.enabled"] = newCfg.Admin.Enabled
		ch.Fields["admin.addr"] = newCfg.Admin.AddrOrDefault()
	}

	sort.Strings(ch.Sections)
	return ch
}
