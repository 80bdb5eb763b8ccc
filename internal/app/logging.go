package app

import (
	"strings"

	"modbot/internal/config"
	"modbot/pkg/logx"
)

// buildLogger assembles the configured transports. The file transport is
// returned separately so its run directory can be protected from archiving.
func buildLogger(cfg config.LoggingConfig, channel logx.Sender) (*logx.Logger, *logx.FileTransport) {
	var (
		ts    []logx.Transport
		files *logx.FileTransport
	)
	if cfg.ConsoleEnabled() {
		ts = append(ts, logx.NewConsoleTransport())
	}
	if cfg.FileEnabled() {
		files = logx.NewFileTransport(cfg.Dir)
		ts = append(ts, files)
	}
	if strings.TrimSpace(cfg.Channel.ChannelID) != "" && channel != nil {
		ts = append(ts, logx.NewChannelTransport(channel, logx.ChannelOptions{
			MinLevel:   logx.ParseLevel(cfg.Channel.MinLevel, logx.LevelWarn),
			RatePerSec: cfg.Channel.RatePerSec,
		}))
	}
	return logx.New(logx.Options{
		Level:      logx.ParseLevel(cfg.Level, logx.LevelInfo),
		Transports: ts,
	}), files
}
