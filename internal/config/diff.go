package config

import (
	"reflect"
	"sort"
	"strings"

	logx "petbot/pkg/logx"
)

// SummarizeChange lists the sections that differ and safe log fields for them.
// Secrets (the bot token) are never included.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		changed = append(changed, "telegram")
		fields = append(fields, logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		fields = append(fields, logx.Bool("http.enabled", newCfg.HTTP.Enabled), logx.String("http.addr", newCfg.HTTP.Addr))
	}
	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		fields = append(fields, logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec))
	}
	if !reflect.DeepEqual(oldCfg.Jobs, newCfg.Jobs) {
		changed = append(changed, "jobs")
	}
	if oldCfg.Feeding != newCfg.Feeding {
		changed = append(changed, "feeding")
		fields = append(fields, logx.String("feeding.reminder_after", newCfg.Feeding.ReminderAfter))
	}
	sort.Strings(changed)
	return changed, fields
}

// RestartRequired reports sections that only take effect after a restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "logging", "notifier":
		default:
			out = append(out, s)
		}
	}
	return out
}
