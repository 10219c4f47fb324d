package app

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"petbot/internal/config"
	"petbot/internal/notify"
	logx "petbot/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// reloader applies the hot-reloadable parts of a new config.
type reloader struct {
	log           logx.Logger
	logs          *logx.Service
	sender        *notify.Throttled
	reminderAfter *atomic.Int64 // time.Duration

	last *config.Config
}

func (r *reloader) apply(next *config.Config) {
	res, err := config.Resolve(next)
	if err != nil {
		r.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}
	changed, fields := config.SummarizeChange(r.last, next)
	r.last = next
	if len(changed) == 0 {
		r.log.Info("config reloaded (no changes)")
		return
	}

	r.logs.Apply(logConfig(next))
	r.sender.SetRate(res.NotifierRate)
	r.reminderAfter.Store(int64(res.ReminderAfter))

	if restart := config.RestartRequired(changed); len(restart) > 0 {
		r.log.Warn("restart required for some changes", logx.String("sections", strings.Join(restart, ",")))
	}
	r.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, fields...)...)
}

// run applies configs from sub until ctx is done, coalescing bursts.
func (r *reloader) run(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			for drained := false; !drained; {
				select {
				case newer, ok := <-sub:
					if !ok {
						drained = true
					} else if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			if next != nil {
				r.apply(next)
			}
		}
	}
}

func (r *reloader) ReminderAfter() time.Duration { return time.Duration(r.reminderAfter.Load()) }
