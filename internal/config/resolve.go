package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resolved is Config with defaults applied and durations parsed.
type Resolved struct {
	Raw *Config

	PollTimeout    time.Duration
	BusyTimeout    time.Duration
	HTTPAddr       string
	NotifierRate   int
	JobWorkers     int
	JobQueueSize   int
	JobRetryMax    int
	JobRetryBase   time.Duration
	JobRetryMaxDel time.Duration
	JobPollEvery   time.Duration
	ReminderAfter  time.Duration
}

// Resolve validates cfg and applies defaults. Errors name the offending field.
func Resolve(cfg *Config) (*Resolved, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, errors.New("telegram.token is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return nil, errors.New("storage.path is required")
	}
	if cfg.Logging.Telegram.Enabled && cfg.Logging.Telegram.ChatID == 0 {
		return nil, errors.New("logging.telegram.chat_id is required when enabled")
	}

	r := &Resolved{Raw: cfg}
	durations := []struct {
		path, raw string
		def       time.Duration
		dst       *time.Duration
	}{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout, 10 * time.Second, &r.PollTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout, 5 * time.Second, &r.BusyTimeout},
		{"jobs.retry_base", cfg.Jobs.RetryBase, 500 * time.Millisecond, &r.JobRetryBase},
		{"jobs.retry_max_delay", cfg.Jobs.RetryMaxDelay, 15 * time.Second, &r.JobRetryMaxDel},
		{"jobs.poll_every", cfg.Jobs.PollEvery, 30 * time.Second, &r.JobPollEvery},
		{"feeding.reminder_after", cfg.Feeding.ReminderAfter, 4 * time.Hour, &r.ReminderAfter},
	}
	for _, d := range durations {
		v, err := parseDuration(d.path, d.raw, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	r.HTTPAddr = strings.TrimSpace(cfg.HTTP.Addr)
	if r.HTTPAddr == "" {
		r.HTTPAddr = ":8080"
	}
	r.NotifierRate = positiveOr(cfg.Notifier.RatePerSec, 25)
	r.JobWorkers = positiveOr(cfg.Jobs.Workers, 2)
	r.JobQueueSize = positiveOr(cfg.Jobs.QueueSize, 256)
	r.JobRetryMax = 3
	if cfg.Jobs.RetryMax != nil {
		if *cfg.Jobs.RetryMax < 0 {
			return nil, errors.New("jobs.retry_max must be >= 0")
		}
		r.JobRetryMax = *cfg.Jobs.RetryMax
	}
	return r, nil
}

// parseDuration reads a Go duration string; blank or zero yields def.
func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case d == 0:
		return def, nil
	}
	return d, nil
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
