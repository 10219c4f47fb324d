package config

// Config is the on-disk configuration (JSON or YAML).
// Durations are Go duration strings ("500ms", "10s", "4h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	HTTP     HTTPConfig     `json:"http"`
	Notifier NotifierConfig `json:"notifier"`
	Jobs     JobsConfig     `json:"jobs"`
	Feeding  FeedingConfig  `json:"feeding"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards WARN+ records to an operator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig locates the SQLite database.
//
// Example:
//
//	"storage": { "path": "./data/petbot.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// HTTPConfig controls the inbound notify API. Bind to localhost unless a
// reverse proxy terminates TLS in front of it.
type HTTPConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":8080"
	// Pprof mounts /debug/pprof on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}

// NotifierConfig limits outbound sends shared by broadcasts and reminders.
type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"` // default 25
}

// JobsConfig controls the durable job runner.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - retry_max: 3
//   - retry_base: "500ms"
//   - retry_max_delay: "15s"
//   - poll_every: "30s"
type JobsConfig struct {
	Workers       int    `json:"workers,omitempty"`
	QueueSize     int    `json:"queue_size,omitempty"`
	RetryMax      *int   `json:"retry_max,omitempty"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
	PollEvery     string `json:"poll_every,omitempty"`
}

type FeedingConfig struct {
	// ReminderAfter is the delay from the latest feeding to the reminder. Default "4h".
	ReminderAfter string `json:"reminder_after,omitempty"`
}
