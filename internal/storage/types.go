package storage

import "time"

// Config configures storage.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// AuditEntry records an operational failure worth keeping after the logs rotate.
type AuditEntry struct {
	At      time.Time
	Kind    string
	Subject string
	Detail  string
}

// JobRun is a persisted durable job run.
type JobRun struct {
	ID        string
	Event     string
	Payload   []byte
	StartedAt time.Time
	Status    string
	Attempts  int
	LastError string
}

// Job run statuses.
const (
	RunPending = "pending"
	RunRunning = "running"
	RunDone    = "done"
	RunFailed  = "failed"
)

// Trigger is a delayed job trigger.
type Trigger struct {
	Key     string
	Event   string
	Payload []byte
	RunAt   time.Time
}
