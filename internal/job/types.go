package job

import (
	"context"
	"fmt"
	"time"

	"petbot/internal/storage"
	logx "petbot/pkg/logx"
)

// Config controls the durable job runner.
type Config struct {
	Workers       int
	QueueSize     int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	RetryJitter   float64 // 0.2 = 20%
	// ResumeEvery is how often runs left pending (queue full, lost wakeups) are re-queued.
	ResumeEvery time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 15 * time.Second
	}
	if c.RetryJitter <= 0 {
		c.RetryJitter = 0.2
	}
	if c.ResumeEvery <= 0 {
		c.ResumeEvery = 30 * time.Second
	}
	return c
}

// Handler executes one attempt of a run. Returning an error schedules a retry
// unless the error is wrapped with NoRetry.
type Handler func(ctx context.Context, run *Run) error

// StepStore persists completed step names per run.
type StepStore interface {
	StepDone(ctx context.Context, runID, step string) (bool, error)
	MarkStep(ctx context.Context, runID, step string) error
}

// Store is the persistence the runner needs. *storage.Store implements it.
type Store interface {
	StepStore
	CreateRun(ctx context.Context, event string, payload []byte) (storage.JobRun, error)
	UpdateRun(ctx context.Context, id, status string, attempts int, lastErr string) error
	RunByID(ctx context.Context, id string) (storage.JobRun, error)
	UnfinishedRuns(ctx context.Context) ([]storage.JobRun, error)
}

// Run is the handle a Handler receives for one attempt.
// StartedAt is fixed when the run is triggered and is identical on every attempt.
type Run struct {
	ID        string
	Event     string
	Payload   []byte
	StartedAt time.Time
	Attempt   int
	Log       logx.Logger

	steps StepStore
}

func NewRun(id, event string, payload []byte, startedAt time.Time, steps StepStore, log logx.Logger) *Run {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Run{ID: id, Event: event, Payload: payload, StartedAt: startedAt, Attempt: 1, Log: log, steps: steps}
}

// Step runs fn at most once per name for this run. A name already recorded as
// done is skipped; fn's success is recorded before Step returns.
// Concurrent Step calls with different names are allowed.
func (r *Run) Step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done, err := r.steps.StepDone(ctx, r.ID, name)
	if err != nil {
		return fmt.Errorf("step %s: %w", name, err)
	}
	if done {
		r.Log.Debug("step already done", logx.String("step", name))
		return nil
	}
	if err := fn(ctx); err != nil {
		return err
	}
	if err := r.steps.MarkStep(ctx, r.ID, name); err != nil {
		return fmt.Errorf("step %s: record: %w", name, err)
	}
	return nil
}
