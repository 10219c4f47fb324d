package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"petbot/internal/model"
	"petbot/internal/storage"
	logx "petbot/pkg/logx"
)

// TriggerStore persists delayed triggers. *storage.Store implements it.
type TriggerStore interface {
	UpsertTrigger(ctx context.Context, t storage.Trigger) error
	TriggerByKey(ctx context.Context, key string) (storage.Trigger, error)
	DeleteTrigger(ctx context.Context, key string) (bool, error)
	DueTriggers(ctx context.Context, now time.Time, limit int) ([]storage.Trigger, error)
}

// Triggerer starts a run for an event.
type Triggerer interface {
	Trigger(ctx context.Context, event string, payload any) (string, error)
}

// Scheduler fires delayed triggers through a Triggerer.
// Triggers are keyed: scheduling an existing key moves it.
type Scheduler struct {
	pollEvery time.Duration
	store     TriggerStore
	runner    Triggerer
	log       logx.Logger
	now       func() time.Time

	mu sync.Mutex
	c  *cron.Cron
}

func NewScheduler(pollEvery time.Duration, store TriggerStore, runner Triggerer, log logx.Logger) *Scheduler {
	if pollEvery <= 0 {
		pollEvery = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		pollEvery: pollEvery,
		store:     store,
		runner:    runner,
		log:       log.With(logx.String("comp", "job.scheduler")),
		now:       time.Now,
	}
}

// Schedule upserts the trigger key to fire event with payload at at.
func (s *Scheduler) Schedule(ctx context.Context, key string, at time.Time, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := s.store.UpsertTrigger(ctx, storage.Trigger{Key: key, Event: event, Payload: b, RunAt: at}); err != nil {
		return err
	}
	s.log.Debug("trigger scheduled", logx.String("key", key), logx.Time("at", at))
	return nil
}

// Cancel removes the trigger; unknown keys are ignored.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	_, err := s.store.DeleteTrigger(ctx, key)
	return err
}

// Next reports when the trigger key fires. ok is false when nothing is scheduled.
func (s *Scheduler) Next(ctx context.Context, key string) (time.Time, bool, error) {
	t, err := s.store.TriggerByKey(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t.RunAt, true, nil
}

// Start polls for due triggers on a cron "@every" schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc("@every "+s.pollEvery.String(), func() {
		if _, err := s.FireDue(ctx); err != nil && ctx.Err() == nil {
			s.log.Warn("fire due triggers failed", logx.Err(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}
	c.Start()
	s.c = c
	s.log.Info("service started", logx.Duration("poll_every", s.pollEvery))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// FireDue triggers every due trigger once and returns how many fired.
// A trigger is deleted before its run is created; losing the delete race skips it.
func (s *Scheduler) FireDue(ctx context.Context) (int, error) {
	due, err := s.store.DueTriggers(ctx, s.now(), 100)
	if err != nil {
		return 0, err
	}
	fired := 0
	for _, t := range due {
		ok, err := s.store.DeleteTrigger(ctx, t.Key)
		if err != nil {
			return fired, err
		}
		if !ok {
			continue
		}
		if _, err := s.runner.Trigger(ctx, t.Event, json.RawMessage(t.Payload)); err != nil {
			s.log.Warn("trigger failed", logx.String("key", t.Key), logx.String("event", t.Event), logx.Err(err))
			continue
		}
		fired++
	}
	return fired, nil
}
