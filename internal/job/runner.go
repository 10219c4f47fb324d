package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"petbot/internal/eventbus"
	rtsup "petbot/internal/runtime/supervisor"
	"petbot/internal/storage"
	logx "petbot/pkg/logx"
)

// Runner executes registered job handlers on a bounded worker pool.
// Runs are persisted before they are queued, so a restart resumes them.
type Runner struct {
	cfg   Config
	log   logx.Logger
	bus   eventbus.Bus
	store Store

	mu       sync.Mutex
	handlers map[string]Handler
	queued   map[string]struct{}
	q        chan storage.JobRun
	sup      *rtsup.Supervisor
}

func NewRunner(cfg Config, store Store, log logx.Logger, bus eventbus.Bus) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		cfg:      cfg.withDefaults(),
		log:      log.With(logx.String("comp", "job.runner")),
		bus:      bus,
		store:    store,
		handlers: map[string]Handler{},
		queued:   map[string]struct{}{},
	}
}

// Register binds a handler to an event name. Registering twice replaces the handler.
func (r *Runner) Register(event string, h Handler) {
	r.mu.Lock()
	r.handlers[event] = h
	r.mu.Unlock()
}

func (r *Runner) handler(event string) Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handlers[event]
}

// Start launches the workers and re-queues runs a previous process left unfinished.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.sup != nil {
		r.mu.Unlock()
		return nil
	}
	r.q = make(chan storage.JobRun, r.cfg.QueueSize)
	r.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	sup, q := r.sup, r.q
	r.mu.Unlock()

	for i := 0; i < r.cfg.Workers; i++ {
		idx := i
		sup.Go0(fmt.Sprintf("worker.%d", idx), func(c context.Context) { r.worker(c, q, idx) })
	}

	n, err := r.Resume(ctx)
	if err != nil {
		return fmt.Errorf("resume runs: %w", err)
	}
	if n > 0 {
		r.log.Info("runs resumed", logx.Int("count", n))
	}
	sup.Go0("resume", func(c context.Context) {
		t := time.NewTicker(r.cfg.ResumeEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if n, err := r.Resume(c); err != nil && c.Err() == nil {
					r.log.Warn("resume failed", logx.Err(err))
				} else if n > 0 {
					r.log.Info("runs resumed", logx.Int("count", n))
				}
			}
		}
	})
	r.log.Info("service started", logx.Int("workers", r.cfg.Workers))
	return nil
}

func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	sup := r.sup
	r.sup = nil
	r.q = nil
	r.queued = map[string]struct{}{}
	r.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// Trigger persists a new run for event and queues it. payload is JSON-encoded.
// When the runner is stopped or its queue is full the run stays pending and
// is picked up by Start or the next Resume.
func (r *Runner) Trigger(ctx context.Context, event string, payload any) (string, error) {
	if r.handler(event) == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	jr, err := r.store.CreateRun(ctx, event, b)
	if err != nil {
		return "", err
	}
	switch _, err := r.enqueue(jr); {
	case errors.Is(err, ErrQueueFull):
		r.log.Warn("run deferred, queue full", logx.String("event", event), logx.String("run", jr.ID))
	case err != nil && !errors.Is(err, ErrStopped):
		return jr.ID, err
	default:
		r.log.Debug("run triggered", logx.String("event", event), logx.String("run", jr.ID))
	}
	return jr.ID, nil
}

// Resume queues persisted pending or running runs that are not already queued
// or executing, and returns how many it queued. It stops early when the queue
// is full; the rest wait for the next call.
func (r *Runner) Resume(ctx context.Context) (int, error) {
	runs, err := r.store.UnfinishedRuns(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, jr := range runs {
		ok, err := r.enqueue(jr)
		if err != nil {
			if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrStopped) {
				break
			}
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// enqueue reports false for a run that is already queued or executing.
func (r *Runner) enqueue(jr storage.JobRun) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.q == nil {
		return false, ErrStopped
	}
	if _, dup := r.queued[jr.ID]; dup {
		return false, nil
	}
	select {
	case r.q <- jr:
		r.queued[jr.ID] = struct{}{}
		return true, nil
	default:
		return false, ErrQueueFull
	}
}

func (r *Runner) dequeued(id string) {
	r.mu.Lock()
	delete(r.queued, id)
	r.mu.Unlock()
}

func (r *Runner) worker(ctx context.Context, q <-chan storage.JobRun, idx int) {
	// Per-worker RNG: no shared lock when many runs back off at once.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ (int64(idx) << 32)))
	for {
		select {
		case <-ctx.Done():
			return
		case jr := <-q:
			r.exec(ctx, jr, rng)
			r.dequeued(jr.ID)
		}
	}
}

func (r *Runner) exec(ctx context.Context, jr storage.JobRun, rng *rand.Rand) {
	log := r.log.With(logx.String("event", jr.Event), logx.String("run", jr.ID))
	// The queued copy may be stale: a sweep can list a run that finished since.
	cur, err := r.store.RunByID(ctx, jr.ID)
	switch {
	case err != nil:
		log.Warn("run lookup failed", logx.Err(err))
	case cur.Status == storage.RunDone || cur.Status == storage.RunFailed:
		return
	default:
		jr = cur
	}
	h := r.handler(jr.Event)
	if h == nil {
		r.finish(ctx, log, jr, jr.Attempts, fmt.Errorf("%w: %s", ErrUnknownEvent, jr.Event))
		return
	}

	attempts := jr.Attempts
	for {
		attempts++
		if err := r.store.UpdateRun(ctx, jr.ID, storage.RunRunning, attempts, ""); err != nil {
			log.Warn("run state update failed", logx.Err(err))
		}

		run := NewRun(jr.ID, jr.Event, jr.Payload, jr.StartedAt, r.store, log)
		run.Attempt = attempts
		start := time.Now()
		err := r.call(ctx, h, run)
		if err == nil {
			if uerr := r.store.UpdateRun(ctx, jr.ID, storage.RunDone, attempts, ""); uerr != nil {
				log.Warn("run state update failed", logx.Err(uerr))
			}
			log.Debug("run completed", logx.Int("attempts", attempts), logx.Duration("dur", time.Since(start)))
			return
		}
		if ctx.Err() != nil {
			// Left running; resumed on next start.
			return
		}
		if IsNoRetry(err) || attempts > r.cfg.RetryMax {
			r.finish(ctx, log, jr, attempts, err)
			return
		}

		if uerr := r.store.UpdateRun(ctx, jr.ID, storage.RunPending, attempts, err.Error()); uerr != nil {
			log.Warn("run state update failed", logx.Err(uerr))
		}
		delay := backoffDelay(r.cfg, attempts, rng)
		log.Debug("run retry scheduled", logx.Int("attempt", attempts+1), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return
		case <-tmr.C:
		}
	}
}

func (r *Runner) call(ctx context.Context, h Handler, run *Run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			run.Log.Error("run panicked", logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
		}
	}()
	return h(ctx, run)
}

func (r *Runner) finish(ctx context.Context, log logx.Logger, jr storage.JobRun, attempts int, err error) {
	if uerr := r.store.UpdateRun(ctx, jr.ID, storage.RunFailed, attempts, err.Error()); uerr != nil {
		log.Warn("run state update failed", logx.Err(uerr))
	}
	log.Warn("run failed", logx.Int("attempts", attempts), logx.Err(err))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{Type: eventbus.JobFailed, Subject: jr.ID, Detail: jr.Event + ": " + err.Error()})
	}
}

func backoffDelay(cfg Config, retry int, rng *rand.Rand) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < retry; i++ {
		d *= 2
		if d > cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	if cfg.RetryJitter > 0 && rng != nil {
		r := (rng.Float64()*2 - 1) * cfg.RetryJitter
		d = time.Duration(float64(d) * (1 + r))
		if d < 0 {
			d = 0
		}
	}
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
