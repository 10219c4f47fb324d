package app

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"petbot/internal/api"
	"petbot/internal/bot"
	"petbot/internal/config"
	"petbot/internal/conversation"
	"petbot/internal/eventbus"
	"petbot/internal/feeding"
	"petbot/internal/job"
	"petbot/internal/notify"
	rtsup "petbot/internal/runtime/supervisor"
	"petbot/internal/storage"
	kit "petbot/internal/transport"
	telegram "petbot/internal/transport/telegram/adapter"
	logx "petbot/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	cfg  *config.Resolved

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store *storage.Store

	adapter *telegram.Adapter
	sender  *notify.Throttled

	runner *job.Runner
	sched  *job.Scheduler
	convs  *conversation.Manager
	router *bot.Router
	http   http.Handler

	reload *reloader
	sup    *rtsup.Supervisor

	updates chan kit.Update
}

func New(ctx context.Context, cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, logx.Nop())
	raw, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg, err := config.Resolve(raw)
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:       raw.Telegram.Token,
		PollTimeout: cfg.PollTimeout,
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(raw), ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	bus := eventbus.New()

	store, err := storage.Open(ctx, storage.Config{Path: raw.Storage.Path, BusyTimeout: cfg.BusyTimeout}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	sender := notify.Throttle(ad, cfg.NotifierRate)

	runner := job.NewRunner(job.Config{
		Workers:       cfg.JobWorkers,
		QueueSize:     cfg.JobQueueSize,
		RetryMax:      cfg.JobRetryMax,
		RetryBase:     cfg.JobRetryBase,
		RetryMaxDelay: cfg.JobRetryMaxDel,
		ResumeEvery:   cfg.JobPollEvery,
	}, store, log, bus)
	runner.Register(feeding.Event, feeding.NewNotifier(store, sender, log, bus).Handle)
	sched := job.NewScheduler(cfg.JobPollEvery, store, runner, log)

	rl := &reloader{
		log:           log.With(logx.String("comp", "config")),
		logs:          logSvc,
		sender:        sender,
		reminderAfter: new(atomic.Int64),
		last:          raw,
	}
	rl.reminderAfter.Store(int64(cfg.ReminderAfter))

	client := chatClient{Throttled: sender, adapter: ad}
	router := bot.NewRouter(client, 0, log)
	convs := conversation.NewManager(client, router.Dispatch, log)
	handlers := bot.NewHandlers(bot.Deps{
		Store:         store,
		Sender:        sender,
		Conversations: convs,
		Reminders:     sched,
		ReminderAfter: rl.ReminderAfter,
		Bus:           bus,
		Log:           log,
	}, router)
	router.Register(handlers.Commands()...)

	a := &App{
		cfgm:    cfgm,
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		adapter: ad,
		sender:  sender,
		runner:  runner,
		sched:   sched,
		convs:   convs,
		router:  router,
		reload:  rl,
		updates: make(chan kit.Update, 256),
	}
	if raw.HTTP.Enabled {
		b := notify.NewBroadcaster(store, sender, log, bus)
		apiLog := log.With(logx.String("comp", "http"))
		var opts []api.Option
		if raw.HTTP.Pprof {
			opts = append(opts, api.WithPprof())
		}
		a.http = api.NewRouter(api.NewHandler(b, apiLog), apiLog, opts...)
	}
	return a, nil
}

// Done is closed once the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		_, err := config.Resolve(cfg)
		return err
	})

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("audit", func(c context.Context) {
		defer unsub()
		runAudit(c, events, a.store, a.log.With(logx.String("comp", "audit")))
	})

	if err := a.runner.Start(c); err != nil {
		return err
	}
	if err := a.sched.Start(c); err != nil {
		return err
	}
	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}

	a.sup.Go("commands", a.router.Run)
	a.sup.Go("conversations", func(c context.Context) error { return a.convs.Run(c, a.updates) })
	a.sup.Go0("menu.publish", func(c context.Context) { a.router.PublishMenu(c, a.adapter) })

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reload.run(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if a.http != nil {
		a.sup.Go("http", func(c context.Context) error {
			return api.Serve(c, a.cfg.HTTPAddr, a.http, a.log.With(logx.String("comp", "http")))
		})
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "jobs", 3*time.Second, a.runner.Stop)
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 3*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
