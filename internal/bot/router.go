package bot

import (
	"context"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	rtsup "petbot/internal/runtime/supervisor"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

const defaultTimeout = 30 * time.Second

// Client is the transport surface the router needs.
type Client interface {
	kit.Sender
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// Command is one slash command, e.g. Name "comida" for "/comida 120g".
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Hidden      bool          // not listed in /ajuda or the menu
	Timeout     time.Duration // default 30s
	Handle      HandlerFunc
}

// Request is a routed command message.
type Request struct {
	Chat     kit.ChatTarget
	FromID   int64
	Username string
	Command  string
	Args     []string
	RawArgs  string // text after the command word, trimmed
	Time     time.Time
	ReqID    string
	Log      logx.Logger

	sender kit.Sender
}

func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.sender.SendText(ctx, r.Chat, text, nil)
	return err
}

func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.sender.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// Router parses slash commands and runs their handlers on a bounded worker pool.
type Router struct {
	client  Client
	log     logx.Logger
	workers int
	now     func() time.Time

	mu    sync.RWMutex
	cmds  map[string]*Command
	order []*Command

	running atomic.Bool
	jobs    chan func(ctx context.Context)
}

func NewRouter(client Client, workers int, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if workers <= 0 {
		workers = 4
	}
	return &Router{
		client:  client,
		log:     log.With(logx.String("comp", "bot.router")),
		workers: workers,
		now:     time.Now,
		cmds:    map[string]*Command{},
		jobs:    make(chan func(ctx context.Context), 256),
	}
}

// Register adds commands. A later registration of the same name wins.
func (r *Router) Register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		cc := c
		cc.Name = name
		if _, exists := r.cmds[name]; !exists {
			r.order = append(r.order, &cc)
		} else {
			for i, o := range r.order {
				if o.Name == name {
					r.order[i] = &cc
				}
			}
		}
		r.cmds[name] = &cc
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				r.cmds[a] = &cc
			}
		}
	}
}

// Commands returns the visible commands in registration order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, 0, len(r.order))
	for _, c := range r.order {
		if !c.Hidden {
			out = append(out, *c)
		}
	}
	return out
}

// Menu builds the client command menu, sorted by name.
func (r *Router) Menu() []kit.BotCommand {
	cmds := r.Commands()
	out := make([]kit.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		desc := strings.TrimSpace(c.Description)
		if desc == "" {
			desc = c.Name
		}
		out = append(out, kit.BotCommand{Command: c.Name, Description: desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// PublishMenu pushes Menu to adapters that support a command menu.
func (r *Router) PublishMenu(ctx context.Context, a any) {
	up, ok := a.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := up.UpdateMenuCommands(cctx, r.Menu()); err != nil {
		r.log.Warn("menu update failed", logx.Err(err))
	}
}

// Run serves the worker pool until ctx is done.
func (r *Router) Run(ctx context.Context) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	r.running.Store(true)
	defer r.running.Store(false)

	for i := 0; i < r.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					func() {
						defer func() {
							if p := recover(); p != nil {
								r.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", p), logx.Stack(string(debug.Stack())))
							}
						}()
						job(c)
					}()
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("command dispatcher started", logx.Int("workers", r.workers), logx.Int("queue_cap", cap(r.jobs)))

	<-ctx.Done()
	wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = sup.Stop(wctx)
	r.log.Info("command dispatcher stopped")
	return nil
}

// Dispatch routes one update that no conversation claimed.
// Plain text is ignored; stray callbacks are acknowledged.
func (r *Router) Dispatch(ctx context.Context, up kit.Update) {
	if up.Callback != nil {
		_ = r.client.AnswerCallback(ctx, up.Callback.ID, "")
		return
	}
	msg := up.Message
	if msg == nil {
		return
	}
	word, rest, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID}

	r.mu.RLock()
	cmd := r.cmds[word]
	r.mu.RUnlock()
	if cmd == nil {
		_, _ = r.client.SendText(ctx, chat, TextUnknownCommand, nil)
		return
	}

	at := r.now()
	if msg.Unix > 0 {
		at = time.Unix(msg.Unix, 0)
	}
	rid := uuid.NewString()[:8]
	req := &Request{
		Chat:     chat,
		FromID:   msg.FromID,
		Username: msg.FromUsername,
		Command:  cmd.Name,
		Args:     strings.Fields(rest),
		RawArgs:  rest,
		Time:     at,
		ReqID:    rid,
		Log: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
		sender: r.client,
	}

	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	final := Chain(cmd.Handle,
		MWReplyOnError(),
		MWRequestLog(),
		MWPanicRecover(),
		MWTimeout(timeout),
	)

	if !r.running.Load() || !r.tryEnqueue(func(c context.Context) { _ = final(c, req) }) {
		_, _ = r.client.SendText(ctx, chat, TextBusy, nil)
	}
}

func (r *Router) tryEnqueue(fn func(ctx context.Context)) bool {
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// parseCommand splits "/cmd@bot rest" into ("cmd", "rest").
func parseCommand(text string) (word, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		rest = head[i+1:] + " " + rest
		head = head[:i]
	}
	if i := strings.IndexByte(head, '@'); i >= 0 {
		head = head[:i]
	}
	head = strings.ToLower(head)
	if head == "" {
		return "", "", false
	}
	return head, strings.TrimSpace(rest), true
}
