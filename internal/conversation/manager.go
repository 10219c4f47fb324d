package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	rtsup "petbot/internal/runtime/supervisor"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

const (
	CancelCommand   = "cancelar"
	CancelledText   = "Operação cancelada"
	inboxSize       = 8
	dropReportEvery = 5 * time.Second
)

// Fallback handles updates that no conversation claims.
type Fallback func(ctx context.Context, up kit.Update)

type key struct {
	chat int64
	user int64
}

type session struct {
	conv   *Conversation
	cancel chan struct{}
	once   sync.Once
}

func (s *session) stop() { s.once.Do(func() { close(s.cancel) }) }

// Manager routes updates to active conversations.
type Manager struct {
	client   Client
	log      logx.Logger
	fallback Fallback

	mu       sync.Mutex
	sessions map[key]*session
	sup      *rtsup.Supervisor

	dropped uint64
}

func NewManager(client Client, fallback Fallback, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		client:   client,
		fallback: fallback,
		log:      log.With(logx.String("comp", "conversation")),
		sessions: map[key]*session{},
	}
}

// Run dispatches updates until ctx is done or updates is closed.
// Conversations started through Begin live under Run's supervisor.
func (m *Manager) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(m.log), rtsup.WithCancelOnError(false))
	m.mu.Lock()
	m.sup = sup
	m.mu.Unlock()

	sup.Go0("drop_report", func(c context.Context) {
		t := time.NewTicker(dropReportEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if n := atomic.SwapUint64(&m.dropped, 0); n > 0 {
					m.log.Warn("conversation updates dropped (inbox full)", logx.Uint64("count", n))
				}
			}
		}
	})

	defer func() {
		m.mu.Lock()
		for k, s := range m.sessions {
			s.stop()
			delete(m.sessions, k)
		}
		m.sup = nil
		m.mu.Unlock()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.Dispatch(ctx, up)
		}
	}
}

// Dispatch routes one update: /cancelar ends the active conversation, an
// active conversation receives the update, anything else goes to the fallback.
func (m *Manager) Dispatch(ctx context.Context, up kit.Update) {
	k := key{chat: up.ChatID(), user: up.FromID()}

	if up.Message != nil && isCommand(up.Message.Text, CancelCommand) {
		if m.end(k) {
			m.log.Debug("conversation cancelled", logx.Int64("chat_id", k.chat), logx.Int64("from_id", k.user))
		}
		_, err := m.client.SendText(ctx, kit.ChatTarget{ChatID: k.chat}, CancelledText, &kit.SendOptions{RemoveKeyboard: true})
		if err != nil {
			m.log.Warn("cancel reply failed", logx.Err(err))
		}
		return
	}

	m.mu.Lock()
	s := m.sessions[k]
	m.mu.Unlock()
	if s != nil {
		if !s.conv.deliver(up) {
			atomic.AddUint64(&m.dropped, 1)
		}
		return
	}
	if m.fallback != nil {
		m.fallback(ctx, up)
	}
}

// active reports whether the user has an active conversation in the chat.
func (m *Manager) active(chatID, userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[key{chat: chatID, user: userID}]
	return ok
}

// Begin starts fn as the user's conversation in the chat, replacing any active one.
// fn returning ErrCancelled is a normal exit.
func (m *Manager) Begin(chatID, userID int64, name string, fn func(ctx context.Context, c *Conversation) error) error {
	k := key{chat: chatID, user: userID}
	s := &session{cancel: make(chan struct{})}
	s.conv = &Conversation{
		ChatID: chatID,
		UserID: userID,
		Log:    m.log.With(logx.String("conv", name), logx.Int64("chat_id", chatID), logx.Int64("from_id", userID)),
		client: m.client,
		in:     make(chan kit.Update, inboxSize),
		done:   s.cancel,
	}

	m.mu.Lock()
	sup := m.sup
	if sup == nil {
		m.mu.Unlock()
		return errors.New("conversation manager not running")
	}
	if prev := m.sessions[k]; prev != nil {
		prev.stop()
	}
	m.sessions[k] = s
	m.mu.Unlock()

	sup.Go0("conv."+name, func(ctx context.Context) {
		defer m.release(k, s)
		if err := fn(ctx, s.conv); err != nil && !errors.Is(err, ErrCancelled) && !errors.Is(err, context.Canceled) {
			s.conv.Log.Warn("conversation failed", logx.Err(err))
		}
	})
	return nil
}

func (m *Manager) end(k key) bool {
	m.mu.Lock()
	s := m.sessions[k]
	delete(m.sessions, k)
	m.mu.Unlock()
	if s == nil {
		return false
	}
	s.stop()
	return true
}

func (m *Manager) release(k key, s *session) {
	m.mu.Lock()
	if m.sessions[k] == s {
		delete(m.sessions, k)
	}
	m.mu.Unlock()
	s.stop()
}

// isCommand matches "/name" and "/name@bot", ignoring arguments.
func isCommand(text, name string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return false
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	return strings.EqualFold(word, name)
}
