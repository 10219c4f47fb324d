package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petbot/internal/conversation"
	"petbot/internal/storage"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

type sent struct {
	ChatID int64
	Text   string
	Opt    *kit.SendOptions
}

type fakeClient struct {
	mu       sync.Mutex
	sent     []sent
	answered []string
	msgID    int
	notify   chan sent
}

func newFakeClient() *fakeClient { return &fakeClient{notify: make(chan sent, 64)} }

func (f *fakeClient) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	f.msgID++
	s := sent{ChatID: to.ChatID, Text: text, Opt: opt}
	f.sent = append(f.sent, s)
	id := f.msgID
	f.mu.Unlock()
	select {
	case f.notify <- s:
	default:
	}
	return kit.MessageRef{ChatID: to.ChatID, MessageID: id}, nil
}

func (f *fakeClient) AnswerCallback(_ context.Context, id string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeClient) to(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

func (f *fakeClient) last(t *testing.T, chatID int64) string {
	t.Helper()
	got := f.to(chatID)
	require.NotEmpty(t, got, "nothing sent to chat %d", chatID)
	return got[len(got)-1]
}

// scriptSession replays updates in order.
type scriptSession struct {
	client  *fakeClient
	chatID  int64
	updates []kit.Update
}

func (s *scriptSession) Send(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return s.client.SendText(ctx, kit.ChatTarget{ChatID: s.chatID}, text, opt)
}

func (s *scriptSession) Wait(ctx context.Context) (kit.Update, error) {
	if len(s.updates) == 0 {
		<-ctx.Done()
		return kit.Update{}, ctx.Err()
	}
	up := s.updates[0]
	s.updates = s.updates[1:]
	return up, nil
}

func (s *scriptSession) AnswerCallback(ctx context.Context, id string) error {
	return s.client.AnswerCallback(ctx, id, "")
}

type begun struct {
	chatID, userID int64
	name           string
}

type fakeConversations struct {
	mu    sync.Mutex
	begun []begun
	err   error
}

func (f *fakeConversations) Begin(chatID, userID int64, name string, _ func(context.Context, *conversation.Conversation) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.begun = append(f.begun, begun{chatID: chatID, userID: userID, name: name})
	return nil
}

type scheduled struct {
	key, event string
	at         time.Time
	payload    any
}

type fakeReminders struct {
	mu      sync.Mutex
	calls   []scheduled
	pending map[string]time.Time
}

func (f *fakeReminders) Schedule(_ context.Context, key string, at time.Time, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, scheduled{key: key, event: event, at: at, payload: payload})
	if f.pending == nil {
		f.pending = map[string]time.Time{}
	}
	f.pending[key] = at
	return nil
}

func (f *fakeReminders) Next(_ context.Context, key string) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.pending[key]
	return at, ok, nil
}

func (f *fakeReminders) Cancel(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, key)
	return nil
}

type harness struct {
	store  *storage.Store
	client *fakeClient
	convs  *fakeConversations
	rem    *fakeReminders
	router *Router
	h      *Handlers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "petbot.db")}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	hs := &harness{store: st, client: newFakeClient(), convs: &fakeConversations{}, rem: &fakeReminders{}}
	hs.router = NewRouter(hs.client, 2, logx.Nop())
	hs.h = NewHandlers(Deps{
		Store:         st,
		Sender:        hs.client,
		Conversations: hs.convs,
		Reminders:     hs.rem,
	}, hs.router)
	hs.router.Register(hs.h.Commands()...)
	return hs
}

// req builds a command request from telegram user tg in a private chat.
func (hs *harness) req(tg int64, username, args string, at time.Time) *Request {
	return &Request{
		Chat:     kit.ChatTarget{ChatID: tg},
		FromID:   tg,
		Username: username,
		Args:     strings.Fields(args),
		RawArgs:  args,
		Time:     at,
		Log:      logx.Nop(),
		sender:   hs.client,
	}
}
