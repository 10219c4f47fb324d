package conversation

import (
	"context"
	"sync"

	kit "petbot/internal/transport"
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
}

func (f *fakeClient) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgID++
	f.sent = append(f.sent, sent{ChatID: to.ChatID, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.msgID}, nil
}

func (f *fakeClient) AnswerCallback(_ context.Context, id string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeClient) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.Text
	}
	return out
}

// scriptSession replays updates in order and records what the selector sends.
type scriptSession struct {
	client  *fakeClient
	updates []kit.Update
}

func (s *scriptSession) Send(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return s.client.SendText(ctx, kit.ChatTarget{ChatID: 1}, text, opt)
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

func callback(id, data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: id, ChatID: 1, FromID: 10, Data: data}}
}

func text(t string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: 1, FromID: 10, Text: t}}
}
