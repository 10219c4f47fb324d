package notify

import (
	"context"
	"errors"
	"sync"

	"petbot/internal/model"
	kit "petbot/internal/transport"
)

type fakeRepo struct {
	mu            sync.Mutex
	users         map[string]model.User // by api key
	notifications map[string]model.Notification
	subscribers   map[string][]model.User
	history       []model.NotificationHistory
	historyFails  map[string]bool // by user ID
}

func (r *fakeRepo) UserByAPIKey(_ context.Context, apiKey string) (model.User, error) {
	u, ok := r.users[apiKey]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (r *fakeRepo) NotificationByOwnerAndKeyword(_ context.Context, ownerID, keyword string) (model.Notification, []model.User, error) {
	n, ok := r.notifications[ownerID+"/"+keyword]
	if !ok {
		return model.Notification{}, nil, model.ErrNotFound
	}
	return n, r.subscribers[n.ID], nil
}

func (r *fakeRepo) CreateNotificationHistory(_ context.Context, h model.NotificationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.historyFails[h.UserID] {
		return errors.New("disk full")
	}
	r.history = append(r.history, h)
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64]bool
	sends []string
	seq   int
}

func (s *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[to.ChatID] {
		return kit.MessageRef{}, errors.New("blocked by user")
	}
	s.seq++
	s.sends = append(s.sends, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: s.seq}, nil
}

func kitTarget(chat int64) kit.ChatTarget { return kit.ChatTarget{ChatID: chat} }
