package feeding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"petbot/internal/model"
	kit "petbot/internal/transport"
)

func modelDayStart(clock, zone string) model.DayStart {
	return model.DayStart{Time: clock, Timezone: zone}
}

type fakeRepo struct {
	mu        sync.Mutex
	pets      map[string]model.Pet
	dayStarts map[string]model.DayStart
	carers    map[string][]model.User
	total     float64
	aggErr    error
	window    [2]time.Time
	history   []model.NotificationHistory
}

func (r *fakeRepo) PetByID(_ context.Context, id string, withOwner bool) (model.Pet, error) {
	p, ok := r.pets[id]
	if !ok {
		return model.Pet{}, fmt.Errorf("pet: %w", model.ErrNotFound)
	}
	if !withOwner {
		p.Owner = nil
	}
	return p, nil
}

func (r *fakeRepo) DayStart(_ context.Context, petID string) (model.DayStart, error) {
	ds, ok := r.dayStarts[petID]
	if !ok {
		return model.DayStart{}, model.ErrPreconditionMissing
	}
	return ds, nil
}

func (r *fakeRepo) ConsumptionAggregate(_ context.Context, _ string, from, to time.Time) (float64, error) {
	r.mu.Lock()
	r.window = [2]time.Time{from, to}
	r.mu.Unlock()
	return r.total, r.aggErr
}

func (r *fakeRepo) PetCarers(_ context.Context, petID string) ([]model.User, error) {
	return r.carers[petID], nil
}

func (r *fakeRepo) CreateNotificationHistory(_ context.Context, h model.NotificationHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	fail map[int64]bool
	to   []int64
	text []string
}

func (s *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[to.ChatID] {
		return kit.MessageRef{}, errors.New("chat not found")
	}
	s.to = append(s.to, to.ChatID)
	s.text = append(s.text, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(s.to)}, nil
}

type memSteps struct {
	mu   sync.Mutex
	done map[string]bool
}

func (m *memSteps) StepDone(_ context.Context, runID, step string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[runID+"/"+step], nil
}

func (m *memSteps) MarkStep(_ context.Context, runID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[runID+"/"+step] = true
	return nil
}
