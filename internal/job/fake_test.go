package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"petbot/internal/model"
	"petbot/internal/storage"
)

type memStore struct {
	mu       sync.Mutex
	seq      int
	runs     map[string]*storage.JobRun
	steps    map[string]bool
	triggers map[string]storage.Trigger
	marks    int
}

func newMemStore() *memStore {
	return &memStore{
		runs:     map[string]*storage.JobRun{},
		steps:    map[string]bool{},
		triggers: map[string]storage.Trigger{},
	}
}

func (m *memStore) CreateRun(_ context.Context, event string, payload []byte) (storage.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r := storage.JobRun{ID: fmt.Sprintf("run-%d", m.seq), Event: event, Payload: payload, StartedAt: time.Now(), Status: storage.RunPending}
	m.runs[r.ID] = &r
	return r, nil
}

func (m *memStore) UpdateRun(_ context.Context, id, status string, attempts int, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.ErrNotFound
	}
	r.Status, r.Attempts, r.LastError = status, attempts, lastErr
	return nil
}

func (m *memStore) RunByID(_ context.Context, id string) (storage.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return storage.JobRun{}, model.ErrNotFound
	}
	return *r, nil
}

func (m *memStore) UnfinishedRuns(context.Context) ([]storage.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.JobRun
	for _, r := range m.runs {
		if r.Status == storage.RunPending || r.Status == storage.RunRunning {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) run(id string) storage.JobRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.runs[id]
}

func (m *memStore) StepDone(_ context.Context, runID, step string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steps[runID+"/"+step], nil
}

func (m *memStore) MarkStep(_ context.Context, runID, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[runID+"/"+step] = true
	m.marks++
	return nil
}

func (m *memStore) UpsertTrigger(_ context.Context, t storage.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers[t.Key] = t
	return nil
}

func (m *memStore) TriggerByKey(_ context.Context, key string) (storage.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.triggers[key]
	if !ok {
		return storage.Trigger{}, model.ErrNotFound
	}
	return t, nil
}

func (m *memStore) DeleteTrigger(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.triggers[key]
	delete(m.triggers, key)
	return ok, nil
}

func (m *memStore) DueTriggers(_ context.Context, now time.Time, _ int) ([]storage.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Trigger
	for _, t := range m.triggers {
		if !t.RunAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out, nil
}
