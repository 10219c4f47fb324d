package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// CreateRun persists a new pending run. StartedAt is the trigger time and never changes across retries.
func (s *Store) CreateRun(ctx context.Context, event string, payload []byte) (JobRun, error) {
	now := s.now().UTC()
	r := JobRun{ID: newID(), Event: event, Payload: payload, StartedAt: now, Status: RunPending}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs(id, event, payload, started_at, status, attempts, updated_at)
		VALUES(?,?,?,?,?,0,?)`,
		r.ID, r.Event, string(r.Payload), toMillis(r.StartedAt), r.Status, toMillis(now),
	)
	if err != nil {
		return JobRun{}, err
	}
	return r, nil
}

func (s *Store) UpdateRun(ctx context.Context, id, status string, attempts int, lastErr string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, attempts = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, attempts, nullStr(lastErr), toMillis(s.now()), id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "job run")
	}
	return nil
}

const runCols = `id, event, payload, started_at, status, attempts, last_error`

func scanRun(row interface{ Scan(...any) error }) (JobRun, error) {
	var (
		r       JobRun
		payload string
		started int64
		lastErr sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Event, &payload, &started, &r.Status, &r.Attempts, &lastErr); err != nil {
		return JobRun{}, err
	}
	r.Payload = []byte(payload)
	r.StartedAt = fromMillis(started)
	r.LastError = lastErr.String
	return r, nil
}

func (s *Store) RunByID(ctx context.Context, id string) (JobRun, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runCols+` FROM job_runs WHERE id = ?`, id))
	return r, notFound(err, "job run")
}

// UnfinishedRuns lists runs left pending or running, oldest first.
func (s *Store) UnfinishedRuns(ctx context.Context) ([]JobRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runCols+` FROM job_runs WHERE status IN (?, ?) ORDER BY started_at, id`,
		RunPending, RunRunning,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StepDone reports whether the named step of the run already completed.
func (s *Store) StepDone(ctx context.Context, runID, step string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM job_steps WHERE run_id = ? AND step = ?`, runID, step).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) MarkStep(ctx context.Context, runID, step string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_steps(run_id, step, done_at) VALUES(?,?,?)
		ON CONFLICT(run_id, step) DO NOTHING`,
		runID, step, toMillis(s.now()),
	)
	return err
}

// UpsertTrigger schedules (or reschedules) the trigger identified by key.
func (s *Store) UpsertTrigger(ctx context.Context, t Trigger) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_triggers(key, event, payload, run_at) VALUES(?,?,?,?)
		ON CONFLICT(key) DO UPDATE SET event = excluded.event, payload = excluded.payload, run_at = excluded.run_at`,
		t.Key, t.Event, string(t.Payload), toMillis(t.RunAt),
	)
	return err
}

// TriggerByKey returns the pending trigger with the given key.
func (s *Store) TriggerByKey(ctx context.Context, key string) (Trigger, error) {
	var (
		t       Trigger
		payload string
		runAt   int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT key, event, payload, run_at FROM job_triggers WHERE key = ?`, key).
		Scan(&t.Key, &t.Event, &payload, &runAt)
	if err != nil {
		return Trigger{}, notFound(err, "trigger")
	}
	t.Payload = []byte(payload)
	t.RunAt = fromMillis(runAt)
	return t, nil
}

// DeleteTrigger removes the trigger and reports whether it existed.
func (s *Store) DeleteTrigger(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_triggers WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DueTriggers lists triggers whose run_at is at or before now, earliest first.
func (s *Store) DueTriggers(ctx context.Context, now time.Time, limit int) ([]Trigger, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, event, payload, run_at FROM job_triggers WHERE run_at <= ? ORDER BY run_at, key LIMIT ?`,
		toMillis(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var (
			t       Trigger
			payload string
			runAt   int64
		)
		if err := rows.Scan(&t.Key, &t.Event, &payload, &runAt); err != nil {
			return nil, err
		}
		t.Payload = []byte(payload)
		t.RunAt = fromMillis(runAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
