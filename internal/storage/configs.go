package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"petbot/internal/model"
)

// GetConfig decodes the scoped config value into out.
// It reports false when the key is not set.
func (s *Store) GetConfig(ctx context.Context, scope model.Scope, key, ownerID string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM configs WHERE scope = ? AND key = ? AND owner_id = ?`,
		string(scope), key, ownerID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("config %s/%s: %w", scope, key, err)
	}
	return true, nil
}

func (s *Store) SetConfig(ctx context.Context, scope model.Scope, key, ownerID string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO configs(scope, key, owner_id, value, updated_at) VALUES(?,?,?,?,?)
		ON CONFLICT(scope, key, owner_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(scope), key, ownerID, string(b), toMillis(s.now()),
	)
	return err
}

// DayStart loads the pet's start-of-day; model.ErrPreconditionMissing when unset.
func (s *Store) DayStart(ctx context.Context, petID string) (model.DayStart, error) {
	var ds model.DayStart
	ok, err := s.GetConfig(ctx, model.ScopePet, model.KeyDayStart, petID, &ds)
	if err != nil {
		return model.DayStart{}, err
	}
	if !ok || ds.Time == "" || ds.Timezone == "" {
		return model.DayStart{}, fmt.Errorf("dayStart for pet %s: %w", petID, model.ErrPreconditionMissing)
	}
	return ds, nil
}

// CurrentPet loads the user's current pet; model.ErrPreconditionMissing when unset.
func (s *Store) CurrentPet(ctx context.Context, userID string) (model.CurrentPet, error) {
	var cp model.CurrentPet
	ok, err := s.GetConfig(ctx, model.ScopeUser, model.KeyCurrentPet, userID, &cp)
	if err != nil {
		return model.CurrentPet{}, err
	}
	if !ok || cp.ID == "" {
		return model.CurrentPet{}, fmt.Errorf("currentPet for user %s: %w", userID, model.ErrPreconditionMissing)
	}
	return cp, nil
}
