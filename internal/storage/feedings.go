package storage

import (
	"context"
	"database/sql"
	"time"

	"petbot/internal/model"
)

func (s *Store) AddFeeding(ctx context.Context, f model.Feeding) (model.Feeding, error) {
	if f.ID == "" {
		f.ID = newID()
	}
	f.CreatedAt = s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pet_food(id, pet_id, user_id, quantity, time, message_id, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		f.ID, f.PetID, f.UserID, f.Quantity, toMillis(f.Time), f.MessageID, toMillis(f.CreatedAt),
	)
	if err != nil {
		return model.Feeding{}, err
	}
	return f, nil
}

// LastFeeding returns the pet's most recent feeding by feeding time.
func (s *Store) LastFeeding(ctx context.Context, petID string) (model.Feeding, error) {
	var (
		f             model.Feeding
		at, createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pet_id, user_id, quantity, time, message_id, created_at
		FROM pet_food WHERE pet_id = ?
		ORDER BY time DESC LIMIT 1`, petID,
	).Scan(&f.ID, &f.PetID, &f.UserID, &f.Quantity, &at, &f.MessageID, &createdAt)
	if err != nil {
		return model.Feeding{}, notFound(err, "feeding")
	}
	f.Time = fromMillis(at)
	f.CreatedAt = fromMillis(createdAt)
	return f, nil
}

// ConsumptionAggregate sums feeding quantity for the pet within [from, to).
func (s *Store) ConsumptionAggregate(ctx context.Context, petID string, from, to time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(quantity) FROM pet_food
		WHERE pet_id = ? AND time >= ? AND time < ?`,
		petID, toMillis(from), toMillis(to),
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}
