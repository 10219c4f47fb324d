package storage

import (
	"context"

	"petbot/internal/model"
)

func (s *Store) CreatePet(ctx context.Context, ownerID, name string) (model.Pet, error) {
	p := model.Pet{ID: newID(), Name: name, OwnerID: ownerID, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pets(id, name, owner_id, created_at) VALUES(?,?,?,?)`,
		p.ID, p.Name, p.OwnerID, toMillis(p.CreatedAt),
	)
	if err != nil {
		return model.Pet{}, err
	}
	return p, nil
}

// PetByID loads a pet; withOwner also loads the owning user.
func (s *Store) PetByID(ctx context.Context, id string, withOwner bool) (model.Pet, error) {
	var (
		p       model.Pet
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM pets WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.OwnerID, &created)
	if err != nil {
		return model.Pet{}, notFound(err, "pet")
	}
	p.CreatedAt = fromMillis(created)
	if withOwner {
		owner, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, p.OwnerID))
		if err != nil {
			return model.Pet{}, notFound(err, "pet owner")
		}
		p.Owner = &owner
	}
	return p, nil
}

// PetsForUser lists pets the user owns or cares for, by name.
func (s *Store) PetsForUser(ctx context.Context, userID string) ([]model.Pet, error) {
	return s.queryPets(ctx, `
		SELECT id, name, owner_id, created_at FROM pets
		WHERE owner_id = ?1 OR id IN (SELECT pet_id FROM pet_carers WHERE user_id = ?1)
		ORDER BY name, id`, userID)
}

// PetsOwnedBy lists pets owned by the user, by name.
func (s *Store) PetsOwnedBy(ctx context.Context, userID string) ([]model.Pet, error) {
	return s.queryPets(ctx, `SELECT id, name, owner_id, created_at FROM pets WHERE owner_id = ? ORDER BY name, id`, userID)
}

func (s *Store) queryPets(ctx context.Context, q string, args ...any) ([]model.Pet, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pet
	for rows.Next() {
		var (
			p       model.Pet
			created int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &created); err != nil {
			return nil, err
		}
		p.CreatedAt = fromMillis(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddCarer(ctx context.Context, petID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pet_carers(pet_id, user_id, created_at) VALUES(?,?,?)
		ON CONFLICT(pet_id, user_id) DO NOTHING`,
		petID, userID, toMillis(s.now()),
	)
	return err
}

// PetCarers returns the non-owner users allowed to interact with the pet, in the order they were added.
func (s *Store) PetCarers(ctx context.Context, petID string) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.telegram_id, u.username, u.api_key, u.created_at
		FROM pet_carers pc
		JOIN users u ON u.id = pc.user_id
		WHERE pc.pet_id = ?
		ORDER BY pc.created_at, u.id`, petID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
