package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"petbot/internal/model"
)

const userCols = `id, telegram_id, username, api_key, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var (
		u       model.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.APIKey, &created); err != nil {
		return model.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	return u, nil
}

// CreateUser registers a user with a fresh API key.
func (s *Store) CreateUser(ctx context.Context, telegramID int64, username string) (model.User, error) {
	u := model.User{
		ID:         newID(),
		TelegramID: telegramID,
		Username:   username,
		APIKey:     uuid.NewString(),
		CreatedAt:  s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(`+userCols+`) VALUES(?,?,?,?,?)`,
		u.ID, u.TelegramID, u.Username, u.APIKey, toMillis(u.CreatedAt),
	)
	if err != nil {
		return model.User{}, err
	}
	return u, nil
}

func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE telegram_id = ?`, telegramID))
	return u, notFound(err, "user")
}

func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ? COLLATE NOCASE`, username))
	return u, notFound(err, "user")
}

func (s *Store) UserByAPIKey(ctx context.Context, apiKey string) (model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE api_key = ?`, apiKey))
	return u, notFound(err, "user")
}

// RegenerateAPIKey replaces the user's API key and returns the new one.
func (s *Store) RegenerateAPIKey(ctx context.Context, userID string) (string, error) {
	key := uuid.NewString()
	res, err := s.db.ExecContext(ctx, `UPDATE users SET api_key = ? WHERE id = ?`, key, userID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", notFound(sql.ErrNoRows, "user")
	}
	return key, nil
}
