package storage

import (
	"context"

	"petbot/internal/model"
)

// UpsertNotification creates the owner's notification for keyword or replaces its message.
func (s *Store) UpsertNotification(ctx context.Context, ownerID, keyword, message string) (model.Notification, error) {
	n := model.Notification{ID: newID(), OwnerID: ownerID, Keyword: keyword, Message: message, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications(id, owner_id, keyword, message, created_at) VALUES(?,?,?,?,?)
		ON CONFLICT(owner_id, keyword) DO UPDATE SET message = excluded.message`,
		n.ID, n.OwnerID, n.Keyword, n.Message, toMillis(n.CreatedAt),
	)
	if err != nil {
		return model.Notification{}, err
	}
	return s.notificationByOwnerAndKeyword(ctx, ownerID, keyword)
}

func (s *Store) notificationByOwnerAndKeyword(ctx context.Context, ownerID, keyword string) (model.Notification, error) {
	var (
		n       model.Notification
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, keyword, message, created_at
		FROM notifications WHERE owner_id = ? AND keyword = ?`,
		ownerID, keyword,
	).Scan(&n.ID, &n.OwnerID, &n.Keyword, &n.Message, &created)
	if err != nil {
		return model.Notification{}, notFound(err, "notification")
	}
	n.CreatedAt = fromMillis(created)
	return n, nil
}

// NotificationByOwnerAndKeyword returns the notification and its subscribers in subscription order.
func (s *Store) NotificationByOwnerAndKeyword(ctx context.Context, ownerID, keyword string) (model.Notification, []model.User, error) {
	n, err := s.notificationByOwnerAndKeyword(ctx, ownerID, keyword)
	if err != nil {
		return model.Notification{}, nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.telegram_id, u.username, u.api_key, u.created_at
		FROM notification_subscribers ns
		JOIN users u ON u.id = ns.user_id
		WHERE ns.notification_id = ?
		ORDER BY ns.created_at, u.id`, n.ID)
	if err != nil {
		return model.Notification{}, nil, err
	}
	defer rows.Close()

	var subs []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return model.Notification{}, nil, err
		}
		subs = append(subs, u)
	}
	return n, subs, rows.Err()
}

func (s *Store) Subscribe(ctx context.Context, notificationID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_subscribers(notification_id, user_id, created_at) VALUES(?,?,?)
		ON CONFLICT(notification_id, user_id) DO NOTHING`,
		notificationID, userID, toMillis(s.now()),
	)
	return err
}

// CreateNotificationHistory appends one delivery audit row.
func (s *Store) CreateNotificationHistory(ctx context.Context, h model.NotificationHistory) error {
	if h.ID == "" {
		h.ID = newID()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_history(id, notification_id, user_id, pet_id, message_id, created_at)
		VALUES(?,?,?,?,?,?)`,
		h.ID, nullStr(h.NotificationID), h.UserID, nullStr(h.PetID), h.MessageID, toMillis(h.CreatedAt),
	)
	return err
}

// NotificationHistory lists delivery rows for a user, newest first.
func (s *Store) NotificationHistory(ctx context.Context, userID string, limit int) ([]model.NotificationHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(notification_id, ''), user_id, COALESCE(pet_id, ''), message_id, created_at
		FROM notification_history WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.NotificationHistory
	for rows.Next() {
		var (
			h       model.NotificationHistory
			created int64
		)
		if err := rows.Scan(&h.ID, &h.NotificationID, &h.UserID, &h.PetID, &h.MessageID, &created); err != nil {
			return nil, err
		}
		h.CreatedAt = fromMillis(created)
		out = append(out, h)
	}
	return out, rows.Err()
}
