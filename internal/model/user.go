package model

import "time"

// User is a registered chat user.
// TelegramID and ID never change after signup; APIKey may be regenerated.
type User struct {
	ID         string
	TelegramID int64
	Username   string
	APIKey     string
	CreatedAt  time.Time
}
