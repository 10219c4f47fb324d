package model

import "time"

// Notification is an owner-defined, keyword-addressed message template.
type Notification struct {
	ID        string
	OwnerID   string
	Keyword   string
	Message   string
	CreatedAt time.Time
}

// NotificationHistory is an append-only audit row, one per successful delivery.
// NotificationID is empty for ad-hoc sends; PetID is empty when no pet is involved.
type NotificationHistory struct {
	ID             string
	NotificationID string
	UserID         string
	PetID          string
	MessageID      int
	CreatedAt      time.Time
}
