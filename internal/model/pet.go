package model

import "time"

type Pet struct {
	ID        string
	Name      string
	OwnerID   string
	Owner     *User // set only when loaded with owner
	CreatedAt time.Time
}

// Carer grants a non-owner user access to a pet's records.
type Carer struct {
	PetID  string
	UserID string
}

// Feeding is one recorded pet food event. Quantity is in grams.
type Feeding struct {
	ID        string
	PetID     string
	UserID    string
	Quantity  float64
	Time      time.Time
	MessageID int
	CreatedAt time.Time
}
