package model

// Scope of a ScopedConfig entry.
type Scope string

const (
	ScopeUser Scope = "user"
	ScopePet  Scope = "pet"
)

// Known config keys.
const (
	KeyDayStart   = "dayStart"
	KeyCurrentPet = "currentPet"
)

// DayStart is the local start-of-day of a pet. Time is "HH:MM" and Timezone an
// IANA zone name; both are always present together.
type DayStart struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
}

// CurrentPet references the pet a user is currently working with.
type CurrentPet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
