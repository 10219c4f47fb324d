package feeding

import (
	"context"
	"time"
)

// Scheduler schedules keyed delayed job triggers.
type Scheduler interface {
	Schedule(ctx context.Context, key string, at time.Time, event string, payload any) error
}

// ReminderKey is the trigger key of a pet's pending reminder. One per pet.
func ReminderKey(petID string) string { return Event + ":" + petID }

// ScheduleReminder (re)schedules the pet's reminder to fire at at.
func ScheduleReminder(ctx context.Context, s Scheduler, petID string, at time.Time) error {
	return s.Schedule(ctx, ReminderKey(petID), at, Event, Payload{PetID: petID})
}
