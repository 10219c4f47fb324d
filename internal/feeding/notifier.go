package feeding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"petbot/internal/eventbus"
	"petbot/internal/job"
	"petbot/internal/model"
	"petbot/internal/notify"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

// Event is the job event that sends the daily food reminder for one pet.
const Event = "pet-food-notification"

// Payload is the Event payload.
type Payload struct {
	PetID string `json:"petID"`
}

// Repository is what the reminder job reads and writes.
type Repository interface {
	notify.HistoryWriter
	PetByID(ctx context.Context, id string, withOwner bool) (model.Pet, error)
	DayStart(ctx context.Context, petID string) (model.DayStart, error)
	ConsumptionAggregate(ctx context.Context, petID string, from, to time.Time) (float64, error)
	PetCarers(ctx context.Context, petID string) ([]model.User, error)
}

// Notifier sends "time to feed" reminders with today's consumption to the
// pet's owner and carers.
type Notifier struct {
	repo   Repository
	sender kit.Sender
	log    logx.Logger
	bus    eventbus.Bus
}

func NewNotifier(repo Repository, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{repo: repo, sender: sender, log: log.With(logx.String("comp", "feeding.notifier")), bus: bus}
}

// StepKey names the memoized per-recipient step.
func StepKey(userID string) string { return "send-pet-notification:" + userID }

// ReminderText is the message each recipient gets.
func ReminderText(petName string, grams float64) string {
	return fmt.Sprintf("Hora de dar comida para o pet %s. Já foram %s hoje.", petName, FormatGrams(grams))
}

// Handle is the job.Handler for Event.
//
// A missing pet, a missing or malformed dayStart and a bad payload end the run
// without retry. Lookup and aggregation errors are returned for retry. Each
// recipient is a memoized step, so a retried run only sends to recipients not
// yet notified.
func (n *Notifier) Handle(ctx context.Context, run *job.Run) error {
	var p Payload
	if err := json.Unmarshal(run.Payload, &p); err != nil || p.PetID == "" {
		return job.NoRetry(fmt.Errorf("bad payload %q: %v", run.Payload, err))
	}
	log := run.Log.With(logx.String("pet", p.PetID))

	pet, err := n.repo.PetByID(ctx, p.PetID, true)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			log.Error("pet not found")
			return job.NoRetry(err)
		}
		return err
	}
	if pet.Owner == nil {
		log.Error("pet owner not found")
		return job.NoRetry(fmt.Errorf("pet %s: owner: %w", pet.ID, model.ErrNotFound))
	}

	ds, err := n.repo.DayStart(ctx, pet.ID)
	if err != nil {
		if errors.Is(err, model.ErrPreconditionMissing) {
			log.Error("missing day start")
			return job.NoRetry(err)
		}
		return err
	}
	sod, err := ParseDayStart(ds)
	if err != nil {
		log.Error("invalid day start", logx.Err(err))
		return job.NoRetry(err)
	}

	from, to := Window(run.StartedAt, sod)
	total, err := n.repo.ConsumptionAggregate(ctx, pet.ID, from, to)
	if err != nil {
		return fmt.Errorf("consumption aggregate: %w", err)
	}
	carers, err := n.repo.PetCarers(ctx, pet.ID)
	if err != nil {
		return fmt.Errorf("pet carers: %w", err)
	}

	recipients := append([]model.User{*pet.Owner}, carers...)
	text := ReminderText(pet.Name, total)

	err = notify.Fanout(ctx, recipients, func(ctx context.Context, to model.User) error {
		return run.Step(ctx, StepKey(to.ID), func(ctx context.Context) error {
			err := notify.Deliver(ctx, n.sender, n.repo, to, text, model.NotificationHistory{PetID: pet.ID})
			var de *notify.DeliveryError
			if errors.As(err, &de) && de.Stage == notify.StageAudit {
				// Delivered; a retry would send it again.
				notify.Report(log, n.bus, err)
				return nil
			}
			return err
		})
	})
	if err != nil {
		notify.Report(log, n.bus, err)
		return fmt.Errorf("%d of %d reminders failed: %w", len(notify.Failures(err)), len(recipients), err)
	}
	log.Info("food reminder sent", logx.Int("recipients", len(recipients)), logx.Float64("grams", total), logx.Time("from", from))
	return nil
}
