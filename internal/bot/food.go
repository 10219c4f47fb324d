package bot

import (
	"context"
	"errors"
	"fmt"

	"petbot/internal/feeding"
	"petbot/internal/model"
	"petbot/internal/notify"
	logx "petbot/pkg/logx"
)

// addFood records a feeding for the current pet. When it is the pet's latest
// feeding the reminder moves to feeding time + ReminderAfter. The other people
// caring for the pet are told about it.
func (h *Handlers) addFood(ctx context.Context, req *Request) error {
	u, pet, ok, err := h.currentPet(ctx, req)
	if !ok {
		return err
	}
	ds, err := h.Store.DayStart(ctx, pet.ID)
	if errors.Is(err, model.ErrPreconditionMissing) {
		return req.Reply(ctx, TextNoDayStart)
	}
	if err != nil {
		return err
	}
	sod, err := feeding.ParseDayStart(ds)
	if err != nil {
		req.Log.Warn("stored day start invalid", logx.String("pet", pet.ID), logx.Err(err))
		return req.Reply(ctx, TextNoDayStart)
	}

	e, err := feeding.ParseEntry(req.RawArgs, req.Time, sod.Loc)
	if err != nil {
		return req.Reply(ctx, err.Error())
	}
	f, err := h.Store.AddFeeding(ctx, model.Feeding{
		PetID:    pet.ID,
		UserID:   u.ID,
		Quantity: e.Grams,
		Time:     e.Time,
	})
	if err != nil {
		return err
	}

	last, err := h.Store.LastFeeding(ctx, pet.ID)
	if err != nil {
		return err
	}
	if last.ID == f.ID {
		at := f.Time.Add(h.ReminderAfter())
		if err := feeding.ScheduleReminder(ctx, h.Reminders, pet.ID, at); err != nil {
			return fmt.Errorf("schedule reminder: %w", err)
		}
		req.Log.Debug("reminder scheduled", logx.String("pet", pet.ID), logx.Time("at", at))
	}

	from, to := feeding.Window(f.Time, sod)
	total, err := h.Store.ConsumptionAggregate(ctx, pet.ID, from, to)
	if err != nil {
		return err
	}
	local := f.Time.In(sod.Loc).Format("15:04")
	if err := req.Reply(ctx, fmt.Sprintf("Registrado %s para %s às %s. Total do dia: %s.",
		feeding.FormatGrams(f.Quantity), pet.Name, local, feeding.FormatGrams(total))); err != nil {
		return err
	}

	return h.tellOthers(ctx, req, u, pet, fmt.Sprintf("%s registrou %s de comida para %s às %s.",
		displayName(u), feeding.FormatGrams(f.Quantity), pet.Name, local))
}

// tellOthers sends text to the pet's owner and carers except u.
func (h *Handlers) tellOthers(ctx context.Context, req *Request, u model.User, pet model.Pet, text string) error {
	carers, err := h.Store.PetCarers(ctx, pet.ID)
	if err != nil {
		return err
	}
	var others []model.User
	if pet.Owner != nil && pet.Owner.ID != u.ID {
		others = append(others, *pet.Owner)
	}
	for _, c := range carers {
		if c.ID != u.ID {
			others = append(others, c)
		}
	}
	err = notify.Fanout(ctx, others, func(ctx context.Context, to model.User) error {
		return notify.Deliver(ctx, h.Sender, h.Store, to, text, model.NotificationHistory{PetID: pet.ID})
	})
	if err != nil {
		notify.Report(req.Log, h.Bus, err)
	}
	return nil
}

func displayName(u model.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return "Alguém"
}
