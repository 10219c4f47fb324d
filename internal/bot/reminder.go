package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"petbot/internal/feeding"
	"petbot/internal/model"
	logx "petbot/pkg/logx"
	"petbot/pkg/tgui"
)

const historyLimit = 10

// reminder shows when the current pet's feeding reminder fires. "/lembrete off"
// cancels it until the next feeding is recorded.
func (h *Handlers) reminder(ctx context.Context, req *Request) error {
	off := false
	switch len(req.Args) {
	case 0:
	case 1:
		if !strings.EqualFold(req.Args[0], "off") {
			return req.Reply(ctx, TextUsageReminder)
		}
		off = true
	default:
		return req.Reply(ctx, TextUsageReminder)
	}
	_, pet, ok, err := h.currentPet(ctx, req)
	if !ok {
		return err
	}
	key := feeding.ReminderKey(pet.ID)

	if off {
		if err := h.Reminders.Cancel(ctx, key); err != nil {
			return err
		}
		req.Log.Info("reminder cancelled", logx.String("pet", pet.ID))
		return req.Reply(ctx, fmt.Sprintf("Lembrete de %s cancelado.", pet.Name))
	}

	at, ok, err := h.Reminders.Next(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return req.Reply(ctx, fmt.Sprintf("Nenhum lembrete agendado para %s.", pet.Name))
	}
	loc := h.petLocation(ctx, pet.ID)
	return req.Reply(ctx, fmt.Sprintf("Próximo lembrete de %s: %s (%s).", pet.Name, at.In(loc).Format("02/01 15:04"), loc))
}

// petLocation is the pet's day-start zone, UTC when none is configured.
func (h *Handlers) petLocation(ctx context.Context, petID string) *time.Location {
	ds, err := h.Store.DayStart(ctx, petID)
	if err != nil {
		return time.UTC
	}
	sod, err := feeding.ParseDayStart(ds)
	if err != nil {
		return time.UTC
	}
	return sod.Loc
}

// history lists the latest messages delivered to the caller, newest first.
func (h *Handlers) history(ctx context.Context, req *Request) error {
	u, ok, err := h.user(ctx, req)
	if !ok {
		return err
	}
	rows, err := h.Store.NotificationHistory(ctx, u.ID, historyLimit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return req.Reply(ctx, TextNoHistory)
	}

	pets := map[string]string{}
	lines := []tgui.H{tgui.B("Últimas mensagens")}
	for _, r := range rows {
		what := "notificação"
		if r.NotificationID == "" && r.PetID != "" {
			name, seen := pets[r.PetID]
			if !seen {
				if pet, err := h.Store.PetByID(ctx, r.PetID, false); err == nil {
					name = pet.Name
				} else if !errors.Is(err, model.ErrNotFound) {
					return err
				}
				pets[r.PetID] = name
			}
			what = "pet " + name
		}
		lines = append(lines, tgui.JoinH(" - ", tgui.Code(r.CreatedAt.UTC().Format("02/01 15:04")), tgui.Esc(strings.TrimSpace(what))))
	}
	return req.ReplyHTML(ctx, tgui.JoinH("\n", lines...).String())
}
