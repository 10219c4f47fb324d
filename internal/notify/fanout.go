package notify

import (
	"context"
	"errors"
	"sync"

	"petbot/internal/model"
	kit "petbot/internal/transport"
)

// HistoryWriter appends delivery audit rows.
type HistoryWriter interface {
	CreateNotificationHistory(ctx context.Context, h model.NotificationHistory) error
}

// Deliver sends text to the user's chat and records h with the returned message ID.
// Errors are *DeliveryError.
func Deliver(ctx context.Context, sender kit.Sender, history HistoryWriter, to model.User, text string, h model.NotificationHistory) error {
	ref, err := sender.SendText(ctx, kit.ChatTarget{ChatID: to.TelegramID}, text, nil)
	if err != nil {
		return &DeliveryError{Recipient: to.ID, Stage: StageSend, Err: err}
	}
	h.UserID = to.ID
	h.MessageID = ref.MessageID
	if err := history.CreateNotificationHistory(ctx, h); err != nil {
		return &DeliveryError{Recipient: to.ID, Stage: StageAudit, Err: err}
	}
	return nil
}

// Fanout runs fn once per recipient concurrently and returns after every call
// has returned. One recipient's failure neither cancels nor delays another.
// The result joins all failures, or is nil.
func Fanout(ctx context.Context, recipients []model.User, fn func(ctx context.Context, to model.User) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, u := range recipients {
		wg.Add(1)
		go func(u model.User) {
			defer wg.Done()
			if err := fn(ctx, u); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	return errors.Join(errs...)
}
