package notify

import (
	"context"
	"fmt"

	"petbot/internal/eventbus"
	"petbot/internal/model"
	kit "petbot/internal/transport"
	logx "petbot/pkg/logx"
)

// Repository is the persistence the broadcaster reads and writes.
type Repository interface {
	HistoryWriter
	UserByAPIKey(ctx context.Context, apiKey string) (model.User, error)
	NotificationByOwnerAndKeyword(ctx context.Context, ownerID, keyword string) (model.Notification, []model.User, error)
}

// Request is the inbound notify contract.
type Request struct {
	APIKey    string         `json:"apiKey"`
	Keyword   string         `json:"keyword"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Broadcaster renders an owner's keyword notification and delivers it to the
// owner and every subscriber.
type Broadcaster struct {
	repo   Repository
	sender kit.Sender
	log    logx.Logger
	bus    eventbus.Bus
}

func NewBroadcaster(repo Repository, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Broadcaster {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Broadcaster{repo: repo, sender: sender, log: log.With(logx.String("comp", "notify")), bus: bus}
}

// Broadcast returns only when every delivery has settled. Its error is non-nil
// only for an unknown API key or keyword (wrapping model.ErrNotFound) and
// other lookup failures; per-recipient failures are reported, not returned.
func (b *Broadcaster) Broadcast(ctx context.Context, req Request) error {
	owner, err := b.repo.UserByAPIKey(ctx, req.APIKey)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	n, subscribers, err := b.repo.NotificationByOwnerAndKeyword(ctx, owner.ID, req.Keyword)
	if err != nil {
		return fmt.Errorf("resolve notification %q: %w", req.Keyword, err)
	}

	text := Render(n.Message, req.Variables)
	recipients := append([]model.User{owner}, subscribers...)
	log := b.log.With(logx.String("notification", n.ID), logx.String("keyword", n.Keyword))

	err = Fanout(ctx, recipients, func(ctx context.Context, to model.User) error {
		return Deliver(ctx, b.sender, b.repo, to, text, model.NotificationHistory{NotificationID: n.ID})
	})
	Report(log, b.bus, err)

	failed := len(Failures(err))
	log.Info("notification broadcast",
		logx.Int("recipients", len(recipients)),
		logx.Int("failed", failed),
	)
	return nil
}
