package app

import (
	"context"

	"petbot/internal/eventbus"
	"petbot/internal/storage"
	logx "petbot/pkg/logx"
)

// AuditWriter persists audit rows. *storage.Store implements it.
type AuditWriter interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

// runAudit appends delivery and job failures to the audit table until ctx is
// done or events is closed. Other event types are ignored.
func runAudit(ctx context.Context, events <-chan eventbus.Event, w AuditWriter, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.DeliveryFailed, eventbus.JobFailed:
			default:
				log.Debug("event", logx.String("type", e.Type))
				continue
			}
			err := w.AppendAudit(ctx, storage.AuditEntry{At: e.Time, Kind: e.Type, Subject: e.Subject, Detail: e.Detail})
			if err != nil && ctx.Err() == nil {
				log.Warn("audit append failed", logx.String("type", e.Type), logx.String("subject", e.Subject), logx.Err(err))
			}
		}
	}
}
