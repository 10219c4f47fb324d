package notify

import (
	"errors"
	"fmt"

	"petbot/internal/eventbus"
	logx "petbot/pkg/logx"
)

// Stage is the step of a delivery that failed.
type Stage string

const (
	// StageSend: the transport rejected the message; nothing was delivered.
	StageSend Stage = "send"
	// StageAudit: the message was delivered but its history row was not written.
	StageAudit Stage = "audit"
)

// DeliveryError is one recipient's failure.
type DeliveryError struct {
	Recipient string // user ID
	Stage     Stage
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %s: %v", e.Recipient, e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Failures flattens a joined error into its DeliveryErrors.
func Failures(err error) []*DeliveryError {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*DeliveryError
		for _, e := range j.Unwrap() {
			out = append(out, Failures(e)...)
		}
		return out
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return []*DeliveryError{de}
	}
	return []*DeliveryError{{Stage: StageSend, Err: err}}
}

// Report logs each failure and publishes it on the bus, cancellations
// included. It never fails.
func Report(log logx.Logger, bus eventbus.Bus, err error) {
	for _, f := range Failures(err) {
		log.Warn("delivery failed", logx.String("recipient", f.Recipient), logx.String("stage", string(f.Stage)), logx.Err(f.Err))
		if bus != nil {
			bus.Publish(eventbus.Event{Type: eventbus.DeliveryFailed, Subject: f.Recipient, Detail: string(f.Stage) + ": " + f.Err.Error()})
		}
	}
}
