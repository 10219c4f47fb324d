package job

import (
	"errors"
	"fmt"
)

var (
	ErrStopped      = errors.New("job runner stopped")
	ErrQueueFull    = errors.New("job runner queue full")
	ErrUnknownEvent = errors.New("no handler registered for event")
)

// NoRetry marks an error as permanent: the run fails without further attempts.
//
//	return job.NoRetry(fmt.Errorf("pet %s: %w", id, model.ErrNotFound))
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

// IsNoRetry reports whether err is wrapped with NoRetry.
func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
