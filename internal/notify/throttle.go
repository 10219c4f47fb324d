package notify

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	kit "petbot/internal/transport"
)

// Throttled wraps a Sender with a shared token bucket so concurrent fan-outs
// stay under the chat platform's flood limits.
type Throttled struct {
	next kit.Sender

	mu  sync.RWMutex
	lim *rate.Limiter
}

// Throttle limits next to rps sends per second; rps <= 0 means 25.
func Throttle(next kit.Sender, rps int) *Throttled {
	t := &Throttled{next: next}
	t.SetRate(rps)
	return t
}

// SetRate replaces the limit. Safe during hot reload.
func (t *Throttled) SetRate(rps int) {
	if rps <= 0 {
		rps = 25
	}
	// Burst = rate per sec, so short spikes don't block too hard.
	lim := rate.NewLimiter(rate.Limit(rps), rps)
	t.mu.Lock()
	t.lim = lim
	t.mu.Unlock()
}

func (t *Throttled) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	t.mu.RLock()
	lim := t.lim
	t.mu.RUnlock()
	if err := lim.Wait(ctx); err != nil {
		return kit.MessageRef{}, err
	}
	return t.next.SendText(ctx, to, text, opt)
}
