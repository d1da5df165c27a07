// Package countdown implements the one-second stage countdown shown while an
// order waits in the print queue or prints.
package countdown

import (
	"context"
	"sync"
	"time"
)

// Timer counts whole seconds down to zero. It re-seeds only when the key of
// its source data changes, so repeated refreshes of unchanged data do not
// restart the countdown.
type Timer struct {
	mu        sync.Mutex
	key       string
	remaining int64
}

func New(key string, seconds int64) *Timer {
	t := &Timer{}
	t.Reset(key, seconds)
	return t
}

// Reset re-seeds the timer when key differs from the current one and reports
// whether it did.
func (t *Timer) Reset(key string, seconds int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if key == t.key && t.key != "" {
		return false
	}
	t.key = key
	t.remaining = max(seconds, 0)
	return true
}

// Tick decrements by one second, clamped at zero, and returns what is left.
func (t *Timer) Tick() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.remaining > 0 {
		t.remaining--
	}
	return t.remaining
}

func (t *Timer) Remaining() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Run ticks every interval and sends the remaining seconds on the returned
// channel until ctx is done. The channel is closed on exit. A slow reader
// misses intermediate values rather than stalling the timer.
func (t *Timer) Run(ctx context.Context, interval time.Duration) <-chan int64 {
	out := make(chan int64, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v := t.Tick()
				select {
				case out <- v:
				default:
					// drop stale value, keep newest
					select {
					case <-out:
					default:
					}
					out <- v
				}
			}
		}
	}()
	return out
}
