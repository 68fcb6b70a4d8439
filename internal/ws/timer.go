package ws

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// timerDriver runs at most one ticker per room. start/stop/current are only
// called from the room loop; the ticking goroutine talks back through post.
type timerDriver struct {
	clock    clockwork.Clock
	interval time.Duration
	// post delivers a tick to the room loop; false means the room is gone.
	post func(ctx context.Context, gen uint64) bool

	cancel context.CancelFunc
	gen    uint64
}

func newTimerDriver(clock clockwork.Clock, interval time.Duration, post func(ctx context.Context, gen uint64) bool) *timerDriver {
	return &timerDriver{clock: clock, interval: interval, post: post}
}

func (t *timerDriver) running() bool { return t.cancel != nil }

// start spawns the ticker. It refuses to double-start.
func (t *timerDriver) start(parent context.Context) bool {
	if t.cancel != nil {
		return false
	}
	t.gen++
	gen := t.gen
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel

	// Created before the goroutine so a fake clock sees the waiter immediately.
	ticker := t.clock.NewTicker(t.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				if !t.post(ctx, gen) {
					return
				}
			}
		}
	}()
	return true
}

// stop cancels the ticker. Ticks already queued carry a stale generation and
// are dropped by current.
func (t *timerDriver) stop() {
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
}

// current reports whether a tick of generation gen belongs to the running ticker.
func (t *timerDriver) current(gen uint64) bool {
	return t.cancel != nil && gen == t.gen
}
