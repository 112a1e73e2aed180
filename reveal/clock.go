package reveal

import (
	"sync"
	"time"
)

// frameClock invokes a step function once per frame interval with the
// time elapsed since the first tick. The zero elapsed point is the first
// tick after Run, not the moment Run was called, so scheduling latency
// between trigger and first frame never skews aperture timing.
type frameClock struct {
	interval time.Duration
	cancel   chan struct{}
	once     sync.Once
}

func newFrameClock(interval time.Duration) *frameClock {
	return &frameClock{
		interval: interval,
		cancel:   make(chan struct{}),
	}
}

// Run drives step until it reports completion or the clock is stopped.
// The cancel flag is re-checked before every step so a tick that raced
// with Stop never executes.
func (f *frameClock) Run(step func(elapsed time.Duration) bool) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var start time.Time
	for {
		select {
		case <-f.cancel:
			return
		case now := <-ticker.C:
			select {
			case <-f.cancel:
				return
			default:
			}
			if start.IsZero() {
				start = now
			}
			if step(now.Sub(start)) {
				return
			}
		}
	}
}

// Stop cancels the clock. Safe to call any number of times, from any
// goroutine; a step already executing runs to completion but no further
// step is scheduled.
func (f *frameClock) Stop() {
	f.once.Do(func() { close(f.cancel) })
}
