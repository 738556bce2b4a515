package window

import (
	"sync"
	"sync/atomic"
	"time"
)

// Interval is a repeating timer whose callbacks run on the window loop.
type Interval struct {
	stop    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	ticks   atomic.Uint64
}

// SetInterval schedules fn on the window loop every d until the interval is
// stopped or the window closes.
func (w *Window) SetInterval(d time.Duration, fn func()) *Interval {
	iv := &Interval{stop: make(chan struct{})}
	if w.Closed() {
		iv.Stop()
		return iv
	}

	done := w.queue.Context().Done()
	go func() {
		ticker := time.NewTicker(d)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Post(func() {
					// A tick queued before Stop must not run after it.
					if iv.stopped.Load() {
						return
					}
					iv.ticks.Add(1)
					fn()
				})
			case <-iv.stop:
				return
			case <-done:
				return
			}
		}
	}()
	return iv
}

// Stop cancels the interval. It reports true only for the call that
// actually stopped it.
func (iv *Interval) Stop() bool {
	stopped := false
	iv.once.Do(func() {
		iv.stopped.Store(true)
		close(iv.stop)
		stopped = true
	})
	return stopped
}

// Stopped reports whether Stop has been called.
func (iv *Interval) Stopped() bool {
	return iv.stopped.Load()
}

// Ticks returns how many callbacks have run.
func (iv *Interval) Ticks() uint64 {
	return iv.ticks.Load()
}
