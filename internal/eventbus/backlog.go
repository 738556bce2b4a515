package eventbus

import (
	"context"
	"sync"
)

// backlog holds envelopes for an overflow subscription while its channel is
// full. Publishers append under the lock; the pump goroutine takes the whole
// pending batch at once and feeds it to the channel in publish order.
type backlog struct {
	mu      sync.Mutex
	pending []Envelope
	spare   []Envelope
	limit   int

	wake chan struct{}
	done chan struct{}
}

func newBacklog(limit int) *backlog {
	if limit <= 0 {
		limit = defaultMaxOverflow
	}
	return &backlog{
		limit: limit,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push queues env behind everything already pending. It reports false when
// the backlog is at its limit; the caller drops env so order is kept.
func (b *backlog) push(env Envelope) bool {
	b.mu.Lock()
	if len(b.pending) >= b.limit {
		b.mu.Unlock()
		return false
	}
	b.pending = append(b.pending, env)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return true
}

// take swaps out the pending batch. The returned slice stays valid until the
// next take.
func (b *backlog) take() []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.pending
	b.pending = b.spare[:0]
	b.spare = batch
	return batch
}

func (b *backlog) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// pump forwards batches into ch until ctx ends.
func (b *backlog) pump(ctx context.Context, ch chan<- Envelope) {
	defer close(b.done)
	for {
		batch := b.take()
		for i := range batch {
			select {
			case ch <- batch[i]:
				batch[i] = Envelope{}
			case <-ctx.Done():
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-b.wake:
		case <-ctx.Done():
			return
		}
	}
}
