package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Queue runs the single worker behind one window's ordered event queue.
// Payloads published on WindowQueue(id) reach the handler one at a time, in
// the order they were published. A panicking handler is logged and the
// worker moves on to the next payload.
type Queue[T any] struct {
	sub    *TypedSubscription[T]
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

// QueueOption customises OpenQueue.
type QueueOption func(*queueConfig)

type queueConfig struct {
	logger zerolog.Logger
	name   string
}

// WithQueueLogger sets the logger used for handler panics.
func WithQueueLogger(logger zerolog.Logger) QueueOption {
	return func(cfg *queueConfig) { cfg.logger = logger }
}

// WithQueueName labels the underlying subscription in drop warnings.
func WithQueueName(name string) QueueOption {
	return func(cfg *queueConfig) { cfg.name = name }
}

// OpenQueue subscribes to the window queue for id and starts its worker.
// The worker stops when parent is cancelled or the queue is closed.
func OpenQueue[T any](parent context.Context, bus *Bus, id string, handle func(T), opts ...QueueOption) *Queue[T] {
	cfg := queueConfig{logger: zerolog.Nop(), name: "window " + id}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(parent)
	q := &Queue[T]{
		sub:    Subscribe[T](bus, WindowQueue(id), WithSubscriptionName(cfg.name)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: cfg.logger,
	}
	go q.run(handle)
	return q
}

// Context is cancelled once the queue stops accepting work.
func (q *Queue[T]) Context() context.Context { return q.ctx }

// Close stops the worker. Payloads still queued are discarded.
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		q.cancel()
		q.sub.Close()
	})
}

// Wait blocks until the worker has exited or ctx is done.
func (q *Queue[T]) Wait(ctx context.Context) error {
	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue[T]) run(handle func(T)) {
	defer close(q.done)
	defer q.Close()
	for {
		select {
		case <-q.ctx.Done():
			return
		case env, ok := <-q.sub.C():
			if !ok {
				return
			}
			q.dispatch(handle, env.Payload)
		}
	}
}

func (q *Queue[T]) dispatch(handle func(T), payload T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error().
				Interface("panic", r).
				Str("payload", fmt.Sprintf("%T", payload)).
				Msg("queue handler panicked")
		}
	}()
	handle(payload)
}
