package eventbus

import (
	"context"
	"sync"
	"time"
)

// TypedEnvelope is an Envelope whose payload has already been asserted to T.
type TypedEnvelope[T any] struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       T
}

func typed[T any](env Envelope) (TypedEnvelope[T], bool) {
	payload, ok := env.Payload.(T)
	if !ok {
		return TypedEnvelope[T]{}, false
	}
	return TypedEnvelope[T]{
		Topic:         env.Topic,
		Timestamp:     env.Timestamp,
		Source:        env.Source,
		CorrelationID: env.CorrelationID,
		Payload:       payload,
	}, true
}

// TypedSubscription forwards the payloads of a raw subscription that are a T.
// Anything else published on the topic is skipped.
type TypedSubscription[T any] struct {
	raw  *Subscription
	out  chan TypedEnvelope[T]
	stop context.CancelFunc
	done chan struct{}
	once sync.Once
}

// Subscribe subscribes to topic and filters payloads down to T. On a nil bus
// the channel is already closed.
func Subscribe[T any](bus *Bus, topic Topic, opts ...SubscriptionOption) *TypedSubscription[T] {
	ctx, cancel := context.WithCancel(context.Background())
	ts := &TypedSubscription[T]{
		raw:  bus.Subscribe(topic, opts...),
		out:  make(chan TypedEnvelope[T]),
		stop: cancel,
		done: make(chan struct{}),
	}
	go ts.forward(ctx)
	return ts
}

// SubscribeTo is Subscribe keyed by a topic descriptor, so the payload type
// cannot drift from what publishers send.
func SubscribeTo[T any](bus *Bus, td TopicDef[T], opts ...SubscriptionOption) *TypedSubscription[T] {
	return Subscribe[T](bus, td.topic, opts...)
}

// C returns the typed channel. It closes when the subscription ends.
func (ts *TypedSubscription[T]) C() <-chan TypedEnvelope[T] {
	return ts.out
}

// Close ends the subscription and waits for the forwarder. Safe to repeat.
func (ts *TypedSubscription[T]) Close() {
	ts.once.Do(func() {
		ts.stop()
		ts.raw.Close()
		<-ts.done
	})
}

func (ts *TypedSubscription[T]) forward(ctx context.Context) {
	defer close(ts.done)
	defer close(ts.out)
	for env := range ts.raw.C() {
		te, ok := typed[T](env)
		if !ok {
			continue
		}
		select {
		case ts.out <- te:
		case <-ctx.Done():
			return
		}
	}
}
