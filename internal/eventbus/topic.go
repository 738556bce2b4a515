package eventbus

import (
	"context"
	"time"
)

// TopicDef pairs a Topic with the payload type published on it, so
// publishers and subscribers agree at compile time.
type TopicDef[T any] struct{ topic Topic }

// NewTopicDef declares topic as carrying payloads of type T.
func NewTopicDef[T any](topic Topic) TopicDef[T] { return TopicDef[T]{topic: topic} }

// Topic returns the underlying topic string.
func (d TopicDef[T]) Topic() Topic { return d.topic }

// PublishOption adjusts the envelope before it is published.
type PublishOption func(*Envelope)

// WithTimestamp pins the envelope time instead of stamping it on publish.
func WithTimestamp(ts time.Time) PublishOption {
	return func(env *Envelope) { env.Timestamp = ts }
}

// WithCorrelationID ties the envelope to a request, such as a speaker call.
func WithCorrelationID(id string) PublishOption {
	return func(env *Envelope) { env.CorrelationID = id }
}

// Publish sends payload on td. A nil bus drops it.
func Publish[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, payload T) {
	PublishWithOpts(ctx, bus, td, source, payload)
}

// PublishWithOpts is Publish with envelope options applied in order.
func PublishWithOpts[T any](ctx context.Context, bus *Bus, td TopicDef[T], source Source, payload T, opts ...PublishOption) {
	if bus == nil {
		return
	}
	env := Envelope{Topic: td.topic, Source: source, Payload: payload}
	for _, opt := range opts {
		opt(&env)
	}
	bus.publish(ctx, env)
}
