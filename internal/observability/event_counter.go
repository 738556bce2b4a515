package observability

import (
	"sync"
	"sync/atomic"

	"github.com/nupi-ai/notespointer/internal/eventbus"
)

// windowQueueTopic folds every per-window queue into one series.
const windowQueueTopic eventbus.Topic = "window.queue"

// EventCounter counts published events grouped by topic, and discarded
// channel messages grouped by reason.
type EventCounter struct {
	counts   sync.Map // map[eventbus.Topic]*atomic.Uint64
	discards sync.Map // map[eventbus.DiscardReason]*atomic.Uint64
}

// NewEventCounter creates a counter that can be registered as an event bus observer.
func NewEventCounter() *EventCounter {
	return &EventCounter{}
}

// OnPublish implements eventbus.Observer.
func (c *EventCounter) OnPublish(env eventbus.Envelope) {
	if env.Topic == "" {
		return
	}
	topic := env.Topic
	if eventbus.IsWindowQueue(topic) {
		topic = windowQueueTopic
	}
	counterFor(&c.counts, topic).Add(1)

	if ev, ok := env.Payload.(eventbus.MessageDiscardedEvent); ok && ev.Reason != "" {
		counterFor(&c.discards, ev.Reason).Add(1)
	}
}

// Snapshot exposes a stable copy of the current counts.
func (c *EventCounter) Snapshot() map[eventbus.Topic]uint64 {
	return snapshot[eventbus.Topic](&c.counts)
}

// Discards returns discarded message counts per reason.
func (c *EventCounter) Discards() map[eventbus.DiscardReason]uint64 {
	return snapshot[eventbus.DiscardReason](&c.discards)
}

func snapshot[K comparable](m *sync.Map) map[K]uint64 {
	out := make(map[K]uint64)
	m.Range(func(key, value any) bool {
		k, ok := key.(K)
		if !ok {
			return true
		}
		counter, ok := value.(*atomic.Uint64)
		if !ok || counter == nil {
			return true
		}
		out[k] = counter.Load()
		return true
	})
	return out
}

func counterFor[K comparable](m *sync.Map, key K) *atomic.Uint64 {
	if counter, ok := m.Load(key); ok {
		if typed, ok := counter.(*atomic.Uint64); ok && typed != nil {
			return typed
		}
	}
	newCounter := &atomic.Uint64{}
	actual, _ := m.LoadOrStore(key, newCounter)
	if typed, ok := actual.(*atomic.Uint64); ok && typed != nil {
		return typed
	}
	return newCounter
}
