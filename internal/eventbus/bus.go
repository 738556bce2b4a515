package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Bus orchestrates topic-based publish/subscribe messaging.
type Bus struct {
	logger       zerolog.Logger
	mu           sync.RWMutex
	subscribers  map[Topic]map[uint64]*Subscription
	topicBuffers map[Topic]int
	nextID       uint64
	observers    []Observer

	publishTotal atomic.Uint64
	droppedTotal atomic.Uint64
}

// windowQueueBuffer is the channel size used for every per-window queue.
const windowQueueBuffer = 1024

// New constructs a bus with default topic buffer sizes.
func New(opts ...BusOption) *Bus {
	defaults := map[Topic]int{
		TopicWindowsLifecycle: 64,
		TopicNotesLink:        64,
		TopicChannelDiscarded: 128,
		TopicSpeakerUpdate:    256,
	}

	bus := &Bus{
		logger:       log.Logger.With().Str("component", "eventbus").Logger(),
		subscribers:  make(map[Topic]map[uint64]*Subscription),
		topicBuffers: defaults,
	}

	for _, opt := range opts {
		opt(bus)
	}

	return bus
}

// BusOption customises bus behaviour.
type BusOption func(*Bus)

// WithLogger overrides the logger used for drop warnings.
func WithLogger(logger zerolog.Logger) BusOption {
	return func(b *Bus) {
		b.logger = logger.With().Str("component", "eventbus").Logger()
	}
}

// WithTopicBuffer sets the buffer size for a given topic.
func WithTopicBuffer(topic Topic, size int) BusOption {
	return func(b *Bus) {
		if size <= 0 {
			size = 1
		}
		if b.topicBuffers == nil {
			b.topicBuffers = make(map[Topic]int)
		}
		b.topicBuffers[topic] = size
	}
}

// Observer sees every envelope published on the bus, before delivery.
type Observer interface {
	OnPublish(env Envelope)
}

// AddObserver registers o for all future publishes.
func (b *Bus) AddObserver(o Observer) {
	if b == nil || o == nil {
		return
	}
	b.mu.Lock()
	b.observers = append(b.observers, o)
	b.mu.Unlock()
}

// Metrics is a point-in-time snapshot of bus counters.
type Metrics struct {
	PublishTotal uint64
	DroppedTotal uint64
}

// Metrics returns the bus counters. A nil bus reports zeros.
func (b *Bus) Metrics() Metrics {
	if b == nil {
		return Metrics{}
	}
	return Metrics{
		PublishTotal: b.publishTotal.Load(),
		DroppedTotal: b.droppedTotal.Load(),
	}
}

// Publish sends a raw envelope on the bus. Prefer the typed Publish helper
// for topics with a TopicDef. If b is nil the call is a no-op.
func (b *Bus) Publish(ctx context.Context, env Envelope) {
	if b == nil {
		return
	}
	b.publish(ctx, env)
}

// publish sends the envelope to all subscribers of the topic.
func (b *Bus) publish(ctx context.Context, env Envelope) {
	if env.Topic == "" {
		return
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	if env.Source == "" {
		env.Source = SourceUnknown
	}
	b.publishTotal.Add(1)

	b.mu.RLock()
	for _, o := range b.observers {
		o.OnPublish(env)
	}
	subs := b.subscribers[env.Topic]
	for _, sub := range subs {
		sub.deliver(ctx, env)
	}
	b.mu.RUnlock()
}

func (b *Bus) bufferFor(topic Topic) int {
	if size, ok := b.topicBuffers[topic]; ok {
		return size
	}
	if IsWindowQueue(topic) {
		return windowQueueBuffer
	}
	return 0
}

// Subscribe registers a subscriber for the given topic.
// If b is nil the returned Subscription has a closed channel and Close is a no-op.
func (b *Bus) Subscribe(topic Topic, opts ...SubscriptionOption) *Subscription {
	if b == nil {
		ch := make(chan Envelope)
		close(ch)
		done := make(chan struct{})
		close(done)
		sub := &Subscription{ch: ch, done: done}
		sub.closed.Store(true)
		return sub
	}
	cfg := subscriptionConfig{
		bufferSize: b.bufferFor(topic),
	}
	if cfg.bufferSize <= 0 {
		cfg.bufferSize = 1
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	policy := policyFor(topic)
	if cfg.policy != nil {
		policy = *cfg.policy
	}

	id := atomic.AddUint64(&b.nextID, 1)
	sub := &Subscription{
		topic:  topic,
		id:     id,
		name:   cfg.name,
		ch:     make(chan Envelope, cfg.bufferSize),
		done:   make(chan struct{}),
		bus:    b,
		policy: policy,
	}

	if policy.Strategy == StrategyOverflow {
		var pumpCtx context.Context
		pumpCtx, sub.stopPump = context.WithCancel(context.Background())
		sub.backlog = newBacklog(policy.MaxOverflow)
		go sub.backlog.pump(pumpCtx, sub.ch)
	}

	b.mu.Lock()
	if _, exists := b.subscribers[topic]; !exists {
		b.subscribers[topic] = make(map[uint64]*Subscription)
	}
	b.subscribers[topic][id] = sub
	b.mu.Unlock()

	return sub
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic Topic) int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Shutdown closes all subscriptions and empties routing tables.
// If b is nil the call is a no-op.
func (b *Bus) Shutdown() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.subscribers {
		for id, sub := range subs {
			sub.closeLocked()
			delete(subs, id)
		}
		delete(b.subscribers, topic)
	}
}

// SubscriptionOption customises individual subscriptions.
type SubscriptionOption func(*subscriptionConfig)

type subscriptionConfig struct {
	bufferSize int
	name       string
	policy     *DeliveryPolicy
}

// WithSubscriptionBuffer overrides the channel buffer for a subscription.
func WithSubscriptionBuffer(size int) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		if size > 0 {
			cfg.bufferSize = size
		}
	}
}

// WithSubscriptionName records a human friendly identifier used in logs.
func WithSubscriptionName(name string) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		cfg.name = name
	}
}

// WithSubscriptionPolicy overrides the topic policy for one subscription.
func WithSubscriptionPolicy(policy DeliveryPolicy) SubscriptionOption {
	return func(cfg *subscriptionConfig) {
		cfg.policy = &policy
	}
}

// Subscription represents a consumer listening to a topic.
type Subscription struct {
	topic Topic
	id    uint64
	name  string
	ch    chan Envelope
	done  chan struct{} // closed when the subscription is closed

	bus       *Bus
	closed    atomic.Bool
	dropped   atomic.Uint64
	policy    DeliveryPolicy
	backlog   *backlog
	stopPump  context.CancelFunc
}

// C exposes the event channel.
func (s *Subscription) C() <-chan Envelope {
	return s.ch
}

// Dropped returns how many events this subscription lost to backpressure.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription and closes the channel.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.haltBacklog()
	close(s.done)

	if s.bus == nil {
		close(s.ch)
		return
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subscribers[s.topic]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.subscribers, s.topic)
		}
	}
	close(s.ch)
}

func (s *Subscription) closeLocked() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.haltBacklog()
	close(s.done)
	close(s.ch)
}

// haltBacklog stops the pump and waits for it so close(s.ch) cannot race a send.
func (s *Subscription) haltBacklog() {
	if s.backlog == nil {
		return
	}
	s.stopPump()
	<-s.backlog.done
}

func (s *Subscription) deliver(ctx context.Context, env Envelope) {
	if s.closed.Load() {
		return
	}

	select {
	case <-ctx.Done():
		return
	default:
	}

	// Overflow subscriptions only ever write through the backlog; a direct
	// send could overtake envelopes the pump has not forwarded yet.
	if s.backlog != nil {
		if !s.backlog.push(env) {
			s.recordDrop("backlog-full")
		}
		return
	}

	select {
	case s.ch <- env:
		return
	default:
	}

	switch s.policy.Strategy {
	case StrategyDropNewest:
		s.recordDrop("drop-newest")
	default:
		s.dropOldestAndEnqueue(env)
	}
}

func (s *Subscription) dropOldestAndEnqueue(env Envelope) {
	select {
	case <-s.ch:
		s.recordDrop("drop-oldest")
	default:
	}

	select {
	case s.ch <- env:
	default:
		s.recordDrop("drop-current")
	}
}

func (s *Subscription) recordDrop(reason string) {
	count := s.dropped.Add(1)
	if s.bus == nil {
		return
	}
	s.bus.droppedTotal.Add(1)
	name := s.name
	if name == "" {
		name = "subscription"
	}
	s.bus.logger.Warn().
		Uint64("count", count).
		Str("subscription", name).
		Str("topic", string(s.topic)).
		Str("reason", reason).
		Msg("dropped event")
}
