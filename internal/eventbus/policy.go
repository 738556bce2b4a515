package eventbus

// Priority classifies a topic's importance for delivery guarantees.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityCritical Priority = 2
)

// DeliveryStrategy determines behaviour when a subscriber's channel is full.
type DeliveryStrategy string

const (
	// StrategyDropOldest removes the oldest event from the channel and enqueues the new one.
	StrategyDropOldest DeliveryStrategy = "drop-oldest"
	// StrategyDropNewest discards the incoming event when the channel is full.
	StrategyDropNewest DeliveryStrategy = "drop-newest"
	// StrategyOverflow routes every envelope through a capped FIFO backlog.
	// A full backlog drops the incoming envelope, never a queued one.
	StrategyOverflow DeliveryStrategy = "overflow"
)

// DeliveryPolicy controls how a topic handles backpressure.
type DeliveryPolicy struct {
	Strategy    DeliveryStrategy
	Priority    Priority
	MaxOverflow int // backlog cap for StrategyOverflow (0 = defaultMaxOverflow)
}

const defaultMaxOverflow = 512

// defaultPolicy is used for topics without an explicit entry in defaultPolicies.
var defaultPolicy = DeliveryPolicy{
	Strategy: StrategyDropOldest,
	Priority: PriorityNormal,
}

// windowQueuePolicy applies to every per-window queue. Window queues carry
// inbound messages, input, lifecycle events and timer ticks in order, so a
// reorder would break the handshake.
var windowQueuePolicy = DeliveryPolicy{
	Strategy:    StrategyOverflow,
	Priority:    PriorityCritical,
	MaxOverflow: 4 * defaultMaxOverflow,
}

// defaultPolicies maps known topics to their delivery policies.
var defaultPolicies = map[Topic]DeliveryPolicy{
	TopicNotesLink:        {Strategy: StrategyOverflow, Priority: PriorityCritical, MaxOverflow: defaultMaxOverflow},
	TopicWindowsLifecycle: {Strategy: StrategyOverflow, Priority: PriorityCritical, MaxOverflow: defaultMaxOverflow},

	TopicSpeakerUpdate: {Strategy: StrategyDropOldest, Priority: PriorityNormal},

	// Diagnostics only.
	TopicChannelDiscarded: {Strategy: StrategyDropNewest, Priority: PriorityLow},
}

// policyFor returns the delivery policy for a topic. Subscriptions may still
// override it with WithSubscriptionPolicy.
func policyFor(topic Topic) DeliveryPolicy {
	if p, ok := defaultPolicies[topic]; ok {
		return p
	}
	if IsWindowQueue(topic) {
		return windowQueuePolicy
	}
	return defaultPolicy
}
