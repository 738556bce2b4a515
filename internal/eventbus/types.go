package eventbus

import (
	"strings"
	"time"
)

// Topic names a stream of envelopes on the bus.
type Topic string

// Standard topics published by the window host and the notes link.
const (
	TopicWindowsLifecycle Topic = "windows.lifecycle"
	TopicNotesLink        Topic = "notes.link"
	TopicChannelDiscarded Topic = "channel.discarded"
	TopicSpeakerUpdate    Topic = "speaker.update"
)

// WindowQueuePrefix prefixes the per-window event queue topics. Every window
// owns exactly one queue topic and exactly one consumer of it.
const WindowQueuePrefix = "window.queue."

// WindowQueue returns the queue topic for the window with the given id.
func WindowQueue(windowID string) Topic {
	return Topic(WindowQueuePrefix + windowID)
}

// IsWindowQueue reports whether topic is a per-window queue topic.
func IsWindowQueue(topic Topic) bool {
	return strings.HasPrefix(string(topic), WindowQueuePrefix)
}

// Source describes which component produced an event.
type Source string

const (
	SourceHost         Source = "host"
	SourceWindow       Source = "window"
	SourceDeck         Source = "deck"
	SourcePointer      Source = "pointer"
	SourceChannel      Source = "channel"
	SourceNotesManager Source = "notes_manager"
	SourceSpeaker      Source = "speaker"
	SourceUnknown      Source = "unknown"
)

// Envelope wraps every message published on the bus.
type Envelope struct {
	Topic         Topic
	Timestamp     time.Time
	Source        Source
	CorrelationID string
	Payload       any
}

// WindowState summarises window lifecycle changes.
type WindowState string

const (
	WindowStateOpened  WindowState = "opened"
	WindowStateFocused WindowState = "focused"
	WindowStateClosed  WindowState = "closed"
	WindowStateBlocked WindowState = "blocked"
)

// WindowLifecycleEvent notifies observers about windows being opened,
// focused or closed on a host.
type WindowLifecycleEvent struct {
	WindowID string
	Name     string
	URL      string
	OpenerID string
	ParentID string
	State    WindowState
}

// LinkState is the state of the link between a presentation window and its
// notes window. Exactly one state holds at any time.
type LinkState string

const (
	LinkDisconnected LinkState = "disconnected"
	LinkPending      LinkState = "pending"
	LinkConnected    LinkState = "connected"
)

// NotesLinkEvent reports a link state transition.
type NotesLinkEvent struct {
	WindowID string
	PopupID  string
	State    LinkState
	Reason   string
}

// DiscardReason explains why an inbound or outbound message went nowhere.
type DiscardReason string

const (
	DiscardMalformed        DiscardReason = "malformed"
	DiscardForeignNamespace DiscardReason = "foreign_namespace"
	DiscardNoReceiver       DiscardReason = "no_receiver"
	DiscardWindowClosed     DiscardReason = "window_closed"
)

// MessageDiscardedEvent is published for every message that was dropped
// silently. It never surfaces to the user.
type MessageDiscardedEvent struct {
	WindowID string
	Reason   DiscardReason
	Type     string
	Detail   string
}

// SpeakerUpdateEvent is published by a receiver window whenever its view of
// the presentation changes.
type SpeakerUpdateEvent struct {
	WindowID string
	Kind     string // "connect", "state", "point"
	Notes    string
	State    string
	Pointer  string
	X, Y     float64
	Active   bool
}

// ---------------------------------------------------------------------------
// Typed topic descriptors
// ---------------------------------------------------------------------------
// Each TopicDef binds a Topic constant to its payload type, enabling
// compile-time enforcement via Publish[T] and SubscribeTo[T].

// Windows groups window host topic descriptors.
var Windows = struct {
	Lifecycle TopicDef[WindowLifecycleEvent]
}{
	Lifecycle: NewTopicDef[WindowLifecycleEvent](TopicWindowsLifecycle),
}

// Notes groups notes link topic descriptors.
var Notes = struct {
	Link TopicDef[NotesLinkEvent]
}{
	Link: NewTopicDef[NotesLinkEvent](TopicNotesLink),
}

// Channel groups message channel diagnostics descriptors.
var Channel = struct {
	Discarded TopicDef[MessageDiscardedEvent]
}{
	Discarded: NewTopicDef[MessageDiscardedEvent](TopicChannelDiscarded),
}

// Speaker groups receiver-side descriptors.
var Speaker = struct {
	Update TopicDef[SpeakerUpdateEvent]
}{
	Update: NewTopicDef[SpeakerUpdateEvent](TopicSpeakerUpdate),
}
