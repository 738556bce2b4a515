package window

// Event types dispatched through a window queue.
const (
	EventMessage   = "message"
	EventMouseMove = "mousemove"
	EventKeyDown   = "keydown"
	eventTask      = "task"
)

// Event is anything that can travel through a window queue.
type Event interface {
	EventType() string
}

// Listener handles one event on the window loop.
type Listener func(Event)

// MessageEvent is delivered for every PostMessage call targeting a window.
type MessageEvent struct {
	Data   string
	Source *Window
	Origin string
}

// MouseEvent is a pointer movement in viewport pixels.
type MouseEvent struct {
	ClientX float64
	ClientY float64
}

// KeyEvent is a key press. Key holds the character, KeyCode the legacy
// upper-case key code.
type KeyEvent struct {
	Key     string
	KeyCode int
}

// CustomEvent carries application events such as presentation lifecycle
// notifications.
type CustomEvent struct {
	Type   string
	Detail any
}

type taskEvent struct {
	fn func()
}

func (MessageEvent) EventType() string  { return EventMessage }
func (MouseEvent) EventType() string    { return EventMouseMove }
func (KeyEvent) EventType() string      { return EventKeyDown }
func (e CustomEvent) EventType() string { return e.Type }
func (taskEvent) EventType() string     { return eventTask }
