package window

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/rs/zerolog"
)

// Cursor hints.
const (
	CursorAuto = "auto"
	CursorNone = "none"
)

type listener struct {
	fn      Listener
	removed atomic.Bool
}

// Window is one browsing context with its own event loop.
type Window struct {
	id     string
	name   string
	url    *url.URL
	host   *Host
	opener *Window
	parent *Window
	logger zerolog.Logger

	queue  *eventbus.Queue[Event]
	closed atomic.Bool

	mu        sync.Mutex
	listeners map[string][]*listener
	cursor    string
	alerts    []string
}

func (w *Window) start(ctx context.Context) {
	w.queue = eventbus.OpenQueue(ctx, w.host.bus, w.id, w.handle,
		eventbus.WithQueueLogger(w.logger),
		eventbus.WithQueueName("window "+w.shortID()))
}

func (w *Window) handle(ev Event) {
	if t, ok := ev.(taskEvent); ok {
		t.fn()
		return
	}

	w.mu.Lock()
	ls := append([]*listener(nil), w.listeners[ev.EventType()]...)
	w.mu.Unlock()
	for _, l := range ls {
		if l.removed.Load() {
			continue
		}
		l.fn(ev)
	}
}

func (w *Window) shortID() string {
	if len(w.id) > 8 {
		return w.id[:8]
	}
	return w.id
}

// ID returns the unique window id.
func (w *Window) ID() string { return w.id }

// Name returns the target name the window was opened under.
func (w *Window) Name() string { return w.name }

// URL returns a copy of the window location.
func (w *Window) URL() *url.URL {
	u := *w.url
	return &u
}

// Search returns the query string including its leading "?", or "".
func (w *Window) Search() string {
	if w.url.RawQuery == "" {
		return ""
	}
	return "?" + w.url.RawQuery
}

// HasQuery reports whether the query string contains a parameter starting
// with name, ignoring case.
func (w *Window) HasQuery(name string) bool {
	search := strings.ToLower(w.Search())
	name = strings.ToLower(name)
	for _, sep := range []string{"?", "&"} {
		if strings.Contains(search, sep+name) {
			return true
		}
	}
	return false
}

// Origin returns scheme://host of the window location.
func (w *Window) Origin() string {
	return w.url.Scheme + "://" + w.url.Host
}

// Host returns the owning host.
func (w *Window) Host() *Host { return w.host }

// Opener returns the window that opened this popup, if any.
func (w *Window) Opener() *Window { return w.opener }

// Parent returns the embedding window, or the window itself when it is a
// top-level window, mirroring window.parent.
func (w *Window) Parent() *Window {
	if w.parent == nil {
		return w
	}
	return w.parent
}

// IsTop reports whether the window is not embedded in another window.
func (w *Window) IsTop() bool { return w.parent == nil }

// Logger returns the window-scoped logger.
func (w *Window) Logger() zerolog.Logger { return w.logger }

// Bus returns the bus the window's host publishes on.
func (w *Window) Bus() *eventbus.Bus { return w.host.bus }

// Closed reports whether the window has been closed.
func (w *Window) Closed() bool { return w.closed.Load() }

// Close closes the window. Queued events are discarded.
func (w *Window) Close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	w.queue.Close()
	w.host.forget(w)
	w.logger.Debug().Msg("window closed")
}

// Focus brings the window to the foreground.
func (w *Window) Focus() {
	if w.Closed() {
		return
	}
	w.host.focus(w)
}

// Focused reports whether the window currently has focus.
func (w *Window) Focused() bool {
	return w.host.Focused() == w
}

// SetCursor sets the document cursor hint.
func (w *Window) SetCursor(cursor string) {
	w.mu.Lock()
	w.cursor = cursor
	w.mu.Unlock()
}

// Cursor returns the document cursor hint.
func (w *Window) Cursor() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cursor
}

// Alert raises a user-visible message.
func (w *Window) Alert(msg string) {
	w.mu.Lock()
	w.alerts = append(w.alerts, msg)
	w.mu.Unlock()

	w.logger.Warn().Str("alert", msg).Msg("user alert")
	if w.host.onAlert != nil {
		w.host.onAlert(w, msg)
	}
}

// Alerts returns the alerts raised so far.
func (w *Window) Alerts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.alerts...)
}

// AddEventListener registers fn for events of type typ. The returned
// function removes it; removing twice is harmless.
func (w *Window) AddEventListener(typ string, fn Listener) func() {
	l := &listener{fn: fn}
	w.mu.Lock()
	w.listeners[typ] = append(w.listeners[typ], l)
	w.mu.Unlock()

	return func() {
		if !l.removed.CompareAndSwap(false, true) {
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		ls := w.listeners[typ]
		for i, cur := range ls {
			if cur == l {
				w.listeners[typ] = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
	}
}

// ListenerCount returns how many listeners are registered for typ.
func (w *Window) ListenerCount(typ string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners[typ])
}

// Dispatch queues ev behind everything already queued for this window.
// Events dispatched to a closed window are dropped.
func (w *Window) Dispatch(ev Event) {
	if w.Closed() {
		return
	}
	w.host.bus.Publish(w.queue.Context(), eventbus.Envelope{
		Topic:   eventbus.WindowQueue(w.id),
		Source:  eventbus.SourceWindow,
		Payload: ev,
	})
}

// Post queues fn to run on the window loop.
func (w *Window) Post(fn func()) {
	w.Dispatch(taskEvent{fn: fn})
}

// Do runs fn on the window loop and waits for it to finish. It must not be
// called from the loop itself.
func (w *Window) Do(ctx context.Context, fn func()) error {
	if w.Closed() {
		return ErrClosed
	}
	done := make(chan struct{})
	w.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-w.queue.Context().Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PostMessage delivers data to w as a message event from source. Delivery is
// asynchronous and ordered per sender; messages to closed windows vanish.
func (w *Window) PostMessage(source *Window, data string) {
	if w.Closed() {
		eventbus.Publish(context.Background(), w.host.bus, eventbus.Channel.Discarded, eventbus.SourceWindow, eventbus.MessageDiscardedEvent{
			WindowID: w.id,
			Reason:   eventbus.DiscardWindowClosed,
		})
		return
	}
	ev := MessageEvent{Data: data, Source: source}
	if source != nil {
		ev.Origin = source.Origin()
	}
	w.Dispatch(ev)
}

func (w *Window) String() string {
	return fmt.Sprintf("window(%s %s)", w.shortID(), w.url)
}
