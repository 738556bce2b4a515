// Package window models browser-style windows inside one process. Each
// window owns a single ordered event queue consumed by one worker, so every
// handler runs to completion before the next event is looked at.
package window

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrPopupBlocked is returned by Open when the host refuses to create
	// the window.
	ErrPopupBlocked = errors.New("window: popup blocked")
	// ErrClosed is returned when operating on a closed window or host.
	ErrClosed = errors.New("window: closed")
)

// PopupPolicy decides whether opener may open a popup for target.
type PopupPolicy func(opener *Window, target *url.URL) bool

// Host owns a set of windows that exchange messages in-process.
type Host struct {
	bus    *eventbus.Bus
	ownBus bool
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	popupPolicy PopupPolicy
	onAlert     func(w *Window, msg string)
	onCreate    []func(w *Window)

	mu      sync.Mutex
	windows map[string]*Window
	named   map[string]*Window
	focused *Window
}

// HostOption customises a Host.
type HostOption func(*Host)

// WithBus makes the host publish on an existing bus.
func WithBus(bus *eventbus.Bus) HostOption {
	return func(h *Host) {
		if bus != nil {
			h.bus = bus
			h.ownBus = false
		}
	}
}

// WithLogger overrides the host logger.
func WithLogger(logger zerolog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithPopupPolicy installs a popup blocker.
func WithPopupPolicy(policy PopupPolicy) HostOption {
	return func(h *Host) {
		h.popupPolicy = policy
	}
}

// BlockPopups refuses every popup.
func BlockPopups() HostOption {
	return WithPopupPolicy(func(*Window, *url.URL) bool { return false })
}

// WithAlertHandler receives user-visible alerts raised by any window.
func WithAlertHandler(fn func(w *Window, msg string)) HostOption {
	return func(h *Host) {
		h.onAlert = fn
	}
}

// OnCreate runs fn for every new window before the call that created it
// returns, so listeners installed by fn see the window's first message.
func OnCreate(fn func(w *Window)) HostOption {
	return func(h *Host) {
		h.onCreate = append(h.onCreate, fn)
	}
}

// NewHost creates a host whose windows stop when ctx is cancelled.
func NewHost(ctx context.Context, opts ...HostOption) *Host {
	h := &Host{
		logger:  log.Logger,
		windows: make(map[string]*Window),
		named:   make(map[string]*Window),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.bus == nil {
		h.bus = eventbus.New(eventbus.WithLogger(h.logger))
		h.ownBus = true
	}
	h.logger = h.logger.With().Str("component", "window").Logger()
	h.ctx, h.cancel = context.WithCancel(ctx)
	return h
}

// Bus returns the bus the host publishes on.
func (h *Host) Bus() *eventbus.Bus {
	return h.bus
}

// NewWindow opens a top-level window that has no opener.
func (h *Host) NewWindow(rawURL string) (*Window, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse window url %q: %w", rawURL, err)
	}
	return h.create(u, "", nil, nil)
}

// Open opens a popup from opener. A live window already registered under
// target is returned instead of creating a new one. Relative URLs resolve
// against the opener's URL.
func (h *Host) Open(opener *Window, rawURL, target string) (*Window, error) {
	u, err := resolve(opener, rawURL)
	if err != nil {
		return nil, err
	}

	if target != "" {
		h.mu.Lock()
		existing := h.named[target]
		h.mu.Unlock()
		if existing != nil && !existing.Closed() {
			return existing, nil
		}
	}

	if h.popupPolicy != nil && !h.popupPolicy(opener, u) {
		eventbus.Publish(h.ctx, h.bus, eventbus.Windows.Lifecycle, eventbus.SourceHost, eventbus.WindowLifecycleEvent{
			URL:      u.String(),
			Name:     target,
			OpenerID: idOf(opener),
			State:    eventbus.WindowStateBlocked,
		})
		return nil, fmt.Errorf("%w: %s", ErrPopupBlocked, u)
	}
	return h.create(u, target, opener, nil)
}

// Embed creates a child window of parent, like an iframe.
func (h *Host) Embed(parent *Window, rawURL string) (*Window, error) {
	if parent == nil {
		return nil, errors.New("window: embed requires a parent")
	}
	u, err := resolve(parent, rawURL)
	if err != nil {
		return nil, err
	}
	return h.create(u, "", nil, parent)
}

func resolve(base *Window, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse window url %q: %w", rawURL, err)
	}
	if base != nil {
		u = base.url.ResolveReference(u)
	}
	return u, nil
}

func (h *Host) create(u *url.URL, name string, opener, parent *Window) (*Window, error) {
	if h.ctx.Err() != nil {
		return nil, ErrClosed
	}

	w := &Window{
		id:        uuid.NewString(),
		name:      name,
		url:       u,
		host:      h,
		opener:    opener,
		parent:    parent,
		cursor:    CursorAuto,
		listeners: make(map[string][]*listener),
	}
	w.logger = h.logger.With().Str("window", w.shortID()).Logger()
	w.start(h.ctx)

	h.mu.Lock()
	h.windows[w.id] = w
	if name != "" {
		h.named[name] = w
	}
	h.mu.Unlock()

	eventbus.Publish(h.ctx, h.bus, eventbus.Windows.Lifecycle, eventbus.SourceHost, eventbus.WindowLifecycleEvent{
		WindowID: w.id,
		Name:     name,
		URL:      u.String(),
		OpenerID: idOf(opener),
		ParentID: idOf(parent),
		State:    eventbus.WindowStateOpened,
	})
	w.logger.Debug().Str("url", u.String()).Str("name", name).Msg("window opened")
	for _, fn := range h.onCreate {
		fn(w)
	}
	return w, nil
}

func (h *Host) forget(w *Window) {
	h.mu.Lock()
	delete(h.windows, w.id)
	if w.name != "" && h.named[w.name] == w {
		delete(h.named, w.name)
	}
	if h.focused == w {
		h.focused = nil
	}
	h.mu.Unlock()

	eventbus.Publish(context.Background(), h.bus, eventbus.Windows.Lifecycle, eventbus.SourceHost, eventbus.WindowLifecycleEvent{
		WindowID: w.id,
		Name:     w.name,
		URL:      w.url.String(),
		State:    eventbus.WindowStateClosed,
	})
}

func (h *Host) focus(w *Window) {
	h.mu.Lock()
	h.focused = w
	h.mu.Unlock()

	eventbus.Publish(h.ctx, h.bus, eventbus.Windows.Lifecycle, eventbus.SourceHost, eventbus.WindowLifecycleEvent{
		WindowID: w.id,
		Name:     w.name,
		URL:      w.url.String(),
		State:    eventbus.WindowStateFocused,
	})
}

// Focused returns the most recently focused live window, if any.
func (h *Host) Focused() *Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.focused
}

// Windows returns the live windows in no particular order.
func (h *Host) Windows() []*Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Window, 0, len(h.windows))
	for _, w := range h.windows {
		out = append(out, w)
	}
	return out
}

// Shutdown closes every window and waits for their loops to exit.
func (h *Host) Shutdown(ctx context.Context) error {
	windows := h.Windows()
	for _, w := range windows {
		w.Close()
	}
	h.cancel()

	var errs []error
	for _, w := range windows {
		if err := w.queue.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if h.ownBus {
		h.bus.Shutdown()
	}
	return errors.Join(errs...)
}

func idOf(w *Window) string {
	if w == nil {
		return ""
	}
	return w.id
}
