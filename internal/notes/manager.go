// Package notes links a presentation window to its speaker notes popup: it
// runs the connect handshake, answers remote calls and replicates the notes
// of the visible slide.
package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nupi-ai/notespointer/internal/channel"
	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/rpc"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
)

const (
	DefaultURL           = "notes.html"
	DefaultTarget        = "reveal.js - Notes"
	DefaultRetryInterval = 500 * time.Millisecond

	// BlockedAlert is shown when the popup cannot be opened.
	BlockedAlert = "Speaker view popup failed to open. Please make sure popups are allowed and reopen the speaker view."
)

// Manager owns the link to the notes popup. Open and every handler run on
// the presentation window's loop; Popup and LinkState may be read from
// anywhere.
type Manager struct {
	win        *window.Window
	deck       *deck.Deck
	methods    *rpc.Registry
	replicator *Replicator
	logger     zerolog.Logger

	url      string
	target   string
	interval time.Duration

	mu    sync.Mutex
	popup *window.Window
	state eventbus.LinkState

	retry      *window.Interval
	subscribed bool
	stopListen func()
}

// Option customises a Manager.
type Option func(*Manager)

// WithURL sets the notes page, resolved against the presentation URL.
func WithURL(url string) Option {
	return func(m *Manager) {
		if url != "" {
			m.url = url
		}
	}
}

// WithTarget sets the popup target name.
func WithTarget(target string) Option {
	return func(m *Manager) {
		if target != "" {
			m.target = target
		}
	}
}

// WithRetryInterval sets the connect retry period.
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger overrides the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a disconnected manager for the deck shown in win.
// methods is the allowlist remote calls are served from.
func NewManager(win *window.Window, d *deck.Deck, methods *rpc.Registry, opts ...Option) *Manager {
	m := &Manager{
		win:        win,
		deck:       d,
		methods:    methods,
		replicator: NewReplicator(d),
		logger:     win.Logger(),
		url:        DefaultURL,
		target:     DefaultTarget,
		interval:   DefaultRetryInterval,
		state:      eventbus.LinkDisconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "notes").Logger()
	m.stopListen = channel.Listen(win, m.handle, protocol.NamespaceNotes)
	return m
}

// Popup returns the notes window, or nil before one was opened.
func (m *Manager) Popup() *window.Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.popup
}

// LinkState returns the current link state.
func (m *Manager) LinkState() eventbus.LinkState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s eventbus.LinkState, reason string) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	popup := m.popup
	m.mu.Unlock()

	m.logger.Info().Str("state", string(s)).Str("reason", reason).Msg("notes link")
	ev := eventbus.NotesLinkEvent{WindowID: m.win.ID(), State: s, Reason: reason}
	if popup != nil {
		ev.PopupID = popup.ID()
	}
	eventbus.Publish(context.Background(), m.win.Bus(), eventbus.Notes.Link, eventbus.SourceNotesManager, ev)
}

// Open opens the notes popup and starts the handshake. A live popup is
// focused instead. An empty url uses the configured notes page.
func (m *Manager) Open(url string) error {
	if popup := m.Popup(); popup != nil && !popup.Closed() {
		popup.Focus()
		return nil
	}
	if url == "" {
		url = m.url
	}

	popup, err := m.win.Host().Open(m.win, url, m.target)
	if err != nil {
		if errors.Is(err, window.ErrPopupBlocked) {
			m.win.Alert(BlockedAlert)
		}
		return fmt.Errorf("notes: open %s: %w", url, err)
	}

	m.mu.Lock()
	m.popup = popup
	m.mu.Unlock()
	m.setState(eventbus.LinkPending, "popup opened")

	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = m.win.SetInterval(m.interval, m.connect)
	return nil
}

// PresentationURL is the address the notes window loads: scheme, host,
// path and query of the presentation.
func (m *Manager) PresentationURL() string {
	u := m.win.URL()
	return u.Scheme + "://" + u.Host + u.Path + m.win.Search()
}

func (m *Manager) connect() {
	popup := m.Popup()
	if popup == nil || popup.Closed() {
		m.retry.Stop()
		m.setState(eventbus.LinkDisconnected, "popup closed before connecting")
		return
	}
	state, err := json.Marshal(m.deck.State())
	if err != nil {
		m.logger.Error().Err(err).Msg("encode deck state")
		return
	}
	if err := channel.Send(m.win, popup, protocol.NamespaceNotes, protocol.Connect{
		URL:   m.PresentationURL(),
		State: state,
	}); err != nil {
		m.logger.Error().Err(err).Msg("send connect")
	}
}

func (m *Manager) handle(ev window.MessageEvent, env protocol.Envelope) {
	popup := m.Popup()
	if popup == nil || ev.Source != popup {
		m.logger.Debug().Str("type", string(env.Type)).Msg("ignoring message from a window that is not the notes popup")
		return
	}

	switch msg := env.Message.(type) {
	case protocol.Connected:
		if m.retry == nil || !m.retry.Stop() {
			return
		}
		m.onConnected()
	case protocol.Call:
		m.call(popup, msg)
	default:
		m.logger.Debug().Str("type", string(env.Type)).Msg("unhandled notes message")
	}
}

func (m *Manager) onConnected() {
	m.setState(eventbus.LinkConnected, "handshake acknowledged")
	if !m.subscribed {
		for _, name := range deck.LifecycleEvents {
			m.deck.AddEventListener(name, func(deck.Event) { m.Post() })
		}
		m.subscribed = true
	}
	m.Post()
}

// Post sends the current notes and state to the popup.
func (m *Manager) Post() {
	popup := m.Popup()
	if popup == nil {
		return
	}
	if popup.Closed() {
		m.setState(eventbus.LinkDisconnected, "popup closed")
		return
	}
	msg, err := m.replicator.Build()
	if err != nil {
		m.logger.Error().Err(err).Msg("build notes state")
		return
	}
	if err := channel.Send(m.win, popup, protocol.NamespaceNotes, msg); err != nil {
		m.logger.Error().Err(err).Msg("send notes state")
	}
}

// call answers one remote call with exactly one return.
func (m *Manager) call(popup *window.Window, call protocol.Call) {
	result := json.RawMessage("null")
	value, err := m.methods.Call(call.MethodName, call.Arguments)
	if err != nil {
		m.logger.Warn().Err(err).Str("method", call.MethodName).Msg("remote call failed")
	} else if raw, err := json.Marshal(value); err != nil {
		m.logger.Warn().Err(err).Str("method", call.MethodName).Msg("encode call result")
	} else {
		result = raw
	}

	if err := channel.Send(m.win, popup, protocol.NamespaceNotes, protocol.Return{
		Result: result,
		CallID: call.CallID,
	}); err != nil {
		m.logger.Error().Err(err).Msg("send return")
	}
}

// Close stops the handshake and listening. The popup stays open.
func (m *Manager) Close() {
	if m.retry != nil {
		m.retry.Stop()
	}
	if m.stopListen != nil {
		m.stopListen()
	}
}
