// Package speaker is the receiving end of the notes protocol: the view that
// runs inside the notes popup, or inside a parent that embeds the deck.
package speaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nupi-ai/notespointer/internal/channel"
	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
	"github.com/russross/blackfriday/v2"
)

// ErrNotConnected is returned by Call before any presentation connected.
var ErrNotConnected = errors.New("speaker: no presentation connected")

// Update kinds.
const (
	KindConnect = "connect"
	KindState   = "state"
	KindPoint   = "point"
	KindReturn  = "return"
)

// Pointer is the mirrored position of one pointer kind.
type Pointer struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// Snapshot is what the speaker view currently shows.
type Snapshot struct {
	URL        string              `json:"url,omitempty"`
	Notes      string              `json:"notes"`
	HTML       string              `json:"html"`
	Markdown   bool                `json:"markdown"`
	Whitespace protocol.Whitespace `json:"whitespace,omitempty"`
	State      json.RawMessage     `json:"state,omitempty"`
	Pointers   []Pointer           `json:"pointers,omitempty"`
}

// View renders notes and pointers received from a presentation window.
type View struct {
	win    *window.Window
	logger zerolog.Logger
	policy *bluemonday.Policy

	mu        sync.Mutex
	presenter *window.Window
	url       string
	state     protocol.State
	html      string
	pointers  map[string]Pointer
	pending   map[string]chan protocol.Return
	onUpdate  func(kind string, snap Snapshot)

	stop func()
}

// Option customises a View.
type Option func(*View)

// WithLogger overrides the view logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(v *View) {
		v.logger = logger
	}
}

// WithPolicy replaces the sanitizer applied to received notes.
func WithPolicy(p *bluemonday.Policy) Option {
	return func(v *View) {
		if p != nil {
			v.policy = p
		}
	}
}

// OnUpdate registers fn to run on the view loop after every change.
func OnUpdate(fn func(kind string, snap Snapshot)) Option {
	return func(v *View) {
		v.onUpdate = fn
	}
}

// NewView starts listening on win for both the notes namespace and the
// embedding namespace.
func NewView(win *window.Window, opts ...Option) *View {
	v := &View{
		win:      win,
		logger:   win.Logger(),
		policy:   bluemonday.UGCPolicy(),
		pointers: make(map[string]Pointer),
		pending:  make(map[string]chan protocol.Return),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.With().Str("component", "speaker").Logger()
	v.stop = channel.Listen(win, v.handle, protocol.NamespaceNotes, protocol.NamespaceReveal)
	return v
}

// Close stops listening. Outstanding calls fail with their context.
func (v *View) Close() {
	v.stop()
}

func (v *View) handle(ev window.MessageEvent, env protocol.Envelope) {
	switch msg := env.Message.(type) {
	case protocol.Connect:
		v.connect(ev.Source, env.Namespace, msg)
	case protocol.State:
		v.applyState(msg)
	case protocol.Point:
		v.applyPoint(msg)
	case protocol.Return:
		v.deliver(msg)
	default:
		v.logger.Debug().Str("type", string(env.Type)).Msg("unhandled message")
	}
}

func (v *View) connect(from *window.Window, ns protocol.Namespace, msg protocol.Connect) {
	if from == nil {
		return
	}
	v.mu.Lock()
	v.presenter = from
	v.url = msg.URL
	v.state.State = msg.State
	v.mu.Unlock()

	if err := channel.Send(v.win, from, ns, protocol.Connected{}); err != nil {
		v.logger.Error().Err(err).Msg("send connected")
	}
	v.updated(KindConnect, eventbus.SpeakerUpdateEvent{State: string(msg.State)})
}

func (v *View) applyState(msg protocol.State) {
	rendered := v.Render(msg)
	v.mu.Lock()
	v.state = msg
	v.html = rendered
	v.mu.Unlock()
	v.updated(KindState, eventbus.SpeakerUpdateEvent{Notes: msg.Notes, State: string(msg.State)})
}

func (v *View) applyPoint(msg protocol.Point) {
	p := Pointer{ID: msg.State.Pointer, X: msg.X, Y: msg.Y, Active: msg.State.Active}
	v.mu.Lock()
	v.pointers[p.ID] = p
	v.mu.Unlock()
	v.updated(KindPoint, eventbus.SpeakerUpdateEvent{Pointer: p.ID, X: p.X, Y: p.Y, Active: p.Active})
}

func (v *View) updated(kind string, ev eventbus.SpeakerUpdateEvent) {
	ev.WindowID = v.win.ID()
	ev.Kind = kind
	eventbus.Publish(context.Background(), v.win.Bus(), eventbus.Speaker.Update, eventbus.SourceSpeaker, ev)
	if v.onUpdate != nil {
		v.onUpdate(kind, v.Snapshot())
	}
}

// Render turns received notes into sanitized HTML. Markdown notes are
// converted first; preserved whitespace is kept in a pre block.
func (v *View) Render(msg protocol.State) string {
	switch {
	case msg.Markdown:
		return string(v.policy.SanitizeBytes(blackfriday.Run([]byte(msg.Notes))))
	case msg.Whitespace == protocol.WhitespacePreserve:
		return "<pre>" + v.policy.Sanitize(msg.Notes) + "</pre>"
	default:
		return v.policy.Sanitize(msg.Notes)
	}
}

// Snapshot returns a copy of what the view shows.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := Snapshot{
		URL:        v.url,
		Notes:      v.state.Notes,
		HTML:       v.html,
		Markdown:   v.state.Markdown,
		Whitespace: v.state.Whitespace,
		State:      append(json.RawMessage(nil), v.state.State...),
	}
	for _, p := range v.pointers {
		snap.Pointers = append(snap.Pointers, p)
	}
	sort.Slice(snap.Pointers, func(i, j int) bool { return snap.Pointers[i].ID < snap.Pointers[j].ID })
	return snap
}

// Connected reports whether a presentation has connected.
func (v *View) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.presenter != nil
}

// Call invokes method on the connected presentation and waits for the
// matching return. It must not be called from the view's own loop.
func (v *View) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	raw := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("speaker: encode argument %d: %w", i, err)
		}
		raw[i] = b
	}

	id := uuid.NewString()
	ch := make(chan protocol.Return, 1)
	v.mu.Lock()
	presenter := v.presenter
	if presenter == nil {
		v.mu.Unlock()
		return nil, ErrNotConnected
	}
	v.pending[id] = ch
	v.mu.Unlock()

	defer func() {
		v.mu.Lock()
		delete(v.pending, id)
		v.mu.Unlock()
	}()

	if err := channel.Send(v.win, presenter, protocol.NamespaceNotes, protocol.Call{
		MethodName: method,
		Arguments:  raw,
		CallID:     protocol.NewCallID(id),
	}); err != nil {
		return nil, err
	}

	select {
	case ret := <-ch:
		return ret.Result, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("speaker: call %s: %w", method, ctx.Err())
	}
}

func (v *View) deliver(ret protocol.Return) {
	id := ret.CallID.String()
	v.mu.Lock()
	ch, ok := v.pending[id]
	delete(v.pending, id)
	v.mu.Unlock()
	if !ok {
		v.logger.Debug().Str("call_id", id).Msg("return without pending call")
		return
	}
	ch <- ret
	eventbus.PublishWithOpts(context.Background(), v.win.Bus(), eventbus.Speaker.Update, eventbus.SourceSpeaker,
		eventbus.SpeakerUpdateEvent{WindowID: v.win.ID(), Kind: KindReturn},
		eventbus.WithCorrelationID(id))
}
