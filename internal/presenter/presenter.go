// Package presenter installs the notes and pointer plugin on a presentation
// window.
package presenter

import (
	"context"
	"fmt"
	"strings"

	"github.com/nupi-ai/notespointer/internal/channel"
	"github.com/nupi-ai/notespointer/internal/config"
	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/notes"
	"github.com/nupi-ai/notespointer/internal/pointer"
	"github.com/nupi-ai/notespointer/internal/rpc"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
)

// Launch triggers read from the presentation query string.
const (
	QueryNotes    = "notes"
	QueryReceiver = "receiver"
)

// DefaultNotesKey opens the speaker view.
const DefaultNotesKey = "S"

// Plugin is the installed plugin.
type Plugin struct {
	Window   *window.Window
	Deck     *deck.Deck
	Methods  *rpc.Registry
	Pointers *pointer.Set
	Notes    *notes.Manager
	Router   *channel.Router

	receiver bool
	logger   zerolog.Logger
}

// Option customises Install.
type Option func(*installOptions)

type installOptions struct {
	logger     *zerolog.Logger
	scriptRead func(string) ([]byte, error)
}

// WithLogger overrides the window logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *installOptions) {
		o.logger = &logger
	}
}

// WithScriptReader replaces how pointer scripts are read.
func WithScriptReader(fn func(string) ([]byte, error)) Option {
	return func(o *installOptions) {
		o.scriptRead = fn
	}
}

// Install wires pointers, key bindings, remote operations and the notes
// link onto d. It runs on the window loop and waits for it.
func Install(ctx context.Context, d *deck.Deck, opts config.NotesPointer, options ...Option) (*Plugin, error) {
	var o installOptions
	for _, opt := range options {
		opt(&o)
	}

	win := d.Window()
	reg, err := pointer.NewRegistry(opts.Pointers, pointer.WithScriptReader(o.scriptRead))
	if err != nil {
		return nil, fmt.Errorf("presenter: %w", err)
	}

	logger := win.Logger()
	if o.logger != nil {
		logger = *o.logger
	}
	p := &Plugin{
		Window:   win,
		Deck:     d,
		Methods:  rpc.NewRegistry(),
		receiver: strings.Contains(strings.ToLower(win.Search()), QueryReceiver),
		logger:   logger.With().Str("component", "presenter").Logger(),
	}

	var installErr error
	if err := win.Do(ctx, func() {
		installErr = p.install(reg, opts, logger)
	}); err != nil {
		return nil, err
	}
	if installErr != nil {
		return nil, installErr
	}
	return p, nil
}

func (p *Plugin) install(reg *pointer.Registry, opts config.NotesPointer, logger zerolog.Logger) error {
	d := p.Deck
	d.Methods(p.Methods)

	p.Notes = notes.NewManager(p.Window, d, p.Methods,
		notes.WithURL(opts.Notes.URL),
		notes.WithRetryInterval(opts.Notes.RetryInterval),
		notes.WithLogger(logger),
	)
	p.Router = channel.NewRouter(p.Window, p.Notes, d.Config().PostMessageEvents)

	set, err := pointer.NewSet(p.Window, reg, d, p.Router)
	if err != nil {
		return fmt.Errorf("presenter: %w", err)
	}
	p.Pointers = set
	set.Register(p.Methods)

	for _, dev := range set.Devices() {
		k := dev.Kind()
		d.Attach(dev.Indicator())
		if !d.AddKeyBinding(deck.NewKeyBinding(k.Key, k.KeyCode, k.Key, "Toggle "+k.ID), dev.Toggle) {
			p.logger.Warn().Str("pointer", k.ID).Msg("pointer has no key, toggle not bound")
		}
	}

	if p.receiver {
		p.logger.Debug().Msg("receiver window, notes key not bound")
		return nil
	}
	if p.Window.HasQuery(QueryNotes) {
		p.OpenNotes()
	}
	d.AddKeyBinding(deck.NewKeyBinding(opts.Notes.Key, opts.Notes.KeyCode, DefaultNotesKey, "Speaker notes view"), p.OpenNotes)
	return nil
}

// Receiver reports whether the window was launched as a receiver.
func (p *Plugin) Receiver() bool { return p.receiver }

// OpenNotes opens the speaker view. It runs on the window loop; failures
// are logged because the user already saw the alert.
func (p *Plugin) OpenNotes() {
	if err := p.Notes.Open(""); err != nil {
		p.logger.Warn().Err(err).Msg("open speaker view")
	}
}

// Close stops the notes link.
func (p *Plugin) Close() {
	if p.Notes != nil {
		p.Notes.Close()
	}
}
