// Package channel carries protocol envelopes between windows and decides
// which window, if any, receives outbound broadcasts.
package channel

import (
	"context"
	"errors"

	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
)

// Send encodes msg under ns and posts it from one window to another. It
// never waits for delivery.
func Send(from, to *window.Window, ns protocol.Namespace, msg protocol.Message) error {
	data, err := protocol.Encode(ns, msg)
	if err != nil {
		return err
	}
	to.PostMessage(from, data)
	return nil
}

// Handler receives envelopes that passed namespace and shape checks.
type Handler func(ev window.MessageEvent, env protocol.Envelope)

// Listen calls handler for every message delivered to win whose namespace is
// one of accept. Anything else is dropped and reported on the bus. The
// returned function stops listening.
func Listen(win *window.Window, handler Handler, accept ...protocol.Namespace) func() {
	logger := win.Logger().With().Str("component", "channel").Logger()
	return win.AddEventListener(window.EventMessage, func(ev window.Event) {
		msg, ok := ev.(window.MessageEvent)
		if !ok {
			return
		}
		env, err := protocol.Decode(msg.Data, accept...)
		if err != nil {
			discard(win, logger, env, err)
			return
		}
		handler(msg, env)
	})
}

func discard(win *window.Window, logger zerolog.Logger, env protocol.Envelope, err error) {
	reason := eventbus.DiscardMalformed
	if errors.Is(err, protocol.ErrForeignNamespace) {
		reason = eventbus.DiscardForeignNamespace
	}
	logger.Debug().Err(err).Str("reason", string(reason)).Str("type", string(env.Type)).Msg("inbound message discarded")
	eventbus.Publish(context.Background(), win.Bus(), eventbus.Channel.Discarded, eventbus.SourceChannel, eventbus.MessageDiscardedEvent{
		WindowID: win.ID(),
		Reason:   reason,
		Type:     string(env.Type),
		Detail:   err.Error(),
	})
}

// Link exposes the notes popup a Router may deliver to. Popup returns nil
// while no popup has been opened.
type Link interface {
	Popup() *window.Window
}

// Router picks the receiver for outbound broadcasts from one window.
type Router struct {
	win               *window.Window
	link              Link
	postMessageEvents bool
	logger            zerolog.Logger
}

// NewRouter creates a router for win. postMessageEvents allows falling back
// to an embedding parent window.
func NewRouter(win *window.Window, link Link, postMessageEvents bool) *Router {
	return &Router{
		win:               win,
		link:              link,
		postMessageEvents: postMessageEvents,
		logger:            win.Logger().With().Str("component", "channel").Logger(),
	}
}

// Receiver returns the window and namespace broadcasts go to. ok is false
// when there is no receiver.
func (r *Router) Receiver() (to *window.Window, ns protocol.Namespace, ok bool) {
	if r.link != nil {
		if popup := r.link.Popup(); popup != nil {
			return popup, protocol.NamespaceNotes, true
		}
	}
	if r.postMessageEvents && !r.win.IsTop() {
		return r.win.Parent(), protocol.NamespaceReveal, true
	}
	return nil, "", false
}

// Send delivers msg to the current receiver. Without one the message is
// dropped and Send reports false.
func (r *Router) Send(msg protocol.Message) bool {
	to, ns, ok := r.Receiver()
	if !ok {
		eventbus.Publish(context.Background(), r.win.Bus(), eventbus.Channel.Discarded, eventbus.SourceChannel, eventbus.MessageDiscardedEvent{
			WindowID: r.win.ID(),
			Reason:   eventbus.DiscardNoReceiver,
			Type:     string(msg.MessageType()),
		})
		return false
	}
	if err := Send(r.win, to, ns, msg); err != nil {
		r.logger.Error().Err(err).Str("type", string(msg.MessageType())).Msg("encode outbound message")
		return false
	}
	return true
}

// Broadcast sends a pointer position to the current receiver.
func (r *Router) Broadcast(p protocol.Point) {
	r.Send(p)
}
