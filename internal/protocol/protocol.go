// Package protocol defines the cross-window envelope exchanged between a
// presentation window, its notes window and an embedding parent.
//
// Every envelope is a flat JSON object carrying a namespace, a type and the
// type's payload fields:
//
//	connect   {namespace, type, url, state}
//	connected {namespace, type}
//	call      {namespace, type, methodName, arguments, callId}
//	return    {namespace, type, result, callId}
//	state     {namespace, type, notes, markdown, whitespace, state}
//	point     {namespace, type, x, y, state: {pointer, active}}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Namespace separates this protocol's traffic from unrelated messages on the
// same window message bus.
type Namespace string

const (
	// NamespaceNotes tags traffic with the dedicated notes window.
	NamespaceNotes Namespace = "reveal-notes"
	// NamespaceReveal tags traffic with an embedding parent window.
	NamespaceReveal Namespace = "reveal"
)

// Type discriminates envelopes within a namespace.
type Type string

const (
	TypeConnect   Type = "connect"
	TypeConnected Type = "connected"
	TypeCall      Type = "call"
	TypeReturn    Type = "return"
	TypeState     Type = "state"
	TypePoint     Type = "point"
)

var (
	// ErrMalformed indicates a payload that is not a JSON object or lacks
	// the fields its type requires.
	ErrMalformed = errors.New("protocol: malformed message")
	// ErrForeignNamespace indicates a message belonging to other traffic.
	ErrForeignNamespace = errors.New("protocol: foreign namespace")
	// ErrUnknownType indicates a message in an accepted namespace whose type
	// this protocol does not define.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Whitespace tells the notes view how to lay out the notes text.
type Whitespace string

const (
	WhitespaceNormal   Whitespace = "normal"
	WhitespacePreserve Whitespace = "preserve"
)

// Header is common to every envelope.
type Header struct {
	Namespace Namespace `json:"namespace"`
	Type      Type      `json:"type"`
}

// Message is implemented by every envelope payload.
type Message interface {
	MessageType() Type
}

// Connect asks the notes window to load the presentation at URL.
type Connect struct {
	URL   string          `json:"url"`
	State json.RawMessage `json:"state"`
}

// Connected acknowledges a Connect.
type Connected struct{}

// Call requests a remote procedure on the presentation.
type Call struct {
	MethodName string            `json:"methodName"`
	Arguments  []json.RawMessage `json:"arguments"`
	CallID     CallID            `json:"callId"`
}

// Return carries the result of a Call.
type Return struct {
	Result json.RawMessage `json:"result"`
	CallID CallID          `json:"callId"`
}

// State carries the notes and navigational state of the visible slide.
type State struct {
	Notes      string          `json:"notes"`
	Markdown   bool            `json:"markdown"`
	Whitespace Whitespace      `json:"whitespace"`
	State      json.RawMessage `json:"state"`
}

// PointState identifies the pointer kind and whether its indicator shows.
type PointState struct {
	Pointer string `json:"pointer"`
	Active  bool   `json:"active"`
}

// Point carries a pointer position in unscaled surface coordinates.
type Point struct {
	X     float64    `json:"x"`
	Y     float64    `json:"y"`
	State PointState `json:"state"`
}

func (Connect) MessageType() Type   { return TypeConnect }
func (Connected) MessageType() Type { return TypeConnected }
func (Call) MessageType() Type      { return TypeCall }
func (Return) MessageType() Type    { return TypeReturn }
func (State) MessageType() Type     { return TypeState }
func (Point) MessageType() Type     { return TypePoint }

// CallID correlates a Call with its Return. It preserves the JSON form it
// was received in so that numeric ids are echoed back as numbers.
type CallID struct {
	raw json.RawMessage
}

// NewCallID returns a string call id.
func NewCallID(id string) CallID {
	raw, _ := json.Marshal(id)
	return CallID{raw: raw}
}

// IsZero reports whether the id is absent or null.
func (c CallID) IsZero() bool {
	return len(c.raw) == 0 || bytes.Equal(c.raw, []byte("null"))
}

// String returns the id without JSON quoting.
func (c CallID) String() string {
	if c.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.raw, &s); err == nil {
		return s
	}
	return string(c.raw)
}

// MarshalJSON implements json.Marshaler.
func (c CallID) MarshalJSON() ([]byte, error) {
	if len(c.raw) == 0 {
		return []byte("null"), nil
	}
	return c.raw, nil
}

// UnmarshalJSON accepts strings and numbers.
func (c *CallID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty callId", ErrMalformed)
	}
	switch data[0] {
	case '"', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		c.raw = append(c.raw[:0], data...)
		return nil
	}
	return fmt.Errorf("%w: callId must be a string or number", ErrMalformed)
}

// Envelope is a decoded inbound message.
type Envelope struct {
	Header
	Message Message
}

// Encode serialises msg as a flat envelope tagged with ns.
func Encode(ns Namespace, msg Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	fields["namespace"], _ = json.Marshal(ns)
	fields["type"], _ = json.Marshal(msg.MessageType())

	out, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return string(out), nil
}

// Decode parses data and returns the envelope when its namespace is one of
// accept. Errors wrap ErrMalformed, ErrForeignNamespace or ErrUnknownType.
func Decode(data string, accept ...Namespace) (Envelope, error) {
	var hdr Header
	if err := json.Unmarshal([]byte(data), &hdr); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !slices.Contains(accept, hdr.Namespace) {
		return Envelope{Header: hdr}, fmt.Errorf("%w: %q", ErrForeignNamespace, hdr.Namespace)
	}

	var (
		msg Message
		err error
	)
	switch hdr.Type {
	case TypeConnect:
		msg, err = decodeAs[Connect](data)
	case TypeConnected:
		msg = Connected{}
	case TypeCall:
		var call Call
		call, err = decodeAs[Call](data)
		if err == nil && call.MethodName == "" {
			err = fmt.Errorf("%w: call without methodName", ErrMalformed)
		}
		msg = call
	case TypeReturn:
		msg, err = decodeAs[Return](data)
	case TypeState:
		msg, err = decodeAs[State](data)
	case TypePoint:
		var pt Point
		pt, err = decodeAs[Point](data)
		if err == nil && pt.State.Pointer == "" {
			err = fmt.Errorf("%w: point without state.pointer", ErrMalformed)
		}
		msg = pt
	default:
		return Envelope{Header: hdr}, fmt.Errorf("%w: %q", ErrUnknownType, hdr.Type)
	}
	if err != nil {
		return Envelope{Header: hdr}, err
	}
	return Envelope{Header: hdr, Message: msg}, nil
}

func decodeAs[T Message](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}
