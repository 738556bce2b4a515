package notes

import (
	"encoding/json"
	"fmt"

	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/protocol"
)

const notesBlock = "aside." + deck.ClassNotes

// Replicator derives the notes payload for the visible slide.
type Replicator struct {
	deck *deck.Deck
}

// NewReplicator reads notes from d.
func NewReplicator(d *deck.Deck) *Replicator {
	return &Replicator{deck: d}
}

// Build returns the state envelope for the current slide and fragment.
func (r *Replicator) Build() (protocol.State, error) {
	raw, err := json.Marshal(r.deck.State())
	if err != nil {
		return protocol.State{}, fmt.Errorf("notes: encode deck state: %w", err)
	}
	msg := Extract(r.deck.CurrentSlide())
	msg.State = raw
	return msg, nil
}

// Extract picks the notes of slide. The current fragment wins over the
// slide, and an explicit attribute wins over an embedded block at each
// level. Attribute notes keep their whitespace.
func Extract(slide *deck.Slide) protocol.State {
	if frag := slide.QuerySelector("." + deck.ClassCurrentFragment); frag != nil {
		if v, ok := frag.Attr(deck.AttrNotes); ok {
			return fromAttribute(v)
		}
		if block := frag.QuerySelector(notesBlock); block != nil {
			return fromBlock(block)
		}
	}
	if v, ok := slide.Attr(deck.AttrNotes); ok {
		return fromAttribute(v)
	}
	// Any block on the slide counts, including one inside a fragment.
	if block := slide.QuerySelector(notesBlock); block != nil {
		return fromBlock(block)
	}
	return protocol.State{Whitespace: protocol.WhitespaceNormal}
}

func fromAttribute(v string) protocol.State {
	return protocol.State{Notes: v, Whitespace: protocol.WhitespacePreserve}
}

func fromBlock(block *deck.Element) protocol.State {
	return protocol.State{
		Notes:      block.InnerHTML(),
		Markdown:   block.HasAttr(deck.AttrMarkdown),
		Whitespace: protocol.WhitespaceNormal,
	}
}
