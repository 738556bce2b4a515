package notes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadSlide(t *testing.T, section string) (*window.Window, *deck.Deck) {
	t.Helper()
	h := window.NewHost(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	w, err := h.NewWindow("http://localhost/deck.html")
	require.NoError(t, err)
	d, err := deck.New(w, strings.NewReader(`<div class="reveal"><div class="slides">`+section+`</div></div>`))
	require.NoError(t, err)
	return w, d
}

func extractCurrent(t *testing.T, section string, fragment int) protocol.State {
	t.Helper()
	w, d := loadSlide(t, section)
	var got protocol.State
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, func() {
		if fragment >= 0 {
			d.Slide(0, 0, fragment)
		}
		got = Extract(d.CurrentSlide())
	}))
	return got
}

func TestAttributeBeatsBlockOnSlide(t *testing.T) {
	got := extractCurrent(t, `<section data-notes="  spaced  "><aside class="notes">block</aside></section>`, -1)
	assert.Equal(t, protocol.State{Notes: "  spaced  ", Whitespace: protocol.WhitespacePreserve}, got)
}

func TestMarkdownBlock(t *testing.T) {
	got := extractCurrent(t, `<section><aside class="notes" data-markdown>*hi*</aside></section>`, -1)
	assert.Equal(t, "*hi*", got.Notes)
	assert.True(t, got.Markdown)
	assert.Equal(t, protocol.WhitespaceNormal, got.Whitespace)
}

func TestNoNotes(t *testing.T) {
	got := extractCurrent(t, `<section><p>nothing</p></section>`, -1)
	assert.Equal(t, protocol.State{Whitespace: protocol.WhitespaceNormal}, got)
}

func TestFragmentPrecedence(t *testing.T) {
	const slide = `<section data-notes="slide attr">
	  <aside class="notes">slide block</aside>
	  <div class="fragment" data-notes="frag attr"><aside class="notes">frag block</aside></div>
	  <div class="fragment"><aside class="notes" data-markdown>frag only block</aside></div>
	  <div class="fragment">bare</div>
	</section>`

	assert.Equal(t, "slide attr", extractCurrent(t, slide, -1).Notes)

	first := extractCurrent(t, slide, 0)
	assert.Equal(t, "frag attr", first.Notes)
	assert.Equal(t, protocol.WhitespacePreserve, first.Whitespace)

	second := extractCurrent(t, slide, 1)
	assert.Equal(t, "frag only block", second.Notes)
	assert.True(t, second.Markdown)
	assert.Equal(t, protocol.WhitespaceNormal, second.Whitespace)

	assert.Equal(t, "slide attr", extractCurrent(t, slide, 2).Notes)
}

func TestSlideBlockIsFirstInDocumentOrder(t *testing.T) {
	const slide = `<section>
	  <div class="fragment"><aside class="notes">inside fragment</aside></div>
	  <aside class="notes">slide</aside>
	</section>`
	assert.Equal(t, "inside fragment", extractCurrent(t, slide, -1).Notes)
}

func TestFragmentWithoutNotesFallsBackToSlideBlock(t *testing.T) {
	const slide = `<section>
	  <div class="fragment">bare</div>
	  <div class="fragment">a<aside class="notes">later</aside></div>
	</section>`
	assert.Equal(t, "later", extractCurrent(t, slide, -1).Notes)
	assert.Equal(t, "later", extractCurrent(t, slide, 0).Notes)
}

func TestBuildCarriesDeckState(t *testing.T) {
	w, d := loadSlide(t, `<section data-notes="one"></section><section data-notes="two"></section>`)
	r := NewReplicator(d)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, func() {
		d.Next()
		msg, err := r.Build()
		assert.NoError(t, err)
		assert.Equal(t, "two", msg.Notes)
		assert.JSONEq(t, `{"indexh":1,"indexv":0,"paused":false,"overview":false}`, string(msg.State))
	}))
}
