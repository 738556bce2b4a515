package deck

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nupi-ai/notespointer/internal/geometry"
	"github.com/nupi-ai/notespointer/internal/rpc"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<!doctype html>
<html><body>
<div class="reveal"><div class="slides">
  <section id="intro" data-notes="Say hello.">
    <h1>Intro</h1>
    <aside class="notes">Block notes</aside>
  </section>
  <section id="stack">
    <section id="down1">
      <p class="fragment" data-fragment-index="2">b</p>
      <p class="fragment" data-fragment-index="1">a</p>
      <p class="fragment">c</p>
      <p class="fragment" data-fragment-index="1">a2</p>
    </section>
    <section id="down2"><p>plain</p></section>
  </section>
  <section id="last"><aside class="notes" data-markdown>**bold**</aside></section>
</div></div>
</body></html>`

func newTestDeck(t *testing.T, opts ...Option) (*window.Window, *Deck) {
	t.Helper()
	h := window.NewHost(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	w, err := h.NewWindow("http://localhost/deck.html")
	require.NoError(t, err)
	d, err := New(w, strings.NewReader(sample), opts...)
	require.NoError(t, err)
	return w, d
}

func onLoop(t *testing.T, w *window.Window, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, fn))
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}

func listenAll(d *Deck) *eventLog {
	log := &eventLog{}
	for _, name := range LifecycleEvents {
		d.AddEventListener(name, log.record)
	}
	return log
}

func deref(p *int) int {
	if p == nil {
		return -100
	}
	return *p
}

func slideID(s *Slide) string {
	id, _ := s.Attr("id")
	return id
}

func TestParseStructure(t *testing.T) {
	_, d := newTestDeck(t)
	assert.Equal(t, 4, d.TotalSlides())

	var ids []string
	for _, s := range d.Slides() {
		ids = append(ids, slideID(s))
	}
	assert.Equal(t, []string{"intro", "down1", "down2", "last"}, ids)

	attrs := d.SlidesAttributes()
	require.Len(t, attrs, 4)
	assert.Equal(t, "Say hello.", attrs[0]["data-notes"])

	down1 := d.Slides()[1]
	groups := down1.Fragments()
	require.Len(t, groups, 3)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, "b", groups[1][0].InnerHTML())
	assert.Equal(t, "c", groups[2][0].InnerHTML())
	assert.True(t, d.CurrentSlide().HasClass(ClassPresent))
}

func TestParseRejectsEmptyDeck(t *testing.T) {
	h := window.NewHost(context.Background())
	defer h.Shutdown(context.Background())
	w, err := h.NewWindow("http://localhost/empty.html")
	require.NoError(t, err)

	_, err = New(w, strings.NewReader(`<div class="reveal"><div class="slides"></div></div>`))
	require.ErrorIs(t, err, ErrNoSlides)
}

func TestNextWalksFragmentsThenSlides(t *testing.T) {
	w, d := newTestDeck(t)
	log := listenAll(d)

	onLoop(t, w, func() {
		d.Next()
		assert.Equal(t, "down1", slideID(d.CurrentSlide()))
		if assert.NotNil(t, d.State().IndexF) {
			assert.Equal(t, -1, *d.State().IndexF)
		}
	})
	onLoop(t, w, func() {
		d.Next()
		d.Next()
		st := d.State()
		if assert.NotNil(t, st.IndexF) {
			assert.Equal(t, 1, *st.IndexF)
		}

		cur := d.CurrentSlide().QuerySelector("." + ClassCurrentFragment)
		if assert.NotNil(t, cur) {
			assert.Equal(t, "b", cur.InnerHTML())
		}
		assert.Len(t, d.CurrentSlide().QuerySelectorAll("."+ClassVisible), 3)
	})
	onLoop(t, w, func() {
		d.Next()
		d.Next()
		assert.Equal(t, "down2", slideID(d.CurrentSlide()))
		d.Next()
		assert.Equal(t, "last", slideID(d.CurrentSlide()))
		assert.True(t, d.IsLastSlide())
		d.Next()
	})
	onLoop(t, w, func() {})

	assert.Equal(t, []string{
		EventSlideChanged,
		EventFragmentShown, EventFragmentShown, EventFragmentShown,
		EventSlideChanged, EventSlideChanged,
	}, log.types())
}

func TestPrevShowsAllFragmentsOfEarlierSlide(t *testing.T) {
	w, d := newTestDeck(t)
	onLoop(t, w, func() {
		d.Slide(1, 1)
		d.Prev()
		assert.Equal(t, "down1", slideID(d.CurrentSlide()))
		assert.Equal(t, 2, deref(d.State().IndexF))
		d.Prev()
		assert.Equal(t, 1, deref(d.State().IndexF))
	})
}

func TestSlideClampsAndSelectsFragment(t *testing.T) {
	w, d := newTestDeck(t)
	onLoop(t, w, func() {
		d.Slide(99, 99)
		assert.Equal(t, Indices{H: 2, V: 0}, d.Indices())
		d.Slide(1, 0, 0)
		assert.Equal(t, 0, deref(d.Indices().F))
	})
}

func TestPauseAndOverviewEvents(t *testing.T) {
	w, d := newTestDeck(t)
	log := listenAll(d)
	onLoop(t, w, func() {
		d.TogglePause()
		d.TogglePause(true)
		d.TogglePause()
		d.ToggleOverview()
		d.ToggleOverview(false)
	})
	onLoop(t, w, func() {})
	assert.Equal(t, []string{EventPaused, EventResumed, EventOverviewShown, EventOverviewHidden}, log.types())
}

func TestSetStateRoundTrip(t *testing.T) {
	w, d := newTestDeck(t)
	var want State
	onLoop(t, w, func() {
		d.Slide(1, 0, 1)
		d.TogglePause(true)
		want = d.State()
		d.Slide(0, 0)
		d.TogglePause(false)
		d.SetState(want)
		assert.Equal(t, want, d.State())
	})

	raw, err := json.Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"indexh":1,"indexv":0,"indexf":1,"paused":true,"overview":false}`, string(raw))
}

func TestResizeFollowsFitRules(t *testing.T) {
	w, d := newTestDeck(t)
	onLoop(t, w, func() {
		d.Resize(1920, 1080)
		scale := d.Scale()
		assert.InDelta(t, 1080*0.96/700, scale, 1e-9)
		b := d.Bounds()
		assert.InDelta(t, (1920-960*scale)/2, b.Left, 1e-9)
		assert.InDelta(t, (1080-700*scale)/2, b.Top, 1e-9)
		assert.Equal(t, 0.0, d.Zoom())

		d.Resize(10, 10)
		assert.Equal(t, 0.2, d.Scale())
		d.Resize(100000, 100000)
		assert.Equal(t, 2.0, d.Scale())
	})
}

func TestZoomReportsOriginInZoomedUnits(t *testing.T) {
	w, d := newTestDeck(t, WithConfig(Config{UseZoom: true}))
	onLoop(t, w, func() {
		d.Resize(3000, 2000)
		z := d.Zoom()
		assert.Equal(t, 2.0, z)
		o := geometry.ZoomedOrigin(d.Bounds(), z)
		assert.InDelta(t, (3000-960*z)/2, o.X, 1e-9)
	})
}

func TestKeyBindings(t *testing.T) {
	assert.Equal(t, KeyBinding{Key: "S", KeyCode: 83, Description: "notes"}, NewKeyBinding("", 0, "S", "notes"))
	assert.Equal(t, KeyBinding{Key: "a", KeyCode: 65}, NewKeyBinding("a", 0, "S", ""))
	assert.Equal(t, KeyBinding{Key: "Q", KeyCode: 81}, NewKeyBinding("", 81, "S", ""))
	assert.Equal(t, KeyBinding{Key: "x", KeyCode: 70}, NewKeyBinding("x", 70, "S", ""))

	w, d := newTestDeck(t)
	var hits int
	onLoop(t, w, func() {
		assert.True(t, d.AddKeyBinding(NewKeyBinding("n", 0, "", "custom next"), func() { hits++ }))
	})
	w.Dispatch(window.KeyEvent{Key: "n"})
	w.Dispatch(window.KeyEvent{KeyCode: 39})
	onLoop(t, w, func() {
		assert.Equal(t, 1, hits)
		assert.Equal(t, "down1", slideID(d.CurrentSlide()))
		assert.Equal(t, []KeyBinding{{Key: "n", KeyCode: 78, Description: "custom next"}}, d.KeyBindings())
	})
}

func TestKeylessBindingIsSkipped(t *testing.T) {
	w, d := newTestDeck(t)
	var hits int
	onLoop(t, w, func() {
		assert.False(t, d.AddKeyBinding(NewKeyBinding("", 0, "", "nothing"), func() { hits++ }))
	})
	w.Dispatch(window.KeyEvent{})
	onLoop(t, w, func() {
		assert.Zero(t, hits)
		assert.Empty(t, d.KeyBindings())
	})
}

func TestMethodsAllowlist(t *testing.T) {
	w, d := newTestDeck(t)
	reg := rpc.NewRegistry()
	d.Methods(reg)

	assert.True(t, reg.Has("getState"))
	assert.True(t, reg.Has("getSlidesAttributes"))
	assert.False(t, reg.Has("destroy"))

	onLoop(t, w, func() {
		_, err := reg.Call("slide", []json.RawMessage{json.RawMessage(`2`), json.RawMessage(`0`)})
		assert.NoError(t, err)
		res, err := reg.Call("getState", nil)
		assert.NoError(t, err)
		assert.Equal(t, State{IndexH: 2}, res)

		_, err = reg.Call("togglePause", []json.RawMessage{json.RawMessage(`true`)})
		assert.NoError(t, err)
		assert.True(t, d.IsPaused())

		n, err := reg.Call("getTotalSlides", nil)
		assert.NoError(t, err)
		assert.Equal(t, 4, n)
	})
}
