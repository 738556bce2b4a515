// Package deck is the presentation the notes and pointer plugins drive: it
// parses reveal.js style markup, tracks the navigational state and emits
// lifecycle events through the owning window's queue.
package deck

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/nupi-ai/notespointer/internal/pointer"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Lifecycle event names.
const (
	EventSlideChanged   = "slidechanged"
	EventFragmentShown  = "fragmentshown"
	EventFragmentHidden = "fragmenthidden"
	EventOverviewShown  = "overviewshown"
	EventOverviewHidden = "overviewhidden"
	EventPaused         = "paused"
	EventResumed        = "resumed"
)

// LifecycleEvents lists every event that changes what the notes view shows.
var LifecycleEvents = []string{
	EventSlideChanged,
	EventFragmentShown,
	EventFragmentHidden,
	EventOverviewHidden,
	EventOverviewShown,
	EventPaused,
	EventResumed,
}

// ErrNoSlides is returned for markup without a single slide.
var ErrNoSlides = errors.New("deck: no slides found")

// State is the navigational state exchanged with the notes window.
type State struct {
	IndexH   int  `json:"indexh"`
	IndexV   int  `json:"indexv"`
	IndexF   *int `json:"indexf,omitempty"`
	Paused   bool `json:"paused"`
	Overview bool `json:"overview"`
}

// Indices locates the current slide and fragment.
type Indices struct {
	H int  `json:"h"`
	V int  `json:"v"`
	F *int `json:"f,omitempty"`
}

// Event is the detail of a lifecycle event.
type Event struct {
	Type   string
	IndexH int
	IndexV int
	// Fragment is the fragment group that was shown or hidden, -1 otherwise.
	Fragment int
}

// Slide is one leaf section of the presentation.
type Slide struct {
	*Element
	H, V int

	groups [][]*Element
}

// Fragments returns the slide's fragments grouped by display step.
func (s *Slide) Fragments() [][]*Element {
	return s.groups
}

// Deck is a parsed presentation bound to a window. Apart from New, its
// methods must run on the window loop.
type Deck struct {
	win    *window.Window
	cfg    Config
	logger zerolog.Logger

	stacks [][]*Slide
	h, v   int
	f      int

	paused   bool
	overview bool

	viewportW, viewportH float64
	scale                float64

	overlays []*pointer.Indicator
	bindings map[int]binding
}

// Option customises a Deck.
type Option func(*Deck)

// WithConfig overrides the layout configuration.
func WithConfig(cfg Config) Option {
	return func(d *Deck) {
		d.cfg = cfg.withDefaults()
	}
}

// WithLogger overrides the deck logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Deck) {
		d.logger = logger
	}
}

// New parses markup from r and attaches the deck to win.
func New(win *window.Window, r io.Reader, opts ...Option) (*Deck, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("deck: parse markup: %w", err)
	}

	d := &Deck{
		win:      win,
		cfg:      DefaultConfig(),
		logger:   win.Logger(),
		f:        -1,
		bindings: make(map[int]binding),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With().Str("component", "deck").Logger()

	if err := d.load(root); err != nil {
		return nil, err
	}
	d.Resize(d.cfg.Width, d.cfg.Height)
	d.updateSlideClasses(nil)
	win.AddEventListener(window.EventKeyDown, d.onKey)
	return d, nil
}

func (d *Deck) load(root *html.Node) error {
	doc := wrap(root)
	container := doc.QuerySelector("div.reveal")
	if container == nil {
		container = doc
	}
	slides := container.QuerySelector("." + ClassSlides)
	if slides == nil {
		return ErrNoSlides
	}

	for h, top := range childSections(slides.node) {
		nested := childSections(top)
		if len(nested) == 0 {
			nested = []*html.Node{top}
		}
		stack := make([]*Slide, 0, len(nested))
		for v, n := range nested {
			s := &Slide{Element: wrap(n), H: h, V: v}
			s.groups = groupFragments(s.Element)
			stack = append(stack, s)
		}
		d.stacks = append(d.stacks, stack)
	}
	if len(d.stacks) == 0 {
		return ErrNoSlides
	}
	return nil
}

// groupFragments orders fragments by data-fragment-index. Fragments sharing
// an index show together; fragments without one follow in document order.
func groupFragments(slide *Element) [][]*Element {
	indexed := make(map[int][]*Element)
	var keys []int
	var loose []*Element
	for _, f := range slide.QuerySelectorAll("." + ClassFragment) {
		raw, ok := f.Attr(AttrFragmentIndex)
		idx, err := strconv.Atoi(raw)
		if !ok || err != nil {
			loose = append(loose, f)
			continue
		}
		if _, seen := indexed[idx]; !seen {
			keys = append(keys, idx)
		}
		indexed[idx] = append(indexed[idx], f)
	}
	sort.Ints(keys)

	groups := make([][]*Element, 0, len(keys)+len(loose))
	for _, k := range keys {
		groups = append(groups, indexed[k])
	}
	for _, f := range loose {
		groups = append(groups, []*Element{f})
	}
	return groups
}

// Window returns the window the deck is shown in.
func (d *Deck) Window() *window.Window { return d.win }

// Slides returns every slide in navigation order.
func (d *Deck) Slides() []*Slide {
	var out []*Slide
	for _, stack := range d.stacks {
		out = append(out, stack...)
	}
	return out
}

// SlidesAttributes returns the attributes of every slide in navigation order.
func (d *Deck) SlidesAttributes() []map[string]string {
	slides := d.Slides()
	out := make([]map[string]string, len(slides))
	for i, s := range slides {
		out[i] = s.Attributes()
	}
	return out
}

// TotalSlides counts slides across all vertical stacks.
func (d *Deck) TotalSlides() int {
	n := 0
	for _, stack := range d.stacks {
		n += len(stack)
	}
	return n
}

// CurrentSlide returns the visible slide.
func (d *Deck) CurrentSlide() *Slide {
	return d.stacks[d.h][d.v]
}

func (d *Deck) fragmentIndex() *int {
	if len(d.CurrentSlide().groups) == 0 {
		return nil
	}
	f := d.f
	return &f
}

// State returns the current navigational state.
func (d *Deck) State() State {
	return State{
		IndexH:   d.h,
		IndexV:   d.v,
		IndexF:   d.fragmentIndex(),
		Paused:   d.paused,
		Overview: d.overview,
	}
}

// Indices returns the current slide and fragment position.
func (d *Deck) Indices() Indices {
	return Indices{H: d.h, V: d.v, F: d.fragmentIndex()}
}

// IsPaused reports whether the presentation is paused.
func (d *Deck) IsPaused() bool { return d.paused }

// IsOverview reports whether the overview is shown.
func (d *Deck) IsOverview() bool { return d.overview }

// IsFirstSlide reports whether no slide precedes the current one.
func (d *Deck) IsFirstSlide() bool { return d.h == 0 && d.v == 0 }

// IsLastSlide reports whether no slide follows the current one.
func (d *Deck) IsLastSlide() bool {
	return d.h == len(d.stacks)-1 && d.v == len(d.stacks[d.h])-1
}

// Slide navigates to slide (h, v), clamped to the deck. Optional f selects
// the fragment group to show up to; without it, moving forward shows no
// fragments and moving backward shows them all.
func (d *Deck) Slide(h, v int, f ...int) {
	h = clamp(h, 0, len(d.stacks)-1)
	v = clamp(v, 0, len(d.stacks[h])-1)
	target := d.stacks[h][v]

	frag := -1
	switch {
	case len(f) > 0:
		frag = clamp(f[0], -1, len(target.groups)-1)
	case h < d.h || (h == d.h && v < d.v):
		frag = len(target.groups) - 1
	}

	if h == d.h && v == d.v {
		if len(f) > 0 {
			d.setFragment(frag)
		}
		return
	}

	prev := d.CurrentSlide()
	d.h, d.v = h, v
	d.f = frag
	d.applyFragments(target)
	d.updateSlideClasses(prev)
	d.emit(EventSlideChanged, -1)
}

// Next shows the next fragment, or moves down, or moves right.
func (d *Deck) Next() {
	switch {
	case d.f+1 < len(d.CurrentSlide().groups):
		d.setFragment(d.f + 1)
	case d.v+1 < len(d.stacks[d.h]):
		d.Slide(d.h, d.v+1)
	case d.h+1 < len(d.stacks):
		d.Slide(d.h+1, 0)
	}
}

// Prev hides the current fragment, or moves up, or moves left.
func (d *Deck) Prev() {
	switch {
	case d.f >= 0:
		d.setFragment(d.f - 1)
	case d.v > 0:
		d.Slide(d.h, d.v-1)
	case d.h > 0:
		d.Slide(d.h-1, len(d.stacks[d.h-1])-1)
	}
}

func (d *Deck) setFragment(f int) {
	slide := d.CurrentSlide()
	f = clamp(f, -1, len(slide.groups)-1)
	if f == d.f {
		return
	}
	old := d.f
	d.f = f
	d.applyFragments(slide)
	if f > old {
		d.emit(EventFragmentShown, f)
	} else {
		d.emit(EventFragmentHidden, old)
	}
}

func (d *Deck) applyFragments(s *Slide) {
	for i, group := range s.groups {
		for _, el := range group {
			el.setClass(ClassVisible, i <= d.f)
			el.setClass(ClassCurrentFragment, i == d.f)
		}
	}
}

func (d *Deck) updateSlideClasses(prev *Slide) {
	if prev != nil {
		prev.setClass(ClassPresent, false)
	}
	d.CurrentSlide().setClass(ClassPresent, true)
}

// TogglePause flips the paused state, or sets it when override is given.
func (d *Deck) TogglePause(override ...bool) {
	next := !d.paused
	if len(override) > 0 {
		next = override[0]
	}
	if next == d.paused {
		return
	}
	d.paused = next
	if next {
		d.emit(EventPaused, -1)
	} else {
		d.emit(EventResumed, -1)
	}
}

// ToggleOverview flips the overview, or sets it when override is given.
func (d *Deck) ToggleOverview(override ...bool) {
	next := !d.overview
	if len(override) > 0 {
		next = override[0]
	}
	if next == d.overview {
		return
	}
	d.overview = next
	if next {
		d.emit(EventOverviewShown, -1)
	} else {
		d.emit(EventOverviewHidden, -1)
	}
}

// SetState restores a state previously returned by State.
func (d *Deck) SetState(s State) {
	if s.IndexF != nil {
		d.Slide(s.IndexH, s.IndexV, *s.IndexF)
	} else {
		d.Slide(s.IndexH, s.IndexV)
	}
	d.TogglePause(s.Paused)
	d.ToggleOverview(s.Overview)
}

// AddEventListener subscribes fn to a lifecycle event. The returned function
// removes the subscription.
func (d *Deck) AddEventListener(name string, fn func(Event)) func() {
	return d.win.AddEventListener(name, func(ev window.Event) {
		if ce, ok := ev.(window.CustomEvent); ok {
			if detail, ok := ce.Detail.(Event); ok {
				fn(detail)
			}
		}
	})
}

// emit queues the event behind whatever the window is already processing,
// so listeners observe it as a separate turn of the loop.
func (d *Deck) emit(name string, fragment int) {
	d.logger.Debug().Str("event", name).Int("h", d.h).Int("v", d.v).Int("f", d.f).Msg("lifecycle event")
	d.win.Dispatch(window.CustomEvent{Type: name, Detail: Event{
		Type:     name,
		IndexH:   d.h,
		IndexV:   d.v,
		Fragment: fragment,
	}})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
