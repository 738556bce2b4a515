package window

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHost(t *testing.T, opts ...HostOption) *Host {
	t.Helper()
	h := NewHost(context.Background(), opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func sync1(t *testing.T, w *Window) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, func() {}))
}

func TestMessagesArriveInOrder(t *testing.T) {
	h := newTestHost(t)
	a, err := h.NewWindow("http://localhost/a.html")
	require.NoError(t, err)
	b, err := h.NewWindow("http://localhost/b.html")
	require.NoError(t, err)

	var mu sync.Mutex
	var got []string
	b.AddEventListener(EventMessage, func(ev Event) {
		msg := ev.(MessageEvent)
		assert.Same(t, a, msg.Source)
		assert.Equal(t, "http://localhost", msg.Origin)
		mu.Lock()
		got = append(got, msg.Data)
		mu.Unlock()
	})

	want := []string{"1", "2", "3", "4", "5"}
	for _, d := range want {
		b.PostMessage(a, d)
	}
	sync1(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, got)
}

func TestRemoveListener(t *testing.T) {
	h := newTestHost(t)
	w, err := h.NewWindow("http://localhost/")
	require.NoError(t, err)

	calls := 0
	remove := w.AddEventListener(EventMouseMove, func(Event) { calls++ })
	w.Dispatch(MouseEvent{ClientX: 1})
	sync1(t, w)

	remove()
	remove()
	w.Dispatch(MouseEvent{ClientX: 2})
	sync1(t, w)

	assert.Equal(t, 1, calls)
	assert.Zero(t, w.ListenerCount(EventMouseMove))
}

func TestPanickingListenerDoesNotStopLoop(t *testing.T) {
	h := newTestHost(t)
	w, err := h.NewWindow("http://localhost/")
	require.NoError(t, err)

	w.AddEventListener(EventKeyDown, func(Event) { panic("boom") })
	w.Dispatch(KeyEvent{Key: "A", KeyCode: 65})

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestOpenResolvesRelativeURLAndReusesTarget(t *testing.T) {
	h := newTestHost(t)
	main, err := h.NewWindow("http://localhost/talks/deck.html?x=1")
	require.NoError(t, err)

	popup, err := h.Open(main, "notes.html", "notes")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/talks/notes.html", popup.URL().String())
	assert.Same(t, main, popup.Opener())
	assert.True(t, popup.IsTop())

	again, err := h.Open(main, "notes.html", "notes")
	require.NoError(t, err)
	assert.Same(t, popup, again)

	popup.Close()
	fresh, err := h.Open(main, "notes.html", "notes")
	require.NoError(t, err)
	assert.NotSame(t, popup, fresh)
}

func TestOpenBlocked(t *testing.T) {
	h := newTestHost(t, WithPopupPolicy(func(_ *Window, u *url.URL) bool {
		return u.Path != "/blocked.html"
	}))
	lifecycle := eventbus.SubscribeTo(h.Bus(), eventbus.Windows.Lifecycle)
	defer lifecycle.Close()

	main, err := h.NewWindow("http://localhost/deck.html")
	require.NoError(t, err)

	_, err = h.Open(main, "blocked.html", "notes")
	assert.ErrorIs(t, err, ErrPopupBlocked)

	deadline := time.After(time.Second)
	for {
		select {
		case env := <-lifecycle.C():
			if env.Payload.State == eventbus.WindowStateBlocked {
				assert.Equal(t, main.ID(), env.Payload.OpenerID)
				return
			}
		case <-deadline:
			t.Fatal("expected blocked lifecycle event")
		}
	}
}

func TestEmbedParent(t *testing.T) {
	h := newTestHost(t)
	top, err := h.NewWindow("http://localhost/index.html")
	require.NoError(t, err)
	child, err := h.Embed(top, "deck.html?receiver")
	require.NoError(t, err)

	assert.False(t, child.IsTop())
	assert.Same(t, top, child.Parent())
	assert.Same(t, top, top.Parent())
	assert.Equal(t, "?receiver", child.Search())
}

func TestClosedWindowDropsMessages(t *testing.T) {
	h := newTestHost(t)
	discarded := eventbus.SubscribeTo(h.Bus(), eventbus.Channel.Discarded)
	defer discarded.Close()

	w, err := h.NewWindow("http://localhost/")
	require.NoError(t, err)
	w.Close()
	w.Close()

	assert.True(t, w.Closed())
	w.PostMessage(nil, "late")
	assert.ErrorIs(t, w.Do(context.Background(), func() {}), ErrClosed)

	select {
	case env := <-discarded.C():
		assert.Equal(t, eventbus.DiscardWindowClosed, env.Payload.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected discard event")
	}
}

func TestIntervalStopsExactlyOnce(t *testing.T) {
	h := newTestHost(t)
	w, err := h.NewWindow("http://localhost/")
	require.NoError(t, err)

	var iv *Interval
	calls := 0
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Do(ctx, func() {
		iv = w.SetInterval(5*time.Millisecond, func() {
			calls++
			if calls == 3 {
				assert.True(t, iv.Stop())
			}
		})
	}))

	require.Eventually(t, iv.Stopped, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	sync1(t, w)

	assert.Equal(t, 3, calls)
	assert.Equal(t, uint64(3), iv.Ticks())
	assert.False(t, iv.Stop())
}

func TestFocusAndCursor(t *testing.T) {
	h := newTestHost(t)
	w, err := h.NewWindow("http://localhost/")
	require.NoError(t, err)

	assert.Equal(t, CursorAuto, w.Cursor())
	w.SetCursor(CursorNone)
	assert.Equal(t, CursorNone, w.Cursor())

	w.Focus()
	assert.True(t, w.Focused())
	w.Alert("hello")
	assert.Equal(t, []string{"hello"}, w.Alerts())
}

func TestHasQuery(t *testing.T) {
	h := newTestHost(t)
	w, err := h.NewWindow("http://localhost/deck.html?x=1&Notes")
	require.NoError(t, err)
	assert.True(t, w.HasQuery("notes"))
	assert.False(t, w.HasQuery("receiver"))

	plain, err := h.NewWindow("http://localhost/deck.html")
	require.NoError(t, err)
	assert.False(t, plain.HasQuery("notes"))
}

func TestOnCreateRunsForEveryWindow(t *testing.T) {
	var mu sync.Mutex
	var names []string
	h := newTestHost(t, OnCreate(func(w *Window) {
		mu.Lock()
		names = append(names, w.Name())
		mu.Unlock()
	}))
	main, err := h.NewWindow("http://localhost/deck.html")
	require.NoError(t, err)
	_, err = h.Open(main, "notes.html", "notes")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "notes"}, names)
}
