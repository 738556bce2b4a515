package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nupi-ai/notespointer/internal/config"
	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/nupi-ai/notespointer/internal/notes"
	"github.com/nupi-ai/notespointer/internal/observability"
	"github.com/nupi-ai/notespointer/internal/presenter"
	"github.com/nupi-ai/notespointer/internal/speaker"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 3 * time.Second

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <deck.html>",
		Short: "Present a deck, reading a control script from stdin",
		Long: `Loads the deck into a presentation window and executes one command per
line from stdin. Speaker view updates are printed as they arrive.

Commands:
  key <name>            press a key (letters, right, left, space, esc, home, end, ...)
  move <x> <y>          move the mouse to viewport coordinates
  next | prev           navigate
  slide <h> [v] [f]     jump to a slide
  resize <w> <h>        resize the viewport
  open                  open the speaker view
  call <method> [json]  call a presentation method from the speaker view
  state                 print the deck state
  wait <duration|connected>
  quit`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runPresentation,
	}
	cmd.Flags().Bool("notes", false, "Open the speaker view on start")
	cmd.Flags().Bool("receiver", false, "Launch the deck as a receiver window")
	cmd.Flags().Float64("width", 0, "Viewport width (overrides config)")
	cmd.Flags().Float64("height", 0, "Viewport height (overrides config)")
	cmd.Flags().Bool("block-popups", false, "Simulate a popup blocker")
	cmd.Flags().Bool("metrics", false, "Print event metrics in Prometheus text format on exit")
	return cmd
}

// session is one presentation with its optional speaker view.
type session struct {
	out    *OutputFormatter
	bus    *eventbus.Bus
	events *observability.EventCounter
	host   *window.Host
	win    *window.Window
	deck   *deck.Deck
	plugin *presenter.Plugin

	mu   sync.Mutex
	view *speaker.View
}

func runPresentation(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return out.Error("Failed to load config", err)
	}
	flags := cmd.Flags()
	if w, _ := flags.GetFloat64("width"); w > 0 {
		cfg.Viewport.Width = w
	}
	if h, _ := flags.GetFloat64("height"); h > 0 {
		cfg.Viewport.Height = h
	}
	if block, _ := flags.GetBool("block-popups"); block {
		cfg.BlockPopups = true
	}
	openNotes, _ := flags.GetBool("notes")
	receiver, _ := flags.GetBool("receiver")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := startSession(ctx, out, args[0], cfg, launchQuery(openNotes, receiver))
	if err != nil {
		return out.Error("Failed to start presentation", err)
	}
	defer s.shutdown()

	if err := s.exec(ctx, cmd.InOrStdin()); err != nil {
		return out.Error("Script failed", err)
	}
	if metrics, _ := flags.GetBool("metrics"); metrics {
		_, err := cmd.OutOrStdout().Write(s.metrics())
		return err
	}
	return nil
}

func launchQuery(openNotes, receiver bool) string {
	q := url.Values{}
	if openNotes {
		q.Set(presenter.QueryNotes, "")
	}
	if receiver {
		q.Set(presenter.QueryReceiver, "")
	}
	return q.Encode()
}

// fileURL is the presentation URL for a deck on disk. The speaker view URL
// resolves against it.
func fileURL(path, query string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: query}
	return u.String(), nil
}

func startSession(ctx context.Context, out *OutputFormatter, deckPath string, cfg config.File, query string) (*session, error) {
	f, err := os.Open(config.ExpandPath(deckPath))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	deckURL, err := fileURL(f.Name(), query)
	if err != nil {
		return nil, err
	}

	s := &session{
		out:    out,
		bus:    eventbus.New(eventbus.WithLogger(log.Logger)),
		events: observability.NewEventCounter(),
	}
	s.bus.AddObserver(s.events)
	hostOpts := []window.HostOption{
		window.WithBus(s.bus),
		window.WithLogger(log.Logger),
		window.OnCreate(s.attach),
		window.WithAlertHandler(func(w *window.Window, msg string) {
			_ = out.Print(map[string]any{"event": "alert", "window": w.Name(), "message": msg})
		}),
	}
	if cfg.BlockPopups {
		hostOpts = append(hostOpts, window.BlockPopups())
	}
	s.host = window.NewHost(ctx, hostOpts...)

	s.win, err = s.host.NewWindow(deckURL)
	if err != nil {
		s.shutdown()
		return nil, err
	}
	s.deck, err = deck.New(s.win, f, deck.WithConfig(cfg.Deck), deck.WithLogger(log.Logger))
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("load %s: %w", deckPath, err)
	}
	if err := s.win.Do(ctx, func() { s.deck.Resize(cfg.Viewport.Width, cfg.Viewport.Height) }); err != nil {
		s.shutdown()
		return nil, err
	}

	s.plugin, err = presenter.Install(ctx, s.deck, cfg.NotesPointer, presenter.WithLogger(log.Logger))
	if err != nil {
		s.shutdown()
		return nil, err
	}
	return s, nil
}

// attach runs for every window the host creates; the speaker view is
// installed before the popup can receive its first message.
func (s *session) attach(w *window.Window) {
	if w.Name() != notes.DefaultTarget {
		return
	}
	v := speaker.NewView(w, speaker.WithLogger(log.Logger), speaker.OnUpdate(s.printUpdate))
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

func (s *session) speaker() *speaker.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *session) printUpdate(kind string, snap speaker.Snapshot) {
	if s.out.jsonMode {
		_ = s.out.Print(map[string]any{"event": kind, "snapshot": snap})
		return
	}
	switch kind {
	case speaker.KindConnect:
		_ = s.out.Print("speaker view connected to " + snap.URL)
	case speaker.KindState:
		_ = s.out.Print(fmt.Sprintf("notes %s: %s", snap.State, snap.HTML))
	case speaker.KindPoint:
		for _, p := range snap.Pointers {
			_ = s.out.Print(fmt.Sprintf("point %s %.1f %.1f active=%t", p.ID, p.X, p.Y, p.Active))
		}
	}
}

// metrics renders the session's bus activity.
func (s *session) metrics() []byte {
	exporter := observability.NewPrometheusExporter(s.bus, s.events)
	if s.plugin != nil {
		exporter.WithLinkState(s.plugin.Notes.LinkState)
	}
	return exporter.Export()
}

func (s *session) shutdown() {
	if s.plugin != nil {
		s.plugin.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.host.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("window shutdown")
	}
	s.bus.Shutdown()
}
