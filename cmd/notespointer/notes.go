package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nupi-ai/notespointer/internal/config"
	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/notes"
	"github.com/nupi-ai/notespointer/internal/protocol"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newNotesCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "notes <deck.html>",
		Short:         "Print the speaker notes of every slide and fragment step",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          printNotes,
	}
}

// noteStep is the notes shown at one slide position.
type noteStep struct {
	H          int                 `json:"h"`
	V          int                 `json:"v"`
	F          int                 `json:"f"`
	Notes      string              `json:"notes"`
	Markdown   bool                `json:"markdown"`
	Whitespace protocol.Whitespace `json:"whitespace"`
}

func printNotes(cmd *cobra.Command, args []string) error {
	out := newOutputFormatter(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return out.Error("Failed to load config", err)
	}

	steps, err := collectNotes(cmd.Context(), args[0], cfg.Deck)
	if err != nil {
		return out.Error("Failed to read notes", err)
	}
	if out.jsonMode {
		return out.Print(steps)
	}
	for _, s := range steps {
		if s.Notes == "" {
			continue
		}
		pos := fmt.Sprintf("%d.%d", s.H, s.V)
		if s.F >= 0 {
			pos += fmt.Sprintf(" fragment %d", s.F)
		}
		kind := ""
		if s.Markdown {
			kind = " (markdown)"
		}
		if err := out.Print(fmt.Sprintf("[%s]%s\n%s\n", pos, kind, s.Notes)); err != nil {
			return err
		}
	}
	return nil
}

// collectNotes walks every slide and fragment step of the deck at path and
// replicates the notes the speaker view would show there.
func collectNotes(ctx context.Context, path string, deckCfg deck.Config) ([]noteStep, error) {
	f, err := os.Open(config.ExpandPath(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	host := window.NewHost(ctx, window.WithLogger(log.Logger))
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = host.Shutdown(sctx)
	}()

	deckURL, err := fileURL(f.Name(), "")
	if err != nil {
		return nil, err
	}
	win, err := host.NewWindow(deckURL)
	if err != nil {
		return nil, err
	}
	d, err := deck.New(win, f, deck.WithConfig(deckCfg), deck.WithLogger(log.Logger))
	if err != nil {
		return nil, err
	}

	var (
		steps    []noteStep
		buildErr error
	)
	rep := notes.NewReplicator(d)
	err = win.Do(ctx, func() {
		for _, slide := range d.Slides() {
			for frag := -1; frag < len(slide.Fragments()); frag++ {
				d.Slide(slide.H, slide.V, frag)
				msg, err := rep.Build()
				if err != nil {
					buildErr = err
					return
				}
				steps = append(steps, noteStep{
					H:          slide.H,
					V:          slide.V,
					F:          frag,
					Notes:      msg.Notes,
					Markdown:   msg.Markdown,
					Whitespace: msg.Whitespace,
				})
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return steps, buildErr
}
