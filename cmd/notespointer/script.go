package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nupi-ai/notespointer/internal/eventbus"
	"github.com/nupi-ai/notespointer/internal/window"
	"github.com/rs/zerolog/log"
)

const (
	callTimeout    = 5 * time.Second
	connectTimeout = 5 * time.Second
	pollInterval   = 10 * time.Millisecond
)

var errQuit = errors.New("quit")

// namedKeys maps script key names to key codes.
var namedKeys = map[string]int{
	"esc":      27,
	"escape":   27,
	"space":    32,
	"pageup":   33,
	"pagedown": 34,
	"end":      35,
	"home":     36,
	"left":     37,
	"up":       38,
	"right":    39,
	"down":     40,
	"period":   190,
}

// keyEvent turns a script key name into the event a browser would deliver.
func keyEvent(name string) window.KeyEvent {
	if code, ok := namedKeys[strings.ToLower(name)]; ok {
		return window.KeyEvent{Key: name, KeyCode: code}
	}
	return window.KeyEvent{Key: name}
}

// exec runs script lines until EOF or quit. Blank lines and lines starting
// with # are skipped.
func (s *session) exec(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := s.step(ctx, strings.Fields(text)); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			return fmt.Errorf("line %d: %s: %w", line, text, err)
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
	}
	return scanner.Err()
}

func (s *session) step(ctx context.Context, fields []string) error {
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	log.Debug().Str("command", cmd).Strs("args", args).Msg("script")

	switch cmd {
	case "key":
		if len(args) != 1 {
			return errors.New("usage: key <name>")
		}
		s.win.Dispatch(keyEvent(args[0]))
		return s.sync(ctx)

	case "move":
		nums, err := floats(args, 2, 2)
		if err != nil {
			return err
		}
		s.win.Dispatch(window.MouseEvent{ClientX: nums[0], ClientY: nums[1]})
		return s.sync(ctx)

	case "next":
		return s.win.Do(ctx, s.deck.Next)

	case "prev":
		return s.win.Do(ctx, s.deck.Prev)

	case "slide":
		idx, err := ints(args, 1, 3)
		if err != nil {
			return err
		}
		return s.win.Do(ctx, func() {
			v := 0
			if len(idx) > 1 {
				v = idx[1]
			}
			if len(idx) > 2 {
				s.deck.Slide(idx[0], v, idx[2])
				return
			}
			s.deck.Slide(idx[0], v)
		})

	case "resize":
		nums, err := floats(args, 2, 2)
		if err != nil {
			return err
		}
		return s.win.Do(ctx, func() { s.deck.Resize(nums[0], nums[1]) })

	case "open":
		return s.win.Do(ctx, s.plugin.OpenNotes)

	case "state":
		var state any
		if err := s.win.Do(ctx, func() { state = s.deck.State() }); err != nil {
			return err
		}
		return s.out.Print(state)

	case "call":
		return s.call(ctx, args)

	case "wait":
		if len(args) != 1 {
			return errors.New("usage: wait <duration|connected>")
		}
		if strings.EqualFold(args[0], "connected") {
			return s.waitConnected(ctx)
		}
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// sync waits until every event queued on the deck window has run.
func (s *session) sync(ctx context.Context) error {
	return s.win.Do(ctx, func() {})
}

func (s *session) call(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: call <method> [json args...]")
	}
	view := s.speaker()
	if view == nil {
		return errors.New("speaker view is not open")
	}
	params := make([]any, 0, len(args)-1)
	for _, a := range args[1:] {
		if !json.Valid([]byte(a)) {
			return fmt.Errorf("argument %q is not JSON", a)
		}
		params = append(params, json.RawMessage(a))
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	result, err := view.Call(ctx, args[0], params...)
	if err != nil {
		return err
	}
	return s.out.Print(map[string]any{"event": "return", "method": args[0], "result": result})
}

func (s *session) waitConnected(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if s.plugin.Notes.LinkState() == eventbus.LinkConnected {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("speaker view did not connect: %w", ctx.Err())
		}
	}
}

func floats(args []string, lo, hi int) ([]float64, error) {
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("expected %d to %d numbers, got %d", lo, hi, len(args))
	}
	out := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func ints(args []string, lo, hi int) ([]int, error) {
	if len(args) < lo || len(args) > hi {
		return nil, fmt.Errorf("expected %d to %d integers, got %d", lo, hi, len(args))
	}
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
