package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nupi-ai/notespointer/internal/config"
	"github.com/nupi-ai/notespointer/internal/protocol"
	npversion "github.com/nupi-ai/notespointer/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeck = `<!doctype html>
<html><body>
<div class="reveal"><div class="slides">
  <section data-notes="Say hello
  slowly"><h1>Hello</h1></section>
  <section>
    <section><h2>Stack</h2><aside class="notes" data-markdown>**bold** claim</aside></section>
    <section>
      <h2>Steps</h2>
      <div class="fragment" data-fragment-index="1" data-notes="second"></div>
      <div class="fragment" data-fragment-index="0"><aside class="notes">first</aside></div>
    </section>
  </section>
</div></div>
</body></html>`

// syncBuffer is written from window loops while tests read it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeDeck(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talk.html")
	require.NoError(t, os.WriteFile(path, []byte(sampleDeck), 0o644))
	return path
}

func testConfig() config.File {
	cfg := config.Defaults()
	cfg.NotesPointer.Notes.RetryInterval = 10 * time.Millisecond
	return cfg
}

func TestCollectNotes(t *testing.T) {
	steps, err := collectNotes(context.Background(), writeDeck(t), config.Defaults().Deck)
	require.NoError(t, err)

	require.Len(t, steps, 5)
	assert.Equal(t, noteStep{H: 0, V: 0, F: -1, Notes: "Say hello\n  slowly", Whitespace: protocol.WhitespacePreserve}, steps[0])
	assert.Equal(t, noteStep{H: 1, V: 0, F: -1, Notes: "**bold** claim", Markdown: true, Whitespace: protocol.WhitespaceNormal}, steps[1])
	assert.Equal(t, "first", steps[2].Notes)
	assert.Equal(t, "first", steps[3].Notes)
	assert.Equal(t, noteStep{H: 1, V: 1, F: 1, Notes: "second", Whitespace: protocol.WhitespacePreserve}, steps[4])
}

func TestCollectNotesMissingFile(t *testing.T) {
	_, err := collectNotes(context.Background(), filepath.Join(t.TempDir(), "nope.html"), config.Defaults().Deck)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunScriptDrivesSpeakerView(t *testing.T) {
	buf := &syncBuffer{}
	out := &OutputFormatter{jsonMode: true, out: buf, errOut: buf}

	s, err := startSession(context.Background(), out, writeDeck(t), testConfig(), "")
	require.NoError(t, err)
	defer s.shutdown()

	script := strings.Join([]string{
		"# open the speaker view and wait for the handshake",
		"open",
		"wait connected",
		"key right",
		"call getTotalSlides",
		"call getIndices",
		"quit",
		"next",
	}, "\n")
	require.NoError(t, s.exec(context.Background(), strings.NewReader(script)))

	output := buf.String()
	assert.Contains(t, output, `{"event":"return","method":"getTotalSlides","result":3}`)
	assert.Contains(t, output, `"method":"getIndices","result":{"h":1,"v":0`)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), `"notes":"**bold** claim"`)
	}, 2*time.Second, 10*time.Millisecond)

	var h int
	require.NoError(t, s.win.Do(context.Background(), func() { h = s.deck.State().IndexH }))
	assert.Equal(t, 1, h, "commands after quit must not run")
}

func TestRunScriptPointerMirrorsToSpeakerView(t *testing.T) {
	buf := &syncBuffer{}
	out := &OutputFormatter{out: buf, errOut: buf}

	cfg := testConfig()
	s, err := startSession(context.Background(), out, writeDeck(t), cfg, launchQuery(true, false))
	require.NoError(t, err)
	defer s.shutdown()

	script := "wait connected\nkey a\nmove 100 50\nkey a\n"
	require.NoError(t, s.exec(context.Background(), strings.NewReader(script)))

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "active=false")
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, buf.String(), "speaker view connected to file://")
	assert.Contains(t, buf.String(), "point pointer")
}

func TestRunScriptReportsBadLines(t *testing.T) {
	buf := &syncBuffer{}
	out := &OutputFormatter{out: buf, errOut: buf}
	s, err := startSession(context.Background(), out, writeDeck(t), testConfig(), "")
	require.NoError(t, err)
	defer s.shutdown()

	err = s.exec(context.Background(), strings.NewReader("next\n\nteleport 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	err = s.exec(context.Background(), strings.NewReader("call getState\n"))
	require.ErrorContains(t, err, "speaker view is not open")

	err = s.exec(context.Background(), strings.NewReader("move 1\n"))
	require.Error(t, err)
}

func TestBlockedPopupIsReported(t *testing.T) {
	buf := &syncBuffer{}
	out := &OutputFormatter{jsonMode: true, out: buf, errOut: buf}
	cfg := testConfig()
	cfg.BlockPopups = true
	s, err := startSession(context.Background(), out, writeDeck(t), cfg, "")
	require.NoError(t, err)
	defer s.shutdown()

	require.NoError(t, s.exec(context.Background(), strings.NewReader("key s\n")))
	assert.Contains(t, buf.String(), `"event":"alert"`)
	assert.Nil(t, s.speaker())
}

func TestLaunchQuery(t *testing.T) {
	assert.Equal(t, "", launchQuery(false, false))
	assert.Equal(t, "notes=", launchQuery(true, false))
	assert.Equal(t, "notes=&receiver=", launchQuery(true, true))
}

func TestKeyEventNames(t *testing.T) {
	assert.Equal(t, 39, keyEvent("Right").KeyCode)
	assert.Equal(t, 27, keyEvent("esc").KeyCode)
	ev := keyEvent("a")
	assert.Equal(t, "a", ev.Key)
	assert.Zero(t, ev.KeyCode)
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	t.Cleanup(npversion.ForTesting("0.3.0"))

	output, err := executeRoot(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "notespointer v0.3.0\n", output)

	output, err = executeRoot(t, "version", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"0.3.0"}`, output)
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())

	output, err := executeRoot(t, "config", "init", "--json")
	require.NoError(t, err)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, true, res["success"])
	assert.Equal(t, config.GetPaths().Config, res["path"])

	_, err = executeRoot(t, "config", "init")
	require.ErrorContains(t, err, "already exists")

	_, err = executeRoot(t, "config", "init", "--force")
	require.NoError(t, err)

	output, err = executeRoot(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "notes_pointer:")
	assert.Contains(t, output, "spotlight:")
}

func TestNotesCommand(t *testing.T) {
	t.Setenv(config.HomeEnv, t.TempDir())

	output, err := executeRoot(t, "notes", writeDeck(t))
	require.NoError(t, err)
	assert.Contains(t, output, "[0.0]\nSay hello")
	assert.Contains(t, output, "[1.0] (markdown)\n**bold** claim")
	assert.Contains(t, output, "[1.1 fragment 0]\nfirst")
}

func TestSessionMetrics(t *testing.T) {
	buf := &syncBuffer{}
	out := &OutputFormatter{out: buf, errOut: buf}
	s, err := startSession(context.Background(), out, writeDeck(t), testConfig(), "")
	require.NoError(t, err)
	defer s.shutdown()

	require.NoError(t, s.exec(context.Background(), strings.NewReader("next\nopen\nwait connected\n")))

	metrics := string(s.metrics())
	assert.Contains(t, metrics, `notespointer_notes_link{state="connected"} 1`)
	assert.Contains(t, metrics, `notespointer_eventbus_events_total{topic="window.queue"}`)
	assert.Contains(t, metrics, `notespointer_eventbus_events_total{topic="notes.link"}`)
}
