package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nupi-ai/notespointer/internal/pointer"
	"github.com/nupi-ai/notespointer/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
notes_pointer:
  spotlight:
    key: X
  laser:
    color: green
    script: scripts/laser.js
  pointer:
    color: blue
  notes:
    keyCode: 78
    retry_interval: 250ms
deck:
  width: 1280
  height: 720
  post_message_events: true
viewport:
  width: 1920
  height: 1080
block_popups: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []pointer.Kind{
		{ID: "spotlight", Key: "X"},
		{ID: "laser", Color: "green", Script: filepath.Join(dir, "scripts/laser.js")},
		{ID: "pointer", Color: "blue"},
	}, cfg.NotesPointer.Pointers)

	notes := cfg.NotesPointer.Notes
	assert.Equal(t, "S", notes.Key)
	assert.Equal(t, 78, notes.KeyCode)
	assert.Equal(t, "notes.html", notes.URL)
	assert.Equal(t, 250*time.Millisecond, notes.RetryInterval)

	assert.Equal(t, 1280.0, cfg.Deck.Width)
	assert.Equal(t, 0.04, cfg.Deck.Margin)
	assert.True(t, cfg.Deck.PostMessageEvents)
	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, cfg.Viewport)
	assert.True(t, cfg.BlockPopups)
}

func TestLoadRejectsBadViewport(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "viewport:\n  width: 0\n  height: 10\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNonMappingBlock(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "notes_pointer: [1, 2]\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Defaults()
	want.BlockPopups = true
	t.Cleanup(version.ForTesting("0.2.0"))
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.2.0", got.Version)
	want.Version = "0.2.0"
	assert.Equal(t, want, got)
}
