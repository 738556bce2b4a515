// Package config loads notespointer settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nupi-ai/notespointer/internal/deck"
	"github.com/nupi-ai/notespointer/internal/pointer"
	"github.com/nupi-ai/notespointer/internal/version"
	"gopkg.in/yaml.v3"
)

// NotesOptions configures the speaker notes link.
type NotesOptions struct {
	Key           string        `yaml:"key,omitempty"`
	KeyCode       int           `yaml:"keyCode,omitempty"`
	URL           string        `yaml:"url,omitempty"`
	RetryInterval time.Duration `yaml:"retry_interval,omitempty"`
}

// NotesPointer is the plugin block: one entry per pointer kind plus the
// reserved "notes" entry.
type NotesPointer struct {
	Pointers []pointer.Kind
	Notes    NotesOptions
}

const notesKey = "notes"

// UnmarshalYAML keeps pointer entries in file order.
func (np *NotesPointer) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("notes_pointer: line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		if key == notesKey {
			if err := value.Decode(&np.Notes); err != nil {
				return fmt.Errorf("notes_pointer.notes: %w", err)
			}
			continue
		}
		var k pointer.Kind
		if err := value.Decode(&k); err != nil {
			return fmt.Errorf("notes_pointer.%s: %w", key, err)
		}
		k.ID = key
		np.Pointers = append(np.Pointers, k)
	}
	return nil
}

// MarshalYAML writes pointer entries followed by the notes entry.
func (np NotesPointer) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, v any) error {
		var value yaml.Node
		if err := value.Encode(v); err != nil {
			return err
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &value)
		return nil
	}
	for _, k := range np.Pointers {
		if err := add(k.ID, k); err != nil {
			return nil, err
		}
	}
	if err := add(notesKey, np.Notes); err != nil {
		return nil, err
	}
	return node, nil
}

// Viewport is the simulated browser viewport.
type Viewport struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// File is the configuration file layout.
type File struct {
	// Version is the build that last wrote the file.
	Version      string       `yaml:"version,omitempty"`
	NotesPointer NotesPointer `yaml:"notes_pointer"`
	Deck         deck.Config  `yaml:"deck"`
	Viewport     Viewport     `yaml:"viewport"`
	BlockPopups  bool         `yaml:"block_popups"`
}

// Defaults returns the built-in configuration.
func Defaults() File {
	return File{
		NotesPointer: NotesPointer{
			Pointers: pointer.DefaultKinds(),
			Notes: NotesOptions{
				Key:           "S",
				URL:           "notes.html",
				RetryInterval: 500 * time.Millisecond,
			},
		},
		Deck:     deck.DefaultConfig(),
		Viewport: Viewport{Width: 1280, Height: 800},
	}
}

// Load reads path over the defaults. An empty path reads the default
// location, where a missing file is not an error. Relative script paths are
// resolved against the file's directory.
func Load(path string) (File, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = GetPaths().Config
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	// File entries are overrides; the pointer registry merges them over the
	// built-in kinds.
	cfg.NotesPointer.Pointers = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, k := range cfg.NotesPointer.Pointers {
		if k.Script == "" {
			continue
		}
		script := ExpandPath(k.Script)
		if !filepath.IsAbs(script) {
			script = filepath.Join(dir, script)
		}
		cfg.NotesPointer.Pointers[i].Script = script
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings no window could use.
func (f File) Validate() error {
	if f.Viewport.Width <= 0 || f.Viewport.Height <= 0 {
		return fmt.Errorf("config: viewport must be positive, got %vx%v", f.Viewport.Width, f.Viewport.Height)
	}
	if f.NotesPointer.Notes.RetryInterval < 0 {
		return fmt.Errorf("config: negative retry_interval %s", f.NotesPointer.Notes.RetryInterval)
	}
	return nil
}

// Save writes f to path, creating parent directories, and stamps it with
// the running version.
func Save(path string, f File) error {
	f.Version = version.String()
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
