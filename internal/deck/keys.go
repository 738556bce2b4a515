package deck

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nupi-ai/notespointer/internal/window"
)

// KeyBinding describes a key shortcut.
type KeyBinding struct {
	Key         string `json:"key"`
	KeyCode     int    `json:"keyCode"`
	Description string `json:"description"`
}

type binding struct {
	KeyBinding
	fn func()
}

// NewKeyBinding resolves a configured key and key code. With neither set,
// defaultKey is used. A missing key code is derived from the upper-cased
// key; a missing key from the key code.
func NewKeyBinding(key string, keyCode int, defaultKey, description string) KeyBinding {
	if key == "" && keyCode == 0 {
		key = defaultKey
	}
	switch {
	case keyCode == 0:
		keyCode = keyCodeOf(key)
	case key == "":
		key = string(rune(keyCode))
	}
	return KeyBinding{Key: key, KeyCode: keyCode, Description: description}
}

func keyCodeOf(key string) int {
	r, _ := utf8.DecodeRuneInString(strings.ToUpper(key))
	if r == utf8.RuneError {
		return 0
	}
	return int(r)
}

// AddKeyBinding binds fn to b.KeyCode, replacing an earlier binding for the
// same code. Custom bindings take precedence over navigation keys. A binding
// that resolves to no key code is not added and AddKeyBinding reports false.
func (d *Deck) AddKeyBinding(b KeyBinding, fn func()) bool {
	if b.KeyCode == 0 {
		b.KeyCode = keyCodeOf(b.Key)
	}
	if b.KeyCode == 0 {
		return false
	}
	d.bindings[b.KeyCode] = binding{KeyBinding: b, fn: fn}
	return true
}

// RemoveKeyBinding drops the custom binding for keyCode.
func (d *Deck) RemoveKeyBinding(keyCode int) {
	delete(d.bindings, keyCode)
}

// KeyBindings lists the custom bindings ordered by key code.
func (d *Deck) KeyBindings() []KeyBinding {
	out := make([]KeyBinding, 0, len(d.bindings))
	for _, b := range d.bindings {
		out = append(out, b.KeyBinding)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].KeyCode < out[j].KeyCode })
	return out
}

// Navigation key codes.
const (
	keyEscape   = 27
	keySpace    = 32
	keyPageUp   = 33
	keyPageDown = 34
	keyEnd      = 35
	keyHome     = 36
	keyLeft     = 37
	keyRight    = 39
	keyPeriod   = 190
)

func (d *Deck) onKey(ev window.Event) {
	k, ok := ev.(window.KeyEvent)
	if !ok {
		return
	}
	code := k.KeyCode
	if code == 0 {
		code = keyCodeOf(k.Key)
	}

	if b, ok := d.bindings[code]; ok {
		b.fn()
		return
	}

	switch code {
	case keyRight, keySpace, keyPageDown, 'N':
		d.Next()
	case keyLeft, keyPageUp, 'P':
		d.Prev()
	case keyHome:
		d.Slide(0, 0)
	case keyEnd:
		d.Slide(len(d.stacks)-1, 0)
	case 'B', keyPeriod:
		d.TogglePause()
	case 'O', keyEscape:
		d.ToggleOverview()
	default:
		d.logger.Debug().Str("key", k.Key).Int("keyCode", code).Msg("unbound key")
	}
}
