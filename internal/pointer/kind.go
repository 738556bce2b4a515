// Package pointer implements on-screen pointer devices (a laser dot, a
// spotlight, scripted variants) that follow local mouse input and mirror
// their position to a remote window.
package pointer

import (
	"errors"
	"fmt"
	"os"
)

// Built-in kind ids.
const (
	KindPointer   = "pointer"
	KindSpotlight = "spotlight"
)

var (
	// ErrUnknownStrategy is returned for a kind whose strategy cannot be
	// resolved.
	ErrUnknownStrategy = errors.New("pointer: unknown strategy")
	// ErrUnknownPointer is returned when a point targets an unconfigured
	// kind.
	ErrUnknownPointer = errors.New("pointer: unknown pointer")
	// ErrPointerMismatch is returned when point<id> carries the state of
	// another kind.
	ErrPointerMismatch = errors.New("pointer: state names another pointer")
	// ErrMissingID is returned for an override without a kind id.
	ErrMissingID = errors.New("pointer: kind without id")
)

// Kind configures one pointer variant.
type Kind struct {
	ID       string `yaml:"-"`
	Color    string `yaml:"color,omitempty"`
	Key      string `yaml:"key,omitempty"`
	KeyCode  int    `yaml:"keyCode,omitempty"`
	Strategy string `yaml:"strategy,omitempty"`
	// Script is the path of a JavaScript file exporting createPointer and
	// applyMove. It takes precedence over Strategy.
	Script string `yaml:"script,omitempty"`
}

// DefaultKinds returns the built-in kinds in their binding order.
func DefaultKinds() []Kind {
	return []Kind{
		{ID: KindPointer, Color: "rgba(255, 0, 0, 0.8)", Key: "A", Strategy: StrategyDisk},
		{ID: KindSpotlight, Key: "Z", Strategy: StrategySpotlight},
	}
}

// merge overlays the non-zero fields of o on k.
func (k Kind) merge(o Kind) Kind {
	if o.Color != "" {
		k.Color = o.Color
	}
	if o.Key != "" {
		k.Key = o.Key
	}
	if o.KeyCode != 0 {
		k.KeyCode = o.KeyCode
	}
	if o.Strategy != "" {
		k.Strategy = o.Strategy
	}
	if o.Script != "" {
		k.Script = o.Script
	}
	return k
}

// Registry is the immutable set of configured kinds and their strategies.
type Registry struct {
	kinds      []Kind
	strategies map[string]Strategy
}

type registryOptions struct {
	named    map[string]Strategy
	readFile func(string) ([]byte, error)
}

// RegistryOption customises NewRegistry.
type RegistryOption func(*registryOptions)

// WithStrategy makes s available to kinds under name.
func WithStrategy(name string, s Strategy) RegistryOption {
	return func(o *registryOptions) {
		o.named[name] = s
	}
}

// WithScriptReader replaces os.ReadFile for loading script strategies.
func WithScriptReader(fn func(string) ([]byte, error)) RegistryOption {
	return func(o *registryOptions) {
		if fn != nil {
			o.readFile = fn
		}
	}
}

// NewRegistry merges overrides over the built-in kinds. Overrides for ids
// that are not built in add new kinds after the defaults, in the order given.
func NewRegistry(overrides []Kind, opts ...RegistryOption) (*Registry, error) {
	o := registryOptions{
		named: map[string]Strategy{
			StrategyDisk:      diskStrategy{},
			StrategySpotlight: spotlightStrategy{},
		},
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(&o)
	}

	kinds := DefaultKinds()
	index := make(map[string]int, len(kinds))
	for i, k := range kinds {
		index[k.ID] = i
	}
	for _, ov := range overrides {
		if ov.ID == "" {
			return nil, ErrMissingID
		}
		if i, ok := index[ov.ID]; ok {
			kinds[i] = kinds[i].merge(ov)
			continue
		}
		index[ov.ID] = len(kinds)
		kinds = append(kinds, ov)
	}

	r := &Registry{kinds: kinds, strategies: make(map[string]Strategy, len(kinds))}
	for _, k := range kinds {
		s, err := o.resolve(k)
		if err != nil {
			return nil, err
		}
		r.strategies[k.ID] = s
	}
	return r, nil
}

func (o registryOptions) resolve(k Kind) (Strategy, error) {
	if k.Script != "" {
		src, err := o.readFile(k.Script)
		if err != nil {
			return nil, fmt.Errorf("pointer %s: read script: %w", k.ID, err)
		}
		return NewScriptStrategy(k.Script, string(src))
	}
	if s, ok := o.named[k.Strategy]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q for pointer %s", ErrUnknownStrategy, k.Strategy, k.ID)
}

// Kinds returns the configured kinds in binding order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.kinds...)
}

// Kind looks up a kind by id.
func (r *Registry) Kind(id string) (Kind, bool) {
	for _, k := range r.kinds {
		if k.ID == id {
			return k, true
		}
	}
	return Kind{}, false
}

// Strategy returns the rendering strategy for kind id.
func (r *Registry) Strategy(id string) Strategy {
	return r.strategies[id]
}
