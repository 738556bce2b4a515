// Package rpc is the allowlist of presentation operations a remote window may
// invoke through "call" envelopes.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownMethod is returned for names that were never registered.
	ErrUnknownMethod = errors.New("rpc: unknown method")
	// ErrBadArguments is returned when arguments cannot be decoded.
	ErrBadArguments = errors.New("rpc: bad arguments")
)

// Method is a remotely callable operation. Arguments are the raw JSON
// values of the call's argument list.
type Method func(args []json.RawMessage) (any, error)

// Registry maps method names to operations.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]Method
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]Method)}
}

// Register adds or replaces name.
func (r *Registry) Register(name string, m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = m
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.methods[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes name with args.
func (r *Registry) Call(name string, args []json.RawMessage) (any, error) {
	r.mu.RLock()
	m, ok := r.methods[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return m(args)
}

// Arg decodes argument i into T. Missing arguments yield the zero value, the
// way a JavaScript callee sees undefined.
func Arg[T any](args []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(args) || len(args[i]) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args[i], &v); err != nil {
		return v, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
	}
	return v, nil
}

// Func0 adapts a no-argument getter.
func Func0[R any](fn func() R) Method {
	return func([]json.RawMessage) (any, error) {
		return fn(), nil
	}
}

// Action adapts a no-argument command that returns nothing.
func Action(fn func()) Method {
	return func([]json.RawMessage) (any, error) {
		fn()
		return nil, nil
	}
}
