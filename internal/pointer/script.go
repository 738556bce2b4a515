package pointer

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// ScriptStrategy renders a pointer through a JavaScript module exporting
//
//	createPointer(id, options) -> style object
//	applyMove(style, x, y)     -> style object (or mutates style in place)
//
// The "display" property stays under the device's control.
type ScriptStrategy struct {
	name string

	mu     sync.Mutex
	vm     *goja.Runtime
	create goja.Callable
	move   goja.Callable
}

// NewScriptStrategy evaluates src and binds its exports.
func NewScriptStrategy(name, src string) (*ScriptStrategy, error) {
	vm := goja.New()
	exports := vm.NewObject()
	module := vm.NewObject()
	_ = module.Set("exports", exports)
	vm.Set("module", module)
	vm.Set("exports", exports)

	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("pointer script %s: execute: %w", name, err)
	}
	if v := module.Get("exports"); v != nil {
		exports = v.ToObject(vm)
	}

	create, ok := goja.AssertFunction(exports.Get("createPointer"))
	if !ok {
		return nil, fmt.Errorf("pointer script %s: createPointer must be a function", name)
	}
	move, ok := goja.AssertFunction(exports.Get("applyMove"))
	if !ok {
		return nil, fmt.Errorf("pointer script %s: applyMove must be a function", name)
	}
	return &ScriptStrategy{name: name, vm: vm, create: create, move: move}, nil
}

func (s *ScriptStrategy) Create(kind Kind) (*Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.vm.ToValue(map[string]any{
		"color":   kind.Color,
		"key":     kind.Key,
		"keyCode": kind.KeyCode,
	})
	res, err := s.create(goja.Undefined(), s.vm.ToValue(kind.ID), opts)
	if err != nil {
		return nil, fmt.Errorf("pointer script %s: createPointer: %w", s.name, err)
	}

	ind := &Indicator{ID: kind.ID, Style: make(map[string]string)}
	if obj, ok := res.(*goja.Object); ok {
		readStyle(obj, ind.Style)
	}
	ind.hide()
	return ind, nil
}

func (s *ScriptStrategy) ApplyMove(ind *Indicator, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	style := s.vm.NewObject()
	for k, v := range ind.Style {
		_ = style.Set(k, v)
	}
	res, err := s.move(goja.Undefined(), style, s.vm.ToValue(x), s.vm.ToValue(y))
	if err != nil {
		return fmt.Errorf("pointer script %s: applyMove: %w", s.name, err)
	}
	if obj, ok := res.(*goja.Object); ok {
		style = obj
	}

	display := ind.Style["display"]
	readStyle(style, ind.Style)
	ind.Style["display"] = display
	return nil
}

func readStyle(obj *goja.Object, into map[string]string) {
	for _, k := range obj.Keys() {
		v := obj.Get(k)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			delete(into, k)
			continue
		}
		into[k] = v.String()
	}
}
