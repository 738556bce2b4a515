package deck

import (
	"encoding/json"

	"github.com/nupi-ai/notespointer/internal/rpc"
)

// Methods registers the presentation operations a remote window may call.
func (d *Deck) Methods(reg *rpc.Registry) {
	reg.Register("getState", rpc.Func0(d.State))
	reg.Register("getIndices", rpc.Func0(d.Indices))
	reg.Register("getTotalSlides", rpc.Func0(d.TotalSlides))
	reg.Register("getSlidesAttributes", rpc.Func0(d.SlidesAttributes))
	reg.Register("getCurrentSlide", rpc.Func0(func() map[string]string {
		return d.CurrentSlide().Attributes()
	}))
	reg.Register("getScale", rpc.Func0(d.Scale))
	reg.Register("getConfig", rpc.Func0(d.Config))
	reg.Register("isPaused", rpc.Func0(d.IsPaused))
	reg.Register("isOverview", rpc.Func0(d.IsOverview))
	reg.Register("isFirstSlide", rpc.Func0(d.IsFirstSlide))
	reg.Register("isLastSlide", rpc.Func0(d.IsLastSlide))
	reg.Register("next", rpc.Action(d.Next))
	reg.Register("prev", rpc.Action(d.Prev))

	reg.Register("setState", func(args []json.RawMessage) (any, error) {
		s, err := rpc.Arg[State](args, 0)
		if err != nil {
			return nil, err
		}
		d.SetState(s)
		return nil, nil
	})
	reg.Register("slide", func(args []json.RawMessage) (any, error) {
		h, err := rpc.Arg[int](args, 0)
		if err != nil {
			return nil, err
		}
		v, err := rpc.Arg[int](args, 1)
		if err != nil {
			return nil, err
		}
		f, err := rpc.Arg[*int](args, 2)
		if err != nil {
			return nil, err
		}
		if f != nil {
			d.Slide(h, v, *f)
		} else {
			d.Slide(h, v)
		}
		return nil, nil
	})
	reg.Register("togglePause", toggleMethod(d.TogglePause))
	reg.Register("toggleOverview", toggleMethod(d.ToggleOverview))
}

func toggleMethod(fn func(...bool)) rpc.Method {
	return func(args []json.RawMessage) (any, error) {
		override, err := rpc.Arg[*bool](args, 0)
		if err != nil {
			return nil, err
		}
		if override != nil {
			fn(*override)
		} else {
			fn()
		}
		return nil, nil
	}
}
