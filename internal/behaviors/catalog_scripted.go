// catalog_scripted.go - scripted: a per-pixel Lua escape hatch for preview
// authoring, backed by github.com/yuin/gopher-lua. It is marked PreviewOnly:
// nothing in the firmware emitter can run an embedded Lua interpreter on an
// AVR target, so this behavior never reaches the exportable catalog subset
// (SPEC_FULL.md "if it previews, it must export" carve-out for scripted
// layers, grounded on original_source/behaviors/effects/scripted.py).

package behaviors

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type scriptedState struct {
	mu     sync.Mutex
	source string
	ls     *lua.LState
	tick   float64
	err    error
}

type scriptedBehavior struct{}

func (scriptedBehavior) Key() string { return "scripted" }

func (scriptedBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: PreviewOnly, Stateful: true, Uses: []string{"brightness"}, ArduinoID: -1, Title: "Scripted (Lua, preview only)"}
}

func (scriptedBehavior) NewState() any { return &scriptedState{} }

func (scriptedBehavior) Reset(state any, p Params) {
	st := state.(*scriptedState)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.ls != nil {
		st.ls.Close()
		st.ls = nil
	}
	st.err = nil
	st.source = p.Script
}

func (scriptedBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {
	st := state.(*scriptedState)
	st.mu.Lock()
	st.tick = t
	st.mu.Unlock()
}

// Render evaluates the script's global `pixel(i, n, t)` function once per
// pixel, expecting three return values in [0,1] that are scaled to [0,255].
// Any script error or missing function freezes the layer to black rather
// than propagating a panic into the render pipeline.
func (scriptedBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	st := state.(*scriptedState)
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]RGB, numLEDs)
	if st.source == "" {
		return out
	}
	if st.ls == nil {
		st.ls = lua.NewState(lua.Options{CallStackSize: 64, RegistrySize: 256})
		if err := st.ls.DoString(st.source); err != nil {
			st.err = err
			return out
		}
	}
	if st.err != nil {
		return out
	}

	fn := st.ls.GetGlobal("pixel")
	if fn.Type() != lua.LTFunction {
		return out
	}
	for i := 0; i < numLEDs; i++ {
		if err := st.ls.CallByParam(lua.P{Fn: fn, NRet: 3, Protect: true},
			lua.LNumber(i), lua.LNumber(numLEDs), lua.LNumber(t)); err != nil {
			st.err = fmt.Errorf("scripted: pixel(): %w", err)
			return make([]RGB, numLEDs)
		}
		b := float64(st.ls.ToNumber(-1))
		g := float64(st.ls.ToNumber(-2))
		r := float64(st.ls.ToNumber(-3))
		st.ls.Pop(3)
		bright := p.Brightness
		out[i] = RGB{R: clamp01(r) * 255 * bright, G: clamp01(g) * 255 * bright, B: clamp01(b) * 255 * bright}
	}
	return out
}
