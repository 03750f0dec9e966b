// compositor.go - composes one tick's framebuffer from a project's layer
// stack: target resolution, param resolution (modulotors + runtime
// overrides), behavior render, operator chain, and cross-layer blending.
//
// Package compositor is the evaluator's per-tick hot path (spec.md §4.7).
// It owns no state of its own beyond what the caller threads through
// LayerState — everything here is a pure function of (project, signal bus,
// rule overrides, layer states) to a framebuffer.
package compositor

import (
	"math"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/modulotor"
	"github.com/andyleaver/modulo/internal/operators"
	"github.com/andyleaver/modulo/internal/rules"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

// LayerState is one layer's cross-tick scratch: its behavior state plus one
// modulotor.State per modulotor slot. Created on first tick for a uid,
// reset whenever the layer's behavior key changes, and dropped when the
// layer is removed (spec.md §3 "Lifecycle").
type LayerState struct {
	BehaviorState any
	ModStates     []*modulotor.State
	lastBehavior  string
}

// Stats carries per-tick diagnostics for the preview UI (spec.md §4.9
// "last render stats").
type Stats struct {
	NonzeroCount  int
	PerLayerNanos map[string]int64
	Warnings      []string
}

// Compose renders one tick's framebuffer. catalog must already be frozen.
// layerStates is keyed by layer uid and mutated in place; overrides is the
// Rules V6 engine's already-reduced runtime-override map for this tick.
func Compose(
	p *schema.Project,
	catalog *behaviors.Catalog,
	bus *signalbus.Bus,
	overrides map[rules.OverrideKey]float64,
	layerStates map[string]*LayerState,
	t float64,
) ([]behaviors.RGB, Stats) {
	n := p.Layout.NumLEDs()
	fb := make([]behaviors.RGB, n)
	stats := Stats{PerLayerNanos: map[string]int64{}}

	for li, layer := range p.Layers {
		if !layer.Enabled {
			continue
		}
		targets := resolveTargets(p, layer, n)
		if len(targets) == 0 {
			continue
		}

		b, ok := catalog.Lookup(layer.Behavior)
		if !ok {
			stats.Warnings = append(stats.Warnings, "unknown behavior: "+layer.Behavior)
			continue
		}

		st := layerStates[layer.UID]
		if st == nil {
			st = &LayerState{}
			layerStates[layer.UID] = st
		}
		if st.lastBehavior != layer.Behavior {
			st.BehaviorState = b.NewState()
			params := behaviors.ParamsFromLayer(&layer)
			b.Reset(st.BehaviorState, params)
			st.lastBehavior = layer.Behavior
		}
		if len(st.ModStates) != len(layer.Modulotors) {
			st.ModStates = make([]*modulotor.State, len(layer.Modulotors))
			for i := range st.ModStates {
				st.ModStates[i] = &modulotor.State{}
			}
		}

		params := resolveParams(layer, li, bus, overrides, st, t)
		// Behaviors read audio through an AudioFrame; rebuild the fields they
		// use (energy and beat, read by pulse) from this tick's bus.
		audio := signalbus.AudioFrame{Energy: bus.Get("audio.energy"), Beat: bus.Get("audio.beat")}
		b.Tick(st.BehaviorState, params, 1.0/60, t, audio)
		frame := b.Render(st.BehaviorState, params, t, n)

		opacity := clampParamOverride(overrides, li, schema.ParamOpacity, layer.Opacity)

		ops := withOperatorOverrides(layer.Operators, li, overrides)

		for _, i := range targets {
			if i < 0 || i >= n {
				continue
			}
			px := operators.Chain(ops, frame[i])
			blended := blend(layer.BlendMode, fb[i], px)
			out := behaviors.RGB{
				R: fb[i].R*(1-opacity) + blended.R*opacity,
				G: fb[i].G*(1-opacity) + blended.G*opacity,
				B: fb[i].B*(1-opacity) + blended.B*opacity,
			}
			fb[i] = out
		}
	}

	for _, px := range fb {
		if px.R > 0 || px.G > 0 || px.B > 0 {
			stats.NonzeroCount++
		}
	}
	return fb, stats
}

func resolveParams(layer schema.Layer, layerIndex int, bus *signalbus.Bus, overrides map[rules.OverrideKey]float64, st *LayerState, t float64) behaviors.Params {
	p := behaviors.ParamsFromLayer(&layer)
	p = modulotor.ApplyAll(layer.Modulotors, st.ModStates, bus, t, p)

	if v, ok := overrides[rules.OverrideKey{LayerIndex: layerIndex, Param: schema.ParamParamBrightness}]; ok {
		p.Brightness = clampF(v, 0, 1)
	}
	return p
}

func clampParamOverride(overrides map[rules.OverrideKey]float64, layerIndex int, param schema.LayerParam, base float64) float64 {
	if v, ok := overrides[rules.OverrideKey{LayerIndex: layerIndex, Param: param}]; ok {
		return clampF(v, 0, 1)
	}
	return clampF(base, 0, 1)
}

// withOperatorOverrides applies op_gain/op_gamma runtime overrides to the
// first gain/gamma operator slot (spec.md §4.6 "Runtime overrides").
// If no such slot exists the override is a no-op here; internal/validate
// rejects rules targeting a missing slot at validation time instead.
func withOperatorOverrides(ops []schema.Operator, layerIndex int, overrides map[rules.OverrideKey]float64) []schema.Operator {
	gain, hasGain := overrides[rules.OverrideKey{LayerIndex: layerIndex, Param: schema.ParamOpGain}]
	gamma, hasGamma := overrides[rules.OverrideKey{LayerIndex: layerIndex, Param: schema.ParamOpGamma}]
	if !hasGain && !hasGamma {
		return ops
	}
	out := append([]schema.Operator(nil), ops...)
	gainDone, gammaDone := false, false
	for i := range out {
		if hasGain && !gainDone && out[i].Kind == schema.OpGain {
			out[i].K = gain
			gainDone = true
		}
		if hasGamma && !gammaDone && out[i].Kind == schema.OpGamma {
			out[i].Gamma = gamma
			gammaDone = true
		}
	}
	return out
}

// resolveTargets computes the index set S for a layer (spec.md §4.7 step 1):
// all/group/zone/mask, intersected with ui.target_mask if present.
func resolveTargets(p *schema.Project, layer schema.Layer, n int) []int {
	var base []int
	switch layer.TargetKind {
	case schema.TargetAll:
		base = rangeIndices(0, n)
	case schema.TargetGroup:
		if g, ok := p.Groups[layer.TargetRef]; ok {
			base = append([]int(nil), g.Indices...)
		}
	case schema.TargetZone:
		if z, ok := p.Zones[layer.TargetRef]; ok {
			start, end := clampInt(z.Start, 0, n-1), clampInt(z.End, 0, n-1)
			base = rangeIndices(start, end+1)
		}
	case schema.TargetMask:
		if m, ok := p.Masks[layer.TargetRef]; ok {
			base = append([]int(nil), m.Indices...)
		}
	default:
		base = rangeIndices(0, n)
	}

	if p.UI.TargetMask == "" {
		return base
	}
	mask, ok := p.Masks[p.UI.TargetMask]
	if !ok {
		return base
	}
	maskSet := make(map[int]bool, len(mask.Indices))
	for _, i := range mask.Indices {
		maskSet[i] = true
	}
	out := base[:0:0]
	for _, i := range base {
		if maskSet[i] {
			out = append(out, i)
		}
	}
	return out
}

func rangeIndices(start, end int) []int {
	if end <= start {
		return nil
	}
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// blend combines a newly rendered layer pixel onto the existing framebuffer
// pixel under mode, both in [0,255] float space (spec.md §4.7).
func blend(mode schema.BlendMode, a, b behaviors.RGB) behaviors.RGB {
	switch mode {
	case schema.BlendAdd:
		return behaviors.RGB{R: math.Min(255, a.R+b.R), G: math.Min(255, a.G+b.G), B: math.Min(255, a.B+b.B)}
	case schema.BlendMax:
		return behaviors.RGB{R: math.Max(a.R, b.R), G: math.Max(a.G, b.G), B: math.Max(a.B, b.B)}
	case schema.BlendMultiply:
		return behaviors.RGB{R: a.R * b.R / 255, G: a.G * b.G / 255, B: a.B * b.B / 255}
	case schema.BlendScreen:
		return behaviors.RGB{
			R: 255 - (255-a.R)*(255-b.R)/255,
			G: 255 - (255-a.G)*(255-b.G)/255,
			B: 255 - (255-a.B)*(255-b.B)/255,
		}
	default: // over
		return b
	}
}
