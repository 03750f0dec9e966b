// modulotor.go - the per-layer signal->parameter routing engine
//
// Package modulotor computes each enabled Modulotor's signed contribution
// for the current tick and folds it into a layer's resolved Params. Source
// reads go through the signal bus except for the free-running `lfo_sine`
// source, which is computed directly from the evaluator clock so it never
// needs a registered provider.
package modulotor

import (
	"math"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

// State holds one modulotor's one-pole smoothing memory across ticks. The
// caller keys a slice of these by (layer uid, modulotor index).
type State struct {
	last float64
}

// Sample computes m's raw signed contribution in [-1,1] for tick t, before
// curve shaping, bias, or smoothing.
func sample(m schema.Modulotor, bus *signalbus.Bus, t float64) float64 {
	switch {
	case m.Source == "lfo_sine":
		return math.Sin(2 * math.Pi * (m.RateHz*t + m.Phase))
	default:
		v := bus.Get(m.Source)
		// audio.*, purpose_*, and any other 0..1 reading maps to [-1,1];
		// vars.toggle.* is already 0/1 and maps the same way, vars.number.*
		// is taken as-is per spec.md §4.5 "number as-is".
		if isNumberVar(m.Source) {
			return v
		}
		return (v - 0.5) * 2
	}
}

func isNumberVar(source string) bool {
	return len(source) > len("vars.number.") && source[:len("vars.number.")] == "vars.number."
}

// shapeCurve reshapes a unipolar [0,1] reading (sample's output rescaled
// back to [0,1]) per curve, then re-centers to [-1,1] (spec.md §4.5).
func shapeCurve(sig float64, curve schema.Curve) float64 {
	unipolar := (sig + 1) / 2
	switch curve {
	case schema.CurveInvert:
		unipolar = 1 - unipolar
	case schema.CurveAbs:
		unipolar = math.Abs(sig)
	case schema.CurvePow2:
		unipolar = math.Pow(unipolar, 2)
	case schema.CurvePow3:
		unipolar = math.Pow(unipolar, 3)
	case schema.CurveLinear, "":
		// no-op
	}
	return unipolar*2 - 1
}

// Apply runs one modulotor for the current tick, updating its smoothing
// state in place and returning the new contribution (for diagnostics); the
// actual parameter mutation happens via ApplyAll below since the target
// field lives on Params, not here.
func Apply(m schema.Modulotor, st *State, bus *signalbus.Bus, t float64) float64 {
	if !m.Enabled {
		return 0
	}
	raw := sample(m, bus, t)
	shaped := shapeCurve(raw, m.Curve)
	shaped += m.Bias

	a := clampSmooth(m.Smooth)
	st.last = a*st.last + (1-a)*shaped
	return st.last
}

// ApplyAll folds every enabled modulotor on a layer into p, in slice order,
// mutating and returning p. states must have the same length as mods (the
// caller — internal/compositor — owns state lifetime per layer).
func ApplyAll(mods []schema.Modulotor, states []*State, bus *signalbus.Bus, t float64, p behaviors.Params) behaviors.Params {
	for i, m := range mods {
		if !m.Enabled || i >= len(states) {
			continue
		}
		sig := Apply(m, states[i], bus, t)
		combine(&p, m.Target, m.Mode, sig*m.Amount)
	}
	return p
}

func combine(p *behaviors.Params, target schema.ParamName, mode schema.ModulotorMode, contribution float64) {
	get, set := accessor(p, target)
	if get == nil {
		return
	}
	base := get()
	var out float64
	switch mode {
	case schema.ModeMul:
		out = base * (1 + contribution)
	case schema.ModeAdd:
		out = base + contribution
	case schema.ModeSet:
		out = contribution
	default:
		out = base
	}
	set(clampParam(target, out))
}

// accessor resolves target to a get/set pair on p's standard fields. It
// never covers purpose_f/i directly assigned strings since PF/PI are
// numbered; those are matched by prefix below.
func accessor(p *behaviors.Params, target schema.ParamName) (func() float64, func(float64)) {
	switch target {
	case schema.ParamBrightness:
		return func() float64 { return p.Brightness }, func(v float64) { p.Brightness = v }
	case schema.ParamSpeed:
		return func() float64 { return p.Speed }, func(v float64) { p.Speed = v }
	case schema.ParamWidth:
		return func() float64 { return p.Width }, func(v float64) { p.Width = v }
	case schema.ParamSoftness:
		return func() float64 { return p.Softness }, func(v float64) { p.Softness = v }
	case schema.ParamDensity:
		return func() float64 { return p.Density }, func(v float64) { p.Density = v }
	case schema.ParamDirection:
		return func() float64 { return p.Direction }, func(v float64) { p.Direction = v }
	}
	if n, ok := purposeIndex(string(target), "purpose_f"); ok {
		return func() float64 { return p.PF[n] }, func(v float64) { p.PF[n] = v }
	}
	if n, ok := purposeIndex(string(target), "purpose_i"); ok {
		return func() float64 { return float64(p.PI[n]) }, func(v float64) { p.PI[n] = int(v) }
	}
	return nil, nil
}

func purposeIndex(target, prefix string) (int, bool) {
	if len(target) != len(prefix)+1 || target[:len(prefix)] != prefix {
		return 0, false
	}
	d := target[len(prefix)]
	if d < '0' || d > '3' {
		return 0, false
	}
	return int(d - '0'), true
}

// clampParam enforces the per-parameter range from the params registry
// (spec.md §4.5 "clamped per params/registry entries").
func clampParam(target schema.ParamName, v float64) float64 {
	switch target {
	case schema.ParamBrightness, schema.ParamDensity, schema.ParamWidth, schema.ParamSoftness:
		return clampF(v, 0, 1)
	case schema.ParamDirection:
		return clampF(v, -1, 1)
	case schema.ParamSpeed:
		return clampF(v, -10, 10)
	default:
		return v
	}
}

func clampSmooth(x float64) float64 { return clampF(x, 0, 0.999) }

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
