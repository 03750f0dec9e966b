// params.go - resolved per-tick layer parameters handed to a Behavior

package behaviors

import "github.com/andyleaver/modulo/internal/schema"

// RGB is a pixel in float space, [0,255] per channel before final clamp
// (spec.md §4.4, §4.7 — operators and blending both work in this space).
type RGB struct{ R, G, B float64 }

// Params is the fully-resolved parameter set for one layer on one tick:
// base params with modulotors and rules_v6 runtime overrides already
// folded in (spec.md §4.7 step 2). It mirrors the firmware emitter's flat
// per-layer arrays (L_BR/SP/WD/SO/DN/DIR, L_PF0..3, L_PI0..3, L_R/G/B,
// L_R2/G2/B2) so preview and codegen read the exact same shape.
type Params struct {
	Color  RGB
	Color2 RGB

	Brightness float64
	Speed      float64
	Width      float64
	Softness   float64
	Density    float64
	Direction  float64

	PF [4]float64
	PI [4]int

	Seed uint64

	// Raw is the original param bag, for behavior-specific knobs that
	// don't fit the standard set (e.g. a one-off numeric tuning value).
	Raw map[string]schema.Value

	// Script is the scripted behavior's Lua source; empty for every other
	// behavior.
	Script string
}

func (p Params) Float(name string, def float64) float64 {
	if v, ok := p.Raw[name]; ok {
		return v.AsScalar()
	}
	return def
}

func (p Params) Int(name string, def int) int {
	if v, ok := p.Raw[name]; ok {
		return int(v.AsScalar())
	}
	return def
}

func (p Params) Bool(name string, def bool) bool {
	if v, ok := p.Raw[name]; ok {
		return v.AsScalar() != 0
	}
	return def
}

// ParamsFromLayer resolves a Layer's static params map into the standard
// Params shape. Modulotors and rule overrides are applied on top of the
// result by the caller (internal/compositor), not here — ParamsFromLayer is
// pure base-state resolution.
func ParamsFromLayer(l *schema.Layer) Params {
	raw := l.Params
	p := Params{Raw: raw, Script: l.ScriptSource}
	if c, ok := raw["color"]; ok {
		p.Color = rgbFromValue(c)
	}
	if c, ok := raw["color2"]; ok {
		p.Color2 = rgbFromValue(c)
	}
	p.Brightness = floatOr(raw, "brightness", 1)
	p.Speed = floatOr(raw, "speed", 1)
	p.Width = floatOr(raw, "width", 0.25)
	p.Softness = floatOr(raw, "softness", 0)
	p.Density = floatOr(raw, "density", 0.5)
	p.Direction = floatOr(raw, "direction", 1)
	for i := 0; i < 4; i++ {
		p.PF[i] = floatOr(raw, purposeKey("purpose_f", i), 0)
		p.PI[i] = int(floatOr(raw, purposeKey("purpose_i", i), 0))
	}
	if seed, ok := raw["seed"]; ok {
		p.Seed = uint64(seed.AsScalar())
	}
	return p
}

func purposeKey(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}

func floatOr(raw map[string]schema.Value, name string, def float64) float64 {
	if v, ok := raw[name]; ok {
		return v.AsScalar()
	}
	return def
}

func rgbFromValue(v schema.Value) RGB {
	if v.Kind == schema.ValueTuple && len(v.Tuple) >= 3 {
		return RGB{R: v.Tuple[0], G: v.Tuple[1], B: v.Tuple[2]}
	}
	g := v.AsScalar()
	return RGB{R: g, G: g, B: g}
}
