// catalog_fire.go - fire: a per-pixel heat simulation (cool/spark/diffuse),
// grounded on original_source/behaviors/effects/fire.py's heat-map approach.

package behaviors

import (
	"math"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type fireState struct {
	heat    []float64
	seeded  bool
	rngTick uint64
}

type fireBehavior struct{}

func (fireBehavior) Key() string { return "fire" }

func (fireBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: true, Uses: []string{"speed", "density", "brightness", "color"}, ArduinoID: 4, Title: "Fire"}
}

func (fireBehavior) NewState() any { return &fireState{} }

func (fireBehavior) Reset(state any, p Params) {
	st := state.(*fireState)
	st.heat = nil
	st.seeded = false
}

func (fireBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {
	st := state.(*fireState)
	st.rngTick++
}

// Render cools every pixel, diffuses heat upward, and sparks new heat at the
// base; the palette walks black -> color -> white as heat rises.
func (fireBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	st := state.(*fireState)
	if len(st.heat) != numLEDs {
		st.heat = make([]float64, numLEDs)
	}
	rng := NewRNG(p.Seed, "fire", st.rngTick)

	cooling := 55.0 * math.Max(p.Speed, 0.01)
	sparking := clampF(p.Density, 0, 1)*160 + 40

	for i := range st.heat {
		cool := rng.Range(0, (cooling*10)/float64(max1(numLEDs))+2)
		st.heat[i] = math.Max(0, st.heat[i]-cool)
	}
	for i := len(st.heat) - 1; i >= 2; i-- {
		st.heat[i] = (st.heat[i-1] + st.heat[i-2] + st.heat[i-2]) / 3
	}
	if rng.Range(0, 255) < sparking {
		sparkZone := numLEDs
		if sparkZone > 3 {
			sparkZone = 3
		}
		base := rng.IntN(max1(sparkZone))
		if base < len(st.heat) {
			st.heat[base] = clampF(st.heat[base]+rng.Range(160, 255), 0, 255)
		}
	}

	out := make([]RGB, numLEDs)
	for i, h := range st.heat {
		out[i] = heatToColor(h, p.Color, p.Brightness)
	}
	return out
}

func heatToColor(heat float64, base RGB, brightness float64) RGB {
	heat = clampF(heat, 0, 255)
	frac := heat / 255
	var r, g, b float64
	switch {
	case frac < 0.5:
		k := frac / 0.5
		r, g, b = base.R*k, base.G*k*0.4, base.B*k*0.1
	case frac < 0.85:
		k := (frac - 0.5) / 0.35
		r = base.R + (255-base.R)*k
		g = base.G + (base.G*0.6+60)*k
		b = base.B * (1 - k) * 0.2
	default:
		k := (frac - 0.85) / 0.15
		r = 255
		g = 200 + 55*k
		b = 180 * k
	}
	return RGB{R: clampF(r*brightness, 0, 255), G: clampF(g*brightness, 0, 255), B: clampF(b*brightness, 0, 255)}
}
