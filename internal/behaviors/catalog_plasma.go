// catalog_plasma.go - plasma: a classic sine-interference field, intended
// primarily for Cells layouts but degrades to a 1-row field on Strip.
// Grounded on original_source/behaviors/effects/plasma.py.

package behaviors

import (
	"math"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type plasmaBehavior struct{}

func (plasmaBehavior) Key() string { return "plasma" }

func (plasmaBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: false, Uses: []string{"speed", "density", "brightness", "purpose_i0"}, ArduinoID: 7, Title: "Plasma"}
}

func (plasmaBehavior) NewState() any                                                 { return nil }
func (plasmaBehavior) Reset(state any, p Params)                                     {}
func (plasmaBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {}

// Render treats purpose_i0 as the grid width when set; a zero or negative
// width falls back to a single row of numLEDs. The compositor does not fill
// purpose_i0 from a Cells layout, so the width comes only from the layer.
func (plasmaBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	out := make([]RGB, numLEDs)
	w := p.PI[0]
	if w <= 0 {
		w = numLEDs
	}
	density := math.Max(p.Density, 0.05) * 0.3
	speed := p.Speed

	for i := 0; i < numLEDs; i++ {
		x, y := GridXY(i, w)
		v := math.Sin(float64(x)*density+t*speed) +
			math.Sin(float64(y)*density-t*speed*0.8) +
			math.Sin((float64(x)+float64(y))*density*0.5+t*speed*1.3)
		v = (v + 3) / 6 // normalize [-3,3] -> [0,1]
		hue := math.Mod(v+t*0.02, 1)
		r, g, b := hsvToRGB(hue, 1, p.Brightness)
		out[i] = RGB{R: r, G: g, B: b}
	}
	return out
}
