// catalog_rainbow.go - rainbow: a traveling hue gradient, stateless

package behaviors

import (
	"math"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type rainbowBehavior struct{}

func (rainbowBehavior) Key() string { return "rainbow" }

func (rainbowBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: false, Uses: []string{"speed", "density", "brightness"}, ArduinoID: 1, Title: "Rainbow"}
}

func (rainbowBehavior) NewState() any                                                 { return nil }
func (rainbowBehavior) Reset(state any, p Params)                                     {}
func (rainbowBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {}

func (rainbowBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	out := make([]RGB, numLEDs)
	density := math.Max(p.Density, 0.01)
	phase := t * p.Speed
	for i := range out {
		hue := math.Mod(float64(i)*density/float64(max1(numLEDs))+phase, 1)
		if hue < 0 {
			hue += 1
		}
		r, g, b := hsvToRGB(hue, 1, p.Brightness)
		out[i] = RGB{R: r, G: g, B: b}
	}
	return out
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// hsvToRGB converts hue/sat/val in [0,1] to RGB floats in [0,255]. This is
// shared across several hue-cycling behaviors in the catalog.
func hsvToRGB(h, s, v float64) (r, g, b float64) {
	if s <= 0 {
		return v * 255, v * 255, v * 255
	}
	h = math.Mod(h, 1) * 6
	i := int(h)
	f := h - float64(i)
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))
	var rr, gg, bb float64
	switch i % 6 {
	case 0:
		rr, gg, bb = v, t, p
	case 1:
		rr, gg, bb = q, v, p
	case 2:
		rr, gg, bb = p, v, t
	case 3:
		rr, gg, bb = p, q, v
	case 4:
		rr, gg, bb = t, p, v
	default:
		rr, gg, bb = v, p, q
	}
	return rr * 255, gg * 255, bb * 255
}
