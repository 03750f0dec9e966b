// catalog_chase.go - chase: a moving bright peak with linear falloff

package behaviors

import (
	"math"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type chaseBehavior struct{}

func (chaseBehavior) Key() string { return "chase" }

func (chaseBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: false, Uses: []string{"speed", "width", "direction", "color", "brightness"}, ArduinoID: 2, Title: "Chase"}
}

func (chaseBehavior) NewState() any                                                 { return nil }
func (chaseBehavior) Reset(state any, p Params)                                     {}
func (chaseBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {}

// Render pins spec.md scenario S2: Strip{count=8}, speed=1, width=0.25,
// direction=1, t=0.25 -> peak at index 2; t=0.5 -> peak at index 4.
func (chaseBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	out := make([]RGB, numLEDs)
	n := float64(max1(numLEDs))
	peak := math.Mod(p.Speed*p.Direction*t*n, n)
	if peak < 0 {
		peak += n
	}
	width := p.Width
	if width <= 0 {
		width = 0.25
	}
	span := math.Max(width*n, 0.5)

	for i := 0; i < numLEDs; i++ {
		d := circularDistance(float64(i), peak, n)
		bright := clamp01(1 - d/span)
		bright *= p.Brightness
		out[i] = RGB{R: p.Color.R * bright, G: p.Color.G * bright, B: p.Color.B * bright}
	}
	return out
}

func circularDistance(a, b, span float64) float64 {
	d := math.Abs(a - b)
	if span-d < d {
		d = span - d
	}
	return d
}
