// catalog_scanner.go - scanner (Larson-style back-and-forth sweep), and its
// shipped alias "cylon" (original_source/behaviors/effects/cylon.py: a pure
// delegation to scanner under a different catalog key for UX familiarity).

package behaviors

import (
	"math"

	"github.com/andyleaver/modulo/internal/signalbus"
)

type scannerBehavior struct{ arduinoID int }

func (s scannerBehavior) Key() string { return "scanner" }

func (s scannerBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportStrip, Exportable: Exportable, Stateful: false, Uses: []string{"speed", "width", "color", "brightness"}, ArduinoID: s.arduinoID, Title: "Scanner"}
}

func (scannerBehavior) NewState() any                                                 { return nil }
func (scannerBehavior) Reset(state any, p Params)                                     {}
func (scannerBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {}

func (scannerBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	out := make([]RGB, numLEDs)
	n := float64(max1(numLEDs - 1))
	// triangle wave in [0,n] bouncing back and forth
	period := 2 * n
	if period <= 0 {
		period = 1
	}
	phase := math.Mod(p.Speed*t*period, period)
	if phase < 0 {
		phase += period
	}
	pos := phase
	if pos > n {
		pos = period - pos
	}
	width := p.Width
	if width <= 0 {
		width = 0.2
	}
	span := math.Max(width*float64(max1(numLEDs)), 0.5)
	for i := 0; i < numLEDs; i++ {
		d := math.Abs(float64(i) - pos)
		bright := clamp01(1-d/span) * p.Brightness
		out[i] = RGB{R: p.Color.R * bright, G: p.Color.G * bright, B: p.Color.B * bright}
	}
	return out
}

// cylonBehavior is a shipped alias: it delegates every call to scanner,
// keeping a separate catalog key (and Arduino dispatch id) for a familiar
// name without duplicating the render logic.
type cylonBehavior struct {
	base scannerBehavior
}

func (c cylonBehavior) Key() string { return "cylon" }

func (c cylonBehavior) Capabilities() Capabilities {
	caps := c.base.Capabilities()
	caps.ArduinoID = 3
	caps.Title = "Cylon / Larson Scanner"
	return caps
}

func (c cylonBehavior) NewState() any                                                 { return c.base.NewState() }
func (c cylonBehavior) Reset(state any, p Params)                                     { c.base.Reset(state, p) }
func (c cylonBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) { c.base.Tick(state, p, dt, t, a) }
func (c cylonBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	return c.base.Render(state, p, t, numLEDs)
}
