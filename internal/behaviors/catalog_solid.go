// catalog_solid.go - solid: a single flat color across the layout

package behaviors

import "github.com/andyleaver/modulo/internal/signalbus"

type solidBehavior struct{}

func (solidBehavior) Key() string { return "solid" }

func (solidBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: false, Uses: []string{"color", "brightness"}, ArduinoID: 0, Title: "Solid"}
}

func (solidBehavior) NewState() any                                                 { return nil }
func (solidBehavior) Reset(state any, p Params)                                     {}
func (solidBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {}

func (solidBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	out := make([]RGB, numLEDs)
	c := RGB{
		R: clampF(p.Color.R*p.Brightness, 0, 255),
		G: clampF(p.Color.G*p.Brightness, 0, 255),
		B: clampF(p.Color.B*p.Brightness, 0, 255),
	}
	for i := range out {
		out[i] = c
	}
	return out
}
