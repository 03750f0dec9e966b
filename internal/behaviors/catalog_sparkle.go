// catalog_sparkle.go - sparkle: randomly-triggered pixels that fade out,
// grounded on original_source/behaviors/effects/twinkle.py's per-pixel
// decay table (renamed "sparkle" in the catalog; "twinkle" ships as an
// alias that renders a density of exactly 0 as 0.15).

package behaviors

import "github.com/andyleaver/modulo/internal/signalbus"

type sparkleState struct {
	life []float64
	tick uint64
}

type sparkleBehavior struct{}

func (sparkleBehavior) Key() string { return "sparkle" }

func (sparkleBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: true, Uses: []string{"density", "speed", "color", "brightness"}, ArduinoID: 5, Title: "Sparkle"}
}

func (sparkleBehavior) NewState() any { return &sparkleState{} }

func (sparkleBehavior) Reset(state any, p Params) {
	st := state.(*sparkleState)
	st.life = nil
}

func (sparkleBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {
	st := state.(*sparkleState)
	st.tick++
	decay := clampF(p.Speed, 0.01, 10) * dt
	for i := range st.life {
		st.life[i] = clampF(st.life[i]-decay, 0, 1)
	}
}

func (b sparkleBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	st := state.(*sparkleState)
	if len(st.life) != numLEDs {
		st.life = make([]float64, numLEDs)
	}
	rng := NewRNG(p.Seed, "sparkle", st.tick)
	chance := clampF(p.Density, 0, 1) * 0.2
	for i := range st.life {
		if rng.Float64() < chance {
			st.life[i] = 1
		}
	}
	out := make([]RGB, numLEDs)
	for i, life := range st.life {
		bright := life * p.Brightness
		out[i] = RGB{R: p.Color.R * bright, G: p.Color.G * bright, B: p.Color.B * bright}
	}
	return out
}

// twinkleBehavior is a shipped alias of sparkle, matching original_source's
// separate "twinkle" preset. It renders a density of exactly 0 as 0.15; an
// unset density resolves to the same default as sparkle's.
type twinkleBehavior struct{ base sparkleBehavior }

func (t twinkleBehavior) Key() string { return "twinkle" }

func (t twinkleBehavior) Capabilities() Capabilities {
	caps := t.base.Capabilities()
	caps.ArduinoID = 6
	caps.Title = "Twinkle"
	return caps
}

func (t twinkleBehavior) NewState() any { return t.base.NewState() }
func (t twinkleBehavior) Reset(state any, p Params) {
	if p.Density == 0 {
		p.Density = 0.15
	}
	t.base.Reset(state, p)
}
func (t twinkleBehavior) Tick(state any, p Params, dt, tt float64, a signalbus.AudioFrame) {
	t.base.Tick(state, p, dt, tt, a)
}
func (t twinkleBehavior) Render(state any, p Params, tt float64, numLEDs int) []RGB {
	if p.Density == 0 {
		p.Density = 0.15
	}
	return t.base.Render(state, p, tt, numLEDs)
}
