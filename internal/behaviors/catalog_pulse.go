// catalog_pulse.go - pulse: audio-reactive brightness breathing, driven by
// the signal bus's decoded audio frame rather than the raw behaviors
// package internals (the AudioFrame is handed in at Tick time, per the
// fixed Behavior lifecycle).

package behaviors

import "github.com/andyleaver/modulo/internal/signalbus"

type pulseState struct {
	level float64 // smoothed envelope, [0,1]
}

type pulseBehavior struct{}

func (pulseBehavior) Key() string { return "pulse" }

func (pulseBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: true, Uses: []string{"color", "brightness", "speed"}, ArduinoID: 8, Title: "Pulse"}
}

func (pulseBehavior) NewState() any { return &pulseState{} }

func (pulseBehavior) Reset(state any, p Params) {
	state.(*pulseState).level = 0
}

// Tick smooths the audio frame's overall energy (or beat strength, if
// louder) toward the decoded signal with an attack/decay rate set by speed,
// so loud transients pop but silence fades gracefully.
func (pulseBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {
	st := state.(*pulseState)
	target := clamp01(a.Energy)
	if a.Beat > target {
		target = clamp01(a.Beat)
	}
	rate := clampF(p.Speed, 0.1, 20) * dt
	if target > st.level {
		rate *= 4 // attack faster than decay
	}
	st.level += (target - st.level) * clamp01(rate)
}

func (pulseBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	st := state.(*pulseState)
	bright := clamp01(st.level) * p.Brightness
	out := make([]RGB, numLEDs)
	c := RGB{R: p.Color.R * bright, G: p.Color.G * bright, B: p.Color.B * bright}
	for i := range out {
		out[i] = c
	}
	return out
}
