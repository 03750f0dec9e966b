// catalog_swarm.go - swarm: a small boids-style flock rendered onto a strip
// or cell grid, exercising the EntityPool toolkit in entities.go. Grounded
// on original_source/behaviors/state_runtime.py's spawn/step/collide loop.

package behaviors

import "github.com/andyleaver/modulo/internal/signalbus"

const swarmBoidCount = 6

type swarmState struct {
	pool    EntityPool
	spawned bool
}

type swarmBehavior struct{}

func (swarmBehavior) Key() string { return "swarm" }

func (swarmBehavior) Capabilities() Capabilities {
	return Capabilities{Supports: SupportBoth, Exportable: Exportable, Stateful: true, Uses: []string{"speed", "color", "color2", "brightness"}, ArduinoID: 9, Title: "Swarm"}
}

func (swarmBehavior) NewState() any { return &swarmState{} }

func (swarmBehavior) Reset(state any, p Params) {
	st := state.(*swarmState)
	st.pool = EntityPool{}
	st.spawned = false
}

func (swarmBehavior) Tick(state any, p Params, dt, t float64, a signalbus.AudioFrame) {
	st := state.(*swarmState)
	if !st.spawned {
		rng := NewRNG(p.Seed, "swarm-init", 0)
		for i := 0; i < swarmBoidCount; i++ {
			x := rng.Range(0, 1)
			v := rng.Range(-1, 1)
			st.pool.Spawn(x, 0, v, 0, 0.03, "boid")
		}
		st.spawned = true
	}
	bounds := Bounds{XMin: 0, XMax: 1, YMin: 0, YMax: 0}
	st.pool.Step(dt*clampF(p.Speed, 0, 10), &bounds, false, true)
	st.applyCohesion()
}

// applyCohesion nudges each boid's velocity a small amount toward the
// flock's mean position, the simplest of the three classic boid rules
// (separation and alignment are left for a future behavior).
func (st *swarmState) applyCohesion() {
	live := st.pool.Live()
	if len(live) == 0 {
		return
	}
	var sum float64
	for _, e := range live {
		sum += e.X
	}
	mean := sum / float64(len(live))
	for i := range live {
		d := mean - live[i].X
		live[i].VX += d * 0.02
		if live[i].VX > 1 {
			live[i].VX = 1
		}
		if live[i].VX < -1 {
			live[i].VX = -1
		}
	}
}

func (swarmBehavior) Render(state any, p Params, t float64, numLEDs int) []RGB {
	st := state.(*swarmState)
	out := make([]RGB, numLEDs)
	for _, e := range st.pool.Live() {
		idx := int(e.X * float64(numLEDs))
		if idx < 0 {
			idx = 0
		}
		if idx >= numLEDs {
			idx = numLEDs - 1
		}
		c := p.Color
		if e.ID%2 == 0 {
			c = p.Color2
		}
		bright := p.Brightness
		out[idx] = RGB{
			R: clampF(out[idx].R+c.R*bright, 0, 255),
			G: clampF(out[idx].G+c.G*bright, 0, 255),
			B: clampF(out[idx].B+c.B*bright, 0, 255),
		}
	}
	return out
}
