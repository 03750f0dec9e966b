// entities.go - small particle/entity simulation toolkit shared by swarm-
// and collision-style behaviors.
//
// Grounded on original_source/behaviors/state_runtime.py: spawn/kill/step/
// collide helpers factored out so boids/predator-prey/projectile-style
// behaviors don't each reimplement Euler integration and circle collision.
// The live counts are not published on the signal bus: no provider sets
// any `particles.*` key.

package behaviors

// Entity is one simulated particle in layer-local coordinate space.
type Entity struct {
	ID    int
	X, Y  float64
	VX, VY float64
	R     float64
	Alive bool
	Tag   string
}

// EntityPool owns a small, growable set of Entities for one layer's state.
type EntityPool struct {
	entities []Entity
	nextID   int
}

func (p *EntityPool) Spawn(x, y, vx, vy, r float64, tag string) int {
	p.nextID++
	p.entities = append(p.entities, Entity{ID: p.nextID, X: x, Y: y, VX: vx, VY: vy, R: r, Alive: true, Tag: tag})
	return p.nextID
}

func (p *EntityPool) Kill(id int) {
	for i := range p.entities {
		if p.entities[i].ID == id {
			p.entities[i].Alive = false
			return
		}
	}
}

func (p *EntityPool) PurgeDead() {
	out := p.entities[:0]
	for _, e := range p.entities {
		if e.Alive {
			out = append(out, e)
		}
	}
	p.entities = out
}

func (p *EntityPool) Live() []Entity {
	return p.entities
}

// AliveCount returns how many entities in the pool are alive.
func (p *EntityPool) AliveCount() int {
	n := 0
	for _, e := range p.entities {
		if e.Alive {
			n++
		}
	}
	return n
}

// Bounds is an (xmin,xmax,ymin,ymax) integration boundary.
type Bounds struct{ XMin, XMax, YMin, YMax float64 }

// Step advances every alive entity by dt, optionally bouncing or wrapping
// at bounds (exactly one of bounce/wrap should be set).
func (p *EntityPool) Step(dt float64, bounds *Bounds, bounce, wrap bool) {
	for i := range p.entities {
		e := &p.entities[i]
		if !e.Alive {
			continue
		}
		e.X += e.VX * dt
		e.Y += e.VY * dt
		if bounds == nil {
			continue
		}
		if wrap {
			e.X = wrapf(e.X, bounds.XMin, bounds.XMax)
			e.Y = wrapf(e.Y, bounds.YMin, bounds.YMax)
		} else if bounce {
			if e.X < bounds.XMin {
				e.X = bounds.XMin
				e.VX = absf(e.VX)
			}
			if e.X > bounds.XMax {
				e.X = bounds.XMax
				e.VX = -absf(e.VX)
			}
			if e.Y < bounds.YMin {
				e.Y = bounds.YMin
				e.VY = absf(e.VY)
			}
			if e.Y > bounds.YMax {
				e.Y = bounds.YMax
				e.VY = -absf(e.VY)
			}
		}
	}
}

func Collide(a, b Entity) bool {
	dx, dy := a.X-b.X, a.Y-b.Y
	rr := a.R + b.R
	return dx*dx+dy*dy <= rr*rr
}

func wrapf(x, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	for x < lo {
		x += span
	}
	for x >= hi {
		x -= span
	}
	return x
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// GridXY and StripIndex convert between a row-major (w,h) grid and a flat
// strip index, for behaviors that simulate on a 2D grid but render onto a
// physical strip (original_source/behaviors/state_runtime.py grid_xy_from_strip).
func GridXY(i, w int) (x, y int) {
	if w <= 0 {
		return 0, 0
	}
	return i % w, i / w
}

func StripIndex(x, y, w, h int) int {
	if x < 0 || y < 0 || x >= w || y >= h {
		return -1
	}
	return y*w + x
}
