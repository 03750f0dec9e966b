// postfx.go - spatial bleed and temporal trail applied after compositing.
//
// Package postfx implements spec.md §4.8: a neighbor-bleed spatial filter
// and a previous-frame trail, both auto-disabled above a platform-specific
// LED-count safety threshold and both overridable per tick by Rules V6
// runtime overrides.
package postfx

import (
	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/rules"
	"github.com/andyleaver/modulo/internal/schema"
)

// Platform-specific safety thresholds above which post-fx auto-disables
// (spec.md §4.8). Preview has no cap; the emitter picks one of these two by
// target architecture.
const (
	MaxLEDsAVR   = 120
	MaxLEDsOther = 300
)

// Config is the project-level default bleed/trail settings, before any
// rule override for this tick is applied.
type Config struct {
	BleedAmount float64
	BleedRadius int // 1 or 2
	TrailAmount float64
}

func FromProjectConfig(c schema.PostFXConfig) Config {
	return Config{BleedAmount: c.BleedAmount, BleedRadius: c.BleedRadius, TrailAmount: c.TrailAmount}
}

// Resolve folds this tick's runtime overrides (postfx_trail, postfx_bleed,
// postfx_bleed_radius) onto the project defaults. Overrides are keyed under
// rules.PostFXOverrideLayerIndex since post-fx is project-scoped, not
// per-layer, in the runtime-override map (the only scope mismatch in the
// bounded override set, so it gets a dedicated sentinel index rather than
// a new map shape).
func Resolve(base Config, overrides map[rules.OverrideKey]float64) Config {
	out := base
	if v, ok := overrides[rules.OverrideKey{LayerIndex: rules.PostFXOverrideLayerIndex, Param: schema.ParamPostFXTrail}]; ok {
		out.TrailAmount = clamp01(v)
	}
	if v, ok := overrides[rules.OverrideKey{LayerIndex: rules.PostFXOverrideLayerIndex, Param: schema.ParamPostFXBleed}]; ok {
		out.BleedAmount = clamp01(v)
	}
	if v, ok := overrides[rules.OverrideKey{LayerIndex: rules.PostFXOverrideLayerIndex, Param: schema.ParamPostFXBleedRadius}]; ok {
		r := int(v)
		if r < 1 {
			r = 1
		}
		if r > 2 {
			r = 2
		}
		out.BleedRadius = r
	}
	return out
}

// Enabled reports whether post-fx should run at all for this LED count and
// safety threshold. Preview callers pass math.MaxInt as maxLEDs (no cap).
func Enabled(numLEDs, maxLEDs int) bool {
	return numLEDs <= maxLEDs
}

// BleedStrip applies a (2r+1)-tap neighbor-average bleed along a 1D strip.
func BleedStrip(frame []behaviors.RGB, cfg Config) []behaviors.RGB {
	if cfg.BleedAmount <= 0 || len(frame) == 0 {
		return frame
	}
	r := cfg.BleedRadius
	if r < 1 {
		r = 1
	}
	if r > 2 {
		r = 2
	}
	out := make([]behaviors.RGB, len(frame))
	for i := range frame {
		var sumR, sumG, sumB float64
		count := 0
		for d := -r; d <= r; d++ {
			j := i + d
			if j < 0 || j >= len(frame) {
				continue
			}
			sumR += frame[j].R
			sumG += frame[j].G
			sumB += frame[j].B
			count++
		}
		avg := behaviors.RGB{R: sumR / float64(count), G: sumG / float64(count), B: sumB / float64(count)}
		a := cfg.BleedAmount
		out[i] = behaviors.RGB{
			R: frame[i].R*(1-a) + avg.R*a,
			G: frame[i].G*(1-a) + avg.G*a,
			B: frame[i].B*(1-a) + avg.B*a,
		}
	}
	return out
}

// BleedCells applies the same neighbor-average bleed over a (2r+1)^2
// neighborhood on a Cells layout, resolving neighbors through the layout's
// logical<->physical mapping so bleed respects serpentine wiring.
func BleedCells(frame []behaviors.RGB, cells schema.CellsLayout, cfg Config) []behaviors.RGB {
	if cfg.BleedAmount <= 0 || len(frame) == 0 {
		return frame
	}
	r := cfg.BleedRadius
	if r < 1 {
		r = 1
	}
	if r > 2 {
		r = 2
	}
	w, h := cells.Width, cells.Height
	out := make([]behaviors.RGB, len(frame))
	for logical := range frame {
		x, y := logical%w, logical/w
		var sumR, sumG, sumB float64
		count := 0
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				nLogical := ny*w + nx
				phys := cells.MapIndex(nLogical)
				if phys < 0 || phys >= len(frame) {
					continue
				}
				sumR += frame[phys].R
				sumG += frame[phys].G
				sumB += frame[phys].B
				count++
			}
		}
		if count == 0 {
			out[logical] = frame[logical]
			continue
		}
		avg := behaviors.RGB{R: sumR / float64(count), G: sumG / float64(count), B: sumB / float64(count)}
		a := cfg.BleedAmount
		physSelf := cells.MapIndex(logical)
		if physSelf < 0 || physSelf >= len(frame) {
			continue
		}
		out[physSelf] = behaviors.RGB{
			R: frame[physSelf].R*(1-a) + avg.R*a,
			G: frame[physSelf].G*(1-a) + avg.G*a,
			B: frame[physSelf].B*(1-a) + avg.B*a,
		}
	}
	return out
}

// Trail blends the previous frame into the current one and returns the
// result as a new slice, leaving current unmodified (or returns current
// itself when there is nothing to blend). The caller should retain the
// result as `prev` for the next tick.
func Trail(prev, current []behaviors.RGB, trail float64) []behaviors.RGB {
	if trail <= 0 || len(prev) != len(current) {
		return current
	}
	out := make([]behaviors.RGB, len(current))
	for i := range current {
		out[i] = behaviors.RGB{
			R: prev[i].R*trail + current[i].R*(1-trail),
			G: prev[i].G*trail + current[i].G*(1-trail),
			B: prev[i].B*trail + current[i].B*(1-trail),
		}
	}
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
