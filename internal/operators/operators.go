// operators.go - the per-layer, per-pixel post-filter chain applied pre-blend
//
// Package operators implements the fixed Operator variants (gain, gamma,
// posterize) over RGB floats in [0,255], applied in chain order after a
// behavior renders a layer and before the compositor blends it. The chain
// is bounded to two slots per layer for export: internal/emitter lowers the
// first two slots and drops the rest. Neither this package nor
// internal/validate checks the chain length.
package operators

import (
	"math"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
)

// Apply runs op over a single pixel and returns the filtered result.
func Apply(op schema.Operator, c behaviors.RGB) behaviors.RGB {
	switch op.Kind {
	case schema.OpGain:
		return behaviors.RGB{R: gain(c.R, op.K), G: gain(c.G, op.K), B: gain(c.B, op.K)}
	case schema.OpGamma:
		return behaviors.RGB{R: gamma(c.R, op.Gamma), G: gamma(c.G, op.Gamma), B: gamma(c.B, op.Gamma)}
	case schema.OpPosterize:
		return behaviors.RGB{R: posterize(c.R, op.Levels), G: posterize(c.G, op.Levels), B: posterize(c.B, op.Levels)}
	default:
		return c
	}
}

// Chain applies a sequence of operators in order. A slot 0 operator that
// mirrors the layer's behavior key is a legacy no-op sentinel and is the
// caller's responsibility to skip (the emitter does; the preview renders it
// harmlessly since Apply falls through unknown/sentinel kinds to identity).
func Chain(ops []schema.Operator, c behaviors.RGB) behaviors.RGB {
	for _, op := range ops {
		c = Apply(op, c)
	}
	return c
}

func gain(c, k float64) float64 {
	return clamp(c*k, 0, 255)
}

func gamma(c, g float64) float64 {
	if g < 0.001 {
		g = 0.001
	}
	return clamp(math.Pow(c/255, 1/g)*255, 0, 255)
}

func posterize(c float64, levels int) float64 {
	if levels < 2 {
		levels = 2
	}
	if levels > 64 {
		levels = 64
	}
	step := 255.0 / float64(levels-1)
	return clamp(math.Round(c/step)*step, 0, 255)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// IsLegacySentinel reports whether op is a slot-0 no-op mirroring a
// behavior key rather than an authored filter (spec.md §4.4 "legacy sync").
func IsLegacySentinel(op schema.Operator, behaviorKey string) bool {
	return op.Kind == schema.OperatorKind(behaviorKey)
}
