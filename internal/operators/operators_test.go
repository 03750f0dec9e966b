package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
)

func TestGainClamps(t *testing.T) {
	c := Apply(schema.Operator{Kind: schema.OpGain, K: 2}, behaviors.RGB{R: 200, G: 10, B: 0})
	assert.Equal(t, behaviors.RGB{R: 255, G: 20, B: 0}, c)
}

func TestGammaIdentityAtOne(t *testing.T) {
	c := Apply(schema.Operator{Kind: schema.OpGamma, Gamma: 1}, behaviors.RGB{R: 128, G: 64, B: 255})
	assert.InDelta(t, 128, c.R, 0.01)
	assert.InDelta(t, 64, c.G, 0.01)
	assert.InDelta(t, 255, c.B, 0.01)
}

func TestPosterizeBounds(t *testing.T) {
	c := Apply(schema.Operator{Kind: schema.OpPosterize, Levels: 2}, behaviors.RGB{R: 130, G: 100, B: 0})
	// levels=2 -> step=255, only 0 or 255 possible
	assert.Contains(t, []float64{0, 255}, c.R)
	assert.Contains(t, []float64{0, 255}, c.G)
	assert.Equal(t, 0.0, c.B)
}

func TestChainOrderMatters(t *testing.T) {
	ops := []schema.Operator{
		{Kind: schema.OpGain, K: 2},
		{Kind: schema.OpGamma, Gamma: 2},
	}
	out := Chain(ops, behaviors.RGB{R: 100, G: 100, B: 100})
	assert.Greater(t, out.R, 0.0)
}

func TestIsLegacySentinel(t *testing.T) {
	op := schema.Operator{Kind: "rainbow"}
	assert.True(t, IsLegacySentinel(op, "rainbow"))
	assert.False(t, IsLegacySentinel(op, "chase"))
}
