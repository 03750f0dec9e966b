package behaviors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

func TestDefaultCatalogFrozenAndUnique(t *testing.T) {
	c := Default()
	require.True(t, c.Frozen())

	keys := c.Keys()
	seen := map[string]bool{}
	for _, k := range keys {
		require.False(t, seen[k], "duplicate key %q", k)
		seen[k] = true
	}
	for _, want := range []string{"solid", "rainbow", "chase", "scanner", "cylon", "fire", "sparkle", "twinkle", "plasma", "pulse", "swarm", "scripted"} {
		_, ok := c.Lookup(want)
		assert.True(t, ok, "missing behavior %q", want)
	}
}

func TestDefaultCatalogRegisterAfterFreezePanics(t *testing.T) {
	c := Default()
	assert.Panics(t, func() { c.Register(solidBehavior{}) })
}

// TestEveryBehaviorRendersNonBlank guards the quarantine policy itself: any
// shipped behavior must produce at least one non-zero channel somewhere in
// its output for reasonable params, or it belongs in the commented-out
// quarantine list instead of the registry.
func TestEveryBehaviorRendersNonBlank(t *testing.T) {
	c := Default()
	p := ParamsFromLayer(&schema.Layer{
		Params: map[string]schema.Value{
			"color":   schema.TupleValue(200, 120, 40),
			"color2":  schema.TupleValue(20, 200, 220),
			"density": schema.ScalarValue(0.6),
		},
		ScriptSource: `function pixel(i, n, t) return 1, 0, 0 end`,
	})
	p.Brightness = 1

	const numLEDs = 16
	for _, key := range c.Keys() {
		b, _ := c.Lookup(key)
		state := b.NewState()
		b.Reset(state, p)

		nonBlank := false
		for tick := 0; tick < 6; tick++ {
			tt := float64(tick) * 0.1
			b.Tick(state, p, 0.1, tt, signalbus.AudioFrame{Energy: 0.8, Beat: 1})
			frame := b.Render(state, p, tt, numLEDs)
			require.Len(t, frame, numLEDs, "behavior %q", key)
			for _, px := range frame {
				if px.R > 0 || px.G > 0 || px.B > 0 {
					nonBlank = true
				}
			}
		}
		assert.True(t, nonBlank, "behavior %q rendered an all-black frame across 6 ticks", key)
	}
}

func TestCylonIsScannerAlias(t *testing.T) {
	c := Default()
	scanner, _ := c.Lookup("scanner")
	cylon, _ := c.Lookup("cylon")

	p := ParamsFromLayer(&schema.Layer{Params: map[string]schema.Value{"color": schema.TupleValue(255, 255, 255)}})
	p.Brightness = 1

	sFrame := scanner.Render(scanner.NewState(), p, 0.37, 10)
	cFrame := cylon.Render(cylon.NewState(), p, 0.37, 10)
	assert.Equal(t, sFrame, cFrame)
}

func TestChaseScenarioS2(t *testing.T) {
	b := chaseBehavior{}
	p := Params{Color: RGB{R: 255, G: 255, B: 255}, Brightness: 1, Speed: 1, Width: 0.25, Direction: 1}

	peakIndex := func(t float64) int {
		frame := b.Render(nil, p, t, 8)
		best, bestV := 0, -1.0
		for i, px := range frame {
			if px.R > bestV {
				bestV = px.R
				best = i
			}
		}
		return best
	}
	assert.Equal(t, 2, peakIndex(0.25))
	assert.Equal(t, 4, peakIndex(0.5))
}

func TestSolidScenarioS1(t *testing.T) {
	b := solidBehavior{}
	p := Params{Color: RGB{R: 10, G: 20, B: 30}, Brightness: 1}
	frame := b.Render(nil, p, 0, 4)
	for _, px := range frame {
		assert.Equal(t, RGB{R: 10, G: 20, B: 30}, px)
	}
}

func TestFireDegenerateSinglePixel(t *testing.T) {
	b := fireBehavior{}
	p := Params{Color: RGB{R: 255, G: 80, B: 0}, Brightness: 1, Speed: 1, Density: 0.5}
	state := b.NewState()
	b.Reset(state, p)
	for i := 0; i < 5; i++ {
		b.Tick(state, p, 0.05, float64(i)*0.05, signalbus.AudioFrame{})
		frame := b.Render(state, p, float64(i)*0.05, 1)
		require.Len(t, frame, 1)
	}
}
