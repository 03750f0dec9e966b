package compositor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/rules"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

func solidProject(color [3]float64, opacity float64, blend schema.BlendMode) *schema.Project {
	return &schema.Project{
		Layout: schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 4}},
		Layers: []schema.Layer{
			{
				UID: "l1", Behavior: "solid", Enabled: true, Opacity: opacity, BlendMode: blend,
				TargetKind: schema.TargetAll,
				Params: map[string]schema.Value{
					"color":      schema.TupleValue(color[0], color[1], color[2]),
					"brightness": schema.ScalarValue(1),
				},
			},
		},
	}
}

func TestComposeSolidLayerFillsFrame(t *testing.T) {
	p := solidProject([3]float64{200, 100, 50}, 1, schema.BlendOver)
	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)

	fb, stats := Compose(p, catalog, bus, nil, map[string]*LayerState{}, 0)
	require.Len(t, fb, 4)
	for _, px := range fb {
		assert.InDelta(t, 200, px.R, 0.01)
		assert.InDelta(t, 100, px.G, 0.01)
		assert.InDelta(t, 50, px.B, 0.01)
	}
	assert.Equal(t, 4, stats.NonzeroCount)
}

func TestComposeOpacityMixesWithBase(t *testing.T) {
	p := solidProject([3]float64{255, 255, 255}, 0.5, schema.BlendOver)
	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)

	fb, _ := Compose(p, catalog, bus, nil, map[string]*LayerState{}, 0)
	for _, px := range fb {
		assert.InDelta(t, 127.5, px.R, 0.01)
	}
}

func TestComposeZoneTargetLimitsPixels(t *testing.T) {
	p := solidProject([3]float64{255, 0, 0}, 1, schema.BlendOver)
	p.Layers[0].TargetKind = schema.TargetZone
	p.Layers[0].TargetRef = "front"
	p.Zones = map[string]schema.Zone{"front": {Start: 0, End: 1}}

	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	fb, stats := Compose(p, catalog, bus, nil, map[string]*LayerState{}, 0)

	assert.Equal(t, 255.0, fb[0].R)
	assert.Equal(t, 0.0, fb[2].R)
	assert.Equal(t, 2, stats.NonzeroCount) // indices 0 and 1 inclusive
}

func TestComposeUIMaskIntersectsTarget(t *testing.T) {
	p := solidProject([3]float64{255, 0, 0}, 1, schema.BlendOver)
	p.Masks = map[string]schema.Mask{"only2": {Indices: []int{2}}}
	p.UI.TargetMask = "only2"

	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	fb, stats := Compose(p, catalog, bus, nil, map[string]*LayerState{}, 0)

	assert.Equal(t, 0.0, fb[0].R)
	assert.Equal(t, 255.0, fb[2].R)
	assert.Equal(t, 1, stats.NonzeroCount)
}

func TestComposeOpacityRuleOverride(t *testing.T) {
	p := solidProject([3]float64{255, 255, 255}, 1, schema.BlendOver)
	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	overrides := map[rules.OverrideKey]float64{
		{LayerIndex: 0, Param: schema.ParamOpacity}: 0.25,
	}
	fb, _ := Compose(p, catalog, bus, overrides, map[string]*LayerState{}, 0)
	assert.InDelta(t, 63.75, fb[0].R, 0.01)
}

func TestComposeAddBlend(t *testing.T) {
	p := &schema.Project{
		Layout: schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 2}},
		Layers: []schema.Layer{
			{UID: "bottom", Behavior: "solid", Enabled: true, Opacity: 1, BlendMode: schema.BlendOver, TargetKind: schema.TargetAll,
				Params: map[string]schema.Value{"color": schema.TupleValue(100, 100, 100), "brightness": schema.ScalarValue(1)}},
			{UID: "top", Behavior: "solid", Enabled: true, Opacity: 1, BlendMode: schema.BlendAdd, TargetKind: schema.TargetAll,
				Params: map[string]schema.Value{"color": schema.TupleValue(200, 200, 200), "brightness": schema.ScalarValue(1)}},
		},
	}
	catalog := behaviors.Default()
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	fb, _ := Compose(p, catalog, bus, nil, map[string]*LayerState{}, 0)
	assert.Equal(t, 255.0, fb[0].R) // min(255, 100+200)
}
