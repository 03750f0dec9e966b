package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

func testProject() *schema.Project {
	return &schema.Project{
		Layout: schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 8}},
		Layers: []schema.Layer{
			{UID: "l1", Behavior: "solid", Enabled: true, Opacity: 1, BlendMode: schema.BlendOver, TargetKind: schema.TargetAll,
				Params: map[string]schema.Value{"color": schema.TupleValue(10, 20, 30), "brightness": schema.ScalarValue(1)}},
		},
	}
}

func TestAdvanceRunsFixedSubsteps(t *testing.T) {
	ev := New(testProject(), behaviors.Default(), nil)
	stats := ev.Advance(3*FixedDT+FixedDT/2, signalbus.AudioFrame{}, time.Now())
	assert.Equal(t, 3, stats.Substeps)
}

func TestAdvanceCapsSubstepsAtMax(t *testing.T) {
	ev := New(testProject(), behaviors.Default(), nil)
	stats := ev.Advance(100*FixedDT, signalbus.AudioFrame{}, time.Now())
	assert.Equal(t, MaxSubsteps, stats.Substeps)
}

func TestFramebufferReflectsSolidLayer(t *testing.T) {
	ev := New(testProject(), behaviors.Default(), nil)
	ev.Advance(FixedDT, signalbus.AudioFrame{}, time.Now())
	fb := ev.Framebuffer()
	require.Len(t, fb, 8)
	assert.InDelta(t, 10, fb[0].R, 0.5)
	assert.InDelta(t, 20, fb[0].G, 0.5)
	assert.InDelta(t, 30, fb[0].B, 0.5)
}

func TestStopHaltsAdvance(t *testing.T) {
	ev := New(testProject(), behaviors.Default(), nil)
	ev.Stop()
	assert.True(t, ev.Stopped())
	stats := ev.Advance(10*FixedDT, signalbus.AudioFrame{}, time.Now())
	assert.Equal(t, 0, stats.Substeps)
}

func TestSetProjectDropsRemovedLayerState(t *testing.T) {
	ev := New(testProject(), behaviors.Default(), nil)
	ev.Advance(FixedDT, signalbus.AudioFrame{}, time.Now())
	require.Contains(t, ev.layerStates, "l1")

	empty := testProject()
	empty.Layers = nil
	ev.SetProject(empty)
	assert.NotContains(t, ev.layerStates, "l1")
}
