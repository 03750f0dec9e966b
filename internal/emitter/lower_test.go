package emitter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
)

func minimalProject(numLEDs int) *schema.Project {
	return &schema.Project{
		SchemaVersion: 6,
		Name:          "fixture",
		Layout:        schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: numLEDs}},
		Zones:         map[string]schema.Zone{},
		Groups:        map[string]schema.Group{},
		Masks:         map[string]schema.Mask{},
	}
}

func solidLayer(name string, kind schema.TargetKind, ref string) schema.Layer {
	return schema.Layer{
		UID:        name,
		Name:       name,
		Behavior:   "solid",
		Enabled:    true,
		Opacity:    1,
		BlendMode:  schema.BlendOver,
		TargetKind: kind,
		TargetRef:  ref,
		Params: map[string]schema.Value{
			"color": schema.TupleValue(255, 0, 0),
		},
	}
}

func TestResolveTarget_NoUIMaskZone(t *testing.T) {
	p := minimalProject(10)
	p.Zones["front"] = schema.Zone{Start: 0, End: 4}
	l := solidLayer("a", schema.TargetZone, "front")

	lp := loweredProject{}
	lp.Zones = lowerZones(p.Zones)
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetZone, code)
	require.Equal(t, 0, idx)
}

func TestResolveTarget_NoUIMaskGroup(t *testing.T) {
	p := minimalProject(10)
	p.Groups["odds"] = schema.Group{Indices: []int{1, 3, 5}}
	l := solidLayer("a", schema.TargetGroup, "odds")

	lp := loweredProject{}
	lp.Groups = lowerGroups(p.Groups)
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetGroup, code)
	require.Equal(t, 0, idx)
}

func TestResolveTarget_UnknownZoneFallsBackToAll(t *testing.T) {
	p := minimalProject(10)
	l := solidLayer("a", schema.TargetZone, "nope")

	lp := loweredProject{}
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetAll, code)
	require.Equal(t, -1, idx)
}

func TestResolveTarget_MaskSynthesizesGroup(t *testing.T) {
	p := minimalProject(10)
	p.Masks["m1"] = schema.Mask{Indices: []int{2, 4, 6}}
	l := solidLayer("a", schema.TargetMask, "m1")

	lp := loweredProject{}
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetGroup, code)
	require.Len(t, lp.Groups, 1)
	require.Equal(t, []int{2, 4, 6}, lp.Groups[idx].Indices)

	// Same mask resolved again for a second layer reuses the cached group.
	l2 := solidLayer("b", schema.TargetMask, "m1")
	code2, idx2 := resolveTarget(p, l2, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetGroup, code2)
	require.Equal(t, idx, idx2)
	require.Len(t, lp.Groups, 1)
}

func TestResolveTarget_UITargetMaskIntersectsZone(t *testing.T) {
	p := minimalProject(10)
	p.Zones["front"] = schema.Zone{Start: 0, End: 5}
	p.Masks["active"] = schema.Mask{Indices: []int{0, 2, 4, 8}}
	p.UI.TargetMask = "active"
	l := solidLayer("a", schema.TargetZone, "front")

	lp := loweredProject{}
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetGroup, code)
	require.Len(t, lp.Groups, 1)
	// front is [0,5] inclusive -> {0,1,2,3,4,5}; intersected with
	// {0,2,4,8} -> {0,2,4}.
	require.Equal(t, []int{0, 2, 4}, lp.Groups[idx].Indices)
}

func TestResolveTarget_UITargetMaskIntersectsSameTargetTwiceReusesCache(t *testing.T) {
	p := minimalProject(10)
	p.Groups["odds"] = schema.Group{Indices: []int{1, 3, 5, 7}}
	p.Masks["active"] = schema.Mask{Indices: []int{1, 5}}
	p.UI.TargetMask = "active"
	l := solidLayer("a", schema.TargetGroup, "odds")
	l2 := solidLayer("b", schema.TargetGroup, "odds")

	lp := loweredProject{}
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	_, idx1 := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	_, idx2 := resolveTarget(p, l2, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, idx1, idx2)
	require.Len(t, lp.Groups, 1)
}

func TestResolveTarget_UnknownUITargetMaskFallsBackToNoMaskBranch(t *testing.T) {
	p := minimalProject(10)
	p.Zones["front"] = schema.Zone{Start: 0, End: 2}
	p.UI.TargetMask = "does_not_exist"
	l := solidLayer("a", schema.TargetZone, "front")

	lp := loweredProject{}
	lp.Zones = lowerZones(p.Zones)
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	code, idx := resolveTarget(p, l, 10, zoneIdx, groupIdx, &lp, synth)
	require.Equal(t, targetZone, code)
	require.Equal(t, 0, idx)
	// the fallback must not have mutated p itself
	require.Equal(t, "does_not_exist", p.UI.TargetMask)
}

func TestSynthesizeGroup_CacheReuse(t *testing.T) {
	lp := loweredProject{}
	cache := map[string]int{}

	code1, idx1 := synthesizeGroup(&lp, cache, "k", []int{1, 2})
	code2, idx2 := synthesizeGroup(&lp, cache, "k", []int{9, 9, 9})
	require.Equal(t, targetGroup, code1)
	require.Equal(t, targetGroup, code2)
	require.Equal(t, idx1, idx2)
	require.Len(t, lp.Groups, 1)
	// second call's indices are ignored in favor of the cached entry
	require.Equal(t, []int{1, 2}, lp.Groups[idx1].Indices)

	_, idx3 := synthesizeGroup(&lp, cache, "other", []int{5})
	require.NotEqual(t, idx1, idx3)
	require.Len(t, lp.Groups, 2)
}

func TestBaseTargetIndices(t *testing.T) {
	p := minimalProject(10)
	p.Zones["front"] = schema.Zone{Start: 2, End: 4}
	p.Groups["odds"] = schema.Group{Indices: []int{1, 3, 5}}
	p.Masks["m1"] = schema.Mask{Indices: []int{9}}

	require.Equal(t, []int{2, 3, 4}, baseTargetIndices(p, solidLayer("a", schema.TargetZone, "front"), 10))
	require.Equal(t, []int{1, 3, 5}, baseTargetIndices(p, solidLayer("a", schema.TargetGroup, "odds"), 10))
	require.Equal(t, []int{9}, baseTargetIndices(p, solidLayer("a", schema.TargetMask, "m1"), 10))
	require.Nil(t, baseTargetIndices(p, solidLayer("a", schema.TargetZone, "missing"), 10))
	require.Equal(t, 10, len(baseTargetIndices(p, solidLayer("a", schema.TargetAll, ""), 10)))
}

func TestLower_StableRuleOrderAndSignalTable(t *testing.T) {
	p := minimalProject(4)
	p.Layers = []schema.Layer{solidLayer("a", schema.TargetAll, "")}
	p.RulesV6 = []schema.Rule{
		{ID: "2", Name: "beta", Enabled: true, Trigger: schema.TriggerTick,
			Action: schema.Action{Kind: schema.ActionSetVar, VarKind: schema.VarNumber, Var: "x",
				Expr: schema.Expr{Src: schema.ExprSignal, Signal: "audio.energy", Scale: 1}}},
		{ID: "1", Name: "alpha", Enabled: true, Trigger: schema.TriggerTick,
			Action: schema.Action{Kind: schema.ActionSetVar, VarKind: schema.VarNumber, Var: "y",
				Expr: schema.Expr{Src: schema.ExprSignal, Signal: "audio.mono", Scale: 1}}},
		{ID: "3", Name: "alpha", Enabled: false, Trigger: schema.TriggerTick},
	}

	catalog := behaviors.Default()
	lp := lower(p, catalog)

	require.Len(t, lp.Rules, 2)
	// disabled "alpha"/3 is dropped; remaining are ordered (name,id):
	// alpha/1 before beta/2.
	require.Equal(t, "1", lp.Rules[0].ID)
	require.Equal(t, "2", lp.Rules[1].ID)

	// signals are assigned in the order first referenced while walking
	// rules in their final (name,id) order: alpha/1 references
	// audio.mono first, then beta/2 references audio.energy.
	require.Equal(t, []string{"audio.mono", "audio.energy"}, lp.Signals)
}

func TestLower_MatrixLayoutFields(t *testing.T) {
	p := &schema.Project{
		SchemaVersion: 6,
		Name:          "grid",
		Layout: schema.Layout{Kind: schema.LayoutCells, Cells: schema.CellsLayout{
			Width: 4, Height: 3, Serpentine: true, Origin: schema.OriginBR, Rotate: 90, FlipX: true,
		}},
	}
	lp := lower(p, behaviors.Default())
	require.True(t, lp.IsMatrix)
	require.Equal(t, 4, lp.Width)
	require.Equal(t, 3, lp.Height)
	require.True(t, lp.Serpentine)
	require.Equal(t, "BR", lp.Origin)
	require.Equal(t, 90, lp.Rotate)
	require.True(t, lp.FlipX)
	require.False(t, lp.FlipY)
	require.Equal(t, 12, lp.NumLEDs)
}

func TestLowerLayer_ParamsOperatorsAndModulotors(t *testing.T) {
	sig := newSignalTable()
	catalog := behaviors.Default()
	l := schema.Layer{
		UID: "x", Name: "x", Behavior: "solid", Opacity: 0.5,
		Params: map[string]schema.Value{
			"brightness": schema.ScalarValue(0.75),
			"color":      schema.TupleValue(10, 20, 30),
		},
		Operators: []schema.Operator{
			{Kind: schema.OpGain, K: 2},
			{Kind: schema.OpGamma, Gamma: 2.2},
		},
		Modulotors: []schema.Modulotor{
			{Source: "audio.energy", Target: schema.ParamBrightness, Mode: schema.ModeAdd, Amount: 1, Enabled: true},
			{Source: "time.lfo", Target: schema.ParamSpeed, Mode: schema.ModeMul, Enabled: false},
		},
	}

	ll := lowerLayer(l, catalog, sig)
	require.Equal(t, 0, ll.ArduinoID) // solid is registered first -> ArduinoID 0
	require.InDelta(t, 0.75, ll.Params[slotBrightness], 1e-9)
	require.Equal(t, 10.0, ll.ColorR)
	require.Equal(t, 0, ll.OpKind[0])
	require.Equal(t, 2.0, ll.OpArg[0])
	require.Equal(t, 1, ll.OpKind[1])
	require.InDelta(t, 2.2, ll.OpArg[1], 1e-9)

	// the disabled modulotor leaves slot 1 untouched (-1); the enabled one
	// occupies slot 0 and registers its source in the signal table.
	require.Equal(t, sig.id("audio.energy"), ll.ModSrc[0])
	require.Equal(t, slotBrightness, ll.ModSlot[0])
	require.Equal(t, -1, ll.ModSrc[1])
}

func TestLowerRule_SetLayerParamResolvesOperatorSlot(t *testing.T) {
	sig := newSignalTable()
	layers := []schema.Layer{
		{Operators: []schema.Operator{{Kind: schema.OpGamma, Gamma: 1.8}}},
	}
	r := schema.Rule{
		ID: "r1", Trigger: schema.TriggerRising,
		When: schema.When{Signal: "audio.energy", Op: schema.OpGT, Value: 0.5},
		Action: schema.Action{
			Kind: schema.ActionSetLayerParam, LayerIndex: 0,
			Param: schema.ParamOpGamma, Conflict: schema.ConflictMax,
		},
	}
	lr := lowerRule(r, sig, layers)
	require.Equal(t, 0, lr.OpSlot)
	require.Equal(t, layerParamCode(schema.ParamOpGamma), lr.ParamCode)
	require.Equal(t, schema.ConflictMax, lr.Conflict)
}

func TestLowerRule_SetLayerParamOperatorMissingYieldsNoSlot(t *testing.T) {
	sig := newSignalTable()
	layers := []schema.Layer{{}}
	r := schema.Rule{
		ID: "r2",
		Action: schema.Action{
			Kind: schema.ActionSetLayerParam, LayerIndex: 0, Param: schema.ParamOpGain,
		},
	}
	lr := lowerRule(r, sig, layers)
	require.Equal(t, -1, lr.OpSlot)
}
