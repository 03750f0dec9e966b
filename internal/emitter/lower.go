// lower.go - flattens a validated project into the fixed-size C arrays the
// firmware template expects (spec.md §4.10 step 2).
//
// Every per-layer quantity becomes LAYERS-wide (never a variable-length C
// array; the firmware has no allocator), and every per-layer-modulotor
// quantity becomes LAYERS*maxModSlots-wide with unused slots zeroed and
// their M_SRC left at -1. This mirrors Params' own flat field list
// in internal/behaviors/params.go, which was built specifically so preview
// and codegen read the identical shape.
package emitter

import (
	"fmt"
	"sort"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
)

const maxModSlotsPerLayer = 8
const maxOperatorsPerLayer = 2

// blendCode/targetCode/modeCode/curveCode are the generated switch's integer
// discriminants; order doesn't matter as long as lower.go and the template's
// dispatch functions agree. The template's switches hard-code the same
// integers; they are not generated from this file's constant lists.
const (
	blendOver = iota
	blendAdd
	blendMax
	blendMultiply
	blendScreen
)

func blendCode(b schema.BlendMode) int {
	switch b {
	case schema.BlendAdd:
		return blendAdd
	case schema.BlendMax:
		return blendMax
	case schema.BlendMultiply:
		return blendMultiply
	case schema.BlendScreen:
		return blendScreen
	default:
		return blendOver
	}
}

// target codes. Mask-kind targets, and any target intersected with
// ui.target_mask, are resolved to a synthesized group at lowering time
// (spec.md §4.7 step 1: "the emitter synthesizes a group for the
// intersection and retargets"), so the generated C only ever needs to
// distinguish all/group/zone.
const (
	targetAll = iota
	targetGroup
	targetZone
)

const (
	modeMul = iota
	modeAdd
	modeSet
)

func modeCode(m schema.ModulotorMode) int {
	switch m {
	case schema.ModeAdd:
		return modeAdd
	case schema.ModeSet:
		return modeSet
	default:
		return modeMul
	}
}

const (
	curveLinear = iota
	curveInvert
	curveAbs
	curvePow2
	curvePow3
)

func curveCode(c schema.Curve) int {
	switch c {
	case schema.CurveInvert:
		return curveInvert
	case schema.CurveAbs:
		return curveAbs
	case schema.CurvePow2:
		return curvePow2
	case schema.CurvePow3:
		return curvePow3
	default:
		return curveLinear
	}
}

// paramSlot maps a modulotor target/rule layer-param to the flat per-layer
// float field index in the generated L_BR/SP/WD/SO/DN/DIR arrays.
const (
	slotBrightness = iota
	slotSpeed
	slotWidth
	slotSoftness
	slotDensity
	slotDirection
	numParamSlots
)

// isNumberVarSource mirrors internal/modulotor.isNumberVar so lowering and
// preview agree on which modulotor sources skip the audio-style re-centering.
func isNumberVarSource(source string) bool {
	const prefix = "vars.number."
	return len(source) > len(prefix) && source[:len(prefix)] == prefix
}

func paramSlot(p schema.ParamName) (int, bool) {
	switch p {
	case schema.ParamBrightness:
		return slotBrightness, true
	case schema.ParamSpeed:
		return slotSpeed, true
	case schema.ParamWidth:
		return slotWidth, true
	case schema.ParamSoftness:
		return slotSoftness, true
	case schema.ParamDensity:
		return slotDensity, true
	case schema.ParamDirection:
		return slotDirection, true
	default:
		return 0, false
	}
}

// signalTable assigns a small integer to every signal name a modulotor or
// rule references, so the generated C reads a
// runtime signal table (built by modulo_signal_value()) by index instead of
// string-comparing names every tick.
type signalTable struct {
	ids   map[string]int
	names []string
}

func newSignalTable() *signalTable { return &signalTable{ids: map[string]int{}} }

func (t *signalTable) id(name string) int {
	if name == "" {
		return -1
	}
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := len(t.names)
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

// loweredLayer is one layer's flattened firmware representation.
type loweredLayer struct {
	UID        string
	Name       string
	ArduinoID  int
	Opacity    float64
	Blend      int
	Target     int
	TargetRef  string // zone/group/mask name, human-readable only
	TargetIndex int   // index into ZONE_*/GROUP_* for Target's kind (masks lower to synthesized groups), -1 if n/a
	Params     [numParamSlots]float64
	ColorR, ColorG, ColorB    float64
	Color2R, Color2G, Color2B float64

	OpKind [maxOperatorsPerLayer]int // -1 = unused
	OpArg  [maxOperatorsPerLayer]float64

	ModSrc    [maxModSlotsPerLayer]int // -1 = unused slot
	ModSlot   [maxModSlotsPerLayer]int
	ModMode   [maxModSlotsPerLayer]int
	ModAmount [maxModSlotsPerLayer]float64
	ModRateHz [maxModSlotsPerLayer]float64
	ModPhase  [maxModSlotsPerLayer]float64
	ModBias   [maxModSlotsPerLayer]float64
	ModSmooth [maxModSlotsPerLayer]float64
	ModCurve  [maxModSlotsPerLayer]int

	// ModIsLFO marks a slot whose source is the free-running lfo_sine clock
	// (sampled directly from rate/phase, never through the signal bus).
	// ModIsNumberVar marks a vars.number.* source, read as-is instead of
	// re-centered from a 0..1 reading (internal/modulotor.sample).
	ModIsLFO       [maxModSlotsPerLayer]bool
	ModIsNumberVar [maxModSlotsPerLayer]bool
}

// loweredRule is one enabled Rules V6 entry reduced to the operands the
// generated modulo_eval_rules() needs; the C body is built at render time
// from these fields rather than stored as a string here, keeping lower.go
// free of any direct C syntax.
type loweredRule struct {
	ID         string
	Trigger    schema.TriggerKind
	TriggerSig int
	Op         schema.CompareOp
	Value      float64
	Hyst       float64

	CondAll  bool
	CondSigs []int
	CondOps  []schema.CompareOp
	CondVals []float64

	ActionKind schema.ActionKind
	VarIsToggle bool
	VarName    string
	ExprIsSignal bool
	ExprSignal int
	ExprConst  float64
	ExprScale  float64
	ExprBias   float64
	ExprAsBool bool

	LayerIndex int
	ParamCode  int // matches the LayerParam C enum in the template
	OpSlot     int // resolved OP_KIND/OP_ARG slot for op_gain/op_gamma, -1 if n/a
	Conflict   schema.ConflictPolicy
}

type loweredZone struct {
	Name  string
	Start int
	End   int
}

type loweredGroup struct {
	Name    string
	Indices []int
}

type nameIndex map[string]int

func indexByName(names []string) nameIndex {
	m := make(nameIndex, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}

// loweredProject is the complete input to the .ino template.
type loweredProject struct {
	ProjectName string
	NumLEDs     int
	IsMatrix    bool
	Width, Height int
	Serpentine  bool
	Origin      string
	Rotate      int
	FlipX, FlipY bool

	Layers []loweredLayer
	Rules  []loweredRule
	Zones  []loweredZone
	Groups []loweredGroup
	Masks  []loweredGroup

	NumberVarNames []string
	ToggleVarNames []string

	BleedAmount float64
	BleedRadius int
	TrailAmount float64

	Signals []string // index-ordered signal names for modulo_signal_value()
}

// lower flattens p into loweredProject. catalog must already contain every
// behavior referenced by p.Layers (validate.Validate should have run first).
func lower(p *schema.Project, catalog *behaviors.Catalog) loweredProject {
	sig := newSignalTable()

	lp := loweredProject{
		ProjectName: p.Name,
		NumLEDs:     p.Layout.NumLEDs(),
		BleedAmount: p.Export.PostFX.BleedAmount,
		BleedRadius: p.Export.PostFX.BleedRadius,
		TrailAmount: p.Export.PostFX.TrailAmount,
	}
	if p.Layout.Kind == schema.LayoutCells {
		lp.IsMatrix = true
		c := p.Layout.Cells
		lp.Width, lp.Height = c.Width, c.Height
		lp.Serpentine = c.Serpentine
		lp.Origin = string(c.Origin)
		lp.Rotate = c.Rotate
		lp.FlipX, lp.FlipY = c.FlipX, c.FlipY
	}

	lp.Zones = lowerZones(p.Zones)
	lp.Groups = lowerGroups(p.Groups)
	zoneIdx := indexByName(sortedKeys(p.Zones))
	groupIdx := indexByName(sortedKeys(p.Groups))
	synth := map[string]int{}

	n := lp.NumLEDs
	for _, l := range p.Layers {
		ll := lowerLayer(l, catalog, sig)
		ll.Target, ll.TargetIndex = resolveTarget(p, l, n, zoneIdx, groupIdx, &lp, synth)
		lp.Layers = append(lp.Layers, ll)
	}

	// Stable (name, id) order, matching internal/rules.Evaluate, so the
	// generated RULE_PREV[]/RULE_LATCH[] arrays and the accumulator reduce
	// order agree with the preview evaluator bit-for-bit (spec.md §4.6,
	// §5 "rules in (name,id) order").
	orderedRules := append([]schema.Rule(nil), p.RulesV6...)
	sort.SliceStable(orderedRules, func(i, j int) bool {
		if orderedRules[i].Name != orderedRules[j].Name {
			return orderedRules[i].Name < orderedRules[j].Name
		}
		return orderedRules[i].ID < orderedRules[j].ID
	})
	for _, r := range orderedRules {
		if !r.Enabled {
			continue
		}
		lp.Rules = append(lp.Rules, lowerRule(r, sig, p.Layers))
	}

	lp.NumberVarNames = sortedKeys(p.Variables.Number)
	lp.ToggleVarNames = sortedKeys(p.Variables.Toggle)
	lp.Signals = sig.names
	return lp
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func lowerZones(zones map[string]schema.Zone) []loweredZone {
	names := sortedKeys(zones)
	out := make([]loweredZone, 0, len(names))
	for _, n := range names {
		z := zones[n]
		out = append(out, loweredZone{Name: n, Start: z.Start, End: z.End})
	}
	return out
}

func lowerGroups(groups map[string]schema.Group) []loweredGroup {
	names := sortedKeys(groups)
	out := make([]loweredGroup, 0, len(names))
	for _, n := range names {
		out = append(out, loweredGroup{Name: n, Indices: groups[n].Indices})
	}
	return out
}

func rangeIndices(start, end int) []int {
	if start >= end {
		return nil
	}
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// baseTargetIndices materializes a layer's target as an explicit index list,
// mirroring internal/compositor.resolveTargets' base-target switch (without
// the ui.target_mask intersection, applied separately by resolveTarget).
func baseTargetIndices(p *schema.Project, l schema.Layer, n int) []int {
	switch l.TargetKind {
	case schema.TargetGroup:
		if g, ok := p.Groups[l.TargetRef]; ok {
			return append([]int(nil), g.Indices...)
		}
		return nil
	case schema.TargetZone:
		if z, ok := p.Zones[l.TargetRef]; ok {
			start, end := clampInt(z.Start, 0, n-1), clampInt(z.End, 0, n-1)
			return rangeIndices(start, end+1)
		}
		return nil
	case schema.TargetMask:
		if m, ok := p.Masks[l.TargetRef]; ok {
			return append([]int(nil), m.Indices...)
		}
		return nil
	default:
		return rangeIndices(0, n)
	}
}

// synthesizeGroup appends (or reuses, by cache key) a lowered group holding
// exactly indices, returning it as a (targetGroup, index) pair.
func synthesizeGroup(lp *loweredProject, cache map[string]int, key string, indices []int) (int, int) {
	if idx, ok := cache[key]; ok {
		return targetGroup, idx
	}
	idx := len(lp.Groups)
	lp.Groups = append(lp.Groups, loweredGroup{Name: "__synth_" + key, Indices: indices})
	cache[key] = idx
	return targetGroup, idx
}

// resolveTarget is the lowering-time equivalent of
// internal/compositor.resolveTargets: it picks the generated L_TARGET/
// L_TARGET_IDX representation for one layer, folding in the project-wide
// ui.target_mask intersection (spec.md §3 "ui.target_mask intersects every
// layer's target", §4.7 step 1) by synthesizing a group for the
// intersection rather than intersecting masks at runtime in C.
func resolveTarget(p *schema.Project, l schema.Layer, n int, zoneIdx, groupIdx nameIndex, lp *loweredProject, synth map[string]int) (code, idx int) {
	if p.UI.TargetMask == "" {
		switch l.TargetKind {
		case schema.TargetZone:
			if i, ok := zoneIdx[l.TargetRef]; ok {
				return targetZone, i
			}
			return targetAll, -1
		case schema.TargetGroup:
			if i, ok := groupIdx[l.TargetRef]; ok {
				return targetGroup, i
			}
			return targetAll, -1
		case schema.TargetMask:
			return synthesizeGroup(lp, synth, "mask:"+l.TargetRef, baseTargetIndices(p, l, n))
		default:
			return targetAll, -1
		}
	}

	mask, ok := p.Masks[p.UI.TargetMask]
	if !ok {
		return resolveTarget(withoutUITargetMask(p), l, n, zoneIdx, groupIdx, lp, synth)
	}
	maskSet := make(map[int]bool, len(mask.Indices))
	for _, i := range mask.Indices {
		maskSet[i] = true
	}
	base := baseTargetIndices(p, l, n)
	intersected := make([]int, 0, len(base))
	for _, i := range base {
		if maskSet[i] {
			intersected = append(intersected, i)
		}
	}
	key := fmt.Sprintf("xmask:%s:%s:%s", p.UI.TargetMask, l.TargetKind, l.TargetRef)
	return synthesizeGroup(lp, synth, key, intersected)
}

// withoutUITargetMask returns a shallow copy of p with UI.TargetMask
// cleared, used only to re-enter resolveTarget's no-mask branch when the
// configured ui.target_mask name doesn't resolve to a declared mask.
func withoutUITargetMask(p *schema.Project) *schema.Project {
	cp := *p
	cp.UI.TargetMask = ""
	return &cp
}

func lowerLayer(l schema.Layer, catalog *behaviors.Catalog, sig *signalTable) loweredLayer {
	ll := loweredLayer{
		UID:         l.UID,
		Name:        l.Name,
		ArduinoID:   -1,
		Opacity:     l.Opacity,
		Blend:       blendCode(l.BlendMode),
		TargetRef:   l.TargetRef,
		TargetIndex: -1,
	}
	if b, ok := catalog.Lookup(l.Behavior); ok {
		ll.ArduinoID = b.Capabilities().ArduinoID
	}

	params := behaviors.ParamsFromLayer(&l)
	ll.Params[slotBrightness] = params.Brightness
	ll.Params[slotSpeed] = params.Speed
	ll.Params[slotWidth] = params.Width
	ll.Params[slotSoftness] = params.Softness
	ll.Params[slotDensity] = params.Density
	ll.Params[slotDirection] = params.Direction
	ll.ColorR, ll.ColorG, ll.ColorB = params.Color.R, params.Color.G, params.Color.B
	ll.Color2R, ll.Color2G, ll.Color2B = params.Color2.R, params.Color2.G, params.Color2.B

	for i := range ll.OpKind {
		ll.OpKind[i] = -1
	}
	for i, op := range l.Operators {
		if i >= maxOperatorsPerLayer {
			break
		}
		switch op.Kind {
		case schema.OpGain:
			ll.OpKind[i] = 0
			ll.OpArg[i] = op.K
		case schema.OpGamma:
			ll.OpKind[i] = 1
			ll.OpArg[i] = op.Gamma
		case schema.OpPosterize:
			ll.OpKind[i] = 2
			ll.OpArg[i] = float64(op.Levels)
		}
	}

	for i := range ll.ModSrc {
		ll.ModSrc[i] = -1
	}
	for i, m := range l.Modulotors {
		if i >= maxModSlotsPerLayer || !m.Enabled {
			continue
		}
		slot, ok := paramSlot(m.Target)
		if !ok {
			continue
		}
		ll.ModSrc[i] = sig.id(m.Source)
		ll.ModSlot[i] = slot
		ll.ModMode[i] = modeCode(m.Mode)
		ll.ModAmount[i] = m.Amount
		ll.ModRateHz[i] = m.RateHz
		ll.ModPhase[i] = m.Phase
		ll.ModBias[i] = m.Bias
		ll.ModSmooth[i] = m.Smooth
		ll.ModCurve[i] = curveCode(m.Curve)
		ll.ModIsLFO[i] = m.Source == "lfo_sine"
		ll.ModIsNumberVar[i] = isNumberVarSource(m.Source)
	}
	return ll
}

// layerParamCode mirrors schema.LayerParam in the generated C enum; order
// must match the template's modulo_apply_override() switch.
func layerParamCode(p schema.LayerParam) int {
	switch p {
	case schema.ParamOpacity:
		return 0
	case schema.ParamParamBrightness:
		return 1
	case schema.ParamOpGain:
		return 2
	case schema.ParamOpGamma:
		return 3
	case schema.ParamPostFXTrail:
		return 4
	case schema.ParamPostFXBleed:
		return 5
	case schema.ParamPostFXBleedRadius:
		return 6
	default:
		return -1
	}
}

func lowerRule(r schema.Rule, sig *signalTable, layers []schema.Layer) loweredRule {
	lr := loweredRule{
		ID:         r.ID,
		Trigger:    r.Trigger,
		OpSlot:     -1,
		TriggerSig: sig.id(r.When.Signal),
		Op:         r.When.Op,
		Value:      r.When.Value,
		Hyst:       r.When.Hyst,
		CondAll:    r.CondMode != schema.CondAny,
		ActionKind: r.Action.Kind,
	}
	for _, c := range r.Conditions {
		lr.CondSigs = append(lr.CondSigs, sig.id(c.Signal))
		lr.CondOps = append(lr.CondOps, c.Op)
		lr.CondVals = append(lr.CondVals, c.Value)
	}

	switch r.Action.Kind {
	case schema.ActionSetVar, schema.ActionAddVar:
		lr.VarIsToggle = r.Action.VarKind == schema.VarToggle
		lr.VarName = r.Action.Var
		lr.ExprIsSignal = r.Action.Expr.Src == schema.ExprSignal
		if lr.ExprIsSignal {
			lr.ExprSignal = sig.id(r.Action.Expr.Signal)
		} else {
			lr.ExprConst = r.Action.Expr.Const
		}
		lr.ExprScale = r.Action.Expr.Scale
		lr.ExprBias = r.Action.Expr.Bias
		lr.ExprAsBool = r.Action.Expr.AsBool
	case schema.ActionFlipToggle:
		lr.VarIsToggle = true
		lr.VarName = r.Action.Var
	case schema.ActionSetLayerParam:
		lr.LayerIndex = r.Action.LayerIndex
		lr.ParamCode = layerParamCode(r.Action.Param)
		lr.Conflict = r.Action.Conflict
		if kind, needed := ruleParamOperatorKind(r.Action.Param); needed && lr.LayerIndex >= 0 && lr.LayerIndex < len(layers) {
			lr.OpSlot = resolveOpSlot(layers[lr.LayerIndex], kind)
		}
	}
	return lr
}

// ruleParamOperatorKind mirrors internal/validate.ruleParamNeedsOperator:
// op_gain/op_gamma runtime overrides target the layer's first matching
// operator slot, resolved once here at lowering time (spec.md §4.10 step 3),
// never re-searched per tick by the generated C.
func ruleParamOperatorKind(p schema.LayerParam) (schema.OperatorKind, bool) {
	switch p {
	case schema.ParamOpGain:
		return schema.OpGain, true
	case schema.ParamOpGamma:
		return schema.OpGamma, true
	default:
		return "", false
	}
}

func resolveOpSlot(l schema.Layer, kind schema.OperatorKind) int {
	for i, op := range l.Operators {
		if i >= maxOperatorsPerLayer {
			break
		}
		if op.Kind == kind {
			return i
		}
	}
	return -1
}
