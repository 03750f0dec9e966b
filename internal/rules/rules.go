// rules.go - the Rules V6 engine: trigger evaluation, var mutation, and the
// runtime-override reducer consumed by the compositor before behaviors run.
//
// Package rules runs once per tick, before any behavior ticks or operators
// apply (spec.md §4.6). It never touches the signal bus's own state; it
// only reads signals and writes variables plus a bounded set of per-layer
// runtime overrides.
package rules

import (
	"sort"

	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

// State is one rule's cross-tick memory: Prev for rising-edge detection,
// Latch for threshold hysteresis. Keyed by rule ID by the caller.
type State struct {
	Prev  bool
	Latch bool
}

// OverrideKey identifies one (layer, param) runtime-override slot.
type OverrideKey struct {
	LayerIndex int
	Param      schema.LayerParam
}

// PostFXOverrideLayerIndex is the sentinel LayerIndex used for the three
// project-scoped post-fx params (postfx_trail/bleed/bleed_radius): post-fx
// runs once per tick, not once per layer, so these writes are keyed under
// this index regardless of whatever layer_index the authoring rule carries
// (schema.Action.LayerIndex is meaningless for these three params).
// internal/postfx.Resolve reads overrides back out under the same key.
const PostFXOverrideLayerIndex = -1

// isPostFXParam reports whether p is one of the three project-scoped
// post-fx runtime overrides rather than a per-layer one.
func isPostFXParam(p schema.LayerParam) bool {
	switch p {
	case schema.ParamPostFXTrail, schema.ParamPostFXBleed, schema.ParamPostFXBleedRadius:
		return true
	default:
		return false
	}
}

// Outcome is one tick's evaluation result: the resolved runtime overrides
// (already conflict-reduced) and the mutated variable set.
type Outcome struct {
	Overrides map[OverrideKey]float64
	Vars      schema.Variables
}

type pendingWrite struct {
	key      OverrideKey
	value    float64
	conflict schema.ConflictPolicy
}

// Evaluate runs every enabled rule in stable order (name, then id), mutating
// a copy of vars and accumulating runtime-override writes, then reduces
// those writes into Outcome.Overrides. states is mutated in place (rule ID
// -> per-rule State); callers own its lifetime across ticks.
func Evaluate(rulesList []schema.Rule, states map[string]*State, bus *signalbus.Bus, vars schema.Variables, t float64) Outcome {
	vars = cloneVars(vars)

	ordered := append([]schema.Rule(nil), rulesList...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Name != ordered[j].Name {
			return ordered[i].Name < ordered[j].Name
		}
		return ordered[i].ID < ordered[j].ID
	})

	var writes []pendingWrite
	for _, r := range ordered {
		if !r.Enabled {
			continue
		}
		st := states[r.ID]
		if st == nil {
			st = &State{}
			states[r.ID] = st
		}
		if !fires(r, st, bus) {
			continue
		}
		applyAction(r, bus, &vars, &writes)
	}

	return Outcome{Overrides: reduce(writes), Vars: vars}
}

func fires(r schema.Rule, st *State, bus *signalbus.Bus) bool {
	cur := 0.0
	if r.When.Signal != "" {
		cur = bus.Get(r.When.Signal)
	}
	condOK := evalConditions(r.Conditions, r.CondMode, bus)

	switch r.Trigger {
	case schema.TriggerTick:
		return condOK

	case schema.TriggerRising:
		nowOn := cur > 0.5
		fired := condOK && nowOn && !st.Prev
		st.Prev = nowOn
		return fired

	case schema.TriggerThreshold:
		return evalThreshold(r.When, cur, condOK, st)

	default:
		return false
	}
}

// evalThreshold implements the hysteresis latch from spec.md §4.6: for a
// "less than" comparison the on-threshold is lowered by hyst and the off
// threshold raised by hyst (and mirrored for "greater than"), so a signal
// hovering near `value` doesn't chatter the rule on and off every tick.
func evalThreshold(w schema.When, cur float64, condOK bool, st *State) bool {
	var nowOn bool
	switch w.Op {
	case schema.OpLT, schema.OpLE:
		onThr := w.Value - w.Hyst
		offThr := w.Value + w.Hyst
		if st.Latch {
			nowOn = cur <= offThr
		} else {
			nowOn = cur <= onThr
		}
	default: // >, >=, == treated as the mirror image
		onThr := w.Value + w.Hyst
		offThr := w.Value - w.Hyst
		if st.Latch {
			nowOn = cur >= offThr
		} else {
			nowOn = cur >= onThr
		}
	}
	fired := condOK && nowOn && !st.Latch
	st.Latch = nowOn
	return fired
}

func evalConditions(conds []schema.Condition, mode schema.CondMode, bus *signalbus.Bus) bool {
	if len(conds) == 0 {
		return true
	}
	switch mode {
	case schema.CondAny:
		for _, c := range conds {
			if c.Op.Eval(bus.Get(c.Signal), c.Value) {
				return true
			}
		}
		return false
	default: // all
		for _, c := range conds {
			if !c.Op.Eval(bus.Get(c.Signal), c.Value) {
				return false
			}
		}
		return true
	}
}

func evalExpr(e schema.Expr, bus *signalbus.Bus) float64 {
	var raw float64
	switch e.Src {
	case schema.ExprSignal:
		raw = bus.Get(e.Signal)
	default:
		raw = e.Const
	}
	v := e.Scale*raw + e.Bias
	if e.AsBool {
		if v >= 0.5 {
			return 1
		}
		return 0
	}
	return v
}

func applyAction(r schema.Rule, bus *signalbus.Bus, vars *schema.Variables, writes *[]pendingWrite) {
	a := r.Action
	switch a.Kind {
	case schema.ActionFlipToggle:
		if vars.Toggle == nil {
			vars.Toggle = map[string]bool{}
		}
		vars.Toggle[a.Var] = !vars.Toggle[a.Var]

	case schema.ActionSetVar:
		v := evalExpr(a.Expr, bus)
		if a.VarKind == schema.VarToggle {
			if vars.Toggle == nil {
				vars.Toggle = map[string]bool{}
			}
			vars.Toggle[a.Var] = v >= 0.5
		} else {
			if vars.Number == nil {
				vars.Number = map[string]float64{}
			}
			vars.Number[a.Var] = v
		}

	case schema.ActionAddVar:
		v := evalExpr(a.Expr, bus)
		if vars.Number == nil {
			vars.Number = map[string]float64{}
		}
		vars.Number[a.Var] += v

	case schema.ActionSetLayerParam:
		v := evalExpr(a.Expr, bus)
		layerIndex := a.LayerIndex
		if isPostFXParam(a.Param) {
			layerIndex = PostFXOverrideLayerIndex
		}
		*writes = append(*writes, pendingWrite{
			key:      OverrideKey{LayerIndex: layerIndex, Param: a.Param},
			value:    v,
			conflict: a.Conflict,
		})
	}
}

// reduce folds same-tick writes to the same (layer, param) key in rule
// evaluation order, applying each write's own conflict policy against
// whatever is already accumulated for that key (SPEC_FULL.md Open Question
// #2 redesign decision: conflict policy is a property of the write, not a
// single project-wide setting).
func reduce(writes []pendingWrite) map[OverrideKey]float64 {
	out := make(map[OverrideKey]float64, len(writes))
	seen := make(map[OverrideKey]bool, len(writes))
	for _, w := range writes {
		if !seen[w.key] {
			out[w.key] = w.value
			seen[w.key] = true
			continue
		}
		existing := out[w.key]
		switch w.conflict {
		case schema.ConflictFirst:
			// keep existing
		case schema.ConflictMax:
			if w.value > existing {
				out[w.key] = w.value
			}
		case schema.ConflictMin:
			if w.value < existing {
				out[w.key] = w.value
			}
		default: // last
			out[w.key] = w.value
		}
	}
	return out
}

func cloneVars(v schema.Variables) schema.Variables {
	out := schema.Variables{
		Number: make(map[string]float64, len(v.Number)),
		Toggle: make(map[string]bool, len(v.Toggle)),
	}
	for k, val := range v.Number {
		out.Number[k] = val
	}
	for k, val := range v.Toggle {
		out.Toggle[k] = val
	}
	return out
}
