package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

func TestRisingEdgeFiresOnce(t *testing.T) {
	r := schema.Rule{
		ID: "r1", Enabled: true, Trigger: schema.TriggerRising,
		When:   schema.When{Signal: "vars.number.x"},
		Action: schema.Action{Kind: schema.ActionFlipToggle, Var: "flag"},
	}
	states := map[string]*State{}

	vars := schema.Variables{Number: map[string]float64{"x": 1}}
	bus, _ := signalbus.Build(signalbus.Inputs{Vars: vars}, &signalbus.ClockState{}, nil)

	out := Evaluate([]schema.Rule{r}, states, bus, vars, 0)
	require.True(t, out.Vars.Toggle["flag"])

	// Same high signal again: rising edge must not refire.
	out2 := Evaluate([]schema.Rule{r}, states, bus, out.Vars, 0)
	assert.True(t, out2.Vars.Toggle["flag"]) // still true, not flipped back
}

func TestThresholdHysteresisPreventsChatter(t *testing.T) {
	r := schema.Rule{
		ID: "r1", Enabled: true, Trigger: schema.TriggerThreshold,
		When:   schema.When{Signal: "vars.number.x", Op: schema.OpLT, Value: 0.5, Hyst: 0.1},
		Action: schema.Action{Kind: schema.ActionAddVar, Var: "count", Expr: schema.Expr{Src: schema.ExprConst, Const: 1, Scale: 1}},
	}
	states := map[string]*State{}
	vars := schema.Variables{Number: map[string]float64{"x": 0.3}}

	bus1, _ := signalbus.Build(signalbus.Inputs{Vars: vars}, &signalbus.ClockState{}, nil)
	out := Evaluate([]schema.Rule{r}, states, bus1, vars, 0)
	assert.Equal(t, 1.0, out.Vars.Number["count"])

	// hovering at 0.45 (between on=0.4 and off=0.6) should NOT refire since latch held
	vars2 := schema.Variables{Number: map[string]float64{"x": 0.45}}
	bus2, _ := signalbus.Build(signalbus.Inputs{Vars: vars2}, &signalbus.ClockState{}, nil)
	out2 := Evaluate([]schema.Rule{r}, states, bus2, out.Vars, 0)
	assert.Equal(t, 1.0, out2.Vars.Number["count"])
}

func TestSetLayerParamConflictMax(t *testing.T) {
	rLow := schema.Rule{
		ID: "a", Name: "a", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 0, Param: schema.ParamOpacity, Expr: schema.Expr{Src: schema.ExprConst, Const: 0.2, Scale: 1}, Conflict: schema.ConflictMax},
	}
	rHigh := schema.Rule{
		ID: "b", Name: "b", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 0, Param: schema.ParamOpacity, Expr: schema.Expr{Src: schema.ExprConst, Const: 0.9, Scale: 1}, Conflict: schema.ConflictMax},
	}
	states := map[string]*State{}
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)

	out := Evaluate([]schema.Rule{rLow, rHigh}, states, bus, schema.Variables{}, 0)
	key := OverrideKey{LayerIndex: 0, Param: schema.ParamOpacity}
	assert.Equal(t, 0.9, out.Overrides[key])
}

func TestSetLayerParamConflictFirst(t *testing.T) {
	rFirst := schema.Rule{
		ID: "a", Name: "a", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 2, Param: schema.ParamParamBrightness, Expr: schema.Expr{Src: schema.ExprConst, Const: 0.3, Scale: 1}, Conflict: schema.ConflictFirst},
	}
	rSecond := schema.Rule{
		ID: "b", Name: "b", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 2, Param: schema.ParamParamBrightness, Expr: schema.Expr{Src: schema.ExprConst, Const: 0.8, Scale: 1}, Conflict: schema.ConflictFirst},
	}
	states := map[string]*State{}
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	out := Evaluate([]schema.Rule{rFirst, rSecond}, states, bus, schema.Variables{}, 0)
	key := OverrideKey{LayerIndex: 2, Param: schema.ParamParamBrightness}
	assert.Equal(t, 0.3, out.Overrides[key])
}

func TestDisabledRuleNeverFires(t *testing.T) {
	r := schema.Rule{ID: "x", Enabled: false, Trigger: schema.TriggerTick, Action: schema.Action{Kind: schema.ActionFlipToggle, Var: "f"}}
	states := map[string]*State{}
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	out := Evaluate([]schema.Rule{r}, states, bus, schema.Variables{}, 0)
	assert.False(t, out.Vars.Toggle["f"])
}

func TestStableOrderingByNameThenID(t *testing.T) {
	// "b" rule sets opacity to 1 with "last"; "a" rule (sorts first) sets it
	// to 0.5 with "last" too — final value should be whichever evaluated
	// last in (name,id) order, i.e. "b".
	rA := schema.Rule{ID: "1", Name: "a", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 0, Param: schema.ParamOpacity, Expr: schema.Expr{Src: schema.ExprConst, Const: 0.5, Scale: 1}, Conflict: schema.ConflictLast}}
	rB := schema.Rule{ID: "0", Name: "b", Enabled: true, Trigger: schema.TriggerTick,
		Action: schema.Action{Kind: schema.ActionSetLayerParam, LayerIndex: 0, Param: schema.ParamOpacity, Expr: schema.Expr{Src: schema.ExprConst, Const: 1, Scale: 1}, Conflict: schema.ConflictLast}}
	states := map[string]*State{}
	bus, _ := signalbus.Build(signalbus.Inputs{}, &signalbus.ClockState{}, nil)
	out := Evaluate([]schema.Rule{rB, rA}, states, bus, schema.Variables{}, 0)
	key := OverrideKey{LayerIndex: 0, Param: schema.ParamOpacity}
	assert.Equal(t, 1.0, out.Overrides[key])
}
