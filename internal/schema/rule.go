// rule.go - Rules V6 schema types (spec.md §3, §4.6)

package schema

// TriggerKind selects how a rule decides whether it fired this tick.
type TriggerKind string

const (
	TriggerTick      TriggerKind = "tick"
	TriggerRising    TriggerKind = "rising"
	TriggerThreshold TriggerKind = "threshold"
)

// CompareOp is a scalar comparison used by When and Conditions.
type CompareOp string

const (
	OpGT CompareOp = ">"
	OpGE CompareOp = ">="
	OpLT CompareOp = "<"
	OpLE CompareOp = "<="
	OpEQ CompareOp = "=="
)

func (op CompareOp) Eval(lhs, rhs float64) bool {
	switch op {
	case OpGT:
		return lhs > rhs
	case OpGE:
		return lhs >= rhs
	case OpLT:
		return lhs < rhs
	case OpLE:
		return lhs <= rhs
	case OpEQ:
		return lhs == rhs
	default:
		return false
	}
}

// When is the rule's primary trigger condition.
type When struct {
	Signal string    `json:"signal"`
	Op     CompareOp `json:"op"`
	Value  float64   `json:"value"`
	Hyst   float64   `json:"hyst"`
}

// Condition is one extra guard ANDed/ORed together per CondMode.
type Condition struct {
	Signal string    `json:"signal"`
	Op     CompareOp `json:"op"`
	Value  float64   `json:"value"`
}

// CondMode combines Conditions.
type CondMode string

const (
	CondAll CondMode = "all"
	CondAny CondMode = "any"
)

// ExprSrc discriminates Expr between a literal constant and a signal read.
type ExprSrc string

const (
	ExprConst  ExprSrc = "const"
	ExprSignal ExprSrc = "signal"
)

// Expr computes `scale*value + bias`, optionally booleanized, from either a
// constant or a signal-bus read (spec.md §3 Rule Expr).
type Expr struct {
	Src    ExprSrc `json:"src"`
	Const  float64 `json:"const,omitempty"`
	Signal string  `json:"signal,omitempty"`
	Scale  float64 `json:"scale"`
	Bias   float64 `json:"bias"`
	AsBool bool    `json:"as_bool"`
}

// VarKind discriminates SetVar's target namespace.
type VarKind string

const (
	VarNumber VarKind = "number"
	VarToggle VarKind = "toggle"
)

// LayerParam enumerates the bounded set of rule-settable runtime overrides
// (spec.md §4.6 "Runtime overrides").
type LayerParam string

const (
	ParamOpacity           LayerParam = "opacity"
	ParamParamBrightness   LayerParam = "brightness"
	ParamOpGain            LayerParam = "op_gain"
	ParamOpGamma           LayerParam = "op_gamma"
	ParamPostFXTrail       LayerParam = "postfx_trail"
	ParamPostFXBleed       LayerParam = "postfx_bleed"
	ParamPostFXBleedRadius LayerParam = "postfx_bleed_radius"
)

// ConflictPolicy resolves multiple rules writing the same (layer, param) in
// one tick (spec.md §4.6, SPEC_FULL.md Open Question #2).
type ConflictPolicy string

const (
	ConflictLast  ConflictPolicy = "last"
	ConflictFirst ConflictPolicy = "first"
	ConflictMax   ConflictPolicy = "max"
	ConflictMin   ConflictPolicy = "min"
)

// ActionKind discriminates the Action tagged variant.
type ActionKind string

const (
	ActionSetVar        ActionKind = "set_var"
	ActionAddVar        ActionKind = "add_var"
	ActionFlipToggle    ActionKind = "flip_toggle"
	ActionSetLayerParam ActionKind = "set_layer_param"
)

// Action is the mutation a rule performs when it fires.
type Action struct {
	Kind ActionKind `json:"kind"`

	// set_var / add_var
	VarKind VarKind `json:"var_kind,omitempty"`
	Var     string  `json:"var,omitempty"`
	Expr    Expr    `json:"expr,omitempty"`

	// flip_toggle reuses Var above.

	// set_layer_param
	LayerIndex int            `json:"layer_index,omitempty"`
	Param      LayerParam     `json:"param,omitempty"`
	Conflict   ConflictPolicy `json:"conflict,omitempty"`
}

// Rule is one Rules V6 entry (spec.md §3, §4.6).
type Rule struct {
	ID      string      `json:"id"`
	Enabled bool        `json:"enabled"`
	Trigger TriggerKind `json:"trigger"`
	When    When        `json:"when"`

	Conditions []Condition `json:"conditions"`
	CondMode   CondMode    `json:"cond_mode"`

	Action Action `json:"action"`
	Name   string `json:"name"`
}
