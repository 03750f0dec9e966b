// schema.go - the canonical Modulo project model (spec.md §3)

// Package schema defines the canonical, in-memory project model: layout,
// layers, operators, modulotors, rules, targeting metadata, and the
// back-compat migration/sanitization that keeps older project files
// loadable. Projects are treated as immutable values once loaded — callers
// that want to "edit" a project copy it (see Project.Clone) and hand the
// copy to whatever owns the next tick.
package schema

import "encoding/json"

// BlendMode selects how a layer composites onto the framebuffer (spec.md §4.7).
type BlendMode string

const (
	BlendOver     BlendMode = "over"
	BlendAdd      BlendMode = "add"
	BlendMax      BlendMode = "max"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
)

// TargetKind selects which index set a layer renders into.
type TargetKind string

const (
	TargetAll   TargetKind = "all"
	TargetGroup TargetKind = "group"
	TargetZone  TargetKind = "zone"
	TargetMask  TargetKind = "mask"
)

// Zone is an inclusive index range, e.g. for a named stretch of a strip.
type Zone struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Group and Mask are both arbitrary index lists; they are kept as distinct
// map namespaces (masks never carry a "zone:"/"group:" prefix once
// persisted — see migrate.go) even though they share a representation.
type Group struct {
	Indices []int `json:"indices"`
}

type Mask struct {
	Indices []int `json:"indices"`
}

// ValueKind discriminates a Param Value between a plain scalar and an
// RGB-ish tuple (spec.md §3 Layer.params: map<string, scalar|tuple>).
type ValueKind string

const (
	ValueScalar ValueKind = "scalar"
	ValueTuple  ValueKind = "tuple"
)

// Value is a layer parameter value: either a float64 scalar or a float64
// tuple (used for colors, e.g. params["color"] = (255,0,0)).
type Value struct {
	Kind   ValueKind
	Scalar float64
	Tuple  []float64
}

func ScalarValue(v float64) Value { return Value{Kind: ValueScalar, Scalar: v} }
func TupleValue(v ...float64) Value {
	return Value{Kind: ValueTuple, Tuple: append([]float64(nil), v...)}
}

// AsScalar returns the value as a float64 regardless of kind: a tuple
// collapses to its first element (mirrors how the original Python reads
// params.get(name, 0.0) for numeric coercion of anything list-like).
func (v Value) AsScalar() float64 {
	if v.Kind == ValueTuple {
		if len(v.Tuple) == 0 {
			return 0
		}
		return v.Tuple[0]
	}
	return v.Scalar
}

// MarshalJSON encodes a scalar as a bare number and a tuple as an array,
// matching the persisted shape implied by spec.md §3 (params: scalar|tuple).
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == ValueTuple {
		return json.Marshal(v.Tuple)
	}
	return json.Marshal(v.Scalar)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var asTuple []float64
	if err := json.Unmarshal(data, &asTuple); err == nil {
		v.Kind = ValueTuple
		v.Tuple = asTuple
		return nil
	}
	var asScalar float64
	if err := json.Unmarshal(data, &asScalar); err != nil {
		return err
	}
	v.Kind = ValueScalar
	v.Scalar = asScalar
	return nil
}

// OperatorKind discriminates the exportable Operator variants (spec.md §4.4).
type OperatorKind string

const (
	OpGain      OperatorKind = "gain"
	OpGamma     OperatorKind = "gamma"
	OpPosterize OperatorKind = "posterize"
)

// Operator is a per-layer, per-pixel post-filter applied pre-blend.
// Only one of K/Gamma/Levels is meaningful, selected by Kind.
type Operator struct {
	Kind   OperatorKind `json:"type"`
	K      float64      `json:"k,omitempty"`      // Gain
	Gamma  float64      `json:"gamma,omitempty"`  // Gamma
	Levels int          `json:"levels,omitempty"` // Posterize
}

// ParamName enumerates the modulotor-able parameters (spec.md §3).
type ParamName string

const (
	ParamBrightness ParamName = "brightness"
	ParamSpeed      ParamName = "speed"
	ParamWidth      ParamName = "width"
	ParamSoftness   ParamName = "softness"
	ParamDensity    ParamName = "density"
	ParamDirection  ParamName = "direction"
)

// PurposeFloatParam and PurposeIntParam return the ParamName for purpose_f0..f3 / purpose_i0..i3,
// which are numbered rather than fixed identifiers.
func PurposeFloatParam(n int) ParamName { return ParamName(sprintfPurpose("purpose_f", n)) }
func PurposeIntParam(n int) ParamName   { return ParamName(sprintfPurpose("purpose_i", n)) }

func sprintfPurpose(prefix string, n int) string {
	digits := "0123456789"
	if n < 0 || n > 9 {
		return prefix + "?"
	}
	return prefix + string(digits[n])
}

// ModulotorMode selects how a signal contribution combines into a base param.
type ModulotorMode string

const (
	ModeMul ModulotorMode = "mul"
	ModeAdd ModulotorMode = "add"
	ModeSet ModulotorMode = "set"
)

// Curve reshapes a modulotor's unipolar [0,1] contribution before re-centering.
type Curve string

const (
	CurveLinear Curve = "linear"
	CurveInvert Curve = "invert"
	CurveAbs    Curve = "abs"
	CurvePow2   Curve = "pow2"
	CurvePow3   Curve = "pow3"
)

// Modulotor is a signal->parameter routing applied to a layer each tick (spec.md §4.5).
type Modulotor struct {
	Source  string        `json:"source"`
	Target  ParamName     `json:"target"`
	Mode    ModulotorMode `json:"mode"`
	Amount  float64       `json:"amount"`
	RateHz  float64       `json:"rate_hz"`
	Phase   float64       `json:"phase"`
	Bias    float64       `json:"bias"`
	Smooth  float64       `json:"smooth"` // [0, 0.999]
	Curve   Curve         `json:"curve"`
	Enabled bool          `json:"enabled"`
}

// Layer is one entry in the project's ordered composition stack.
type Layer struct {
	UID        string           `json:"uid"`
	Name       string           `json:"name"`
	Behavior   string           `json:"behavior"`
	Enabled    bool             `json:"enabled"`
	Opacity    float64          `json:"opacity"`
	BlendMode  BlendMode        `json:"blend_mode"`
	TargetKind TargetKind       `json:"target_kind"`
	TargetRef  string           `json:"target_ref"`
	Params     map[string]Value `json:"params"`
	Operators  []Operator       `json:"operators"`
	Modulotors []Modulotor      `json:"modulotors"`
	Locked     bool             `json:"locked"`

	// ScriptSource is Lua source for the "scripted" behavior only; every
	// other behavior ignores it. It lives outside Params because it is
	// text, not a scalar|tuple param value.
	ScriptSource string `json:"script_source,omitempty"`

	// legacyEffect/legacyMods capture pre-v6 shapes spotted while decoding
	// a raw project file, for migrate.go to fold into the canonical fields
	// and then keep mirrored on save (spec.md §3 Layer invariant).
	legacyEffect string
	legacyMods   []Modulotor
}

// UnmarshalJSON decodes a Layer, capturing the legacy `effect` field and
// `params._mods` array without treating them as canonical data; Normalize
// folds them into Behavior/Modulotors.
func (l *Layer) UnmarshalJSON(data []byte) error {
	type alias Layer
	aux := struct {
		Effect string                     `json:"effect"`
		Params map[string]json.RawMessage `json:"params"`
		*alias
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	l.legacyEffect = aux.Effect

	// params._mods lives inside the params object in the legacy shape and is
	// a modulotor array, not a Value; split it out before decoding the rest.
	if aux.Params != nil {
		l.Params = make(map[string]Value, len(aux.Params))
	}
	for k, raw := range aux.Params {
		if k == "_mods" {
			var mods []Modulotor
			if err := json.Unmarshal(raw, &mods); err == nil && len(mods) > 0 {
				l.legacyMods = mods
			}
			continue
		}
		var v Value
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		l.Params[k] = v
	}
	return nil
}

// MarshalJSON encodes a Layer, mirroring Behavior into the legacy `effect`
// field so older tooling reading the file still finds it (spec.md §4.1).
func (l Layer) MarshalJSON() ([]byte, error) {
	type alias Layer
	return json.Marshal(struct {
		alias
		Effect string `json:"effect"`
	}{alias: alias(l), Effect: l.Behavior})
}

// Variables holds the project's author-defined signal-bus variables.
type Variables struct {
	Number map[string]float64 `json:"number"`
	Toggle map[string]bool    `json:"toggle"`
}

// SignalSpec describes a declared (non-builtin) signal, e.g. an LFO.
type SignalSpec struct {
	Kind   string  `json:"kind"`
	RateHz float64 `json:"rate_hz,omitempty"`
	Phase  float64 `json:"phase,omitempty"`
}

// UI holds viewer-facing, non-semantic metadata that still affects
// evaluation: the global target mask intersects every layer's target.
type UI struct {
	TargetMask string `json:"target_mask,omitempty"`
}

// OutputMode selects the export artifact shape.
type OutputMode string

const (
	OutputArduino    OutputMode = "arduino"
	OutputPlatformIO OutputMode = "platformio"
)

// HWConfig carries target-specific hardware pin/count overrides.
type HWConfig struct {
	Values map[string]string `json:"-"`
}

// PostFXConfig is the project-level default bleed/trail configuration;
// rules_v6 may override any of these at runtime (spec.md §4.8).
type PostFXConfig struct {
	BleedAmount float64 `json:"bleed_amount"`
	BleedRadius int     `json:"bleed_radius"`
	TrailAmount float64 `json:"trail_amount"`
}

// ExportConfig is the project's export target selection and hardware config.
type ExportConfig struct {
	TargetID     string       `json:"target_id"`
	LEDBackend   string       `json:"led_backend"`
	AudioBackend string       `json:"audio_backend"`
	PostFX       PostFXConfig `json:"postfx"`
	OutputMode   OutputMode   `json:"output_mode"`
}

// Project is the top-level, versioned project value (spec.md §3).
type Project struct {
	SchemaVersion int    `json:"schema_version"`
	Name          string `json:"name"`

	Layout Layout `json:"layout"`

	Layers []Layer `json:"layers"`

	Zones  map[string]Zone  `json:"zones"`
	Groups map[string]Group `json:"groups"`
	Masks  map[string]Mask  `json:"masks"`

	Signals   map[string]SignalSpec `json:"signals"`
	Variables Variables             `json:"variables"`

	RulesV6 []Rule `json:"rules_v6"`

	UI     UI           `json:"ui"`
	Export ExportConfig `json:"export"`
}

// Clone returns a deep-enough copy of the project for a single-writer edit:
// the evaluator and emitter only ever read from Project, so a shallow-plus
// re-sliced copy is sufficient as long as nested maps/slices aren't shared
// with the original's mutable paths. This is how "edits produce a new
// project value" (spec.md §3 Lifecycle) is implemented without a full deep
// clone of every nested struct.
func (p *Project) Clone() *Project {
	cp := *p
	cp.Layers = append([]Layer(nil), p.Layers...)
	for i := range cp.Layers {
		cp.Layers[i] = p.Layers[i].clone()
	}
	cp.Zones = cloneMap(p.Zones)
	cp.Groups = cloneMap(p.Groups)
	cp.Masks = cloneMap(p.Masks)
	cp.Signals = cloneMap(p.Signals)
	cp.Variables = Variables{
		Number: cloneMap(p.Variables.Number),
		Toggle: cloneMap(p.Variables.Toggle),
	}
	cp.RulesV6 = append([]Rule(nil), p.RulesV6...)
	return &cp
}

func (l Layer) clone() Layer {
	cl := l
	cl.Params = cloneMap(l.Params)
	cl.Operators = append([]Operator(nil), l.Operators...)
	cl.Modulotors = append([]Modulotor(nil), l.Modulotors...)
	return cl
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
