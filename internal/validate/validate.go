// validate.go - export-time precondition checking (spec.md §4.11).
//
// Validators never stop at the first problem; they collect every
// ValidationError found and let the caller decide whether any of them are
// fatal. This mirrors original_source's preconditions pass returning a full
// problem list rather than raising on the first bad layer, generalized here
// from "export rules" to also covering era gates and target-pack
// capability checks.
package validate

import (
	"fmt"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/errs"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/targets"
)

// Era is a named policy bucket that narrows what an export may use,
// independent of the chosen target pack's hardware capabilities. It exists
// purely as a validator-side filter over the existing project schema: no
// dedicated schema.Era field is introduced, since nothing in the project
// model needs to carry it at rest (an export invocation picks an Era the
// same way it picks a target pack id).
type Era string

const (
	// EraUnrestricted performs no additional policy filtering beyond target
	// pack capabilities.
	EraUnrestricted Era = ""
	// EraClassic caps layer count and blocks rules/operators, modeling a
	// minimal-flash first-generation device.
	EraClassic Era = "classic"
	// EraModern allows the full feature set modulo whatever the target pack
	// itself declares unsupported.
	EraModern Era = "modern"
)

// EraLimits is EraClassic's fixed policy (spec.md's "specified only as a
// validator" scoping means this has no persisted representation; it is a
// lookup table the validator consults by Era value).
type EraLimits struct {
	MaxLayers       int
	RulesBlocked    bool
	OperatorsBlock  bool
	AudioBlocked    bool
	MatrixBlocked   bool
}

func limitsFor(e Era) (EraLimits, bool) {
	switch e {
	case EraClassic:
		return EraLimits{MaxLayers: 4, RulesBlocked: true, OperatorsBlock: true, AudioBlocked: true, MatrixBlocked: true}, true
	case EraModern, EraUnrestricted:
		return EraLimits{}, false
	default:
		return EraLimits{}, false
	}
}

// Options carries the export-time choices that affect which problems apply.
type Options struct {
	Era        Era
	TargetPack *targets.Pack
}

// Validate runs every precondition check against p and returns every
// ValidationError found; a nil/empty result means the project is exportable
// as-is.
func Validate(p *schema.Project, catalog *behaviors.Catalog, opts Options) []*errs.ValidationError {
	var out []*errs.ValidationError
	if len(p.Layers) == 0 {
		out = append(out, errs.New(errs.ENoLayers, "layers", "project has no layers"))
	}
	if p.Layout.NumLEDs() <= 0 {
		out = append(out, errs.New(errs.EBadLayout, "layout", "layout has zero LEDs"))
	}
	out = append(out, validateBehaviors(p, catalog)...)
	out = append(out, validateRules(p)...)
	out = append(out, validateOperators(p)...)
	out = append(out, validateEra(p, opts.Era)...)
	if opts.TargetPack != nil {
		out = append(out, validateTargetPack(p, opts.TargetPack)...)
	}
	return out
}

func validateBehaviors(p *schema.Project, catalog *behaviors.Catalog) []*errs.ValidationError {
	var out []*errs.ValidationError
	for i, layer := range p.Layers {
		path := fmt.Sprintf("layers[%d]", i)
		b, ok := catalog.Lookup(layer.Behavior)
		if !ok {
			out = append(out, errs.New(errs.EBehaviorNotExportable, path, "unknown behavior %q", layer.Behavior))
			continue
		}
		caps := b.Capabilities()
		if caps.Exportable != behaviors.Exportable {
			out = append(out, errs.New(errs.EBehaviorNotExportable, path, "behavior %q is %s, cannot export", layer.Behavior, caps.Exportable))
		}
		if caps.Supports != behaviors.SupportBoth {
			want := behaviors.SupportStrip
			if p.Layout.Kind == schema.LayoutCells {
				want = behaviors.SupportCells
			}
			if caps.Supports != want {
				out = append(out, errs.New(errs.ELayoutEffectMismatch, path, "behavior %q does not support layout kind %q", layer.Behavior, p.Layout.Kind))
			}
		}
	}
	return out
}

// ruleParamNeedsOperator maps the rule-settable op_* layer params to the
// Operator kind a layer must already carry for the action to have any
// effect at runtime (spec.md §4.6: rules mutate operator params in place,
// they never insert a missing operator).
func ruleParamNeedsOperator(p schema.LayerParam) (schema.OperatorKind, bool) {
	switch p {
	case schema.ParamOpGain:
		return schema.OpGain, true
	case schema.ParamOpGamma:
		return schema.OpGamma, true
	default:
		return "", false
	}
}

func validateRules(p *schema.Project) []*errs.ValidationError {
	var out []*errs.ValidationError
	for i, r := range p.RulesV6 {
		path := fmt.Sprintf("rules_v6[%d]", i)
		if !r.Enabled {
			continue
		}
		out = append(out, validateVarRef(p, r.When.Signal, path+".when")...)
		for j, c := range r.Conditions {
			out = append(out, validateVarRef(p, c.Signal, fmt.Sprintf("%s.conditions[%d]", path, j))...)
		}

		if r.Action.Kind == schema.ActionSetLayerParam {
			if !isKnownLayerParam(r.Action.Param) {
				out = append(out, errs.New(errs.ERuleLayerParamUnsupported, path+".action", "unsupported set_layer_param target %q", r.Action.Param))
				continue
			}
			if isPostFXParam(r.Action.Param) {
				// postfx_trail/bleed/bleed_radius are project-scoped, not
				// per-layer (internal/rules.PostFXOverrideLayerIndex); the
				// action's layer_index is ignored at evaluation time, so it
				// never needs to name a real layer.
				continue
			}
			if r.Action.LayerIndex < 0 || r.Action.LayerIndex >= len(p.Layers) {
				out = append(out, errs.New(errs.ERuleLayerParamUnsupported, path+".action", "layer_index %d out of range", r.Action.LayerIndex))
				continue
			}
			layer := p.Layers[r.Action.LayerIndex]
			if kind, needed := ruleParamNeedsOperator(r.Action.Param); needed {
				if !layerHasOperator(layer, kind) {
					code := errs.ERuleOpGainNoOperator
					if kind == schema.OpGamma {
						code = errs.ERuleOpGammaNoOperator
					}
					out = append(out, errs.New(code, path+".action", "layer %d has no %s operator for param %q", r.Action.LayerIndex, kind, r.Action.Param))
				}
			}
		}
		if r.Action.Kind == schema.ActionSetVar || r.Action.Kind == schema.ActionAddVar {
			out = append(out, validateVarWrite(p, r.Action.VarKind, r.Action.Var, path+".action")...)
		}
	}
	return out
}

func isKnownLayerParam(p schema.LayerParam) bool {
	switch p {
	case schema.ParamOpacity, schema.ParamParamBrightness, schema.ParamOpGain, schema.ParamOpGamma,
		schema.ParamPostFXTrail, schema.ParamPostFXBleed, schema.ParamPostFXBleedRadius:
		return true
	default:
		return false
	}
}

func isPostFXParam(p schema.LayerParam) bool {
	switch p {
	case schema.ParamPostFXTrail, schema.ParamPostFXBleed, schema.ParamPostFXBleedRadius:
		return true
	default:
		return false
	}
}

func layerHasOperator(l schema.Layer, kind schema.OperatorKind) bool {
	for _, op := range l.Operators {
		if op.Kind == kind {
			return true
		}
	}
	return false
}

func validateVarRef(p *schema.Project, signal, path string) []*errs.ValidationError {
	if signal == "" {
		return nil
	}
	name, ok := cutVarPrefix(signal)
	if !ok {
		return nil // not a var.*/toggle.* reference; signal bus resolves it
	}
	if _, ok := p.Variables.Number[name]; ok {
		return nil
	}
	if _, ok := p.Variables.Toggle[name]; ok {
		return nil
	}
	return []*errs.ValidationError{errs.New(errs.ERuleUnknownVar, path, "unknown variable %q", signal)}
}

func validateVarWrite(p *schema.Project, kind schema.VarKind, name, path string) []*errs.ValidationError {
	if name == "" {
		return nil
	}
	switch kind {
	case schema.VarNumber:
		if _, ok := p.Variables.Number[name]; !ok {
			return []*errs.ValidationError{errs.New(errs.ERuleBadVarKind, path, "number variable %q not declared", name)}
		}
	case schema.VarToggle:
		if _, ok := p.Variables.Toggle[name]; !ok {
			return []*errs.ValidationError{errs.New(errs.ERuleBadVarKind, path, "toggle variable %q not declared", name)}
		}
	}
	return nil
}

// cutVarPrefix strips the prefix of a rule Condition/When signal that names
// an author variable: the signal bus's "vars.number."/"vars.toggle." keys,
// or the short "var."/"toggle." forms.
func cutVarPrefix(s string) (string, bool) {
	for _, prefix := range []string{"vars.number.", "vars.toggle.", "var.", "toggle."} {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			return s[len(prefix):], true
		}
	}
	return "", false
}

const maxModulotorsPerLayer = 2

func validateOperators(p *schema.Project) []*errs.ValidationError {
	var out []*errs.ValidationError
	for i, l := range p.Layers {
		enabled := 0
		for _, m := range l.Modulotors {
			if m.Enabled {
				enabled++
			}
		}
		if enabled > maxModulotorsPerLayer {
			out = append(out, errs.New(errs.ELayerTooManyModulotors, fmt.Sprintf("layers[%d]", i), "%d enabled modulotors exceeds the export cap of %d", enabled, maxModulotorsPerLayer))
		}
	}
	return out
}

func validateEra(p *schema.Project, era Era) []*errs.ValidationError {
	limits, restricted := limitsFor(era)
	if !restricted {
		return nil
	}
	var out []*errs.ValidationError
	if limits.MaxLayers > 0 && len(p.Layers) > limits.MaxLayers {
		out = append(out, errs.New(errs.EEraMaxLayers, "layers", "era %q allows at most %d layers, project has %d", era, limits.MaxLayers, len(p.Layers)))
	}
	if limits.RulesBlocked && hasEnabledRule(p) {
		out = append(out, errs.New(errs.EEraRulesBlocked, "rules_v6", "era %q does not permit rules_v6", era))
	}
	if limits.OperatorsBlock && hasAnyOperator(p) {
		out = append(out, errs.New(errs.EEraOperatorsBlocked, "layers", "era %q does not permit operators", era))
	}
	if limits.AudioBlocked && p.Export.AudioBackend != "" && p.Export.AudioBackend != "none" {
		out = append(out, errs.New(errs.EEraAudioBlocked, "export.audio_backend", "era %q does not permit audio input", era))
	}
	if limits.MatrixBlocked && p.Layout.Kind == schema.LayoutCells {
		out = append(out, errs.New(errs.EEraMatrixBlocked, "layout", "era %q does not permit matrix layouts", era))
	}
	return out
}

func hasEnabledRule(p *schema.Project) bool {
	for _, r := range p.RulesV6 {
		if r.Enabled {
			return true
		}
	}
	return false
}

func hasAnyOperator(p *schema.Project) bool {
	for _, l := range p.Layers {
		if len(l.Operators) > 0 {
			return true
		}
	}
	return false
}

func validateTargetPack(p *schema.Project, pack *targets.Pack) []*errs.ValidationError {
	var out []*errs.ValidationError
	if !pack.SupportsLayout(p.Layout) {
		out = append(out, errs.New(errs.ETargetPackInvalid, "layout", "target %q does not support layout kind %q", pack.ID, p.Layout.Kind))
	}
	if pack.Capabilities.MaxLEDs > 0 && p.Layout.NumLEDs() > pack.Capabilities.MaxLEDs {
		out = append(out, errs.New(errs.ETargetPackInvalid, "layout", "target %q supports at most %d LEDs, project has %d", pack.ID, pack.Capabilities.MaxLEDs, p.Layout.NumLEDs()))
	}
	ledBackend := targets.ResolveLEDBackend(p, pack)
	audioBackend := targets.ResolveAudioBackend(p, pack)
	for _, problem := range pack.ValidateBackends(ledBackend, audioBackend) {
		out = append(out, errs.New(errs.ETargetPackInvalid, "export", "%s", problem))
	}
	if !pack.Capabilities.SupportsPostFXRT && (p.Export.PostFX.BleedAmount > 0 || p.Export.PostFX.TrailAmount > 0) {
		out = append(out, errs.New(errs.ETargetPackInvalid, "export.postfx", "target %q has no post-fx runtime support", pack.ID))
	}
	if !pack.Capabilities.SupportsOperatorsRT && hasAnyOperator(p) {
		out = append(out, errs.New(errs.ETargetPackInvalid, "layers", "target %q has no operators runtime support", pack.ID))
	}
	return out
}
