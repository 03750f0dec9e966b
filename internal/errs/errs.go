// errs.go - shared validation/export error codes for Modulo

// Package errs defines the fixed vocabulary of error codes that cross the
// preview/export/validation boundary (spec.md §7). Callers compare against
// the Code field rather than parsing message text.
package errs

import "fmt"

// Code is one of the fixed E_* identifiers named in spec.md.
type Code string

const (
	ERuleUnknownVar           Code = "E_RULE_UNKNOWN_VAR"
	ERuleBadVarKind           Code = "E_RULE_BAD_VAR_KIND"
	ERuleLayerParamUnsupported Code = "E_RULE_LAYER_PARAM_UNSUPPORTED"
	ERuleOpGainNoOperator     Code = "E_RULE_OP_GAIN_NO_OPERATOR"
	ERuleOpGammaNoOperator    Code = "E_RULE_OP_GAMMA_NO_OPERATOR"

	EBehaviorNotExportable Code = "E_BEHAVIOR_NOT_EXPORTABLE"
	ELayoutEffectMismatch  Code = "E_LAYOUT_EFFECT_MISMATCH"
	ELayerTooManyModulotors Code = "E_LAYER_TOO_MANY_MODULOTORS"
	ETargetPackInvalid     Code = "E_TARGET_PACK_INVALID"
	ENoLayers              Code = "E_NO_LAYERS"
	EBadLayout             Code = "E_BAD_LAYOUT"

	EEraMaxLayers      Code = "E_ERA_MAX_LAYERS"
	EEraEffectBlocked  Code = "E_ERA_EFFECT_BLOCKED"
	EEraRulesBlocked   Code = "E_ERA_RULES_BLOCKED"
	EEraOperatorsBlocked Code = "E_ERA_OPERATORS_BLOCKED"
	EEraAudioBlocked   Code = "E_ERA_AUDIO_BLOCKED"
	EEraMatrixBlocked  Code = "E_ERA_MATRIX_BLOCKED"
)

// ValidationError is a single, precisely-coded rejection. Validators collect
// these rather than stopping at the first one (original_source/export/preconditions.py
// does the same: return every problem found, not just the first).
type ValidationError struct {
	Code    Code
	Path    string // dotted path into the project, e.g. "layers[2].rules_v6[0]"
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Path)
}

func New(code Code, path, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

// ExportValidationError is raised by the emitter's post-render validation
// pass (spec.md §4.10 step 8): unreplaced tokens, missing marker, or missing
// required definitions.
type ExportValidationError struct {
	Reasons []string
}

func (e *ExportValidationError) Error() string {
	if len(e.Reasons) == 1 {
		return "export validation failed: " + e.Reasons[0]
	}
	return fmt.Sprintf("export validation failed (%d reasons): %v", len(e.Reasons), e.Reasons)
}
