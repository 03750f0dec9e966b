package errs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationError_ErrorFormatsPathWhenPresent(t *testing.T) {
	err := New(ENoLayers, "layers", "project has no layers")
	require.Equal(t, `E_NO_LAYERS: project has no layers (layers)`, err.Error())
}

func TestValidationError_ErrorOmitsPathWhenEmpty(t *testing.T) {
	err := &ValidationError{Code: EBadLayout, Message: "layout has zero LEDs"}
	require.Equal(t, `E_BAD_LAYOUT: layout has zero LEDs`, err.Error())
}

func TestNew_FormatsMessage(t *testing.T) {
	err := New(ERuleUnknownVar, "rules_v6[0].when", "unknown variable %q", "foo")
	require.Equal(t, `unknown variable "foo"`, err.Message)
}

func TestExportValidationError_SingleVsMultipleReasons(t *testing.T) {
	single := &ExportValidationError{Reasons: []string{"missing MODULO_EXPORT marker"}}
	require.Equal(t, "export validation failed: missing MODULO_EXPORT marker", single.Error())

	multi := &ExportValidationError{Reasons: []string{"a", "b"}}
	require.Contains(t, multi.Error(), "export validation failed (2 reasons)")
}
