package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitize_AcyclicRoundTrip(t *testing.T) {
	v := map[string]any{
		"b": 2.0,
		"a": []any{1.0, "x", true, nil},
		"nested": map[string]any{
			"z": 3.0,
		},
	}
	out, issues := Sanitize(v)
	require.Empty(t, issues)

	raw, err := json.Marshal(out)
	require.NoError(t, err)

	var roundTripped any
	require.NoError(t, json.Unmarshal(raw, &roundTripped))

	rawOrig, err := json.Marshal(v)
	require.NoError(t, err)
	var orig any
	require.NoError(t, json.Unmarshal(rawOrig, &orig))

	require.Equal(t, orig, roundTripped)
}

func TestSanitize_BreaksCycles(t *testing.T) {
	self := map[string]any{"name": "loop"}
	self["self"] = self

	out, issues := Sanitize(self)
	require.NotEmpty(t, issues)

	foundCycle := false
	for _, iss := range issues {
		if iss.Kind == IssueCycle {
			foundCycle = true
		}
	}
	require.True(t, foundCycle, "expected at least one cycle issue")

	// result must be JSON-marshalable now
	_, err := json.Marshal(out)
	require.NoError(t, err)
}

func TestSanitize_UnknownObjectStringified(t *testing.T) {
	ch := make(chan int)
	out, issues := Sanitize(map[string]any{"weird": ch})
	require.NotEmpty(t, issues)
	m := out.(map[string]any)
	_, isString := m["weird"].(string)
	require.True(t, isString)
}
