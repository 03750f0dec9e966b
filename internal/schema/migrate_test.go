package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_AssignsUIDAndMirrorsBehavior(t *testing.T) {
	raw := `{
		"schema_version": 5,
		"layers": [
			{"name": "legacy", "effect": "chase", "enabled": true, "opacity": 1, "params": {}}
		]
	}`
	var p Project
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	issues := Normalize(&p)
	require.NotEmpty(t, issues)
	require.NotEmpty(t, p.Layers[0].UID)
	require.Equal(t, "chase", p.Layers[0].Behavior)

	out, err := json.Marshal(&p)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	layer := decoded["layers"].([]any)[0].(map[string]any)
	require.Equal(t, "chase", layer["effect"])
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := `{"layers": [{"name": "x", "behavior": "solid", "opacity": 1, "params": {}}]}`
	var p Project
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	Normalize(&p)
	uid := p.Layers[0].UID

	second := Normalize(&p)
	require.Empty(t, second)
	require.Equal(t, uid, p.Layers[0].UID)
}

func TestNormalize_MasksStripLegacyAliasesAndGroupShadows(t *testing.T) {
	p := Project{
		Groups: map[string]Group{"front": {Indices: []int{1, 2, 3}}},
		Masks: map[string]Mask{
			"zone:front":  {Indices: []int{1, 2}},
			"shadow":      {Indices: []int{1, 2, 3}},
			"independent": {Indices: []int{9}},
		},
	}
	Normalize(&p)
	_, hasAliased := p.Masks["zone:front"]
	require.False(t, hasAliased)
	_, hasShadow := p.Masks["shadow"]
	require.False(t, hasShadow)
	_, hasIndependent := p.Masks["independent"]
	require.True(t, hasIndependent)
}

func TestInferCellsFromCount(t *testing.T) {
	c, ok := InferCellsFromCount(16, 8, 128)
	require.True(t, ok)
	require.Equal(t, 16, c.Width)
	require.Equal(t, 8, c.Height)

	_, ok = InferCellsFromCount(16, 8, 100)
	require.False(t, ok)
}
