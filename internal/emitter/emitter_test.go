package emitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/targets"
	"github.com/andyleaver/modulo/internal/validate"
)

func exportableProject() *schema.Project {
	return &schema.Project{
		SchemaVersion: 6,
		Name:          "Demo Project",
		Layout:        schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 30, LEDPin: 6}},
		Layers: []schema.Layer{
			{
				UID: "l1", Name: "base", Behavior: "solid", Enabled: true, Opacity: 1,
				BlendMode: schema.BlendOver, TargetKind: schema.TargetAll,
				Params: map[string]schema.Value{"color": schema.TupleValue(255, 0, 0)},
			},
		},
		Zones:  map[string]schema.Zone{},
		Groups: map[string]schema.Group{},
		Masks:  map[string]schema.Mask{},
	}
}

func avrPack(t *testing.T) *targets.Pack {
	t.Helper()
	reg := targets.Defaults()
	reg.Freeze()
	pack, ok := reg.Lookup("avr-fastled-strip")
	require.True(t, ok)
	return pack
}

func TestEmit_ArduinoOutputRendersCleanINO(t *testing.T) {
	p := exportableProject()
	catalog := behaviors.Default()
	pack := avrPack(t)

	artifact, err := Emit(p, catalog, Options{TargetPack: pack, Era: validate.EraUnrestricted})
	require.NoError(t, err)
	require.Equal(t, schema.OutputArduino, artifact.Mode)
	require.Len(t, artifact.Files, 1)

	var source string
	for path, content := range artifact.Files {
		require.True(t, strings.HasSuffix(path, ".ino"))
		require.Contains(t, path, "Demo_Project")
		source = content
	}
	require.Contains(t, source, "MODULO_EXPORT")
	require.NotContains(t, source, "@@")
}

func TestEmit_PlatformIOOutputWritesIniWithSortedLibDeps(t *testing.T) {
	p := exportableProject()
	p.Export.OutputMode = schema.OutputPlatformIO
	catalog := behaviors.Default()
	pack := avrPack(t)

	artifact, err := Emit(p, catalog, Options{TargetPack: pack})
	require.NoError(t, err)
	require.Equal(t, schema.OutputPlatformIO, artifact.Mode)
	require.Contains(t, artifact.Files, "src/main.cpp")
	require.Contains(t, artifact.Files, "platformio.ini")

	ini := artifact.Files["platformio.ini"]
	require.Contains(t, ini, "board = "+pack.Board)
	require.Contains(t, ini, "platform = "+pack.Arch)
}

func TestEmit_NoTargetPackIsAnError(t *testing.T) {
	p := exportableProject()
	_, err := Emit(p, behaviors.Default(), Options{})
	require.Error(t, err)
}

func TestEmit_EmptyProjectFailsValidation(t *testing.T) {
	p := &schema.Project{SchemaVersion: 6, Name: "empty"}
	_, err := Emit(p, behaviors.Default(), Options{TargetPack: avrPack(t)})
	require.Error(t, err)
}

func TestEmit_UnknownBehaviorFailsValidation(t *testing.T) {
	p := exportableProject()
	p.Layers[0].Behavior = "nonexistent"
	_, err := Emit(p, behaviors.Default(), Options{TargetPack: avrPack(t)})
	require.Error(t, err)
}

func TestSanitizeSketchName(t *testing.T) {
	require.Equal(t, "modulo_export", sanitizeSketchName(""))
	require.Equal(t, "Demo_Project__42", sanitizeSketchName("Demo Project #42"))
}
