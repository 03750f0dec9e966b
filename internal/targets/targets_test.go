package targets

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andyleaver/modulo/internal/schema"
)

func samplePack(id string) *Pack {
	return &Pack{
		ID:   id,
		Name: id,
		Arch: "avr",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "none",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none"},
			MaxLEDs:             512,
		},
	}
}

func TestRegistry_RegisterLookupIDs(t *testing.T) {
	r := NewRegistry()
	r.Register(samplePack("b"))
	r.Register(samplePack("a"))

	require.Equal(t, []string{"a", "b"}, r.IDs())

	p, ok := r.Lookup("a")
	require.True(t, ok)
	require.Equal(t, "a", p.ID)

	_, ok = r.Lookup("missing")
	require.False(t, ok)
}

func TestRegistry_DuplicateRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(samplePack("a"))
	require.Panics(t, func() { r.Register(samplePack("a")) })
}

func TestRegistry_RegisterAfterFreezePanics(t *testing.T) {
	r := NewRegistry()
	r.Freeze()
	require.Panics(t, func() { r.Register(samplePack("a")) })
}

func TestResolveLEDBackend_Precedence(t *testing.T) {
	pack := samplePack("p")
	p := &schema.Project{}
	require.Equal(t, "fastled", ResolveLEDBackend(p, pack))

	p.Export.LEDBackend = "neopixelbus"
	require.Equal(t, "neopixelbus", ResolveLEDBackend(p, pack))

	require.Equal(t, "fastled", ResolveLEDBackend(&schema.Project{}, nil))
}

func TestResolveAudioBackend_Precedence(t *testing.T) {
	pack := samplePack("p")
	pack.Capabilities.DefaultAudioBackend = ""
	p := &schema.Project{}
	require.Equal(t, "none", ResolveAudioBackend(p, pack))

	p.Export.AudioBackend = "portaudio"
	require.Equal(t, "portaudio", ResolveAudioBackend(p, pack))
}

func TestPack_SupportsLayout(t *testing.T) {
	pack := samplePack("p")
	strip := schema.Layout{Kind: schema.LayoutStrip}
	matrix := schema.Layout{Kind: schema.LayoutCells}

	require.True(t, pack.SupportsLayout(strip))
	require.False(t, pack.SupportsLayout(matrix))

	pack.Capabilities.SupportsMatrix = true
	require.True(t, pack.SupportsLayout(matrix))
}

func TestPack_ValidateBackends(t *testing.T) {
	pack := samplePack("p")

	require.Empty(t, pack.ValidateBackends("fastled", "none"))

	problems := pack.ValidateBackends("neopixelbus", "portaudio")
	require.Len(t, problems, 2)
}
