// targets.go - target pack capability contracts (spec.md §4.10, §4.11).
//
// A target pack is normally a directory with a target.json manifest and an
// emit() function; here each pack is a Go value built at init time (the
// manifest shape is still what Capabilities mirrors), grounded on the
// teacher's video_backend_*.go / gui_frontend_*.go swappable-backend
// pattern generalized from "one struct per backend" to "one struct per
// target pack".
package targets

import (
	"fmt"
	"sort"

	"github.com/andyleaver/modulo/internal/schema"
)

// Capabilities is a target pack's static declaration of what it supports,
// mirroring spec.md §4.10's target.json "capabilities" object.
type Capabilities struct {
	DefaultLEDBackend   string
	DefaultAudioBackend string
	LEDBackends         []string
	AudioBackends       []string
	SupportsMatrix      bool
	SupportsPostFXRT    bool
	SupportsOperatorsRT bool
	MaxLEDs             int
}

// Pack is one registered firmware target (e.g. "avr-fastled-strip").
type Pack struct {
	ID           string
	Name         string
	Arch         string // "avr", "esp32", "rp2040", "teensy"
	Capabilities Capabilities

	// LEDImpl/AudioImpl/MatrixImpl supply the @@LED_IMPL@@/@@AUDIO_IMPL@@/
	// @@MATRIX_IMPL@@ template fragments (spec.md §4.10 step 7). MatrixImpl
	// is empty for packs that don't declare SupportsMatrix.
	LEDImpl    string
	AudioImpl  string
	MatrixImpl string

	// LibDeps is the platformio.ini lib_deps list for OutputPlatformIO.
	LibDeps []string
	Board   string // platformio board id
	FQBN    string // arduino-cli fully qualified board name
}

// Registry is the frozen, process-wide set of available target packs.
type Registry struct {
	byID   map[string]*Pack
	frozen bool
}

func NewRegistry() *Registry { return &Registry{byID: make(map[string]*Pack)} }

// Register adds a pack. Panics on duplicate id or after Freeze, matching
// the behavior catalog's and signal bus registry's init-time-only policy.
func (r *Registry) Register(p *Pack) {
	if r.frozen {
		panic(fmt.Sprintf("targets: Register(%q) after registry frozen", p.ID))
	}
	if _, dup := r.byID[p.ID]; dup {
		panic(fmt.Sprintf("targets: duplicate target pack id %q", p.ID))
	}
	r.byID[p.ID] = p
}

func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) Lookup(id string) (*Pack, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ResolveLEDBackend applies spec.md §4.10's precedence: explicit
// project.export.led_backend, then the pack default, then the final
// hardcoded fallback.
func ResolveLEDBackend(p *schema.Project, pack *Pack) string {
	if p.Export.LEDBackend != "" {
		return p.Export.LEDBackend
	}
	if pack != nil && pack.Capabilities.DefaultLEDBackend != "" {
		return pack.Capabilities.DefaultLEDBackend
	}
	return "fastled"
}

// ResolveAudioBackend mirrors ResolveLEDBackend for the audio backend.
func ResolveAudioBackend(p *schema.Project, pack *Pack) string {
	if p.Export.AudioBackend != "" {
		return p.Export.AudioBackend
	}
	if pack != nil && pack.Capabilities.DefaultAudioBackend != "" {
		return pack.Capabilities.DefaultAudioBackend
	}
	return "none"
}

// SupportsLayout reports whether led/audio backend choices aside, this
// pack's declared capabilities allow the project's layout kind at all
// (matrix support gate).
func (p *Pack) SupportsLayout(l schema.Layout) bool {
	if l.Kind == schema.LayoutCells {
		return p.Capabilities.SupportsMatrix
	}
	return true
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// ValidateBackends checks that the resolved led/audio backend choices are
// ones this pack actually declares.
func (p *Pack) ValidateBackends(ledBackend, audioBackend string) []string {
	var problems []string
	if !contains(p.Capabilities.LEDBackends, ledBackend) {
		problems = append(problems, fmt.Sprintf("led_backend %q not supported by target %q", ledBackend, p.ID))
	}
	if audioBackend != "none" && !contains(p.Capabilities.AudioBackends, audioBackend) {
		problems = append(problems, fmt.Sprintf("audio_backend %q not supported by target %q", audioBackend, p.ID))
	}
	return problems
}
