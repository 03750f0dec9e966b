// emitter.go - the firmware emitter's template rendering and output-mode
// packaging (spec.md §4.10).
//
// Token substitution uses text/template with its delimiters switched to
// "@@"/"@@" (the literal @@NAME@@ syntax spec.md describes), the same
// approach the teacher's email service uses for its own parse-and-execute
// templates, just with different delimiters and a richer data value.
package emitter

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/errs"
	"github.com/andyleaver/modulo/internal/postfx"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/targets"
	"github.com/andyleaver/modulo/internal/validate"
)

//go:embed templates/sketch.ino.tmpl
var templatesFS embed.FS

// Artifact is the rendered export: either a single .ino (OutputArduino) or
// a platformio project's file set (OutputPlatformIO), keyed by relative
// path.
type Artifact struct {
	Mode  schema.OutputMode
	Files map[string]string
}

// Options selects the export target and policy gate; TargetPack is
// required, Era may be validate.EraUnrestricted.
type Options struct {
	TargetPack *targets.Pack
	Era        validate.Era
}

// Emit runs preconditions (spec.md §4.10 step 1), lowers the project
// (step 2-6), renders the template with the target pack's contributed
// fragments (step 7), and validates the rendered output (step 8).
func Emit(p *schema.Project, catalog *behaviors.Catalog, opts Options) (*Artifact, error) {
	if opts.TargetPack == nil {
		return nil, fmt.Errorf("emitter: no target pack selected")
	}

	problems := validate.Validate(p, catalog, validate.Options{Era: opts.Era, TargetPack: opts.TargetPack})
	if len(problems) > 0 {
		return nil, firstProblemsError(problems)
	}

	lp := lower(p, catalog)
	rd := newRenderData(lp, opts.TargetPack)

	source, err := render(rd)
	if err != nil {
		return nil, fmt.Errorf("rendering firmware template: %w", err)
	}

	if err := postRenderValidate(source); err != nil {
		return nil, err
	}

	return packageOutput(p, opts.TargetPack, source)
}

func firstProblemsError(problems []*errs.ValidationError) error {
	if len(problems) == 1 {
		return problems[0]
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.Error()
	}
	return fmt.Errorf("%d export preconditions failed:\n%s", len(problems), strings.Join(msgs, "\n"))
}

// renderData wraps loweredProject with the fields the template needs but
// that aren't properly part of the lowering (target identity, target-pack
// source fragments, and a handful of derived counts/flattened arrays).
type renderData struct {
	loweredProject

	TargetID   string
	TargetArch string
	LEDImpl    string
	AudioImpl  string
	MatrixImpl string

	ModSlotsPerLayer int
	OpsPerLayer      int
	PostFXMaxLEDs    int

	GroupOffsets     []int
	GroupIndexesFlat []int
	GroupIndexCount  int

	RulesBody       string
	SignalValueBody string
}

func newRenderData(lp loweredProject, pack *targets.Pack) renderData {
	maxLEDs := postfx.MaxLEDsOther
	if pack.Arch == "avr" {
		maxLEDs = postfx.MaxLEDsAVR
	}
	rd := renderData{
		loweredProject:   lp,
		TargetID:         pack.ID,
		TargetArch:       pack.Arch,
		LEDImpl:          pack.LEDImpl,
		AudioImpl:        pack.AudioImpl,
		MatrixImpl:       pack.MatrixImpl,
		ModSlotsPerLayer: maxModSlotsPerLayer,
		OpsPerLayer:      maxOperatorsPerLayer,
		PostFXMaxLEDs:    maxLEDs,
	}
	rd.RulesBody = generateRulesBody(lp.Rules, lp)
	rd.SignalValueBody = generateSignalValueBody(lp)

	offset := 0
	for _, g := range lp.Groups {
		rd.GroupOffsets = append(rd.GroupOffsets, offset)
		rd.GroupIndexesFlat = append(rd.GroupIndexesFlat, g.Indices...)
		offset += len(g.Indices)
	}
	rd.GroupIndexCount = offset
	if rd.GroupIndexCount == 0 {
		rd.GroupIndexCount = 1 // C forbids a zero-length array
	}
	return rd
}

var funcMap = template.FuncMap{
	"f32": formatFloat,
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "f"
}

func render(rd renderData) (string, error) {
	tmpl, err := template.New("sketch.ino.tmpl").Delims("@@", "@@").Funcs(funcMap).ParseFS(templatesFS, "templates/sketch.ino.tmpl")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, rd); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// requiredDefinitions are the identifiers spec.md §6 says every rendered
// sketch must define, checked by postRenderValidate.
var requiredDefinitions = []string{
	"NUM_LEDS", "LED_PIN", "LAYERS",
	"state_reset_layer", "computeLayerParams", "apply_layer_operators",
}

// postRenderValidate enforces spec.md §4.10 step 8: the marker must survive,
// no @@token@@ may remain unreplaced, and every §6 required definition must
// be present in the rendered output.
func postRenderValidate(source string) error {
	var reasons []string
	if !strings.Contains(source, "MODULO_EXPORT") {
		reasons = append(reasons, "missing MODULO_EXPORT marker")
	}
	if idx := strings.Index(source, "@@"); idx >= 0 {
		end := idx + 40
		if end > len(source) {
			end = len(source)
		}
		reasons = append(reasons, fmt.Sprintf("unreplaced token near offset %d: %q", idx, source[idx:end]))
	}
	for _, name := range requiredDefinitions {
		if !strings.Contains(source, name) {
			reasons = append(reasons, fmt.Sprintf("missing required definition %q", name))
		}
	}
	if len(reasons) > 0 {
		return &errs.ExportValidationError{Reasons: reasons}
	}
	return nil
}

func packageOutput(p *schema.Project, pack *targets.Pack, source string) (*Artifact, error) {
	switch p.Export.OutputMode {
	case schema.OutputPlatformIO:
		return &Artifact{
			Mode: schema.OutputPlatformIO,
			Files: map[string]string{
				"src/main.cpp":   source,
				"platformio.ini": platformioIni(pack),
			},
		}, nil
	default:
		name := sanitizeSketchName(p.Name)
		return &Artifact{
			Mode:  schema.OutputArduino,
			Files: map[string]string{name + "/" + name + ".ino": source},
		}, nil
	}
}

func platformioIni(pack *targets.Pack) string {
	var deps strings.Builder
	sort.Strings(pack.LibDeps)
	for _, d := range pack.LibDeps {
		deps.WriteString("    ")
		deps.WriteString(d)
		deps.WriteString("\n")
	}
	return fmt.Sprintf(`[env:%s]
platform = %s
board = %s
framework = arduino
lib_deps =
%s`, pack.ID, pack.Arch, pack.Board, deps.String())
}

func sanitizeSketchName(name string) string {
	if name == "" {
		return "modulo_export"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
