// Command modulo-golden is the golden_exports tool (spec.md §6/CLI surface):
// it renders every fixture project against every selected target pack,
// hashes the result, and compares against the committed
// golden_exports/golden_exports.json. A hash mismatch writes a diff hint
// under parity_reports/golden_mismatch/ instead of failing silently, and a
// fixture with no committed entry is reported separately from a changed
// one, matching the exit code contract:
//
//	0 - every fixture matches its committed hash
//	1 - at least one fixture's rendered hash differs from golden_exports.json
//	2 - at least one fixture has no committed entry at all
//
// --dump-png is a debug aid unrelated to the hash contract: it additionally
// renders a handful of preview-evaluator frames per fixture as PNGs so a
// human can eyeball what changed alongside the hash diff.
package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/image/draw"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/emitter"
	"github.com/andyleaver/modulo/internal/evaluator"
	"github.com/andyleaver/modulo/internal/mlog"
	"github.com/andyleaver/modulo/internal/persist"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
	"github.com/andyleaver/modulo/internal/targets"
	"github.com/andyleaver/modulo/internal/validate"
)

const excerptLines = 8

// Excerpt is the head/tail/line_count slice of a rendered sketch kept in
// golden_exports.json so a reviewer can sanity-check a hash change without
// pulling the full .ino out of history.
type Excerpt struct {
	Head      string `json:"head"`
	Tail      string `json:"tail"`
	LineCount int    `json:"line_count"`
}

// Fixture is one fixture's recorded golden state.
type Fixture struct {
	INOSha256  string  `json:"ino_sha256"`
	INOBytes   int     `json:"ino_bytes"`
	INOExcerpt Excerpt `json:"ino_excerpt"`
}

// GoldenFile is the full golden_exports/golden_exports.json document.
type GoldenFile struct {
	Fixtures map[string]Fixture `json:"fixtures"`
}

func main() {
	defer persist.InstallCrashHandler(".")

	var fixturesDir = pflag.StringP("fixtures-dir", "f", "golden_fixtures", "Directory of fixture project JSON files.")
	var outDir = pflag.StringP("out", "o", "golden_exports", "Directory holding golden_exports.json.")
	var targetList = pflag.StringP("targets", "t", "", "Comma-separated target pack IDs. Empty checks every registered pack.")
	var update = pflag.Bool("update", false, "Regenerate golden_exports.json from the current render instead of comparing.")
	var dumpPNG = pflag.Bool("dump-png", false, "Also render a few preview frames per fixture as PNGs for visual inspection.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - regenerate or check golden firmware export fixtures.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: modulo-golden --fixtures-dir golden_fixtures [--update]\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	fixturePaths, err := listFixtures(*fixturesDir)
	if err != nil {
		mlog.L().Error("listing fixtures", "error", err)
		os.Exit(1)
	}
	if len(fixturePaths) == 0 {
		fmt.Fprintf(os.Stderr, "modulo-golden: no fixture projects found under %s\n", *fixturesDir)
		os.Exit(2)
	}

	registry := targets.Defaults()
	registry.Freeze()
	ids := selectedIDs(registry, *targetList)
	catalog := behaviors.Default()

	current := GoldenFile{Fixtures: map[string]Fixture{}}
	for _, path := range fixturePaths {
		project, issues, err := persist.Load(path)
		if err != nil {
			mlog.L().Error("loading fixture", "path", path, "error", err)
			os.Exit(1)
		}
		for _, issue := range issues {
			mlog.L().Warn("migrated fixture", "path", path, "note", issue.Path)
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		for _, id := range ids {
			pack, ok := registry.Lookup(id)
			if !ok {
				continue
			}
			name := base + "@" + id
			artifact, err := emitter.Emit(project, catalog, emitter.Options{TargetPack: pack, Era: validate.EraUnrestricted})
			if err != nil {
				mlog.L().Error("emit failed for fixture", "fixture", name, "error", err)
				os.Exit(1)
			}
			current.Fixtures[name] = fixtureFor(artifact.Files)

			if *dumpPNG {
				if err := dumpFrames(*outDir, name, project); err != nil {
					mlog.L().Warn("dump-png failed", "fixture", name, "error", err)
				}
			}
		}
	}

	goldenPath := filepath.Join(*outDir, "golden_exports.json")
	if *update {
		if err := writeGolden(goldenPath, current); err != nil {
			mlog.L().Error("writing golden file", "error", err)
			os.Exit(1)
		}
		fmt.Printf("modulo-golden: wrote %d fixtures to %s\n", len(current.Fixtures), goldenPath)
		return
	}

	prior, err := readGolden(goldenPath)
	if err != nil && !os.IsNotExist(err) {
		mlog.L().Error("reading golden file", "error", err)
		os.Exit(1)
	}

	var missing, mismatched []string
	names := make([]string, 0, len(current.Fixtures))
	for name := range current.Fixtures {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got := current.Fixtures[name]
		want, ok := prior.Fixtures[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if want.INOSha256 != got.INOSha256 {
			mismatched = append(mismatched, name)
			if err := writeDiffHint(name, want, got); err != nil {
				mlog.L().Warn("writing diff hint", "fixture", name, "error", err)
			}
		}
	}

	for _, name := range missing {
		fmt.Printf("MISSING  %s (no committed golden entry)\n", name)
	}
	for _, name := range mismatched {
		fmt.Printf("MISMATCH %s\n", name)
	}
	if len(missing) == 0 && len(mismatched) == 0 {
		fmt.Printf("modulo-golden: all %d fixtures match\n", len(names))
		return
	}
	if len(missing) > 0 {
		os.Exit(2)
	}
	os.Exit(1)
}

func listFixtures(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func selectedIDs(r *targets.Registry, list string) []string {
	if list == "" {
		return r.IDs()
	}
	parts := strings.Split(list, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// fixtureFor concatenates an artifact's files in stable path order so a
// single hash covers multi-file platformio exports too.
func fixtureFor(files map[string]string) Fixture {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var joined strings.Builder
	for _, p := range paths {
		joined.WriteString(files[p])
	}
	content := joined.String()

	sum := sha256.Sum256([]byte(content))
	lines := strings.Split(content, "\n")
	return Fixture{
		INOSha256: hex.EncodeToString(sum[:]),
		INOBytes:  len(content),
		INOExcerpt: Excerpt{
			Head:      strings.Join(headLines(lines, excerptLines), "\n"),
			Tail:      strings.Join(tailLines(lines, excerptLines), "\n"),
			LineCount: len(lines),
		},
	}
}

func headLines(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[:n]
}

func tailLines(lines []string, n int) []string {
	if len(lines) < n {
		return lines
	}
	return lines[len(lines)-n:]
}

func readGolden(path string) (GoldenFile, error) {
	var g GoldenFile
	data, err := os.ReadFile(path)
	if err != nil {
		return g, err
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return g, fmt.Errorf("parsing %s: %w", path, err)
	}
	if g.Fixtures == nil {
		g.Fixtures = map[string]Fixture{}
	}
	return g, nil
}

func writeGolden(path string, g GoldenFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// writeDiffHint writes a small before/after excerpt under
// parity_reports/golden_mismatch/ rather than a true unified diff: the full
// rendered source isn't retained between runs, only its excerpt, so this is
// a pointer at what moved, not a complete diff.
func writeDiffHint(name string, want, got Fixture) error {
	dir := filepath.Join("parity_reports", "golden_mismatch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "fixture: %s\n", name)
	fmt.Fprintf(&b, "golden sha256: %s (%d bytes, %d lines)\n", want.INOSha256, want.INOBytes, want.INOExcerpt.LineCount)
	fmt.Fprintf(&b, "current sha256: %s (%d bytes, %d lines)\n\n", got.INOSha256, got.INOBytes, got.INOExcerpt.LineCount)
	b.WriteString("--- golden head ---\n")
	b.WriteString(want.INOExcerpt.Head)
	b.WriteString("\n+++ current head +++\n")
	b.WriteString(got.INOExcerpt.Head)
	b.WriteString("\n\n--- golden tail ---\n")
	b.WriteString(want.INOExcerpt.Tail)
	b.WriteString("\n+++ current tail +++\n")
	b.WriteString(got.INOExcerpt.Tail)
	b.WriteString("\n")

	path := filepath.Join(dir, name+".diff")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

const goldenScale = 12

func dumpFrames(outDir, name string, project *schema.Project) error {
	dir := filepath.Join(outDir, "frames", name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	catalog := behaviors.Default()
	providers := signalbus.NewRegistry()
	providers.Freeze()
	eval := evaluator.New(project, catalog, providers)

	now := time.Unix(0, 0)
	const frames = 8
	for i := 0; i < frames; i++ {
		now = now.Add(evaluator.FixedDT)
		eval.Advance(evaluator.FixedDT, signalbus.AudioFrame{}, now)
		fb := eval.Framebuffer()
		path := filepath.Join(dir, fmt.Sprintf("frame_%02d.png", i))
		if err := writePNG(path, fb, project.Layout); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, fb []behaviors.RGB, layout schema.Layout) error {
	w, h := len(fb), 1
	if layout.Kind == schema.LayoutCells && layout.Cells.Width > 0 {
		w, h = layout.Cells.Width, layout.Cells.Height
	}
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, px := range fb {
		x, y := i%w, i/w
		if y >= h {
			break
		}
		src.SetRGBA(x, y, color.RGBA{R: clamp8(px.R), G: clamp8(px.G), B: clamp8(px.B), A: 255})
	}

	dst := image.NewRGBA(image.Rect(0, 0, w*goldenScale, h*goldenScale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
