// Command modulo-compile-sanity is the compile_sanity tool (spec.md
// §6/CLI surface): it renders a project's firmware export against every
// selected target pack, then invokes arduino-cli (FQBN-mapped per pack) to
// actually compile the sketch, writing a timestamped
// parity_reports/compile_sanity_<ts>/summary.json. When arduino-cli is not
// on PATH every pack is reported as "skipped"; a pack whose compile fails,
// an FQBN the local arduino-cli does not have installed included, is
// reported as "compile_failed".
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/emitter"
	"github.com/andyleaver/modulo/internal/mlog"
	"github.com/andyleaver/modulo/internal/persist"
	"github.com/andyleaver/modulo/internal/targets"
	"github.com/andyleaver/modulo/internal/validate"
)

// fqbnMap is the MODULO_FQBN_MAP side table: an operator-editable override
// of a target pack's FQBN/board, mirroring the teacher's tocalls.yaml
// device-id side table load (deviceid.go). Packs absent from the map use
// their compiled-in default.
type fqbnMap map[string]struct {
	FQBN  string `yaml:"fqbn"`
	Board string `yaml:"board"`
}

// PackResult is one target pack's row in summary.json.
type PackResult struct {
	TargetID string `json:"target_id"`
	FQBN     string `json:"fqbn"`
	Status   string `json:"status"` // ok, render_failed, compile_failed, skipped
	Detail   string `json:"detail,omitempty"`
}

// Summary is the full parity_reports/compile_sanity_<ts>/summary.json document.
type Summary struct {
	Project   string       `json:"project"`
	Timestamp string       `json:"timestamp"`
	Results   []PackResult `json:"results"`
}

func main() {
	defer persist.InstallCrashHandler(".")

	var projectPath = pflag.StringP("project", "p", "", "Project file to render (required).")
	var reportDir = pflag.StringP("report-dir", "r", "parity_reports", "Base directory for parity_reports output.")
	var targetList = pflag.StringP("targets", "t", "", "Comma-separated target pack IDs to check. Empty checks every registered pack.")
	var fqbnMapPath = pflag.String("fqbn-map", os.Getenv("MODULO_FQBN_MAP"), "Path to a MODULO_FQBN_MAP YAML file overriding pack FQBN/board values.")
	var era = pflag.String("era", "", "Era policy to validate against (empty, classic, modern).")
	var arduinoCLI = pflag.String("arduino-cli", "arduino-cli", "Path to the arduino-cli binary. Skipped per pack if not found.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - check a project compiles cleanly for every target pack.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: modulo-compile-sanity --project project.json\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "modulo-compile-sanity: --project is required")
		pflag.Usage()
		os.Exit(1)
	}

	project, issues, err := persist.Load(*projectPath)
	if err != nil {
		mlog.L().Error("load failed", "error", err)
		os.Exit(1)
	}
	for _, issue := range issues {
		mlog.L().Warn("migrated project", "path", issue.Path, "note", issue.Note)
	}

	overrides, err := loadFQBNMap(*fqbnMapPath)
	if err != nil {
		mlog.L().Error("loading fqbn map", "error", err)
		os.Exit(1)
	}

	registry := targets.Defaults()
	registry.Freeze()
	ids := selectedIDs(registry, *targetList)
	catalog := behaviors.Default()
	width := terminalWidth()

	stamp := nowStamp()
	workDir := filepath.Join(*reportDir, "compile_sanity_"+stamp, "sketches")

	cliAvailable := commandExists(*arduinoCLI)
	if !cliAvailable {
		mlog.L().Warn("arduino-cli not found, packs will be reported as skipped", "path", *arduinoCLI)
	}

	summary := Summary{Project: *projectPath, Timestamp: stamp}
	var failures int
	for _, id := range ids {
		pack, ok := registry.Lookup(id)
		if !ok {
			summary.Results = append(summary.Results, PackResult{TargetID: id, Status: "skipped", Detail: "unknown target pack"})
			continue
		}
		applyFQBNOverride(pack, overrides)

		result := PackResult{TargetID: id, FQBN: pack.FQBN}
		opts := emitter.Options{TargetPack: pack, Era: validate.Era(*era)}
		artifact, err := emitter.Emit(project, catalog, opts)
		if err != nil {
			result.Status, result.Detail = "render_failed", err.Error()
			failures++
			summary.Results = append(summary.Results, result)
			printRow(width, id, pack.FQBN, result.Status)
			continue
		}

		sketchDir := filepath.Join(workDir, id)
		if err := writeArtifact(sketchDir, artifact.Files); err != nil {
			result.Status, result.Detail = "render_failed", err.Error()
			failures++
			summary.Results = append(summary.Results, result)
			printRow(width, id, pack.FQBN, result.Status)
			continue
		}

		if !cliAvailable {
			result.Status = "skipped"
			result.Detail = "arduino-cli not available"
			summary.Results = append(summary.Results, result)
			printRow(width, id, pack.FQBN, result.Status)
			continue
		}

		if err := compileSketch(*arduinoCLI, sketchDir, pack.FQBN); err != nil {
			result.Status, result.Detail = "compile_failed", err.Error()
			failures++
		} else {
			result.Status = "ok"
		}
		summary.Results = append(summary.Results, result)
		printRow(width, id, pack.FQBN, result.Status)
	}

	summaryDir := filepath.Join(*reportDir, "compile_sanity_"+stamp)
	if err := writeSummary(filepath.Join(summaryDir, "summary.json"), summary); err != nil {
		mlog.L().Error("writing summary", "error", err)
		os.Exit(1)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "\nmodulo-compile-sanity: %d/%d target packs failed (see %s)\n", failures, len(ids), summaryDir)
		os.Exit(1)
	}
	fmt.Printf("\nmodulo-compile-sanity: all %d target packs OK (see %s)\n", len(ids), summaryDir)
}

func loadFQBNMap(path string) (fqbnMap, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fqbn map: %w", err)
	}
	var m fqbnMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing fqbn map: %w", err)
	}
	return m, nil
}

func applyFQBNOverride(pack *targets.Pack, overrides fqbnMap) {
	if overrides == nil {
		return
	}
	o, ok := overrides[pack.ID]
	if !ok {
		return
	}
	if o.FQBN != "" {
		pack.FQBN = o.FQBN
	}
	if o.Board != "" {
		pack.Board = o.Board
	}
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

func writeArtifact(dir string, files map[string]string) error {
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

func compileSketch(cli, sketchDir, fqbn string) error {
	cmd := exec.Command(cli, "compile", "--fqbn", fqbn, sketchDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func writeSummary(path string, s Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func nowStamp() string {
	return time.Now().UTC().Format("20060102T150405Z")
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

func printRow(width int, id, fqbn, status string) {
	label := fmt.Sprintf("%-28s %-24s", id, fqbn)
	if len(label)+len(status)+1 > width {
		fmt.Printf("%s\n  %s\n", label, status)
		return
	}
	fmt.Printf("%s %s\n", label, status)
}
