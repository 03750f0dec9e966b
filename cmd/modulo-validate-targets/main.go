// Command modulo-validate-targets checks the target pack registry itself
// for internal consistency: every pack must declare the C entry points the
// emitter's template and rules/signal codegen assume exist
// (modulo_led_init, modulo_led_push, and the audio globals
// modulo_signal_value reads), and must carry a usable FQBN/board pair. It
// catches a malformed Pack at registration time rather than at export time
// against some unlucky project.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/andyleaver/modulo/internal/mlog"
	"github.com/andyleaver/modulo/internal/persist"
	"github.com/andyleaver/modulo/internal/targets"
)

func main() {
	defer persist.InstallCrashHandler(".")

	var help = pflag.BoolP("help", "h", false, "Display help text.")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - validate the built-in target pack registry.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: modulo-validate-targets\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	registry := targets.Defaults()
	registry.Freeze()

	ids := registry.IDs()
	sort.Strings(ids)

	var problems []string
	for _, id := range ids {
		pack, _ := registry.Lookup(id)
		problems = append(problems, checkPack(pack)...)
	}

	for _, p := range problems {
		mlog.L().Error("target pack problem", "detail", p)
	}
	if len(problems) > 0 {
		fmt.Fprintf(os.Stderr, "modulo-validate-targets: %d problem(s) across %d packs\n", len(problems), len(ids))
		os.Exit(1)
	}
	fmt.Printf("modulo-validate-targets: %d target packs OK\n", len(ids))
}

func checkPack(p *targets.Pack) []string {
	var out []string
	note := func(format string, args ...any) {
		out = append(out, fmt.Sprintf("%s: %s", p.ID, fmt.Sprintf(format, args...)))
	}

	if p.Arch == "" {
		note("missing arch")
	}
	if p.Board == "" {
		note("missing board")
	}
	if p.FQBN == "" {
		note("missing FQBN")
	}
	if p.Capabilities.MaxLEDs <= 0 {
		note("MaxLEDs must be positive, got %d", p.Capabilities.MaxLEDs)
	}
	if !contains(p.Capabilities.LEDBackends, p.Capabilities.DefaultLEDBackend) {
		note("default LED backend %q not listed in LEDBackends %v", p.Capabilities.DefaultLEDBackend, p.Capabilities.LEDBackends)
	}
	if !contains(p.Capabilities.AudioBackends, p.Capabilities.DefaultAudioBackend) {
		note("default audio backend %q not listed in AudioBackends %v", p.Capabilities.DefaultAudioBackend, p.Capabilities.AudioBackends)
	}
	for _, fn := range []string{"modulo_led_init", "modulo_led_push"} {
		if !strings.Contains(p.LEDImpl, fn) {
			note("LEDImpl missing required entry point %s", fn)
		}
	}
	for _, fn := range []string{"modulo_audio_init", "modulo_audio_update"} {
		if !strings.Contains(p.AudioImpl, fn) {
			note("AudioImpl missing required entry point %s", fn)
		}
	}
	for _, global := range []string{"g_energy", "g_mono", "g_left", "g_right"} {
		if !strings.Contains(p.AudioImpl, global) {
			note("AudioImpl missing required global %s", global)
		}
	}
	if p.Capabilities.SupportsMatrix && p.MatrixImpl == "" {
		note("declares matrix support but has no MatrixImpl")
	}
	if !p.Capabilities.SupportsMatrix && p.MatrixImpl != "" {
		note("has a MatrixImpl but does not declare matrix support")
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
