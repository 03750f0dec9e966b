// Command modulo-preview opens a live preview window for a project file,
// running the same evaluator pipeline the firmware emitter targets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/andyleaver/modulo/internal/audio"
	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/persist"
	"github.com/andyleaver/modulo/internal/previewui"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"

	"github.com/andyleaver/modulo/internal/evaluator"
)

func main() {
	var projectPath = pflag.StringP("project", "p", "", "Project file to preview (required).")
	var noAudio = pflag.Bool("no-audio", false, "Disable live audio capture; feed the evaluator silence instead.")
	var audioDevice = pflag.StringP("audio-device", "d", "", "Input device name for live audio capture. Empty uses the system default.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - preview a Modulo project in a window.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: modulo-preview --project project.json\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "modulo-preview: --project is required")
		pflag.Usage()
		os.Exit(1)
	}

	project, issues, err := persist.Load(*projectPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modulo-preview: %v\n", err)
		os.Exit(1)
	}
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "modulo-preview: migrated %s: %s\n", issue.Path, issue.Note)
	}

	catalog := behaviors.Default()
	providers := signalbus.NewRegistry()
	providers.Freeze()

	eval := evaluator.New(project, catalog, providers)

	var audioSrc previewui.AudioSource
	if !*noAudio {
		capture, err := audio.NewCapture(*audioDevice)
		if err != nil {
			fmt.Fprintf(os.Stderr, "modulo-preview: audio capture unavailable, previewing silent: %v\n", err)
		} else {
			defer capture.Close()
			audioSrc = capture
		}
	}

	win := previewui.New(eval, project, audioSrc)
	title := fmt.Sprintf("modulo-preview - %s", projectTitle(project))
	if err := win.Run(title); err != nil {
		fmt.Fprintf(os.Stderr, "modulo-preview: %v\n", err)
		os.Exit(1)
	}
}

func projectTitle(p *schema.Project) string {
	if p.Name != "" {
		return p.Name
	}
	return "untitled"
}
