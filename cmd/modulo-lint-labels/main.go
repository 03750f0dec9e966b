// Command modulo-lint-labels is the lint_no_version_labels tool (spec.md
// §6/CLI surface): it forbids FIX###/STAGE###/BUILD###/REFAC### tokens
// anywhere in source, the kind of internal work-tracking label that leaks
// into a codebase from ticket-driven development and rots the moment the
// ticket system changes. It walks the tree rather than trusting a
// pre-built file list, since a forgotten new file is exactly the case this
// exists to catch.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/pflag"

	"github.com/andyleaver/modulo/internal/mlog"
	"github.com/andyleaver/modulo/internal/persist"
)

var labelPattern = regexp.MustCompile(`\b(FIX|STAGE|BUILD|REFAC)\d{3,}\b`)

var skipDirs = map[string]bool{
	".git":       true,
	"_examples":  true,
	"node_modules": true,
}

// Hit is one forbidden-token occurrence.
type Hit struct {
	Path string
	Line int
	Text string
}

func main() {
	defer persist.InstallCrashHandler(".")

	var root = pflag.StringP("root", "r", ".", "Root directory to scan.")
	var ext = pflag.StringSliceP("ext", "e", []string{".go", ".tmpl", ".md", ".yaml", ".yml", ".json"}, "File extensions to scan.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - fail if any FIX###/STAGE###/BUILD###/REFAC### label appears in source.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: modulo-lint-labels --root .\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	wantExt := make(map[string]bool, len(*ext))
	for _, e := range *ext {
		wantExt[e] = true
	}

	var hits []Hit
	err := filepath.WalkDir(*root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !wantExt[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		found, err := scanFile(path)
		if err != nil {
			return err
		}
		hits = append(hits, found...)
		return nil
	})
	if err != nil {
		mlog.L().Error("walk failed", "error", err)
		os.Exit(1)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].Line < hits[j].Line
	})

	for _, h := range hits {
		fmt.Printf("%s:%d: forbidden label in %q\n", h.Path, h.Line, strings.TrimSpace(h.Text))
	}
	if len(hits) > 0 {
		fmt.Fprintf(os.Stderr, "modulo-lint-labels: %d forbidden label(s) found\n", len(hits))
		os.Exit(1)
	}
	fmt.Println("modulo-lint-labels: clean")
}

func scanFile(path string) ([]Hit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var hits []Hit
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if labelPattern.MatchString(text) {
			hits = append(hits, Hit{Path: path, Line: line, Text: text})
		}
	}
	return hits, scanner.Err()
}
