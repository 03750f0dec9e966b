// migrate.go - back-compat normalization for legacy project shapes (spec.md §4.1)

package schema

import (
	"strings"

	"github.com/google/uuid"
)

// MigrationIssue is a non-fatal note produced while normalizing a loaded
// project; schema problems are migrated or ignored, never fatal (spec.md §7).
type MigrationIssue struct {
	Path string
	Note string
}

// Normalize applies every deterministic back-compat rule from spec.md §4.1
// in place and returns the issues it noticed along the way. It is
// idempotent: running it twice produces no further issues.
func Normalize(p *Project) []MigrationIssue {
	var issues []MigrationIssue

	normalizeMasks(p, &issues)
	for i := range p.Layers {
		normalizeLayer(p, i, &issues)
	}
	return issues
}

// normalizeMasks strips legacy "zone:"/"group:" mask aliases and removes
// mask entries that exactly shadow a group's indices (spec.md §4.1).
func normalizeMasks(p *Project, issues *[]MigrationIssue) {
	if p.Masks == nil {
		return
	}
	for name := range p.Masks {
		if strings.Contains(name, ":") {
			*issues = append(*issues, MigrationIssue{
				Path: "masks." + name,
				Note: "dropped legacy aliased mask name containing ':'",
			})
			delete(p.Masks, name)
		}
	}
	for name, mask := range p.Masks {
		for gname, group := range p.Groups {
			if sameIndices(mask.Indices, group.Indices) {
				*issues = append(*issues, MigrationIssue{
					Path: "masks." + name,
					Note: "removed mask shadowing group " + gname,
				})
				delete(p.Masks, name)
				break
			}
		}
	}
}

func sameIndices(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeLayer ensures: exactly one canonical `behavior` field (mirroring
// legacy `effect`), a stable uid, and slot-0 operator/behavior sync for
// legacy projects that never had an operators list.
func normalizeLayer(p *Project, idx int, issues *[]MigrationIssue) {
	l := &p.Layers[idx]

	if l.UID == "" {
		l.UID = uuid.NewString()
		*issues = append(*issues, MigrationIssue{Path: pathLayer(idx), Note: "assigned missing uid"})
	}

	if l.Behavior == "" && l.legacyEffect != "" {
		l.Behavior = l.legacyEffect
		*issues = append(*issues, MigrationIssue{Path: pathLayer(idx), Note: "migrated legacy 'effect' field to 'behavior'"})
	}
	l.legacyEffect = l.Behavior // keep mirrored on save

	if len(l.Operators) == 0 && l.Behavior != "" {
		// back-compat: operators[0].type == behavior as a documented no-op
		// sentinel (spec.md §4.1); the emitter recognizes and skips it.
		l.Operators = []Operator{{Kind: OperatorKind(l.Behavior)}}
		*issues = append(*issues, MigrationIssue{Path: pathLayer(idx), Note: "synthesized sentinel operator[0] from behavior key"})
	}

	if l.Modulotors == nil && l.legacyMods != nil {
		l.Modulotors = l.legacyMods
		*issues = append(*issues, MigrationIssue{Path: pathLayer(idx), Note: "migrated legacy params._mods to modulotors"})
	}
}

func pathLayer(i int) string {
	return "layers[" + itoa(i) + "]"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// InferCellsFromCount infers a Cells layout from a flat width*height==count
// legacy shape (spec.md §4.1 "infer Cells when width*height==count").
func InferCellsFromCount(width, height, count int) (CellsLayout, bool) {
	if width > 0 && height > 0 && width*height == count {
		return CellsLayout{Width: width, Height: height, Origin: OriginTL}, true
	}
	return CellsLayout{}, false
}
