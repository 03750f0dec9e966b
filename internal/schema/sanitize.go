// sanitize.go - cycle-breaking JSON sanitizer (spec.md §4.1, §6)

package schema

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// IssueKind classifies a single sanitizer finding.
type IssueKind string

const (
	IssueCycle   IssueKind = "cycle"
	IssueUnknown IssueKind = "unknown_object"
)

// Issue is one (kind, path, note) diagnostic produced by Sanitize.
type Issue struct {
	Kind IssueKind
	Path string
	Note string
}

// Sanitize walks an arbitrary Go value (typically the result of decoding a
// project into map[string]any, or a live Project run through a generic
// encoder) and returns a structurally JSON-safe value: cycles are replaced
// with a "<CYCLE:path>" marker string and values the encoder can't handle
// natively are replaced with their %v string representation. It never
// panics and never fails — the point is that the result is always
// json.Marshal-able (spec.md testable property 6).
func Sanitize(v any) (any, []Issue) {
	s := &sanitizer{seen: map[uintptr]string{}}
	out := s.walk(v, "$")
	sort.Slice(s.issues, func(i, j int) bool { return s.issues[i].Path < s.issues[j].Path })
	return out, s.issues
}

type sanitizer struct {
	seen   map[uintptr]string // pointer identity -> path where first seen
	issues []Issue
}

func (s *sanitizer) walk(v any, path string) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return s.walkPointerish(rv, path, func() any { return s.walkMap(rv, path) })
	case reflect.Slice, reflect.Array:
		return s.walkPointerish(rv, path, func() any { return s.walkSlice(rv, path) })
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return s.walk(rv.Elem().Interface(), path)
	case reflect.Struct:
		return s.walkStruct(rv, path)
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			s.issues = append(s.issues, Issue{Kind: IssueUnknown, Path: path, Note: "stringified non-finite float"})
			return fmt.Sprintf("%v", v)
		}
		return v
	default:
		s.issues = append(s.issues, Issue{Kind: IssueUnknown, Path: path, Note: fmt.Sprintf("stringified %s", rv.Kind())})
		return fmt.Sprintf("%v", v)
	}
}

// walkPointerish detects cycles for the two JSON-ish container kinds that
// can legitimately hold a back-reference: maps and slices (a slice header
// carries pointer identity via its backing array).
func (s *sanitizer) walkPointerish(rv reflect.Value, path string, cont func() any) any {
	var ptr uintptr
	switch rv.Kind() {
	case reflect.Map:
		ptr = rv.Pointer()
	case reflect.Slice:
		if rv.Len() == 0 {
			return cont()
		}
		ptr = rv.Pointer()
	default:
		return cont()
	}
	if ptr == 0 {
		return cont()
	}
	if firstPath, ok := s.seen[ptr]; ok {
		s.issues = append(s.issues, Issue{Kind: IssueCycle, Path: path, Note: "cycle back to " + firstPath})
		return fmt.Sprintf("<CYCLE:%s>", firstPath)
	}
	s.seen[ptr] = path
	out := cont()
	delete(s.seen, ptr) // only siblings down other branches should re-detect, not unrelated subtrees
	return out
}

func (s *sanitizer) walkMap(rv reflect.Value, path string) any {
	out := make(map[string]any, rv.Len())
	keys := rv.MapKeys()
	strKeys := make([]string, len(keys))
	keyByStr := make(map[string]reflect.Value, len(keys))
	for i, k := range keys {
		ks := fmt.Sprintf("%v", k.Interface())
		strKeys[i] = ks
		keyByStr[ks] = k
	}
	sort.Strings(strKeys)
	for _, ks := range strKeys {
		val := rv.MapIndex(keyByStr[ks]).Interface()
		out[ks] = s.walk(val, path+"."+ks)
	}
	return out
}

func (s *sanitizer) walkSlice(rv reflect.Value, path string) any {
	n := rv.Len()
	out := make([]any, n)
	for i := 0; i < n; i++ {
		out[i] = s.walk(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
	}
	return out
}

func (s *sanitizer) walkStruct(rv reflect.Value, path string) any {
	t := rv.Type()
	out := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		out[f.Name] = s.walk(rv.Field(i).Interface(), path+"."+f.Name)
	}
	return out
}
