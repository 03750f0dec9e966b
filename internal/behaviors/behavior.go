// behavior.go - the fixed Behavior catalog contract (spec.md §3, §4.3)

// Package behaviors is the fixed-catalog pixel generator registry: each
// Behavior is identified by a stable string key and exposes the
// reset/tick/render lifecycle from spec.md §4.3. Per-layer state is typed
// per behavior (spec.md §9 "per-layer state dicts" redesign note) rather
// than a duck-typed map, boxed behind `any` only at the Catalog boundary.
package behaviors

import (
	"fmt"
	"sort"

	"github.com/andyleaver/modulo/internal/signalbus"
)

// Support describes which layouts a behavior can render into.
type Support string

const (
	SupportStrip Support = "strip"
	SupportCells Support = "cells"
	SupportBoth  Support = "both"
)

// Exportability mirrors spec.md §4.3: "if it previews, it must export" is
// enforced by construction for the plugin layer (internal/behaviors does
// not expose a way to register a behavior with Preview capability but no
// Arduino emission path, short of explicitly marking it PreviewOnly).
type Exportability string

const (
	Exportable  Exportability = "exportable"
	PreviewOnly Exportability = "preview_only"
	Blocked     Exportability = "blocked"
)

// Capabilities is a behavior's static metadata (spec.md §4.3).
type Capabilities struct {
	Supports    Support
	Exportable  Exportability
	Stateful    bool
	Uses        []string
	ArduinoID   int // [0, 255), dispatch index in the generated switch
	Title       string
}

// Behavior is a fixed-catalog pixel generator for one layer, pure given
// its state, params, and seed.
type Behavior interface {
	Key() string
	Capabilities() Capabilities

	// NewState allocates this behavior's zero-value typed state.
	NewState() any

	// Reset is an idempotent initializer, called on first tick for a layer
	// and whenever the layer's behavior key changes.
	Reset(state any, p Params)

	// Tick advances internal state for stateful behaviors; a no-op for
	// stateless ones. dt is the fixed evaluator timestep, t is the
	// evaluator's running clock.
	Tick(state any, p Params, dt, t float64, audio signalbus.AudioFrame)

	// Render is a pure function of the current state to a frame. It must
	// handle every num_leds >= 1 (spec.md §4.3 "degenerate layouts").
	Render(state any, p Params, t float64, numLEDs int) []RGB
}

// Catalog is the frozen, process-wide behavior registry (spec.md §9
// "Global registries populated at import time" -> explicit, frozen
// Registry value). Behaviors that render blank under audit are simply
// never registered (quarantine policy, SPEC_FULL.md "Supplemented
// Features" #1) — catalog.go records them as commented-out registration
// entries; their source is not part of this package.
type Catalog struct {
	byKey  map[string]Behavior
	frozen bool
}

func NewCatalog() *Catalog {
	return &Catalog{byKey: make(map[string]Behavior)}
}

// Register adds b to the catalog. Panics if the catalog is frozen or the
// key is already taken — both are programming errors, never runtime ones,
// since registration only happens at process init.
func (c *Catalog) Register(b Behavior) {
	if c.frozen {
		panic(fmt.Sprintf("behaviors: Register(%q) after catalog frozen", b.Key()))
	}
	if _, dup := c.byKey[b.Key()]; dup {
		panic(fmt.Sprintf("behaviors: duplicate behavior key %q", b.Key()))
	}
	c.byKey[b.Key()] = b
}

func (c *Catalog) Freeze() { c.frozen = true }

func (c *Catalog) Frozen() bool { return c.frozen }

func (c *Catalog) Lookup(key string) (Behavior, bool) {
	b, ok := c.byKey[key]
	return b, ok
}

// Keys returns every registered key, sorted, for diagnostics and tests.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.byKey))
	for k := range c.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// clamp01 and clampF are small shared numeric helpers used across behaviors.
func clamp01(x float64) float64 { return clampF(x, 0, 1) }

func clampF(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
