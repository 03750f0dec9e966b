// signalbus.go - the unified per-tick scalar signal namespace (spec.md §3, §4.2)

// Package signalbus builds the flat, case-sensitive namespace of scalar
// signals consumed by modulotors, rules, and behaviors each tick: audio
// analyzer bands, derived event signals, wall-clock edges, author
// variables, and pluggable signal providers. Unknown keys resolve to 0.0
// (fail-closed for expressions), matching both the preview evaluator and
// the firmware emitter's "@@TOKEN@@ -> 0.0f for unknown signal" contract.
package signalbus

import (
	"fmt"
	"sort"
	"time"

	"github.com/andyleaver/modulo/internal/schema"
)

// AudioFrame is one tick's snapshot of the 7-band stereo analyzer reading
// (spec.md §3 Signal Bus). It is produced out-of-band (internal/audio) and
// handed to Build as part of Inputs — ingest is a pure copy, never a
// blocking read, preserving the "no suspension points inside the render
// pipeline" guarantee (spec.md §5).
type AudioFrame struct {
	Energy float64
	Mono   [7]float64
	L      [7]float64
	R      [7]float64

	Beat, Kick, Snare, Onset float64
	SecChange                float64
	BPM, BPMConf             float64
	SecID                    float64
	TrL, TrR                 [7]float64
	PkL, PkR                 [7]float64
}

// Inputs is everything Build needs to assemble one tick's Bus.
type Inputs struct {
	Audio     AudioFrame
	WallClock time.Time
	Vars      schema.Variables
}

// Bus is the read-view built once per tick. Get never errors: an unknown
// key resolves to 0.0.
type Bus struct {
	values map[string]float64
}

func newBus() *Bus { return &Bus{values: make(map[string]float64, 64)} }

func (b *Bus) Get(key string) float64 {
	return b.values[key]
}

func (b *Bus) set(key string, v float64) { b.values[key] = v }

// Snapshot returns a copy of every key currently in the bus, for
// diagnostics/golden fixtures; not used on the hot path.
func (b *Bus) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}

// ClockState tracks the minute-boundary edge across ticks (spec.md §3
// `clock.minute_changed`). It is owned by whatever drives Build across
// ticks (the evaluator), not by Bus itself, since Bus is rebuilt fresh
// every tick.
type ClockState struct {
	lastMinute int
	primed     bool
}

// Advance reports whether t crossed a minute boundary since the previous
// call, and records t's minute for the next call.
func (c *ClockState) Advance(t time.Time) bool {
	minute := t.Hour()*60 + t.Minute()
	changed := c.primed && minute != c.lastMinute
	c.lastMinute = minute
	c.primed = true
	return changed
}

// Build assembles one tick's Bus: raw audio/clock/var ingest, then every
// registered Provider in name order (spec.md §4.2 step 3). Provider
// failures (including panics) are swallowed and returned as warnings; they
// never affect the rest of the bus or crash the caller (spec.md §7 "never
// crash the UI" contract).
func Build(in Inputs, clock *ClockState, reg *Registry) (*Bus, []string) {
	b := newBus()
	ingestAudio(b, in.Audio)
	if clock.Advance(in.WallClock) {
		b.set("clock.minute_changed", 1)
	} else {
		b.set("clock.minute_changed", 0)
	}
	for name, v := range in.Vars.Number {
		b.set("vars.number."+name, v)
	}
	for name, v := range in.Vars.Toggle {
		b.set("vars.toggle."+name, boolToFloat(v))
	}

	var warnings []string
	if reg != nil {
		warnings = reg.apply(b, &Context{Inputs: in})
	}
	return b, warnings
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

func ingestAudio(b *Bus, a AudioFrame) {
	b.set("audio.energy", a.Energy)
	for i := 0; i < 7; i++ {
		b.set(fmt.Sprintf("audio.mono%d", i), a.Mono[i])
		b.set(fmt.Sprintf("audio.L%d", i), a.L[i])
		b.set(fmt.Sprintf("audio.R%d", i), a.R[i])
		b.set(fmt.Sprintf("audio.tr_L%d", i), a.TrL[i])
		b.set(fmt.Sprintf("audio.tr_R%d", i), a.TrR[i])
		b.set(fmt.Sprintf("audio.pk_L%d", i), a.PkL[i])
		b.set(fmt.Sprintf("audio.pk_R%d", i), a.PkR[i])
	}
	b.set("audio.beat", a.Beat)
	b.set("audio.kick", a.Kick)
	b.set("audio.snare", a.Snare)
	b.set("audio.onset", a.Onset)
	b.set("audio.sec_change", a.SecChange)
	b.set("audio.bpm", a.BPM)
	b.set("audio.bpm_conf", a.BPMConf)
	b.set("audio.sec_id", a.SecID)
}

// sortedNames is a small helper shared by Registry.apply for deterministic
// provider ordering (spec.md §4.2 step 3, §5 "signal providers in name order").
func sortedNames(m map[string]Provider) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
