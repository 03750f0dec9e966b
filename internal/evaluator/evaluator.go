// evaluator.go - the fixed-timestep preview scheduler
//
// Package evaluator drives the per-tick pipeline: rebuild signal bus,
// evaluate rules, tick behaviors, render, compose, post-fx. It owns the
// current project value, per-layer state, and the framebuffer exclusively;
// callers only ever read a snapshot (spec.md §4.9, §5 "Shared-resource
// policy").
package evaluator

import (
	"math"
	"sync"
	"time"

	"github.com/andyleaver/modulo/internal/behaviors"
	"github.com/andyleaver/modulo/internal/compositor"
	"github.com/andyleaver/modulo/internal/modulotor"
	"github.com/andyleaver/modulo/internal/postfx"
	"github.com/andyleaver/modulo/internal/rules"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

// FixedDT is the default quantized step (spec.md §4.9): 1/60s.
const FixedDT = time.Second / 60

// MaxSubsteps bounds how many fixed steps one real-time frame may spend
// catching up, to avoid the spiral-of-death under a slow host frame.
const MaxSubsteps = 4

// Stats is the evaluator's last-tick diagnostics, exposed read-only.
type Stats struct {
	compositor.Stats
	Substeps int
}

// Evaluator is single-threaded and cooperative: Advance must be called
// from one goroutine only. Reads of Framebuffer/Stats from another
// goroutine go through the Framebuffer and LastStats accessors, which take
// a brief read lock.
type Evaluator struct {
	catalog *behaviors.Catalog

	mu          sync.RWMutex
	project     *schema.Project
	framebuffer []behaviors.RGB
	prevFrame   []behaviors.RGB
	lastStats   Stats

	layerStates map[string]*LayerState
	ruleStates  map[string]*rules.State
	clock       signalbus.ClockState
	providers   *signalbus.Registry

	accumulator time.Duration
	t           float64
	stopped     bool
}

// LayerState re-exports compositor.LayerState so callers need not import
// both packages to manage per-layer lifetime.
type LayerState = compositor.LayerState

// New builds an Evaluator over an initial project. catalog and providers
// must already be frozen.
func New(p *schema.Project, catalog *behaviors.Catalog, providers *signalbus.Registry) *Evaluator {
	return &Evaluator{
		catalog:     catalog,
		project:     p,
		framebuffer: make([]behaviors.RGB, p.Layout.NumLEDs()),
		layerStates: make(map[string]*LayerState),
		ruleStates:  make(map[string]*rules.State),
		providers:   providers,
	}
}

// SetProject installs a new immutable project value. Per-layer state for
// uids no longer present is dropped; state for surviving uids is kept so
// behaviors don't restart on every edit (spec.md §3 Lifecycle).
func (e *Evaluator) SetProject(p *schema.Project) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.project = p
	if n := p.Layout.NumLEDs(); len(e.framebuffer) != n {
		e.framebuffer = make([]behaviors.RGB, n)
		e.prevFrame = nil
	}
	keep := make(map[string]bool, len(p.Layers))
	for _, l := range p.Layers {
		keep[l.UID] = true
	}
	for uid := range e.layerStates {
		if !keep[uid] {
			delete(e.layerStates, uid)
		}
	}
}

// Stop marks the evaluator for teardown; checked between frames only,
// never mid-frame (spec.md §5 "Cancellation/timeouts").
func (e *Evaluator) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
}

func (e *Evaluator) Stopped() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stopped
}

// Advance accumulates wallClockElapsed and runs as many fixed-dt substeps
// as are due, capped at MaxSubsteps. audio is this frame's out-of-band
// analyzer snapshot, ingested identically on every substep it spans (the
// analyzer runs slower than 60Hz in practice, so repeats are expected).
func (e *Evaluator) Advance(wallClockElapsed time.Duration, audio signalbus.AudioFrame, now time.Time) Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return e.lastStats
	}
	e.accumulator += wallClockElapsed

	substeps := 0
	for e.accumulator >= FixedDT && substeps < MaxSubsteps {
		e.tick(audio, now)
		e.accumulator -= FixedDT
		substeps++
	}
	e.lastStats.Substeps = substeps
	return e.lastStats
}

func (e *Evaluator) tick(audio signalbus.AudioFrame, now time.Time) {
	dt := FixedDT.Seconds()
	e.t += dt

	bus, warnings := signalbus.Build(signalbus.Inputs{
		Audio:     audio,
		WallClock: now,
		Vars:      e.project.Variables,
	}, &e.clock, e.providers)

	outcome := rules.Evaluate(e.project.RulesV6, e.ruleStates, bus, e.project.Variables, e.t)
	nextProject := *e.project
	nextProject.Variables = outcome.Vars
	e.project = &nextProject

	fb, stats := compositor.Compose(e.project, e.catalog, bus, outcome.Overrides, e.layerStates, e.t)

	cfg := postfx.Resolve(postfx.FromProjectConfig(e.project.Export.PostFX), outcome.Overrides)
	maxLEDs := math.MaxInt // the LED cap applies to export only, not preview
	if postfx.Enabled(len(fb), maxLEDs) {
		if e.project.Layout.Kind == schema.LayoutCells {
			fb = postfx.BleedCells(fb, e.project.Layout.Cells, cfg)
		} else {
			fb = postfx.BleedStrip(fb, cfg)
		}
		fb = postfx.Trail(e.prevFrame, fb, cfg.TrailAmount)
	}
	e.prevFrame = append([]behaviors.RGB(nil), fb...)
	e.framebuffer = fb

	stats.Warnings = append(stats.Warnings, warnings...)
	e.lastStats.Stats = stats
}

// Framebuffer returns a defensive copy of the current frame.
func (e *Evaluator) Framebuffer() []behaviors.RGB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]behaviors.RGB(nil), e.framebuffer...)
}

func (e *Evaluator) LastStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStats
}

// ModulotorState exposes the modulotor package's per-slot smoothing memory
// type so callers constructing LayerState externally (tests, tools) don't
// need a second import.
type ModulotorState = modulotor.State
