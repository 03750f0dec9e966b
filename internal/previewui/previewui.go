// previewui.go - an ebiten window that renders the evaluator's framebuffer
// as the project's logical layout, honoring Cells serpentine/rotate/flip
// mapping on draw (not just on export).
//
// Grounded on IntuitionEngine's video_backend_ebiten.go: a single backing
// *ebiten.Image kept in sync via WritePixels, driven by ebiten.RunGame's
// Update/Draw/Layout loop, plus a swallow-and-report approach to runtime
// errors so a preview crash never brings down the whole process.
package previewui

import (
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/andyleaver/modulo/internal/evaluator"
	"github.com/andyleaver/modulo/internal/schema"
	"github.com/andyleaver/modulo/internal/signalbus"
)

const (
	defaultCellPx = 16
	defaultWinW   = 960
	defaultWinH   = 540
)

// AudioSource supplies the evaluator with the current audio frame each
// game tick; internal/audio implements this against a live capture, and
// tests/tools can pass a constant-returning stub.
type AudioSource interface {
	Frame() signalbus.AudioFrame
}

type nullAudio struct{}

func (nullAudio) Frame() signalbus.AudioFrame { return signalbus.AudioFrame{} }

// Window is the ebiten.Game implementation backing `cmd/modulo-preview`.
type Window struct {
	eval    *evaluator.Evaluator
	project *schema.Project
	audio   AudioSource

	img      *ebiten.Image
	lastTick time.Time
	paused   bool
}

// New builds a Window over an already-constructed Evaluator. If audio is
// nil, the evaluator always sees a silent frame.
func New(eval *evaluator.Evaluator, project *schema.Project, audio AudioSource) *Window {
	if audio == nil {
		audio = nullAudio{}
	}
	return &Window{eval: eval, project: project, audio: audio, lastTick: time.Now()}
}

// Run opens the window and blocks until it is closed or Update returns
// ebiten.Termination.
func (w *Window) Run(title string) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(defaultWinW, defaultWinH)
	ebiten.SetWindowResizable(true)
	ebiten.SetVsyncEnabled(true)
	return ebiten.RunGame(w)
}

func (w *Window) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		w.paused = !w.paused
	}

	now := time.Now()
	elapsed := now.Sub(w.lastTick)
	w.lastTick = now
	if !w.paused {
		w.eval.Advance(elapsed, w.audio.Frame(), now)
	}
	return nil
}

func (w *Window) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	fb := w.eval.Framebuffer()
	if len(fb) == 0 {
		return
	}

	cols, rows := layoutDims(w.project.Layout)
	if w.img == nil || w.img.Bounds().Dx() != cols || w.img.Bounds().Dy() != rows {
		w.img = ebiten.NewImage(cols, rows)
	}
	pixels := make([]byte, cols*rows*4)
	for logical, px := range fb {
		x, y := logicalXY(w.project.Layout, logical, cols)
		off := (y*cols + x) * 4
		if off < 0 || off+4 > len(pixels) {
			continue
		}
		pixels[off] = clampByte(px.R)
		pixels[off+1] = clampByte(px.G)
		pixels[off+2] = clampByte(px.B)
		pixels[off+3] = 255
	}
	w.img.WritePixels(pixels)

	winW, winH := screen.Bounds().Dx(), screen.Bounds().Dy()
	cellW, cellH := float64(winW)/float64(cols), float64(winH)/float64(rows)
	scale := cellW
	if cellH < scale {
		scale = cellH
	}
	op := &ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterNearest
	op.GeoM.Scale(scale, scale)
	screen.DrawImage(w.img, op)

	if w.paused {
		vector.StrokeRect(screen, 4, 4, float32(winW-8), float32(winH-8), 2, color.RGBA{255, 80, 80, 255}, false)
	}
}

func (w *Window) Layout(outsideW, outsideH int) (int, int) {
	return outsideW, outsideH
}

// StatsText renders the last-tick stats for an on-screen overlay (wired by
// callers that want a debug HUD; kept separate so headless tools can read
// the same string without an ebiten dependency).
func (w *Window) StatsText() string {
	s := w.eval.LastStats()
	return fmt.Sprintf("nonzero=%d substeps=%d warnings=%d", s.NonzeroCount, s.Substeps, len(s.Warnings))
}

func layoutDims(l schema.Layout) (cols, rows int) {
	if l.Kind == schema.LayoutCells {
		return l.Cells.Width, l.Cells.Height
	}
	return l.Strip.Count, 1
}

// logicalXY places framebuffer index `logical` (a physical LED index) onto
// a display grid. For Cells layouts this requires going physical->logical
// through the inverse map so the preview draws the wiring the way it is
// physically laid out, not the raw index order.
func logicalXY(l schema.Layout, physical, cols int) (x, y int) {
	if l.Kind == schema.LayoutCells {
		logical := l.Cells.InverseMapIndex(physical)
		if cols <= 0 {
			return 0, 0
		}
		return logical % cols, logical / cols
	}
	return physical, 0
}

func clampByte(v float64) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
