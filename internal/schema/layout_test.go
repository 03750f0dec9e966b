package schema

import (
	"testing"

	"pgregory.net/rapid"
)

// TestCellsMapIndex_Bijective exercises spec.md testable property 3: for
// any Cells layout, MapIndex is a permutation of [0, w*h) for every
// combination of origin x rotate x flip_x x flip_y x serpentine.
func TestCellsMapIndex_Bijective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 12).Draw(t, "w")
		h := rapid.IntRange(1, 12).Draw(t, "h")
		origin := rapid.SampledFrom([]Origin{OriginTL, OriginTR, OriginBL, OriginBR}).Draw(t, "origin")
		rotate := rapid.SampledFrom([]int{0, 90, 180, 270}).Draw(t, "rotate")
		flipX := rapid.Bool().Draw(t, "flipX")
		flipY := rapid.Bool().Draw(t, "flipY")
		serp := rapid.Bool().Draw(t, "serp")

		c := CellsLayout{Width: w, Height: h, Origin: origin, Rotate: rotate, FlipX: flipX, FlipY: flipY, Serpentine: serp}

		n := w * h
		seen := make([]bool, n)
		for i := 0; i < n; i++ {
			p := c.MapIndex(i)
			if p < 0 || p >= n {
				t.Fatalf("MapIndex(%d) = %d out of range [0,%d)", i, p, n)
			}
			if seen[p] {
				t.Fatalf("MapIndex produced duplicate physical index %d for logical %d", p, i)
			}
			seen[p] = true
		}
		for i, s := range seen {
			if !s {
				t.Fatalf("physical index %d never produced: not a permutation", i)
			}
		}
	})
}

func TestCellsInverseMapIndex_RoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 8).Draw(t, "w")
		h := rapid.IntRange(1, 8).Draw(t, "h")
		c := CellsLayout{Width: w, Height: h, Origin: OriginTL, Serpentine: rapid.Bool().Draw(t, "serp")}
		logical := rapid.IntRange(0, w*h-1).Draw(t, "logical")
		phys := c.MapIndex(logical)
		if got := c.InverseMapIndex(phys); got != logical {
			t.Fatalf("InverseMapIndex(MapIndex(%d)=%d) = %d, want %d", logical, phys, got, logical)
		}
	})
}

// TestSerpentineRowReversal pins scenario S5 from spec.md §8: a 16x8
// serpentine matrix reverses column order on odd rows.
func TestSerpentineRowReversal(t *testing.T) {
	c := CellsLayout{Width: 16, Height: 8, Origin: OriginTL, Serpentine: true}
	for x := 0; x < 16; x++ {
		logical := 1*16 + x // row 1
		phys := c.MapIndex(logical)
		wantCol := 16 - 1 - x
		wantPhys := 1*16 + wantCol
		if phys != wantPhys {
			t.Fatalf("row1 col%d: MapIndex=%d want %d", x, phys, wantPhys)
		}
	}
	// row 0 (even) keeps natural order
	for x := 0; x < 16; x++ {
		phys := c.MapIndex(x)
		if phys != x {
			t.Fatalf("row0 col%d: MapIndex=%d want %d", x, phys, x)
		}
	}
}
