package previewui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andyleaver/modulo/internal/schema"
)

func TestLayoutDimsStrip(t *testing.T) {
	l := schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 30}}
	cols, rows := layoutDims(l)
	assert.Equal(t, 30, cols)
	assert.Equal(t, 1, rows)
}

func TestLayoutDimsCells(t *testing.T) {
	l := schema.Layout{Kind: schema.LayoutCells, Cells: schema.CellsLayout{Width: 8, Height: 4}}
	cols, rows := layoutDims(l)
	assert.Equal(t, 8, cols)
	assert.Equal(t, 4, rows)
}

func TestLogicalXYStripIsIdentity(t *testing.T) {
	l := schema.Layout{Kind: schema.LayoutStrip, Strip: schema.StripLayout{Count: 10}}
	x, y := logicalXY(l, 7, 10)
	assert.Equal(t, 7, x)
	assert.Equal(t, 0, y)
}

func TestLogicalXYCellsRoundTrips(t *testing.T) {
	cells := schema.CellsLayout{Width: 4, Height: 4, Origin: schema.OriginTL}
	l := schema.Layout{Kind: schema.LayoutCells, Cells: cells}
	physical := cells.MapIndex(5) // logical index 5 -> some physical index
	x, y := logicalXY(l, physical, 4)
	assert.Equal(t, 5, y*4+x)
}

func TestClampByte(t *testing.T) {
	assert.Equal(t, byte(0), clampByte(-10))
	assert.Equal(t, byte(255), clampByte(400))
	assert.Equal(t, byte(128), clampByte(128))
}
