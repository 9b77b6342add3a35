package models

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
)

// Grid is a row-major 2-D array of cell values. Row 0 is the northern edge.
type Grid struct {
	Height int
	Width  int
	Values []float64
}

// NewGrid allocates a zeroed grid of the given shape.
func NewGrid(height, width int) Grid {
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}
	return Grid{Height: height, Width: width, Values: make([]float64, height*width)}
}

func (g Grid) At(row, col int) float64 {
	return g.Values[row*g.Width+col]
}

func (g Grid) Set(row, col int, v float64) {
	g.Values[row*g.Width+col] = v
}

// Shape returns (height, width).
func (g Grid) Shape() (int, int) {
	return g.Height, g.Width
}

// Transform is a north-up affine transform anchored at the top-left corner of the raster.
// Columns grow eastwards by CellWidth, rows grow southwards by CellHeight.
type Transform struct {
	OriginX    float64 `json:"originX"`
	OriginY    float64 `json:"originY"`
	CellWidth  float64 `json:"cellWidth"`
	CellHeight float64 `json:"cellHeight"`
}

// FromOrigin builds a transform from the west/north corner and per-cell size.
func FromOrigin(west, north, xsize, ysize float64) Transform {
	return Transform{OriginX: west, OriginY: north, CellWidth: xsize, CellHeight: ysize}
}

// Apply maps fractional (row, col) grid coordinates to (x, y) world coordinates.
func (t Transform) Apply(row, col float64) (x, y float64) {
	return t.OriginX + col*t.CellWidth, t.OriginY - row*t.CellHeight
}

// Invert maps world coordinates back to fractional (row, col) grid coordinates.
func (t Transform) Invert(x, y float64) (row, col float64) {
	return (t.OriginY - y) / t.CellHeight, (x - t.OriginX) / t.CellWidth
}

// CellCenter returns the world coordinates of the centre of cell (row, col).
func (t Transform) CellCenter(row, col int) geom.Point {
	x, y := t.Apply(float64(row)+0.5, float64(col)+0.5)
	return geom.Point{X: x, Y: y}
}

// Bounds returns the world extent covered by a height x width raster.
func (t Transform) Bounds(height, width int) *geom.Bounds {
	maxX, minY := t.Apply(float64(height), float64(width))
	return &geom.Bounds{
		Min: geom.Point{X: t.OriginX, Y: minY},
		Max: geom.Point{X: maxX, Y: t.OriginY},
	}
}

// Raster is a single-band grid with its georeference.
type Raster struct {
	Grid      Grid
	Transform Transform
	CRS       string
}

// Center returns the geographic centre of the raster extent.
func (r Raster) Center() geom.Point {
	b := r.Transform.Bounds(r.Grid.Height, r.Grid.Width)
	return geom.Point{X: (b.Min.X + b.Max.X) / 2, Y: (b.Min.Y + b.Max.Y) / 2}
}

// EPSGCode parses identifiers of the form "EPSG:4326".
func EPSGCode(crs string) (int, error) {
	var code int
	if _, err := fmt.Sscanf(crs, "EPSG:%d", &code); err != nil {
		return 0, fmt.Errorf("unsupported crs %q: %w", crs, err)
	}
	if code <= 0 || code > math.MaxUint16 {
		return 0, fmt.Errorf("unsupported crs %q: code out of range", crs)
	}
	return code, nil
}
