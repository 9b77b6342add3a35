package models

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestGrid_AtSetShape(t *testing.T) {
	g := NewGrid(3, 4)
	if h, w := g.Shape(); h != 3 || w != 4 {
		t.Fatalf("Shape() = (%d, %d), want (3, 4)", h, w)
	}
	if len(g.Values) != 12 {
		t.Fatalf("len(Values) = %d, want 12", len(g.Values))
	}
	g.Set(2, 1, 7.5)
	if got := g.At(2, 1); got != 7.5 {
		t.Errorf("At(2, 1) = %v, want 7.5", got)
	}
	if got := g.Values[2*4+1]; got != 7.5 {
		t.Errorf("row-major index = %v, want 7.5", got)
	}
}

func TestNewGrid_NegativeShape(t *testing.T) {
	g := NewGrid(-1, 5)
	if g.Height != 0 || len(g.Values) != 0 {
		t.Errorf("NewGrid(-1, 5) = %+v, want empty", g)
	}
}

func TestTransform_ApplyInvert(t *testing.T) {
	tr := FromOrigin(77.1, 28.7, 0.01, 0.01)

	x, y := tr.Apply(0, 0)
	if !near(x, 77.1) || !near(y, 28.7) {
		t.Errorf("Apply(0, 0) = (%v, %v), want origin", x, y)
	}
	x, y = tr.Apply(10, 20)
	if !near(x, 77.3) || !near(y, 28.6) {
		t.Errorf("Apply(10, 20) = (%v, %v), want (77.3, 28.6)", x, y)
	}
	row, col := tr.Invert(x, y)
	if !near(row, 10) || !near(col, 20) {
		t.Errorf("Invert(Apply(10, 20)) = (%v, %v)", row, col)
	}
}

func TestTransform_CellCenterAndBounds(t *testing.T) {
	tr := FromOrigin(0, 10, 2, 1)

	c := tr.CellCenter(0, 0)
	if !near(c.X, 1) || !near(c.Y, 9.5) {
		t.Errorf("CellCenter(0, 0) = %+v, want (1, 9.5)", c)
	}

	b := tr.Bounds(4, 3)
	if !near(b.Min.X, 0) || !near(b.Max.X, 6) || !near(b.Min.Y, 6) || !near(b.Max.Y, 10) {
		t.Errorf("Bounds(4, 3) = [%v %v %v %v], want [0 6 6 10]", b.Min.X, b.Min.Y, b.Max.X, b.Max.Y)
	}

	r := Raster{Grid: NewGrid(4, 3), Transform: tr}
	if ctr := r.Center(); !near(ctr.X, 3) || !near(ctr.Y, 8) {
		t.Errorf("Center() = %+v, want (3, 8)", ctr)
	}
}

func TestEPSGCode(t *testing.T) {
	tests := []struct {
		crs     string
		want    int
		wantErr bool
	}{
		{"EPSG:4326", 4326, false},
		{"EPSG:32643", 32643, false},
		{"WGS84", 0, true},
		{"EPSG:", 0, true},
		{"EPSG:0", 0, true},
		{"EPSG:70000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.crs, func(t *testing.T) {
			got, err := EPSGCode(tt.crs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EPSGCode(%q) error = %v, wantErr %v", tt.crs, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("EPSGCode(%q) = %d, want %d", tt.crs, got, tt.want)
			}
		})
	}
}
