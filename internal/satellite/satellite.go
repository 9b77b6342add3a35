// Package satellite synthesizes a gridded NO2 concentration surface and persists it as a GeoTIFF.
package satellite

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/ctessum/geom"

	"github.com/kjstillabower/airquality-mockdata/internal/geotiff"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

// Config drives Generate. Distances are measured in cells.
type Config struct {
	Height   int
	Width    int
	OriginX  float64
	OriginY  float64
	CellSize float64
	CRS      string

	DecayPeak   float64
	DecayLength float64
	NoiseStd    float64

	// Hotspot is the world coordinate of the concentration peak. Nil means the centre of the extent.
	Hotspot *geom.Point
}

// DefaultConfig returns a 34x34 grid at 0.01 degrees anchored at 77.1E, 28.7N (Delhi).
func DefaultConfig() Config {
	return Config{
		Height:      34,
		Width:       34,
		OriginX:     77.1,
		OriginY:     28.7,
		CellSize:    0.01,
		CRS:         "EPSG:4326",
		DecayPeak:   0.0002,
		DecayLength: 10,
		NoiseStd:    0.00001,
	}
}

// Transform returns the affine transform of the configured grid.
func (c Config) Transform() models.Transform {
	return models.FromOrigin(c.OriginX, c.OriginY, c.CellSize, c.CellSize)
}

// hotspotCell returns the hotspot in fractional (row, col) grid coordinates, where cell
// (i, j) spans [i, i+1) x [j, j+1).
func (c Config) hotspotCell() (float64, float64) {
	if c.Hotspot == nil {
		return float64(c.Height) / 2, float64(c.Width) / 2
	}
	return c.Transform().Invert(c.Hotspot.X, c.Hotspot.Y)
}

// Generate fills a Height x Width grid with peak*exp(-d/decay) plus N(0, NoiseStd) noise,
// floored at zero, where d is the distance from each cell centre to the hotspot.
//
// DecayPeak is the value at the hotspot itself, which no cell centre reaches exactly. On an
// even grid with the default centred hotspot, the four central cells are each
// sqrt(0.5) away and share the noiseless maximum DecayPeak*exp(-sqrt(0.5)/DecayLength),
// about 0.000186 for the defaults.
func Generate(cfg Config, src rand.Source) models.Raster {
	rng := rand.New(src)
	grid := models.NewGrid(cfg.Height, cfg.Width)
	hr, hc := cfg.hotspotCell()

	for i := 0; i < grid.Height; i++ {
		for j := 0; j < grid.Width; j++ {
			d := math.Hypot(float64(i)+0.5-hr, float64(j)+0.5-hc)
			v := cfg.DecayPeak * math.Exp(-d/cfg.DecayLength)
			v += rng.NormFloat64() * cfg.NoiseStd
			grid.Set(i, j, math.Max(0, v))
		}
	}

	return models.Raster{Grid: grid, Transform: cfg.Transform(), CRS: cfg.CRS}
}

// Write persists r as a single-band float64 GeoTIFF and returns the bytes written.
func Write(path string, r models.Raster) (int64, error) {
	return geotiff.WriteFile(path, r)
}

// ReadRaster opens the GeoTIFF at path.
func ReadRaster(path string) (models.Raster, error) {
	return geotiff.ReadFile(path)
}

// FirstValid returns up to n leading values of g in row-major order, skipping NaN cells.
func FirstValid(g models.Grid, n int) []float64 {
	out := make([]float64, 0, max(n, 0))
	for _, v := range g.Values {
		if len(out) >= n {
			break
		}
		if math.IsNaN(v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// NewSource returns a PCG source for seed. A zero seed draws from the clock.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0xd1b54a32d192ed03)
}
