package render

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

const histogramBins = 50

// rasterXYZ adapts a north-up raster to plotter.GridXYZ, whose rows grow northwards.
type rasterXYZ struct {
	r models.Raster
}

func (x rasterXYZ) Dims() (c, r int) { return x.r.Grid.Width, x.r.Grid.Height }

func (x rasterXYZ) Z(c, r int) float64 { return x.r.Grid.At(x.r.Grid.Height-1-r, c) }

func (x rasterXYZ) X(c int) float64 { return x.r.Transform.CellCenter(0, c).X }

func (x rasterXYZ) Y(r int) float64 { return x.r.Transform.CellCenter(x.r.Grid.Height-1-r, 0).Y }

// SatellitePlot renders the raster as a heat map with colour bar next to a histogram of its
// cell values and writes the result as PNG.
func SatellitePlot(w io.Writer, r models.Raster) error {
	stats, err := Summarize(r.Grid.Values)
	if err != nil {
		return fmt.Errorf("satellite plot: %w", err)
	}
	lo, hi := stats.Min, stats.Max
	if hi <= lo {
		hi = lo + 1e-12
	}

	cmap := moreland.ExtendedBlackBody()
	cmap.SetMin(lo)
	cmap.SetMax(hi)

	heat := plot.New()
	heat.Title.Text = "NO2 Concentration (mol/m²)"
	heat.X.Label.Text = "Longitude"
	heat.Y.Label.Text = "Latitude"
	hm := plotter.NewHeatMap(rasterXYZ{r: r}, cmap.Palette(255))
	hm.Min, hm.Max = lo, hi
	heat.Add(hm)

	bar := plot.New()
	bar.HideX()
	bar.Y.Padding = 0
	bar.Title.Text = "mol/m²"
	bar.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true})

	hist := plot.New()
	hist.Title.Text = "NO2 Value Distribution"
	hist.X.Label.Text = "NO2 Concentration"
	hist.Y.Label.Text = "Frequency"
	h, err := plotter.NewHist(plotter.Values(finiteValues(r.Grid.Values)), histogramBins)
	if err != nil {
		return fmt.Errorf("satellite plot: histogram: %w", err)
	}
	hist.Add(h)

	const width, height = 15 * vg.Inch, 6 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	heat.Draw(draw.Crop(dc, 0, -width*0.52, 0, 0))
	bar.Draw(draw.Crop(dc, width*0.48, -width*0.44, 0, 0))
	hist.Draw(draw.Crop(dc, width*0.58, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("satellite plot: encode png: %w", err)
	}
	return nil
}

// SatellitePlotFile writes SatellitePlot output to path.
func SatellitePlotFile(path string, r models.Raster) (int64, error) {
	return artifact.WriteFile(path, func(w io.Writer) error { return SatellitePlot(w, r) })
}
