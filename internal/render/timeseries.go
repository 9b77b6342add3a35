package render

import (
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
)

// TimeSeries plots reading value against local timestamp, one line per station, as PNG.
func TimeSeries(w io.Writer, ds models.SensorDataset) error {
	if len(ds.Results) == 0 {
		return fmt.Errorf("time series: %w", ErrEmptyValues)
	}
	first, err := time.Parse(time.RFC3339, ds.Results[0].Date.Local)
	if err != nil {
		return fmt.Errorf("time series: parse local timestamp %q: %w", ds.Results[0].Date.Local, err)
	}
	zone := first.Location()

	p := plot.New()
	p.Title.Text = "PM2.5 Time Series"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "PM2.5 (µg/m³)"
	p.X.Tick.Marker = plot.TimeTicks{
		Format: "01-02 15:04",
		Time:   func(t float64) time.Time { return time.Unix(int64(t), 0).In(zone) },
	}
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = text.XRight
	p.X.Tick.Label.YAlign = text.YCenter
	p.Add(plotter.NewGrid())

	for i, loc := range sensor.Locations(ds) {
		readings := sensor.ByLocation(ds, loc)
		xys := make(plotter.XYs, len(readings))
		for j, r := range readings {
			ts, err := time.Parse(time.RFC3339, r.Date.Local)
			if err != nil {
				return fmt.Errorf("time series: parse local timestamp %q: %w", r.Date.Local, err)
			}
			xys[j].X = float64(ts.Unix())
			xys[j].Y = r.Value
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("time series: %s: %w", loc, err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(loc, line, points)
	}
	p.Legend.Top = true

	wt, err := p.WriterTo(12*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("time series: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("time series: encode png: %w", err)
	}
	return nil
}

// TimeSeriesFile writes TimeSeries output to path.
func TimeSeriesFile(path string, ds models.SensorDataset) (int64, error) {
	return artifact.WriteFile(path, func(w io.Writer) error { return TimeSeries(w, ds) })
}
