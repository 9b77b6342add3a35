// Package render draws the generated datasets: a satellite heat map with histogram, a
// sensor time series and a standalone HTML map of the sensor readings.
package render

import (
	"errors"
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyValues is returned when a scale or summary is requested for no values.
var ErrEmptyValues = errors.New("no values")

// DefaultStops runs green to yellow to red.
var DefaultStops = []string{"#008000", "#ffff00", "#ff0000"}

// ColorScale maps values linearly onto a sequence of colour stops between the minimum and
// maximum of the values it was built from. Values outside that range take the end colours.
type ColorScale struct {
	min, max float64
	stops    []colorful.Color
}

// NewColorScale builds a scale over values. With no stops DefaultStops is used.
// NaN values are ignored; an input with no finite value returns ErrEmptyValues.
func NewColorScale(values []float64, stops ...string) (*ColorScale, error) {
	finite := finiteValues(values)
	if len(finite) == 0 {
		return nil, fmt.Errorf("color scale: %w", ErrEmptyValues)
	}
	if len(stops) == 0 {
		stops = DefaultStops
	}
	if len(stops) < 2 {
		return nil, fmt.Errorf("color scale: need at least 2 stops, got %d", len(stops))
	}
	s := &ColorScale{min: floats.Min(finite), max: floats.Max(finite)}
	for _, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, fmt.Errorf("color scale: stop %q: %w", hex, err)
		}
		s.stops = append(s.stops, c)
	}
	return s, nil
}

func (s *ColorScale) Min() float64 { return s.min }
func (s *ColorScale) Max() float64 { return s.max }

// At returns the colour for v. When min == max every value maps to the first stop.
func (s *ColorScale) At(v float64) colorful.Color {
	if s.max == s.min || math.IsNaN(v) {
		return s.stops[0]
	}
	t := math.Max(0, math.Min(1, (v-s.min)/(s.max-s.min)))
	pos := t * float64(len(s.stops)-1)
	i := min(int(pos), len(s.stops)-2)
	return s.stops[i].BlendRgb(s.stops[i+1], pos-float64(i)).Clamped()
}

// Hex returns the colour for v as #rrggbb.
func (s *ColorScale) Hex(v float64) string {
	return s.At(v).Hex()
}

// Stats summarizes a set of values.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Summarize returns count, min, max and mean of the finite values.
func Summarize(values []float64) (Stats, error) {
	finite := finiteValues(values)
	if len(finite) == 0 {
		return Stats{}, fmt.Errorf("summarize: %w", ErrEmptyValues)
	}
	return Stats{
		Count: len(finite),
		Min:   floats.Min(finite),
		Max:   floats.Max(finite),
		Mean:  stat.Mean(finite, nil),
	}, nil
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
