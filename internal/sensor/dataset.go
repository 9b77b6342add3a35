package sensor

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

// Encode writes ds as indented JSON.
func Encode(w io.Writer, ds models.SensorDataset) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(ds)
}

// WriteDataset overwrites path with ds and returns the number of bytes written.
func WriteDataset(path string, ds models.SensorDataset) (int64, error) {
	return artifact.WriteFile(path, func(w io.Writer) error { return Encode(w, ds) })
}

// ReadDataset decodes the dataset stored at path.
func ReadDataset(path string) (models.SensorDataset, error) {
	f, err := artifact.Open(path)
	if err != nil {
		return models.SensorDataset{}, err
	}
	defer f.Close()

	var ds models.SensorDataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return models.SensorDataset{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return ds, nil
}

// Values returns the reading values in document order.
func Values(ds models.SensorDataset) []float64 {
	out := make([]float64, len(ds.Results))
	for i, r := range ds.Results {
		out[i] = r.Value
	}
	return out
}

// ByLocation returns the readings of a single station in document order.
func ByLocation(ds models.SensorDataset, location string) []models.SensorReading {
	var out []models.SensorReading
	for _, r := range ds.Results {
		if r.Location == location {
			out = append(out, r)
		}
	}
	return out
}

// Locations returns the distinct station names in order of first appearance.
func Locations(ds models.SensorDataset) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range ds.Results {
		if _, ok := seen[r.Location]; ok {
			continue
		}
		seen[r.Location] = struct{}{}
		out = append(out, r.Location)
	}
	return out
}

// CountClamped returns how many readings sit exactly on the clamp bounds.
func CountClamped(ds models.SensorDataset, lo, hi float64) int {
	n := 0
	for _, r := range ds.Results {
		if r.Value <= lo || r.Value >= hi {
			n++
		}
	}
	return n
}
