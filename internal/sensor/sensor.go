// Package sensor synthesizes hourly ground-station readings and persists them as a JSON dataset.
package sensor

import (
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

const (
	utcLayout       = "2006-01-02T15:04:05Z"
	localLayout     = "2006-01-02T15:04:05-07:00"
	generatedLayout = "2006-01-02 15:04:05"
	hoursPerDay     = 24
)

// Config drives Generate. All bounds are inclusive.
type Config struct {
	DatasetName string
	Parameter   string
	Stations    []models.Station
	Days        int
	BaseDate    time.Time
	LocalOffset time.Duration

	RushHours  []int
	RushFactor float64

	ValueMin float64
	ValueMax float64
	Noise    float64
	ClampMin float64
	ClampMax float64
}

// DefaultStations are the Delhi monitoring stations used when no station list is configured.
func DefaultStations() []models.Station {
	return []models.Station{
		{Name: "US Embassy", Latitude: 28.6, Longitude: 77.2},
		{Name: "Anand Vihar", Latitude: 28.65, Longitude: 77.3},
		{Name: "Punjabi Bagh", Latitude: 28.66, Longitude: 77.12},
		{Name: "R K Puram", Latitude: 28.56, Longitude: 77.18},
		{Name: "Mandir Marg", Latitude: 28.63, Longitude: 77.2},
	}
}

// DefaultConfig returns the Delhi PM2.5 configuration for one day of readings.
func DefaultConfig() Config {
	return Config{
		DatasetName: "Delhi_PM25_Mock_Data",
		Parameter:   "pm25",
		Stations:    DefaultStations(),
		Days:        1,
		BaseDate:    time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC),
		LocalOffset: 5*time.Hour + 30*time.Minute,
		RushHours:   []int{8, 9, 17, 18},
		RushFactor:  1.3,
		ValueMin:    100,
		ValueMax:    200,
		Noise:       10,
		ClampMin:    50,
		ClampMax:    300,
	}
}

// Generate produces one reading per station per hour per day. Values are drawn from src;
// every other field is a pure function of cfg. A non-positive day count yields no readings.
// Generate does not validate cfg.
func Generate(cfg Config, src rand.Source, now time.Time) models.SensorDataset {
	rng := rand.New(src)
	zone := time.FixedZone("local", int(cfg.LocalOffset/time.Second))

	days := max(cfg.Days, 0)
	results := make([]models.SensorReading, 0, len(cfg.Stations)*days*hoursPerDay)
	for _, st := range cfg.Stations {
		for day := 0; day < days; day++ {
			for hour := 0; hour < hoursPerDay; hour++ {
				ts := cfg.BaseDate.UTC().Add(time.Duration(day)*24*time.Hour + time.Duration(hour)*time.Hour)
				results = append(results, models.SensorReading{
					Location:  st.Name,
					Parameter: cfg.Parameter,
					Value:     cfg.value(rng, hour),
					Date: models.ReadingDate{
						UTC:   ts.Format(utcLayout),
						Local: ts.In(zone).Format(localLayout),
					},
					Coordinates: models.Coordinates{Latitude: st.Latitude, Longitude: st.Longitude},
				})
			}
		}
	}

	return models.SensorDataset{
		Meta: models.DatasetMeta{
			Name:          cfg.DatasetName,
			DateGenerated: now.Format(generatedLayout),
			NumSensors:    len(cfg.Stations),
			Days:          cfg.Days,
		},
		Results: results,
	}
}

func (cfg Config) value(rng *rand.Rand, hour int) float64 {
	v := uniform(rng, cfg.ValueMin, cfg.ValueMax)
	if cfg.IsRushHour(hour) {
		v *= cfg.RushFactor
	}
	v += uniform(rng, -cfg.Noise, cfg.Noise)
	v = Clamp(v, cfg.ClampMin, cfg.ClampMax)
	return math.Round(v*10) / 10
}

// IsRushHour reports whether hour receives the multiplicative boost.
func (cfg Config) IsRushHour(hour int) bool {
	return slices.Contains(cfg.RushHours, hour)
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// NewSource returns a PCG source for seed. A zero seed draws from the clock.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}
