package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/render"
	"github.com/kjstillabower/airquality-mockdata/internal/satellite"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
	"github.com/kjstillabower/airquality-mockdata/internal/validation"
)

const (
	stationNameMinLength = 1
	stationNameMaxLength = 64
)

// Config holds generator, renderer and preview configuration loaded from YAML and env.
type Config struct {
	Sensor     sensor.Config
	SensorSeed uint64

	Satellite     satellite.Config
	SatelliteSeed uint64

	Paths Paths

	ReaderSampleCount int

	Map render.MapOptions

	Preview Preview
	Influx  Influx

	// MetricsTextfile, when set, receives the Prometheus registry after each batch run.
	MetricsTextfile string
}

// Paths are the artifact locations shared by all programs.
type Paths struct {
	GroundData    string
	SatelliteData string
	SatellitePlot string
	SensorMap     string
	TimeSeries    string
}

// Preview configures the read-only HTTP preview service.
type Preview struct {
	Port              string
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
	RateLimitRPS      int
	RateLimitBurst    int
	LocationMaxLength int

	// CacheBackend is "none", "in_memory" or "memcached".
	CacheBackend          string
	CacheTTL              time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	BreakerFailures       int
	BreakerTimeout        time.Duration

	HealthWindow      time.Duration
	OverloadDenialPct int
	DegradedErrorPct  int
}

// Influx configures the optional InfluxDB export of generated readings.
type Influx struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

type point struct {
	Longitude float64 `yaml:"longitude"`
	Latitude  float64 `yaml:"latitude"`
}

type fileConfig struct {
	Sensor struct {
		DatasetName string           `yaml:"dataset_name"`
		Parameter   string           `yaml:"parameter"`
		Days        *int             `yaml:"days"`
		BaseDate    string           `yaml:"base_date"`
		LocalOffset string           `yaml:"local_offset"`
		RushHours   []int            `yaml:"rush_hours"`
		RushFactor  *float64         `yaml:"rush_factor"`
		ValueRange  []float64        `yaml:"value_range"`
		Noise       *float64         `yaml:"noise"`
		ClampRange  []float64        `yaml:"clamp_range"`
		Seed        uint64           `yaml:"seed"`
		Stations    []models.Station `yaml:"stations"`
	} `yaml:"sensor"`

	Satellite struct {
		Height      int      `yaml:"height"`
		Width       int      `yaml:"width"`
		Origin      *point   `yaml:"origin"`
		CellSize    *float64 `yaml:"cell_size"`
		CRS         string   `yaml:"crs"`
		DecayPeak   *float64 `yaml:"decay_peak"`
		DecayLength *float64 `yaml:"decay_length"`
		NoiseStd    *float64 `yaml:"noise_std"`
		Hotspot     *point   `yaml:"hotspot"`
		Seed        uint64   `yaml:"seed"`
	} `yaml:"satellite"`

	Paths struct {
		GroundData    string `yaml:"ground_data"`
		SatelliteData string `yaml:"satellite_data"`
		SatellitePlot string `yaml:"satellite_plot"`
		SensorMap     string `yaml:"sensor_map"`
		TimeSeries    string `yaml:"time_series"`
	} `yaml:"paths"`

	Reader struct {
		SampleCount int `yaml:"sample_count"`
	} `yaml:"reader"`

	Map struct {
		Center *point `yaml:"center"`
		Zoom   int    `yaml:"zoom"`
		Radius int    `yaml:"radius"`
	} `yaml:"map"`

	Preview struct {
		Port              string `yaml:"port"`
		RequestTimeout    string `yaml:"request_timeout"`
		ShutdownTimeout   string `yaml:"shutdown_timeout"`
		RateLimitRPS      int    `yaml:"rate_limit_rps"`
		RateLimitBurst    int    `yaml:"rate_limit_burst"`
		LocationMaxLength int    `yaml:"location_max_length"`

		Cache struct {
			Backend   string `yaml:"backend"`
			TTL       string `yaml:"ttl"`
			Memcached struct {
				Addrs        string `yaml:"addrs"`
				Timeout      string `yaml:"timeout"`
				MaxIdleConns int    `yaml:"max_idle_conns"`
			} `yaml:"memcached"`
			BreakerFailures int    `yaml:"breaker_failures"`
			BreakerTimeout  string `yaml:"breaker_timeout"`
		} `yaml:"cache"`

		Health struct {
			Window            string `yaml:"window"`
			OverloadDenialPct int    `yaml:"overload_denial_pct"`
			DegradedErrorPct  int    `yaml:"degraded_error_pct"`
		} `yaml:"health"`
	} `yaml:"preview"`

	Influx struct {
		Enabled bool   `yaml:"enabled"`
		URL     string `yaml:"url"`
		Org     string `yaml:"org"`
		Bucket  string `yaml:"bucket"`
		Timeout string `yaml:"timeout"`
	} `yaml:"influx"`

	Metrics struct {
		Textfile string `yaml:"textfile"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	InfluxToken string `yaml:"influx_token"`
}

// Default returns the configuration used when no config file exists: the Delhi station list,
// a 34x34 NO2 grid and the data/ground, data/satellite artifact layout.
func Default() *Config {
	return &Config{
		Sensor:    sensor.DefaultConfig(),
		Satellite: satellite.DefaultConfig(),
		Paths: Paths{
			GroundData:    filepath.Join("data", "ground", "delhi_pm25.json"),
			SatelliteData: filepath.Join("data", "satellite", "delhi_no2.tif"),
			SatellitePlot: filepath.Join("data", "satellite", "no2_visualization.png"),
			SensorMap:     filepath.Join("data", "ground", "pm25_map.html"),
			TimeSeries:    filepath.Join("data", "ground", "pm25_timeseries.png"),
		},
		ReaderSampleCount: 10,
		Map:               render.DefaultMapOptions(),
		Preview: Preview{
			Port:              "8080",
			RequestTimeout:    5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRPS:      20,
			RateLimitBurst:    40,
			LocationMaxLength: stationNameMaxLength,
			CacheBackend:      "in_memory",
			CacheTTL:          time.Minute,
			MemcachedAddrs:    "localhost:11211",
			MemcachedTimeout:  500 * time.Millisecond,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
			HealthWindow:      time.Minute,
			OverloadDenialPct: 50,
			DegradedErrorPct:  50,
		},
		Influx: Influx{
			URL:     "http://localhost:8086",
			Org:     "airquality",
			Bucket:  "mockdata",
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads .env (optional), then config/{ENV_NAME}.yaml and config/secrets.yaml. When
// ENV_NAME is unset and config/dev.yaml does not exist the defaults are used. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	explicitEnv := env != ""
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err) && explicitEnv:
		return nil, fmt.Errorf("config file not found: %s", configPath)
	case os.IsNotExist(err):
		// defaults only
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg, err := fromFile(&fc)
	if err != nil {
		return nil, err
	}

	if err := applySecrets(cfg, filepath.Join(cwd, "config", "secrets.yaml")); err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromFile overlays the file values onto Default.
func fromFile(fc *fileConfig) (*Config, error) {
	cfg := Default()

	s := &cfg.Sensor
	if fc.Sensor.DatasetName != "" {
		s.DatasetName = fc.Sensor.DatasetName
	}
	if fc.Sensor.Parameter != "" {
		s.Parameter = fc.Sensor.Parameter
	}
	if fc.Sensor.Days != nil {
		s.Days = *fc.Sensor.Days
	}
	if strings.TrimSpace(fc.Sensor.BaseDate) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(fc.Sensor.BaseDate))
		if err != nil {
			return nil, fmt.Errorf("sensor.base_date: %w", err)
		}
		s.BaseDate = t.UTC()
	}
	s.LocalOffset = parseDurationOrZero(fc.Sensor.LocalOffset, s.LocalOffset)
	if fc.Sensor.RushHours != nil {
		s.RushHours = fc.Sensor.RushHours
	}
	if fc.Sensor.RushFactor != nil {
		s.RushFactor = *fc.Sensor.RushFactor
	}
	if fc.Sensor.Noise != nil {
		s.Noise = *fc.Sensor.Noise
	}
	var err error
	if s.ValueMin, s.ValueMax, err = parseRange("sensor.value_range", fc.Sensor.ValueRange, s.ValueMin, s.ValueMax); err != nil {
		return nil, err
	}
	if s.ClampMin, s.ClampMax, err = parseRange("sensor.clamp_range", fc.Sensor.ClampRange, s.ClampMin, s.ClampMax); err != nil {
		return nil, err
	}
	if len(fc.Sensor.Stations) > 0 {
		s.Stations = fc.Sensor.Stations
	}
	cfg.SensorSeed = fc.Sensor.Seed

	g := &cfg.Satellite
	if fc.Satellite.Height > 0 {
		g.Height = fc.Satellite.Height
	}
	if fc.Satellite.Width > 0 {
		g.Width = fc.Satellite.Width
	}
	if fc.Satellite.Origin != nil {
		g.OriginX, g.OriginY = fc.Satellite.Origin.Longitude, fc.Satellite.Origin.Latitude
	}
	if fc.Satellite.CellSize != nil {
		g.CellSize = *fc.Satellite.CellSize
	}
	if fc.Satellite.CRS != "" {
		g.CRS = fc.Satellite.CRS
	}
	if fc.Satellite.DecayPeak != nil {
		g.DecayPeak = *fc.Satellite.DecayPeak
	}
	if fc.Satellite.DecayLength != nil {
		g.DecayLength = *fc.Satellite.DecayLength
	}
	if fc.Satellite.NoiseStd != nil {
		g.NoiseStd = *fc.Satellite.NoiseStd
	}
	if fc.Satellite.Hotspot != nil {
		g.Hotspot = &geom.Point{X: fc.Satellite.Hotspot.Longitude, Y: fc.Satellite.Hotspot.Latitude}
	}
	cfg.SatelliteSeed = fc.Satellite.Seed

	p := &cfg.Paths
	setString(&p.GroundData, fc.Paths.GroundData)
	setString(&p.SatelliteData, fc.Paths.SatelliteData)
	setString(&p.SatellitePlot, fc.Paths.SatellitePlot)
	setString(&p.SensorMap, fc.Paths.SensorMap)
	setString(&p.TimeSeries, fc.Paths.TimeSeries)

	if fc.Reader.SampleCount > 0 {
		cfg.ReaderSampleCount = fc.Reader.SampleCount
	}

	if fc.Map.Center != nil {
		cfg.Map.CenterLat, cfg.Map.CenterLon = fc.Map.Center.Latitude, fc.Map.Center.Longitude
	}
	if fc.Map.Zoom > 0 {
		cfg.Map.Zoom = fc.Map.Zoom
	}
	if fc.Map.Radius > 0 {
		cfg.Map.Radius = fc.Map.Radius
	}

	pv := &cfg.Preview
	setString(&pv.Port, fc.Preview.Port)
	pv.RequestTimeout = parseDuration(fc.Preview.RequestTimeout, pv.RequestTimeout)
	pv.ShutdownTimeout = parseDuration(fc.Preview.ShutdownTimeout, pv.ShutdownTimeout)
	if fc.Preview.RateLimitRPS > 0 {
		pv.RateLimitRPS = fc.Preview.RateLimitRPS
	}
	if fc.Preview.RateLimitBurst > 0 {
		pv.RateLimitBurst = fc.Preview.RateLimitBurst
	}
	if fc.Preview.LocationMaxLength > 0 {
		pv.LocationMaxLength = fc.Preview.LocationMaxLength
	}
	setString(&pv.CacheBackend, fc.Preview.Cache.Backend)
	pv.CacheTTL = parseDuration(fc.Preview.Cache.TTL, pv.CacheTTL)
	setString(&pv.MemcachedAddrs, fc.Preview.Cache.Memcached.Addrs)
	pv.MemcachedTimeout = parseDuration(fc.Preview.Cache.Memcached.Timeout, pv.MemcachedTimeout)
	if fc.Preview.Cache.Memcached.MaxIdleConns > 0 {
		pv.MemcachedMaxIdleConns = fc.Preview.Cache.Memcached.MaxIdleConns
	}
	if fc.Preview.Cache.BreakerFailures > 0 {
		pv.BreakerFailures = fc.Preview.Cache.BreakerFailures
	}
	pv.BreakerTimeout = parseDuration(fc.Preview.Cache.BreakerTimeout, pv.BreakerTimeout)
	pv.HealthWindow = parseDuration(fc.Preview.Health.Window, pv.HealthWindow)
	if fc.Preview.Health.OverloadDenialPct > 0 {
		pv.OverloadDenialPct = fc.Preview.Health.OverloadDenialPct
	}
	if fc.Preview.Health.DegradedErrorPct > 0 {
		pv.DegradedErrorPct = fc.Preview.Health.DegradedErrorPct
	}

	in := &cfg.Influx
	in.Enabled = fc.Influx.Enabled
	setString(&in.URL, fc.Influx.URL)
	setString(&in.Org, fc.Influx.Org)
	setString(&in.Bucket, fc.Influx.Bucket)
	in.Timeout = parseDuration(fc.Influx.Timeout, in.Timeout)

	cfg.MetricsTextfile = strings.TrimSpace(fc.Metrics.Textfile)
	return cfg, nil
}

func applySecrets(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}
	cfg.Influx.Token = sec.InfluxToken
	return nil
}

// applyEnv applies SENSOR_SEED, SATELLITE_SEED, INFLUX_TOKEN and PREVIEW_PORT overrides.
func applyEnv(cfg *Config) error {
	for _, s := range []struct {
		key  string
		dest *uint64
	}{
		{"SENSOR_SEED", &cfg.SensorSeed},
		{"SATELLITE_SEED", &cfg.SatelliteSeed},
	} {
		v := strings.TrimSpace(os.Getenv(s.key))
		if v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s must be an unsigned integer: %w", s.key, err)
		}
		*s.dest = n
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("PREVIEW_PORT")); v != "" {
		cfg.Preview.Port = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// parseRange reads a two-element [min, max] list, returning the defaults when absent.
func parseRange(name string, v []float64, defMin, defMax float64) (float64, float64, error) {
	switch len(v) {
	case 0:
		return defMin, defMax, nil
	case 2:
		return v[0], v[1], nil
	default:
		return 0, 0, fmt.Errorf("%s must have exactly 2 elements, got %d", name, len(v))
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

type stationCheck struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

type checks struct {
	Parameter  string         `validate:"required"`
	Stations   []stationCheck `validate:"required,dive"`
	RushHours  []int          `validate:"dive,gte=0,lte=23"`
	RushFactor float64        `validate:"gt=0"`
	ValueMin   float64        `validate:"ltefield=ValueMax"`
	ValueMax   float64
	Noise      float64 `validate:"gte=0"`
	ClampMin   float64 `validate:"ltefield=ClampMax"`
	ClampMax   float64

	Height      int     `validate:"gt=0"`
	Width       int     `validate:"gt=0"`
	CellSize    float64 `validate:"gt=0"`
	CRS         string  `validate:"startswith=EPSG:"`
	DecayPeak   float64 `validate:"gte=0"`
	DecayLength float64 `validate:"gt=0"`
	NoiseStd    float64 `validate:"gte=0"`

	GroundData    string `validate:"required"`
	SatelliteData string `validate:"required"`
	SatellitePlot string `validate:"required"`
	SensorMap     string `validate:"required"`
	TimeSeries    string `validate:"required"`

	CacheBackend      string `validate:"oneof=none in_memory memcached"`
	OverloadDenialPct int    `validate:"gte=0,lte=100"`
	DegradedErrorPct  int    `validate:"gte=0,lte=100"`

	InfluxURL string `validate:"omitempty,url"`
}

var structValidator = validator.New()

// validate performs post-load validation of configuration values. Field ranges are checked
// with struct tags; station names must be unique and pass ValidateStationName.
func validate(cfg *Config) error {
	c := checks{
		Parameter:         cfg.Sensor.Parameter,
		RushHours:         cfg.Sensor.RushHours,
		RushFactor:        cfg.Sensor.RushFactor,
		ValueMin:          cfg.Sensor.ValueMin,
		ValueMax:          cfg.Sensor.ValueMax,
		Noise:             cfg.Sensor.Noise,
		ClampMin:          cfg.Sensor.ClampMin,
		ClampMax:          cfg.Sensor.ClampMax,
		Height:            cfg.Satellite.Height,
		Width:             cfg.Satellite.Width,
		CellSize:          cfg.Satellite.CellSize,
		CRS:               cfg.Satellite.CRS,
		DecayPeak:         cfg.Satellite.DecayPeak,
		DecayLength:       cfg.Satellite.DecayLength,
		NoiseStd:          cfg.Satellite.NoiseStd,
		GroundData:        cfg.Paths.GroundData,
		SatelliteData:     cfg.Paths.SatelliteData,
		SatellitePlot:     cfg.Paths.SatellitePlot,
		SensorMap:         cfg.Paths.SensorMap,
		TimeSeries:        cfg.Paths.TimeSeries,
		CacheBackend:      cfg.Preview.CacheBackend,
		OverloadDenialPct: cfg.Preview.OverloadDenialPct,
		DegradedErrorPct:  cfg.Preview.DegradedErrorPct,
		InfluxURL:         cfg.Influx.URL,
	}
	for _, st := range cfg.Sensor.Stations {
		c.Stations = append(c.Stations, stationCheck{Latitude: st.Latitude, Longitude: st.Longitude})
	}
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := models.EPSGCode(cfg.Satellite.CRS); err != nil {
		return fmt.Errorf("satellite.crs: %w", err)
	}

	seen := make(map[string]struct{}, len(cfg.Sensor.Stations))
	for i, st := range cfg.Sensor.Stations {
		name, err := validation.ValidateStationName(st.Name, stationNameMinLength, stationNameMaxLength)
		if err != nil {
			return fmt.Errorf("sensor.stations[%d] %q: %w", i, st.Name, err)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("sensor.stations[%d]: duplicate station %q", i, name)
		}
		seen[name] = struct{}{}
		cfg.Sensor.Stations[i].Name = name
	}

	if cfg.Influx.Enabled {
		if cfg.Influx.URL == "" || cfg.Influx.Bucket == "" || cfg.Influx.Org == "" {
			return fmt.Errorf("influx.enabled requires url, org and bucket")
		}
		if cfg.Influx.Token == "" {
			return fmt.Errorf("INFLUX_TOKEN required when influx.enabled (set env or config/secrets.yaml influx_token)")
		}
	}
	return nil
}
