package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp switches into a fresh directory for the duration of the test and clears the
// environment overrides Load consults.
func chdirTemp(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"ENV_NAME", "SENSOR_SEED", "SATELLITE_SEED", "INFLUX_TOKEN", "PREVIEW_PORT"} {
		t.Setenv(k, "")
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	return dir
}

func TestLoad_DefaultsWithoutConfigFile(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Sensor.Stations) != 5 {
		t.Errorf("stations = %d, want 5", len(cfg.Sensor.Stations))
	}
	if cfg.Sensor.Days != 1 || cfg.Sensor.Parameter != "pm25" {
		t.Errorf("sensor = %+v", cfg.Sensor)
	}
	if cfg.Sensor.LocalOffset != 5*time.Hour+30*time.Minute {
		t.Errorf("LocalOffset = %v, want 5h30m", cfg.Sensor.LocalOffset)
	}
	if cfg.Satellite.Height != 34 || cfg.Satellite.Width != 34 || cfg.Satellite.CRS != "EPSG:4326" {
		t.Errorf("satellite = %+v", cfg.Satellite)
	}
	if cfg.Paths.GroundData != filepath.Join("data", "ground", "delhi_pm25.json") {
		t.Errorf("GroundData = %q", cfg.Paths.GroundData)
	}
	if cfg.ReaderSampleCount != 10 {
		t.Errorf("ReaderSampleCount = %d, want 10", cfg.ReaderSampleCount)
	}
	if cfg.Influx.Enabled {
		t.Error("Influx.Enabled = true, want false by default")
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	chdirTemp(t)
	t.Setenv("ENV_NAME", "nonexistent")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("Load() error = %v, want message about config file not found", err)
	}
}

func TestLoad_ProjectDevConfig(t *testing.T) {
	for _, k := range []string{"ENV_NAME", "SENSOR_SEED", "SATELLITE_SEED", "INFLUX_TOKEN", "PREVIEW_PORT"} {
		t.Setenv(k, "")
	}
	origWd, _ := os.Getwd()
	if err := os.Chdir(findProjectRoot(t)); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origWd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := Default()
	if cfg.Sensor.ValueMin != def.Sensor.ValueMin || cfg.Sensor.ClampMax != def.Sensor.ClampMax {
		t.Errorf("dev.yaml sensor ranges diverge from defaults: %+v", cfg.Sensor)
	}
	if cfg.Satellite.DecayPeak != def.Satellite.DecayPeak || cfg.Satellite.NoiseStd != def.Satellite.NoiseStd {
		t.Errorf("dev.yaml satellite parameters diverge from defaults: %+v", cfg.Satellite)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
sensor:
  dataset_name: Mumbai
  days: 3
  base_date: "2024-02-01T00:00:00Z"
  local_offset: "1h"
  rush_hours: [7]
  value_range: [10, 20]
  clamp_range: [0, 500]
  seed: 99
  stations:
    - { name: Bandra, latitude: 19.05, longitude: 72.84 }
satellite:
  height: 10
  width: 20
  origin: { longitude: 72.8, latitude: 19.2 }
  cell_size: 0.05
  hotspot: { longitude: 72.84, latitude: 19.05 }
paths:
  ground_data: out/g.json
preview:
  port: "9090"
  request_timeout: "2s"
metrics:
  textfile: out/metrics.prom
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s := cfg.Sensor
	if s.DatasetName != "Mumbai" || s.Days != 3 || len(s.Stations) != 1 || s.Stations[0].Name != "Bandra" {
		t.Errorf("sensor = %+v", s)
	}
	if !s.BaseDate.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("BaseDate = %v", s.BaseDate)
	}
	if s.LocalOffset != time.Hour || len(s.RushHours) != 1 || s.RushHours[0] != 7 {
		t.Errorf("offset/rush = %v %v", s.LocalOffset, s.RushHours)
	}
	if s.ValueMin != 10 || s.ValueMax != 20 || s.ClampMin != 0 || s.ClampMax != 500 {
		t.Errorf("ranges = %+v", s)
	}
	if s.Parameter != "pm25" {
		t.Errorf("Parameter = %q, want default pm25", s.Parameter)
	}
	if cfg.SensorSeed != 99 {
		t.Errorf("SensorSeed = %d, want 99", cfg.SensorSeed)
	}
	g := cfg.Satellite
	if g.Height != 10 || g.Width != 20 || g.OriginX != 72.8 || g.OriginY != 19.2 || g.CellSize != 0.05 {
		t.Errorf("satellite = %+v", g)
	}
	if g.Hotspot == nil || g.Hotspot.X != 72.84 || g.Hotspot.Y != 19.05 {
		t.Errorf("Hotspot = %+v", g.Hotspot)
	}
	if cfg.Paths.GroundData != "out/g.json" {
		t.Errorf("GroundData = %q", cfg.Paths.GroundData)
	}
	if cfg.Paths.SatelliteData != filepath.Join("data", "satellite", "delhi_no2.tif") {
		t.Errorf("SatelliteData = %q, want default", cfg.Paths.SatelliteData)
	}
	if cfg.Preview.Port != "9090" || cfg.Preview.RequestTimeout != 2*time.Second {
		t.Errorf("preview = %+v", cfg.Preview)
	}
	if cfg.MetricsTextfile != "out/metrics.prom" {
		t.Errorf("MetricsTextfile = %q", cfg.MetricsTextfile)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, `
preview:
  request_timeout: "invalid"
  shutdown_timeout: ""
sensor:
  local_offset: "soon"
`)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Preview.RequestTimeout != 5*time.Second || cfg.Preview.ShutdownTimeout != 10*time.Second {
		t.Errorf("preview timeouts = %v / %v, want defaults", cfg.Preview.RequestTimeout, cfg.Preview.ShutdownTimeout)
	}
	if cfg.Sensor.LocalOffset != 5*time.Hour+30*time.Minute {
		t.Errorf("LocalOffset = %v, want default", cfg.Sensor.LocalOffset)
	}
}

func TestLoad_ZeroDaysAllowed(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "sensor:\n  days: 0\n")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sensor.Days != 0 {
		t.Errorf("Days = %d, want 0", cfg.Sensor.Days)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "sensor: [unclosed\n")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want parse config file error", err)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"inverted value range", "sensor:\n  value_range: [200, 100]\n", "ValueMin"},
		{"inverted clamp range", "sensor:\n  clamp_range: [300, 50]\n", "ClampMin"},
		{"range arity", "sensor:\n  value_range: [1, 2, 3]\n", "exactly 2"},
		{"rush hour out of day", "sensor:\n  rush_hours: [24]\n", "RushHours"},
		{"negative noise", "sensor:\n  noise: -1\n", "Noise"},
		{"bad base date", "sensor:\n  base_date: yesterday\n", "base_date"},
		{"station latitude", "sensor:\n  stations:\n    - { name: X, latitude: 91, longitude: 0 }\n", "Latitude"},
		{"station name chars", "sensor:\n  stations:\n    - { name: \"a/b\", latitude: 1, longitude: 1 }\n", "invalid characters"},
		{"duplicate station", "sensor:\n  stations:\n    - { name: A, latitude: 1, longitude: 1 }\n    - { name: A, latitude: 2, longitude: 2 }\n", "duplicate"},
		{"zero cell size", "satellite:\n  cell_size: 0\n", "CellSize"},
		{"zero decay length", "satellite:\n  decay_length: 0\n", "DecayLength"},
		{"crs", "satellite:\n  crs: WGS84\n", "CRS"},
		{"influx url", "influx:\n  url: \"not a url\"\n", "InfluxURL"},
		{"cache backend", "preview:\n  cache:\n    backend: redis\n", "CacheBackend"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := chdirTemp(t)
			writeEnvFile(t, dir, tc.yaml)
			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_PreviewCacheSettings(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "preview:\n  cache:\n    backend: memcached\n    ttl: \"30s\"\n    memcached:\n      addrs: \"mc1:11211,mc2:11211\"\n      timeout: \"250ms\"\n      max_idle_conns: 4\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	pv := cfg.Preview
	if pv.CacheBackend != "memcached" || pv.CacheTTL != 30*time.Second {
		t.Errorf("cache = %q/%v, want memcached/30s", pv.CacheBackend, pv.CacheTTL)
	}
	if pv.MemcachedAddrs != "mc1:11211,mc2:11211" || pv.MemcachedTimeout != 250*time.Millisecond || pv.MemcachedMaxIdleConns != 4 {
		t.Errorf("memcached = %q/%v/%d", pv.MemcachedAddrs, pv.MemcachedTimeout, pv.MemcachedMaxIdleConns)
	}
}

func TestLoad_InfluxRequiresToken(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "influx:\n  enabled: true\n")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "INFLUX_TOKEN") {
		t.Fatalf("Load() error = %v, want INFLUX_TOKEN error", err)
	}
}

func TestLoad_InfluxTokenFromSecretsFile(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "influx:\n  enabled: true\n")
	writeSecretsFile(t, dir, "influx_token: token-from-secrets\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Influx.Token != "token-from-secrets" {
		t.Errorf("Influx.Token = %q, want token from secrets file", cfg.Influx.Token)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	dir := chdirTemp(t)
	writeSecretsFile(t, dir, "influx_token: [unclosed\n")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "secrets") {
		t.Errorf("Load() error = %v, want secrets parse error", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := chdirTemp(t)
	writeEnvFile(t, dir, "influx:\n  enabled: true\n")
	writeSecretsFile(t, dir, "influx_token: from-file\n")
	t.Setenv("INFLUX_TOKEN", "from-env")
	t.Setenv("SENSOR_SEED", "12")
	t.Setenv("SATELLITE_SEED", "34")
	t.Setenv("PREVIEW_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Influx.Token != "from-env" {
		t.Errorf("Influx.Token = %q, want env to win", cfg.Influx.Token)
	}
	if cfg.SensorSeed != 12 || cfg.SatelliteSeed != 34 {
		t.Errorf("seeds = %d/%d, want 12/34", cfg.SensorSeed, cfg.SatelliteSeed)
	}
	if cfg.Preview.Port != "7000" {
		t.Errorf("Preview.Port = %q, want 7000", cfg.Preview.Port)
	}
}

func TestLoad_BadSeedEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SENSOR_SEED", "-3")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SENSOR_SEED") {
		t.Errorf("Load() error = %v, want SENSOR_SEED error", err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PREVIEW_PORT=6060\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("PREVIEW_PORT") })
	os.Unsetenv("PREVIEW_PORT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Preview.Port != "6060" {
		t.Errorf("Preview.Port = %q, want value from .env", cfg.Preview.Port)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		def  time.Duration
		want time.Duration
	}{
		{"", time.Second, time.Second},
		{"  3s ", time.Second, 3 * time.Second},
		{"bogus", time.Minute, time.Minute},
		{"0s", time.Minute, time.Minute},
		{"-1s", time.Minute, time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, tt.def); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := parseDurationOrZero("0s", time.Minute); got != 0 {
		t.Errorf("parseDurationOrZero(0s) = %v, want 0", got)
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	secretsDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(secretsDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "secrets.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}

// TestCoverageGaps_IntentionallyUntested documents paths we reviewed but chose not to test.
// Run with -v to see skip reasons.
func TestCoverageGaps_IntentionallyUntested(t *testing.T) {
	t.Run("Load_read_config_error", func(t *testing.T) {
		t.Skip("ReadFile error path (permission denied, etc.) requires injecting failure; not worth portability cost")
	})
	t.Run("Load_getwd_error", func(t *testing.T) {
		t.Skip("os.Getwd only fails when the working directory was removed underneath the process")
	})
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
