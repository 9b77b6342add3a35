// Command visualize renders the satellite heat map and histogram, the interactive sensor map
// and the PM2.5 time series from the generated artifacts.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/airquality-mockdata/internal/config"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
	"github.com/kjstillabower/airquality-mockdata/internal/render"
	"github.com/kjstillabower/airquality-mockdata/internal/satellite"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
)

func main() {
	logger, err := observability.NewLogger("visualize")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	raster, err := satellite.ReadRaster(cfg.Paths.SatelliteData)
	if err != nil {
		logger.Fatal("read satellite data", zap.String("path", cfg.Paths.SatelliteData), zap.Error(err))
	}
	no2, err := render.Summarize(raster.Grid.Values)
	if err != nil {
		logger.Fatal("summarize satellite data", zap.Error(err))
	}
	logger.Info("NO2 statistics", zap.Int("count", no2.Count), zap.Float64("min", no2.Min), zap.Float64("max", no2.Max), zap.Float64("mean", no2.Mean))

	n, err := render.SatellitePlotFile(cfg.Paths.SatellitePlot, raster)
	observability.RecordArtifact("satellite_plot", n, err)
	if err != nil {
		logger.Fatal("render satellite plot", zap.String("path", cfg.Paths.SatellitePlot), zap.Error(err))
	}
	logger.Info("satellite plot written", zap.String("path", cfg.Paths.SatellitePlot))

	ds, err := sensor.ReadDataset(cfg.Paths.GroundData)
	if err != nil {
		logger.Fatal("read ground data", zap.String("path", cfg.Paths.GroundData), zap.Error(err))
	}
	pm25, err := render.Summarize(sensor.Values(ds))
	if err != nil {
		logger.Fatal("summarize ground data", zap.Error(err))
	}
	logger.Info("PM2.5 statistics", zap.Int("count", pm25.Count), zap.Float64("min", pm25.Min), zap.Float64("max", pm25.Max), zap.Float64("mean", pm25.Mean))

	n, err = render.SensorMapFile(cfg.Paths.SensorMap, ds, cfg.Map)
	observability.RecordArtifact("sensor_map", n, err)
	if err != nil {
		logger.Fatal("render sensor map", zap.String("path", cfg.Paths.SensorMap), zap.Error(err))
	}
	logger.Info("sensor map written", zap.String("path", cfg.Paths.SensorMap))

	n, err = render.TimeSeriesFile(cfg.Paths.TimeSeries, ds)
	observability.RecordArtifact("time_series", n, err)
	if err != nil {
		logger.Fatal("render time series", zap.String("path", cfg.Paths.TimeSeries), zap.Error(err))
	}
	logger.Info("time series written", zap.String("path", cfg.Paths.TimeSeries))

	if err := observability.FlushTelemetry(context.Background(), logger, cfg.MetricsTextfile); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
}
