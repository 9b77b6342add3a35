// Command generate writes the synthetic ground sensor dataset (JSON) and the satellite NO2
// grid (GeoTIFF) to the configured paths, optionally exporting the readings to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/airquality-mockdata/internal/config"
	"github.com/kjstillabower/airquality-mockdata/internal/export"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
	"github.com/kjstillabower/airquality-mockdata/internal/satellite"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
)

func main() {
	logger, err := observability.NewLogger("generate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ds := sensor.Generate(cfg.Sensor, sensor.NewSource(cfg.SensorSeed), time.Now())
	observability.RecordDataset(ds, cfg.Sensor.ClampMin, cfg.Sensor.ClampMax)
	n, err := sensor.WriteDataset(cfg.Paths.GroundData, ds)
	observability.RecordArtifact("ground_data", n, err)
	if err != nil {
		logger.Fatal("write ground data", zap.String("path", cfg.Paths.GroundData), zap.Error(err))
	}
	logger.Info("ground data written",
		zap.String("path", cfg.Paths.GroundData),
		zap.Int("readings", len(ds.Results)),
		zap.Int("stations", ds.Meta.NumSensors),
		zap.Int("days", ds.Meta.Days))

	raster := satellite.Generate(cfg.Satellite, satellite.NewSource(cfg.SatelliteSeed))
	observability.RecordGrid(raster.Grid)
	n, err = satellite.Write(cfg.Paths.SatelliteData, raster)
	observability.RecordArtifact("satellite_data", n, err)
	if err != nil {
		logger.Fatal("write satellite data", zap.String("path", cfg.Paths.SatelliteData), zap.Error(err))
	}
	logger.Info("satellite data written",
		zap.String("path", cfg.Paths.SatelliteData),
		zap.Int("height", raster.Grid.Height),
		zap.Int("width", raster.Grid.Width),
		zap.String("crs", raster.CRS))

	if cfg.Influx.Enabled {
		exporter := export.NewInfluxExporter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, cfg.Influx.Timeout, logger)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Influx.Timeout)
		err := exporter.Export(ctx, ds)
		cancel()
		exporter.Close()
		if err != nil {
			logger.Fatal("influx export", zap.String("url", cfg.Influx.URL), zap.Error(err))
		}
	}

	if err := observability.FlushTelemetry(context.Background(), logger, cfg.MetricsTextfile); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
}
