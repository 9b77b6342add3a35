// Command readraster opens the satellite GeoTIFF and logs its shape, georeference and
// the first valid cell values.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kjstillabower/airquality-mockdata/internal/config"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
	"github.com/kjstillabower/airquality-mockdata/internal/satellite"
)

func main() {
	logger, err := observability.NewLogger("readraster")
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
		logger.Fatal("read raster", zap.String("path", cfg.Paths.SatelliteData), zap.Error(err))
	}

	b := raster.Transform.Bounds(raster.Grid.Height, raster.Grid.Width)
	logger.Info("raster opened",
		zap.String("path", cfg.Paths.SatelliteData),
		zap.Int("height", raster.Grid.Height),
		zap.Int("width", raster.Grid.Width),
		zap.String("crs", raster.CRS),
		zap.Float64s("bounds", []float64{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}))
	logger.Info("first valid values", zap.Float64s("values", satellite.FirstValid(raster.Grid, cfg.ReaderSampleCount)))

	if err := observability.FlushTelemetry(context.Background(), logger, ""); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
}
