// Package export pushes generated sensor readings into InfluxDB.
package export

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
)

const measurement = "air_quality"

// InfluxExporter writes one point per reading: measurement air_quality, tags location and
// parameter, fields value, latitude and longitude, timestamped at the reading's UTC time.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	logger   *zap.Logger
}

// NewInfluxExporter creates an exporter for org/bucket. timeout bounds each HTTP request.
func NewInfluxExporter(url, token, org, bucket string, timeout time.Duration, logger *zap.Logger) *InfluxExporter {
	opts := influxdb2.DefaultOptions()
	if secs := uint(timeout / time.Second); secs > 0 {
		opts.SetHTTPRequestTimeout(secs)
	}
	client := influxdb2.NewClientWithOptions(url, token, opts)
	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		bucket:   bucket,
		logger:   logger,
	}
}

// Points converts ds into InfluxDB points.
func Points(ds models.SensorDataset) ([]*write.Point, error) {
	points := make([]*write.Point, 0, len(ds.Results))
	for _, r := range ds.Results {
		ts, err := time.Parse(time.RFC3339, r.Date.UTC)
		if err != nil {
			return nil, fmt.Errorf("reading %s: parse utc timestamp %q: %w", r.Location, r.Date.UTC, err)
		}
		points = append(points, influxdb2.NewPoint(
			measurement,
			map[string]string{"location": r.Location, "parameter": r.Parameter},
			map[string]interface{}{
				"value":     r.Value,
				"latitude":  r.Coordinates.Latitude,
				"longitude": r.Coordinates.Longitude,
			},
			ts,
		))
	}
	return points, nil
}

// Export writes every reading of ds in a single blocking batch.
func (e *InfluxExporter) Export(ctx context.Context, ds models.SensorDataset) error {
	points, err := Points(ds)
	if err != nil {
		return fmt.Errorf("influx export: %w", err)
	}
	if len(points) == 0 {
		return nil
	}
	if err := e.writeAPI.WritePoint(ctx, points...); err != nil {
		observability.InfluxPointsTotal.WithLabelValues("error").Add(float64(len(points)))
		return fmt.Errorf("influx export: write to bucket %s: %w", e.bucket, err)
	}
	observability.InfluxPointsTotal.WithLabelValues("success").Add(float64(len(points)))
	e.logger.Info("readings exported to influxdb", zap.String("bucket", e.bucket), zap.Int("points", len(points)))
	return nil
}

// Close releases the underlying client.
func (e *InfluxExporter) Close() {
	e.client.Close()
}
