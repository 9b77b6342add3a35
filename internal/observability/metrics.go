package observability

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
)

var (
	registry *prometheus.Registry

	// Readings synthesized per station. Watch for: a station missing from a run.
	ReadingsGeneratedTotal *prometheus.CounterVec

	// Readings that hit the clamp band. Watch for: a large share means the value range is misconfigured.
	ReadingsClampedTotal prometheus.Counter

	// Grid cells synthesized.
	GridCellsGeneratedTotal prometheus.Counter

	// Artifact writes by artifact and status. Watch for: error status (missing output directory).
	ArtifactWritesTotal *prometheus.CounterVec

	// Size of the last write per artifact.
	ArtifactBytes *prometheus.GaugeVec

	// Points exported to InfluxDB by status.
	InfluxPointsTotal *prometheus.CounterVec

	// Preview HTTP request rate.
	HTTPRequestsTotal *prometheus.CounterVec

	// Preview HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent preview requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Preview queries by station (allow-list; others go to "other").
	PreviewQueriesByLocationTotal *prometheus.CounterVec

	// Rate limit denials on the preview API.
	RateLimitDeniedTotal prometheus.Counter

	// Preview response cache lookups by result (hit, miss, error).
	PreviewCacheTotal *prometheus.CounterVec

	// Cache circuit breaker transitions. Watch for: repeated closed->open (memcached flapping).
	CacheBreakerTransitionsTotal *prometheus.CounterVec

	// trackedLocations is built from the station list; used to bound label cardinality.
	trackedLocationsMu sync.RWMutex
	trackedLocations   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	ReadingsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readingsGeneratedTotal",
			Help: "Total number of synthetic sensor readings generated",
		},
		[]string{"location"},
	)
	ReadingsClampedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "readingsClampedTotal",
			Help: "Total number of synthetic readings that landed on a clamp bound",
		},
	)
	GridCellsGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridCellsGeneratedTotal",
			Help: "Total number of concentration grid cells generated",
		},
	)
	ArtifactWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifactWritesTotal",
			Help: "Total number of artifact writes",
		},
		[]string{"artifact", "status"},
	)
	ArtifactBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artifactBytes",
			Help: "Size in bytes of the most recent write of each artifact",
		},
		[]string{"artifact"},
	)
	InfluxPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "influxPointsTotal",
			Help: "Total number of points exported to InfluxDB",
		},
		[]string{"status"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	PreviewQueriesByLocationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "previewQueriesByLocationTotal",
			Help: "Preview reading queries by station (allow-list; others use location=other)",
		},
		[]string{"location"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	PreviewCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "previewCacheTotal",
			Help: "Preview response cache lookups by result",
		},
		[]string{"result"},
	)
	CacheBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheBreakerTransitionsTotal",
			Help: "Preview cache circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	registry.MustRegister(
		ReadingsGeneratedTotal, ReadingsClampedTotal, GridCellsGeneratedTotal,
		ArtifactWritesTotal, ArtifactBytes, InfluxPointsTotal,
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PreviewQueriesByLocationTotal, RateLimitDeniedTotal, PreviewCacheTotal,
		CacheBreakerTransitionsTotal,
	)
}

// RecordDataset counts the readings of ds per station and the clamped ones.
func RecordDataset(ds models.SensorDataset, clampMin, clampMax float64) {
	for _, r := range ds.Results {
		ReadingsGeneratedTotal.WithLabelValues(r.Location).Inc()
		if r.Value <= clampMin || r.Value >= clampMax {
			ReadingsClampedTotal.Inc()
		}
	}
}

// RecordGrid counts the cells of a generated grid.
func RecordGrid(g models.Grid) {
	GridCellsGeneratedTotal.Add(float64(len(g.Values)))
}

// RecordArtifact records the outcome of writing an artifact.
func RecordArtifact(artifact string, bytes int64, err error) {
	if err != nil {
		ArtifactWritesTotal.WithLabelValues(artifact, "error").Inc()
		return
	}
	ArtifactWritesTotal.WithLabelValues(artifact, "success").Inc()
	ArtifactBytes.WithLabelValues(artifact).Set(float64(bytes))
}

// RecordCacheBreakerTransition counts a cache circuit breaker state change.
func RecordCacheBreakerTransition(from, to string) {
	CacheBreakerTransitionsTotal.WithLabelValues(from, to).Inc()
}

// SetTrackedLocations sets the allow-list for location metrics. Non-tracked locations increment "other".
func SetTrackedLocations(locations []string) {
	trackedLocationsMu.Lock()
	defer trackedLocationsMu.Unlock()
	trackedLocations = make(map[string]struct{}, len(locations))
	for _, loc := range locations {
		trackedLocations[normalizeLocationForMetrics(loc)] = struct{}{}
	}
}

// RecordPreviewQuery records a preview reading query for the given station.
func RecordPreviewQuery(location string) {
	loc := normalizeLocationForMetrics(location)
	trackedLocationsMu.RLock()
	_, ok := trackedLocations[loc] // nil map read is safe in Go
	trackedLocationsMu.RUnlock()
	if ok {
		PreviewQueriesByLocationTotal.WithLabelValues(loc).Inc()
	} else {
		PreviewQueriesByLocationTotal.WithLabelValues("other").Inc()
	}
}

func normalizeLocationForMetrics(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry in text exposition format for the node-exporter
// textfile collector. The file is written atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
