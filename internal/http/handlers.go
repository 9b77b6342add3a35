// Package http serves a read-only preview of the generated artifacts.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/cache"
	"github.com/kjstillabower/airquality-mockdata/internal/config"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/observability"
	"github.com/kjstillabower/airquality-mockdata/internal/render"
	"github.com/kjstillabower/airquality-mockdata/internal/satellite"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
	"github.com/kjstillabower/airquality-mockdata/internal/traffic"
	"github.com/kjstillabower/airquality-mockdata/internal/validation"
)

const stationNameMinLength = 1

// trafficRetention bounds how far back the outcome tracker keeps requests.
const trafficRetention = 5 * time.Minute

// HealthConfig holds the thresholds /health evaluates over the recent API traffic.
// A zero percentage disables that check.
type HealthConfig struct {
	Window            time.Duration
	OverloadDenialPct int
	DegradedErrorPct  int
}

// Handler serves artifacts straight from disk, so regenerated files show up without a restart.
type Handler struct {
	paths             config.Paths
	artifacts         map[string]string
	logger            *zap.Logger
	locationMaxLength int
	startTime         time.Time

	cache    cache.Cache
	cacheTTL time.Duration
	traffic  *traffic.Tracker
	loads    singleflight.Group
	health   HealthConfig
	// CachePing, when set, is reported as the "cache" health check. Used with memcached.
	CachePing func() error

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a Handler for the artifacts under paths. Artifacts are addressed by file name.
func NewHandler(paths config.Paths, logger *zap.Logger, locationMaxLength int) *Handler {
	artifacts := make(map[string]string, 5)
	for _, p := range []string{paths.GroundData, paths.SatelliteData, paths.SatellitePlot, paths.SensorMap, paths.TimeSeries} {
		if p != "" {
			artifacts[filepath.Base(p)] = p
		}
	}
	return &Handler{
		paths:             paths,
		artifacts:         artifacts,
		logger:            logger,
		locationMaxLength: locationMaxLength,
		startTime:         time.Now(),
		traffic:           traffic.NewTracker(trafficRetention),
		health:            HealthConfig{Window: time.Minute},
	}
}

// SetCache enables response caching for /api/readings and /api/grid. A nil cache disables it.
func (h *Handler) SetCache(c cache.Cache, ttl time.Duration) {
	h.cache = c
	h.cacheTTL = ttl
}

// SetHealth sets the /health traffic thresholds. The outcome tracker keeps at least
// hc.Window of history; a non-positive window keeps the 1m default.
func (h *Handler) SetHealth(hc HealthConfig) {
	if hc.Window <= 0 {
		hc.Window = time.Minute
	}
	h.traffic.Retain(hc.Window)
	h.health = hc
}

// SetShuttingDown flips /health to 503 shutting-down while the server drains.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// RouterConfig holds the middleware settings for NewRouter.
type RouterConfig struct {
	RequestTimeout time.Duration
	Limiter        *rate.Limiter
}

// NewRouter wires the preview routes. /health and /metrics bypass rate limiting and timeouts.
func NewRouter(h *Handler, rc RouterConfig) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(h.logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	limited := router.NewRoute().Subrouter()
	limited.Use(TrafficMiddleware(h.traffic))
	limited.Use(RateLimitMiddleware(rc.Limiter))
	limited.Use(TimeoutMiddleware(rc.RequestTimeout))
	limited.HandleFunc("/artifacts/{name}", h.GetArtifact).Methods(http.MethodGet)
	limited.HandleFunc("/api/readings", h.GetReadings).Methods(http.MethodGet)
	limited.HandleFunc("/api/grid", h.GetGrid).Methods(http.MethodGet)
	return router
}

// GetHealth handles GET /health. Missing data artifacts report degraded.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.artifacts))
	for name, path := range h.artifacts {
		if _, err := os.Stat(path); err != nil {
			checks[name] = "missing"
		} else {
			checks[name] = "present"
		}
	}

	if h.CachePing != nil {
		if h.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	status, statusCode, reason := h.computeHealthStatus(checks)
	snap := h.traffic.Snapshot(h.health.Window)

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status),
			zap.String("reason", reason))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	writeJSON(w, statusCode, map[string]interface{}{
		"status":  status,
		"service": "airquality-preview",
		"version": "dev",
		"checks":  checks,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
		"traffic": map[string]int{
			"requests": snap.Requests(),
			"errors":   snap.Errors,
			"denied":   snap.Denials,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus returns status, HTTP code and reason in priority order:
// shutting-down > data missing (degraded) > overloaded > error rate (degraded) > healthy.
func (h *Handler) computeHealthStatus(checks map[string]string) (string, int, string) {
	if h.shuttingDown.Load() {
		return "shutting-down", http.StatusServiceUnavailable, "signal"
	}
	if checks[filepath.Base(h.paths.GroundData)] != "present" || checks[filepath.Base(h.paths.SatelliteData)] != "present" {
		return "degraded", http.StatusServiceUnavailable, "data_missing"
	}
	snap := h.traffic.Snapshot(h.health.Window)
	if h.health.OverloadDenialPct > 0 && snap.Denials > 0 && snap.DenialPct() >= float64(h.health.OverloadDenialPct) {
		return "overloaded", http.StatusServiceUnavailable, "rate_limit_denials"
	}
	if h.health.DegradedErrorPct > 0 && snap.Errors > 0 && snap.ErrorPct() >= float64(h.health.DegradedErrorPct) {
		return "degraded", http.StatusServiceUnavailable, "error_rate_breach"
	}
	return "healthy", http.StatusOK, ""
}

// GetArtifact handles GET /artifacts/{name}. Only configured artifact names are served.
func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, ok := h.artifacts[name]
	if !ok {
		writeError(w, r, http.StatusNotFound, "ARTIFACT_NOT_FOUND", "unknown artifact "+name)
		return
	}
	f, err := artifact.Open(path)
	if err != nil {
		h.writeAPIError(w, r, h.loadError(r, err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		h.writeAPIError(w, r, h.loadError(r, err))
		return
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type readingsResponse struct {
	Meta     models.DatasetMeta     `json:"meta"`
	Location string                 `json:"location,omitempty"`
	Count    int                    `json:"count"`
	Results  []models.SensorReading `json:"results"`
}

// GetReadings handles GET /api/readings with an optional ?location= station filter.
func (h *Handler) GetReadings(w http.ResponseWriter, r *http.Request) {
	var location string
	if r.URL.Query().Has("location") {
		loc, err := validation.ValidateStationName(r.URL.Query().Get("location"), stationNameMinLength, h.locationMaxLength)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
			return
		}
		location = loc
		observability.RecordPreviewQuery(location)
	}

	h.serveCached(w, r, h.paths.GroundData, "readings:"+location, func() (interface{}, *apiError) {
		ds, err := sensor.ReadDataset(h.paths.GroundData)
		if err != nil {
			return nil, h.loadError(r, err)
		}
		results := ds.Results
		if location != "" {
			results = sensor.ByLocation(ds, location)
			if len(results) == 0 {
				return nil, &apiError{http.StatusNotFound, "LOCATION_NOT_FOUND", "no readings for station " + location}
			}
		}
		if results == nil {
			results = []models.SensorReading{}
		}
		return readingsResponse{
			Meta:     ds.Meta,
			Location: location,
			Count:    len(results),
			Results:  results,
		}, nil
	})
}

type gridBounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

type gridResponse struct {
	Height    int              `json:"height"`
	Width     int              `json:"width"`
	CRS       string           `json:"crs"`
	Transform models.Transform `json:"transform"`
	Bounds    gridBounds       `json:"bounds"`
	Stats     *render.Stats    `json:"stats,omitempty"`
}

// GetGrid handles GET /api/grid: shape, georeference and value statistics of the raster.
func (h *Handler) GetGrid(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, h.paths.SatelliteData, "grid", func() (interface{}, *apiError) {
		raster, err := satellite.ReadRaster(h.paths.SatelliteData)
		if err != nil {
			return nil, h.loadError(r, err)
		}
		b := raster.Transform.Bounds(raster.Grid.Height, raster.Grid.Width)
		resp := gridResponse{
			Height:    raster.Grid.Height,
			Width:     raster.Grid.Width,
			CRS:       raster.CRS,
			Transform: raster.Transform,
			Bounds:    gridBounds{West: b.Min.X, South: b.Min.Y, East: b.Max.X, North: b.Max.Y},
		}
		if stats, err := render.Summarize(raster.Grid.Values); err == nil {
			resp.Stats = &stats
		}
		return resp, nil
	})
}

type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.code + ": " + e.message }

// serveCached answers from the cache when the artifact at path is unchanged since the body
// was stored. Otherwise build runs once per key for all concurrent callers and its successful
// result is cached. Cache failures only log; the response is then built from disk.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, path, key string, build func() (interface{}, *apiError)) {
	version, err := artifactVersion(path)
	if err != nil {
		h.writeAPIError(w, r, h.loadError(r, err))
		return
	}
	key = key + "@" + version

	if h.cache != nil {
		body, ok, err := h.cache.Get(r.Context(), key)
		switch {
		case err != nil:
			observability.PreviewCacheTotal.WithLabelValues("error").Inc()
			requestLogger(r, h.logger).Warn("cache get failed", zap.Error(err))
		case ok:
			observability.PreviewCacheTotal.WithLabelValues("hit").Inc()
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		default:
			observability.PreviewCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	body, err, shared := h.loads.Do(key, func() (interface{}, error) {
		v, apiErr := build()
		if apiErr != nil {
			return nil, apiErr
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(v); err != nil {
			return nil, h.loadError(r, err)
		}
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), key, buf.Bytes(), h.cacheTTL); err != nil {
				requestLogger(r, h.logger).Warn("cache set failed", zap.Error(err))
			}
		}
		return buf.Bytes(), nil
	})
	if shared {
		observability.PreviewCacheTotal.WithLabelValues("coalesced").Inc()
	}
	if err == nil && r.Context().Err() != nil {
		err = h.loadError(r, r.Context().Err())
	}
	if err != nil {
		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			apiErr = h.loadError(r, err)
		}
		h.writeAPIError(w, r, apiErr)
		return
	}

	if h.cache != nil {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.([]byte))
}

// artifactVersion identifies the on-disk revision of path by modification time and size.
func artifactVersion(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", artifact.ErrInputMissing, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// loadError maps artifact load failures to API errors.
func (h *Handler) loadError(r *http.Request, err error) *apiError {
	switch {
	case errors.Is(err, artifact.ErrInputMissing):
		return &apiError{http.StatusNotFound, "ARTIFACT_NOT_FOUND", "artifact has not been generated yet"}
	case errors.Is(err, context.DeadlineExceeded):
		return &apiError{http.StatusGatewayTimeout, "TIMEOUT", "request timed out"}
	case errors.Is(err, context.Canceled):
		return &apiError{http.StatusServiceUnavailable, "CANCELLED", "request cancelled"}
	default:
		requestLogger(r, h.logger).Error("artifact load failed", zap.Error(err))
		return &apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "artifact could not be read"}
	}
}

func (h *Handler) writeAPIError(w http.ResponseWriter, r *http.Request, e *apiError) {
	writeError(w, r, e.status, e.code, e.message)
}

// ArtifactNames lists the servable artifact names in sorted order.
func (h *Handler) ArtifactNames() []string {
	names := make([]string, 0, len(h.artifacts))
	for name := range h.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
