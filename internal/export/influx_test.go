package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
)

type captureServer struct {
	mu     sync.Mutex
	bodies []string
	query  string
	status int
}

func (c *captureServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	c.bodies = append(c.bodies, string(body))
	c.query = r.URL.RawQuery
	c.mu.Unlock()
	if c.status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(c.status)
		_, _ = w.Write([]byte(`{"code":"invalid","message":"bad request"}`))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func testDataset() models.SensorDataset {
	cfg := sensor.DefaultConfig()
	cfg.Stations = cfg.Stations[:2]
	return sensor.Generate(cfg, sensor.NewSource(1), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPoints(t *testing.T) {
	ds := testDataset()
	points, err := Points(ds)
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	if len(points) != 48 {
		t.Fatalf("len(points) = %d, want 48", len(points))
	}
	p := points[0]
	if p.Name() != "air_quality" {
		t.Errorf("measurement = %q", p.Name())
	}
	if !p.Time().Equal(time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("time = %v", p.Time())
	}
	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["location"] != "US Embassy" || tags["parameter"] != "pm25" {
		t.Errorf("tags = %v", tags)
	}
}

func TestPoints_BadTimestamp(t *testing.T) {
	ds := models.SensorDataset{Results: []models.SensorReading{{Location: "x", Date: models.ReadingDate{UTC: "yesterday"}}}}
	if _, err := Points(ds); err == nil {
		t.Error("Points() with malformed timestamp returned nil error")
	}
}

// TestInfluxExporter_Export verifies the line protocol batch reaches the write endpoint.
func TestInfluxExporter_Export(t *testing.T) {
	capture := &captureServer{}
	srv := httptest.NewServer(capture)
	defer srv.Close()

	e := NewInfluxExporter(srv.URL, "token", "airquality", "mockdata", 5*time.Second, zap.NewNop())
	defer e.Close()

	if err := e.Export(context.Background(), testDataset()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if len(capture.bodies) != 1 {
		t.Fatalf("requests = %d, want 1", len(capture.bodies))
	}
	lines := strings.Split(strings.TrimSpace(capture.bodies[0]), "\n")
	if len(lines) != 48 {
		t.Errorf("lines = %d, want 48", len(lines))
	}
	if !strings.HasPrefix(lines[0], `air_quality,location=US\ Embassy,parameter=pm25 `) {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(capture.query, "bucket=mockdata") || !strings.Contains(capture.query, "org=airquality") {
		t.Errorf("query = %q", capture.query)
	}
}

func TestInfluxExporter_ExportError(t *testing.T) {
	capture := &captureServer{status: http.StatusBadRequest}
	srv := httptest.NewServer(capture)
	defer srv.Close()

	e := NewInfluxExporter(srv.URL, "token", "airquality", "mockdata", time.Second, zap.NewNop())
	defer e.Close()

	err := e.Export(context.Background(), testDataset())
	if err == nil {
		t.Fatal("Export() expected error on 400, got nil")
	}
	if !strings.Contains(err.Error(), "mockdata") {
		t.Errorf("error = %v, want bucket name in message", err)
	}
}

func TestInfluxExporter_EmptyDataset(t *testing.T) {
	e := NewInfluxExporter("http://127.0.0.1:1", "token", "o", "b", time.Second, zap.NewNop())
	defer e.Close()
	if err := e.Export(context.Background(), models.SensorDataset{}); err != nil {
		t.Errorf("Export(empty) error = %v, want nil", err)
	}
}
