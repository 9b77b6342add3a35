package render

import (
	"fmt"
	"html/template"
	"io"

	"gonum.org/v1/gonum/stat"

	"github.com/kjstillabower/airquality-mockdata/internal/artifact"
	"github.com/kjstillabower/airquality-mockdata/internal/models"
	"github.com/kjstillabower/airquality-mockdata/internal/sensor"
)

// MapOptions controls the HTML map. Zero CenterLat/CenterLon centre the map on the
// mean reading coordinate.
type MapOptions struct {
	Title     string
	Caption   string
	CenterLat float64
	CenterLon float64
	Zoom      int
	Radius    int
}

// DefaultMapOptions match the Delhi PM2.5 dataset.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Title:     "PM2.5 readings",
		Caption:   "PM2.5 (µg/m³)",
		CenterLat: 28.6,
		CenterLon: 77.2,
		Zoom:      11,
		Radius:    6,
	}
}

type mapMarker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Color string  `json:"color"`
	Popup string  `json:"popup"`
}

type mapData struct {
	Title     string
	Caption   string
	CenterLat float64
	CenterLon float64
	Zoom      int
	Radius    int
	Markers   []mapMarker
	Stops     []string
	Min       string
	Max       string
}

// SensorMap writes a standalone Leaflet page with one circle marker per reading,
// coloured on a green-yellow-red scale between the dataset minimum and maximum.
func SensorMap(w io.Writer, ds models.SensorDataset, opts MapOptions) error {
	values := sensor.Values(ds)
	scale, err := NewColorScale(values)
	if err != nil {
		return fmt.Errorf("sensor map: %w", err)
	}

	data := mapData{
		Title:     opts.Title,
		Caption:   opts.Caption,
		CenterLat: opts.CenterLat,
		CenterLon: opts.CenterLon,
		Zoom:      opts.Zoom,
		Radius:    opts.Radius,
		Markers:   make([]mapMarker, 0, len(ds.Results)),
		Stops:     DefaultStops,
		Min:       fmt.Sprintf("%.1f", scale.Min()),
		Max:       fmt.Sprintf("%.1f", scale.Max()),
	}
	if data.CenterLat == 0 && data.CenterLon == 0 {
		lats := make([]float64, len(ds.Results))
		lons := make([]float64, len(ds.Results))
		for i, r := range ds.Results {
			lats[i], lons[i] = r.Coordinates.Latitude, r.Coordinates.Longitude
		}
		data.CenterLat, data.CenterLon = stat.Mean(lats, nil), stat.Mean(lons, nil)
	}
	for _, r := range ds.Results {
		data.Markers = append(data.Markers, mapMarker{
			Lat:   r.Coordinates.Latitude,
			Lon:   r.Coordinates.Longitude,
			Color: scale.Hex(r.Value),
			Popup: fmt.Sprintf("%s<br>%s<br>PM2.5: %.1f µg/m³", template.HTMLEscapeString(r.Location), r.Date.Local, r.Value),
		})
	}

	if err := mapTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("sensor map: %w", err)
	}
	return nil
}

// SensorMapFile writes SensorMap output to path.
func SensorMapFile(path string, ds models.SensorDataset, opts MapOptions) (int64, error) {
	return artifact.WriteFile(path, func(w io.Writer) error { return SensorMap(w, ds, opts) })
}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>
html, body, #map { height: 100%; margin: 0; }
.legend { background: #fff; padding: 6px 8px; font: 12px sans-serif; border-radius: 4px; }
.legend .bar { width: 200px; height: 10px; background: linear-gradient(to right{{range .Stops}}, {{.}}{{end}}); }
.legend .ticks { display: flex; justify-content: space-between; }
</style>
</head>
<body>
<div id="map"></div>
<script>
var map = L.map("map").setView([{{.CenterLat}}, {{.CenterLon}}], {{.Zoom}});
L.tileLayer("https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png", {
  maxZoom: 18,
  attribution: "&copy; OpenStreetMap contributors"
}).addTo(map);
var markers = {{.Markers}};
markers.forEach(function (m) {
  L.circleMarker([m.lat, m.lon], {
    radius: {{.Radius}},
    color: m.color,
    fill: true,
    fillColor: m.color,
    fillOpacity: 0.8
  }).bindPopup(m.popup).addTo(map);
});
var legend = L.control({position: "topright"});
legend.onAdd = function () {
  var div = L.DomUtil.create("div", "legend");
  div.innerHTML = {{.Caption}} + '<div class="bar"></div><div class="ticks"><span>' + {{.Min}} + '</span><span>' + {{.Max}} + '</span></div>';
  return div;
};
legend.addTo(map);
</script>
</body>
</html>
`))
