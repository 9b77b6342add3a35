package models

// Station is a fixed monitoring location that synthetic ground readings are generated for.
type Station struct {
	Name      string  `json:"name" yaml:"name"`
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReadingDate pairs the UTC timestamp with the station-local one. Both are ISO-8601 strings
// ("2023-10-01T00:00:00Z" and "2023-10-01T05:30:00+05:30").
type ReadingDate struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

type SensorReading struct {
	Location    string      `json:"location"`
	Parameter   string      `json:"parameter"`
	Value       float64     `json:"value"`
	Date        ReadingDate `json:"date"`
	Coordinates Coordinates `json:"coordinates"`
}

type DatasetMeta struct {
	Name          string `json:"name"`
	DateGenerated string `json:"date_generated"`
	NumSensors    int    `json:"num_sensors"`
	Days          int    `json:"days"`
}

// SensorDataset is the document written to the ground-data file.
// Results are ordered by station, then day, then hour.
type SensorDataset struct {
	Meta    DatasetMeta     `json:"meta"`
	Results []SensorReading `json:"results"`
}
