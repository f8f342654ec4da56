package models

import "time"

// Missing is the source convention for a value that was not recorded.
const Missing = -999.0

// Table is a parsed ';'-delimited text table.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of a column or -1.
func (t *Table) Index(column string) int {
	if t == nil {
		return -1
	}
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// ArchiveBundle holds the tables extracted from one zip archive.
type ArchiveBundle struct {
	URL              string
	Primary          *Table
	ElevationHistory []DeviceRecord
	DeviceHistory    []DeviceRecord
}

// Observation is one joined, canonicalised row of a station's series.
type Observation struct {
	Time            time.Time `json:"mess_datum"`
	UTC             int64     `json:"utc"`
	StationPressure float64   `json:"station_pressure"`
	// Pressure is the sea-level pressure reported by the source, where it has one.
	Pressure        *float64 `json:"pressure,omitempty"`
	Temperature     float64  `json:"temperature"`
	Humidity        float64  `json:"humidity"`
	Quality         *int     `json:"quality,omitempty"`
	DerivedPressure *float64 `json:"derived_pressure"`
}

// ObservationTable is the columnar form of a series.
type ObservationTable struct {
	Time            []time.Time `json:"mess_datum"`
	UTC             []int64     `json:"utc"`
	StationPressure []float64   `json:"station_pressure"`
	Temperature     []float64   `json:"temperature"`
	Humidity        []float64   `json:"humidity"`
	DerivedPressure []*float64  `json:"derived_pressure"`
}

// ResultBundle is the outcome of one lookup.
type ResultBundle struct {
	Station  StationRecord `json:"station"`
	Category Category      `json:"category"`
	Data     []Observation `json:"data"`
}

// Table returns the series in columnar form.
func (r *ResultBundle) Table() ObservationTable {
	t := ObservationTable{
		Time:            make([]time.Time, len(r.Data)),
		UTC:             make([]int64, len(r.Data)),
		StationPressure: make([]float64, len(r.Data)),
		Temperature:     make([]float64, len(r.Data)),
		Humidity:        make([]float64, len(r.Data)),
		DerivedPressure: make([]*float64, len(r.Data)),
	}
	for i, o := range r.Data {
		t.Time[i] = o.Time
		t.UTC[i] = o.UTC
		t.StationPressure[i] = o.StationPressure
		t.Temperature[i] = o.Temperature
		t.Humidity[i] = o.Humidity
		t.DerivedPressure[i] = o.DerivedPressure
	}
	return t
}

// StationList is the located set of stations for a date.
type StationList struct {
	Category Category        `json:"category"`
	Stations []StationRecord `json:"stations"`
}
