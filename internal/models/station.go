package models

import (
	"encoding/json"
	"time"
)

// Category is the data vintage an archive belongs to.
type Category string

const (
	CategoryHistorical Category = "historical"
	CategoryRecent     Category = "recent"
	CategoryNow        Category = "now"
)

// Kind names one archive family a station needs for a query.
type Kind string

const (
	KindPressure    Kind = "pressure"
	KindTemperature Kind = "temperature"
	KindMetadata    Kind = "metadata"
)

// DateLayout is the 8-digit day format used across catalog files.
const DateLayout = "20060102"

// Validity is a day-granular interval. A record is active for t iff
// From <= t < Until + 1 day.
type Validity struct {
	From  time.Time `json:"-"`
	Until time.Time `json:"-"`
}

func (v Validity) Contains(t time.Time) bool {
	return !t.Before(v.From) && t.Before(v.End())
}

// End is the exclusive upper bound of the interval.
func (v Validity) End() time.Time {
	return v.Until.AddDate(0, 0, 1)
}

// StationRecord is one row of a station description file, optionally
// enriched with resolved archive URLs and distance.
type StationRecord struct {
	ID        string          `json:"station_id"`
	Validity  Validity        `json:"-"`
	Elevation float64         `json:"elevation"`
	Latitude  float64         `json:"lat"`
	Longitude float64         `json:"lon"`
	Name      string          `json:"station_name"`
	State     string          `json:"state"`
	Files     map[Kind]string `json:"files,omitempty"`
	Distance  *int64          `json:"distance,omitempty"`
	Device    *DeviceRecord   `json:"device,omitempty"`
}

// WithFiles returns a copy carrying the given archive URLs.
func (s StationRecord) WithFiles(files map[Kind]string) StationRecord {
	out := s
	out.Files = make(map[Kind]string, len(files))
	for k, v := range files {
		out.Files[k] = v
	}
	return out
}

// WithDistance returns a copy carrying a distance in meters.
func (s StationRecord) WithDistance(meters int64) StationRecord {
	out := s
	out.Distance = &meters
	return out
}

// WithDevice merges the active device or elevation record into a copy of the
// station: position, elevation and validity come from the device.
func (s StationRecord) WithDevice(d DeviceRecord) StationRecord {
	out := s
	out.Elevation = d.Elevation
	out.Latitude = d.Latitude
	out.Longitude = d.Longitude
	out.Validity = d.Validity
	if d.StationName != "" {
		out.Name = d.StationName
	}
	dev := d
	out.Device = &dev
	return out
}

// FileEntry is one archive anchor found in a directory listing.
type FileEntry struct {
	StationID string `json:"station_id"`
	Name      string `json:"file_name"`
	URL       string `json:"url"`
	// Range is set for historical archives that embed their coverage in the name.
	Range *Validity `json:"range,omitempty"`
}

// Covers reports whether the entry may hold data for t.
func (f FileEntry) Covers(t time.Time) bool {
	if f.Range == nil {
		return true
	}
	return f.Range.Contains(t)
}

// Catalog is the per-query view of a snapshot: the eligible stations of one category.
type Catalog struct {
	Period   string          `json:"period"`
	Category Category        `json:"category"`
	Updated  time.Time       `json:"updated"`
	Stations []StationRecord `json:"stations"`
}

// DeviceRecord is a row of the device or elevation history of a station.
type DeviceRecord struct {
	StationID   string   `json:"station_id"`
	StationName string   `json:"station_name,omitempty"`
	DeviceName  string   `json:"device_name,omitempty"`
	Validity    Validity `json:"-"`
	Elevation   float64  `json:"elevation"`
	Latitude    float64  `json:"lat"`
	Longitude   float64  `json:"lon"`
}

type validityJSON struct {
	From  string `json:"from"`
	Until string `json:"until"`
}

func (v Validity) toJSON() validityJSON {
	return validityJSON{From: v.From.Format(DateLayout), Until: v.Until.Format(DateLayout)}
}

func (j validityJSON) toValidity() (Validity, error) {
	var v Validity
	var err error
	if j.From != "" {
		if v.From, err = time.Parse(DateLayout, j.From); err != nil {
			return v, err
		}
	}
	if j.Until != "" {
		if v.Until, err = time.Parse(DateLayout, j.Until); err != nil {
			return v, err
		}
	}
	return v, nil
}

// MarshalJSON renders the validity as 8-digit from/until strings alongside the other fields.
func (s StationRecord) MarshalJSON() ([]byte, error) {
	type alias StationRecord
	return json.Marshal(struct {
		alias
		validityJSON
	}{alias(s), s.Validity.toJSON()})
}

func (s *StationRecord) UnmarshalJSON(data []byte) error {
	type alias StationRecord
	aux := struct {
		*alias
		validityJSON
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := aux.validityJSON.toValidity()
	if err != nil {
		return err
	}
	s.Validity = v
	return nil
}

func (d DeviceRecord) MarshalJSON() ([]byte, error) {
	type alias DeviceRecord
	return json.Marshal(struct {
		alias
		validityJSON
	}{alias(d), d.Validity.toJSON()})
}

func (d *DeviceRecord) UnmarshalJSON(data []byte) error {
	type alias DeviceRecord
	aux := struct {
		*alias
		validityJSON
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v, err := aux.validityJSON.toValidity()
	if err != nil {
		return err
	}
	d.Validity = v
	return nil
}

func (v Validity) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSON())
}

func (v *Validity) UnmarshalJSON(data []byte) error {
	var j validityJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	parsed, err := j.toValidity()
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
