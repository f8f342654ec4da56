package archive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/encoding/latin1"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// Columns dropped from every primary table.
var droppedColumns = map[string]bool{
	"STATIONS_ID": true,
	"eor":         true,
}

// readTable parses a ';'-delimited table with a header row. Fields are trimmed;
// blank lines and ragged footer lines are kept as short rows for callers to skip.
func readTable(data []byte) (*models.Table, error) {
	r := csv.NewReader(bytes.NewReader(latin1.Decode(data)))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &models.Table{}, nil
		}
		return nil, err
	}

	table := &models.Table{Columns: trimAll(header)}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, trimAll(record))
	}
	return table, nil
}

func trimAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.TrimSpace(f)
	}
	return out
}

// ParsePrimary parses a data table and removes the station id and end-of-record columns.
func ParsePrimary(data []byte) (*models.Table, error) {
	raw, err := readTable(data)
	if err != nil {
		return nil, err
	}

	var keep []int
	table := &models.Table{}
	for i, c := range raw.Columns {
		if droppedColumns[c] {
			continue
		}
		keep = append(keep, i)
		table.Columns = append(table.Columns, c)
	}

	for _, row := range raw.Rows {
		if len(row) < len(raw.Columns) {
			continue
		}
		out := make([]string, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		table.Rows = append(table.Rows, out)
	}

	return table, nil
}

// columnSet resolves the positions of named columns in a table.
type columnSet map[string]int

func resolveColumns(t *models.Table, names ...string) (columnSet, bool) {
	set := make(columnSet, len(names))
	for _, n := range names {
		i := t.Index(n)
		if i < 0 {
			return nil, false
		}
		set[n] = i
	}
	return set, true
}

func (s columnSet) get(row []string, name string) string {
	i, ok := s[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseValidity reads two 8-digit dates; an empty until means valid through now.
func parseValidity(from, until string, now time.Time) (models.Validity, bool) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return models.Validity{}, false
	}
	if until == "" {
		return models.Validity{From: start, Until: now}, true
	}
	end, err := time.Parse(models.DateLayout, until)
	if err != nil {
		return models.Validity{}, false
	}
	return models.Validity{From: start, Until: end}, true
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

const (
	geoStationID = "Stations_id"
	geoElevation = "Stationshoehe"
	geoLatitude  = "Geogr.Breite"
	geoLongitude = "Geogr.Laenge"
	geoFrom      = "von_datum"
	geoUntil     = "bis_datum"
	geoName      = "Stationsname"
)

// ParseGeography parses the elevation history of a station. Rows that do not
// parse, such as the legend footer, are skipped.
func ParseGeography(data []byte, now time.Time) ([]models.DeviceRecord, error) {
	table, err := readTable(data)
	if err != nil {
		return nil, err
	}

	cols, ok := resolveColumns(table, geoStationID, geoElevation, geoLatitude, geoLongitude, geoFrom, geoUntil)
	if !ok {
		return nil, nil
	}

	var out []models.DeviceRecord
	for _, row := range table.Rows {
		validity, ok := parseValidity(cols.get(row, geoFrom), cols.get(row, geoUntil), now)
		if !ok {
			continue
		}
		elevation, ok := parseFloat(cols.get(row, geoElevation))
		if !ok {
			continue
		}
		lat, latOK := parseFloat(cols.get(row, geoLatitude))
		lon, lonOK := parseFloat(cols.get(row, geoLongitude))
		if !latOK || !lonOK {
			continue
		}

		out = append(out, models.DeviceRecord{
			StationID:   padStationID(cols.get(row, geoStationID)),
			StationName: nameAt(table, row, geoName),
			Validity:    validity,
			Elevation:   elevation,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	return out, nil
}

const (
	devStationID = "Stations_ID"
	devName      = "Stationsname"
	devLongitude = "Geo. Laenge [Grad]"
	devLatitude  = "Geo. Breite [Grad]"
	devElevation = "Stationshoehe [m]"
	devFrom      = "Von_Datum"
	devUntil     = "Bis_Datum"
	devType      = "Geraetetyp Name"
)

// ParseDevices parses the pressure sensor history of a station. Rows missing
// elevation or device type are dropped.
func ParseDevices(data []byte, now time.Time) ([]models.DeviceRecord, error) {
	table, err := readTable(data)
	if err != nil {
		return nil, err
	}

	cols, ok := resolveColumns(table, devStationID, devLongitude, devLatitude, devElevation, devFrom, devUntil, devType)
	if !ok {
		return nil, nil
	}

	var out []models.DeviceRecord
	for _, row := range table.Rows {
		device := cols.get(row, devType)
		if device == "" {
			continue
		}
		elevation, ok := parseFloat(cols.get(row, devElevation))
		if !ok {
			continue
		}
		validity, ok := parseValidity(cols.get(row, devFrom), cols.get(row, devUntil), now)
		if !ok {
			continue
		}
		lat, latOK := parseFloat(cols.get(row, devLatitude))
		lon, lonOK := parseFloat(cols.get(row, devLongitude))
		if !latOK || !lonOK {
			continue
		}

		out = append(out, models.DeviceRecord{
			StationID:   padStationID(cols.get(row, devStationID)),
			StationName: nameAt(table, row, devName),
			DeviceName:  device,
			Validity:    validity,
			Elevation:   elevation,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	return out, nil
}

func nameAt(t *models.Table, row []string, column string) string {
	i := t.Index(column)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// padStationID restores the 5-digit form metadata tables drop the zeros of.
func padStationID(id string) string {
	for len(id) > 0 && len(id) < 5 {
		id = "0" + id
	}
	return id
}
