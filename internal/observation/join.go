package observation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// canonicalTable is a primary table addressed by canonical column names.
type canonicalTable struct {
	table   *models.Table
	columns map[string]int
	key     int
}

func canonicalize(period catalog.Period, table *models.Table) (canonicalTable, error) {
	if table == nil {
		return canonicalTable{}, fmt.Errorf("archive has no data table")
	}

	key := table.Index(catalog.ColumnTimestamp)
	if key < 0 {
		return canonicalTable{}, fmt.Errorf("data table has no %s column", catalog.ColumnTimestamp)
	}

	dropped := make(map[string]bool, len(period.Drop))
	for _, c := range period.Drop {
		dropped[c] = true
	}

	columns := make(map[string]int)
	for i, c := range table.Columns {
		if i == key || dropped[c] {
			continue
		}
		if name, ok := period.Columns[c]; ok {
			columns[name] = i
		}
	}

	return canonicalTable{table: table, columns: columns, key: key}, nil
}

// Join inner-joins the primary tables on the raw timestamp, keeping the order
// of the first table. Rows with a missing station pressure are dropped.
func Join(period catalog.Period, tables []*models.Table) ([]models.Observation, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no data tables to join")
	}

	canonical := make([]canonicalTable, len(tables))
	for i, t := range tables {
		ct, err := canonicalize(period, t)
		if err != nil {
			return nil, err
		}
		canonical[i] = ct
	}

	for _, required := range []string{catalog.ColumnStationPressure, catalog.ColumnTemperature, catalog.ColumnHumidity} {
		if _, ok := find(canonical, required); !ok {
			return nil, fmt.Errorf("data tables have no %s column", required)
		}
	}

	// index every table but the first by timestamp; the first occurrence wins
	indexes := make([]map[string][]string, len(canonical))
	for i := 1; i < len(canonical); i++ {
		idx := make(map[string][]string, len(canonical[i].table.Rows))
		for _, row := range canonical[i].table.Rows {
			k := row[canonical[i].key]
			if _, ok := idx[k]; !ok {
				idx[k] = row
			}
		}
		indexes[i] = idx
	}

	var out []models.Observation
	for _, row := range canonical[0].table.Rows {
		raw := row[canonical[0].key]
		rows := make([][]string, len(canonical))
		rows[0] = row

		matched := true
		for i := 1; i < len(canonical); i++ {
			other, ok := indexes[i][raw]
			if !ok {
				matched = false
				break
			}
			rows[i] = other
		}
		if !matched {
			continue
		}

		obs, ok := parseRow(period, canonical, rows, raw)
		if !ok || obs.StationPressure == models.Missing {
			continue
		}
		out = append(out, obs)
	}

	return out, nil
}

type columnRef struct {
	table, index int
}

// find locates the first table carrying a canonical column.
func find(tables []canonicalTable, name string) (columnRef, bool) {
	for i, t := range tables {
		if col, found := t.columns[name]; found {
			return columnRef{table: i, index: col}, true
		}
	}
	return columnRef{}, false
}

func parseRow(period catalog.Period, tables []canonicalTable, rows [][]string, raw string) (models.Observation, bool) {
	ts, err := time.ParseInLocation(period.TimestampLayout, raw, time.UTC)
	if err != nil {
		return models.Observation{}, false
	}
	ts = ts.Add(-period.BackShift)

	value := func(name string) (float64, bool, bool) {
		ref, ok := find(tables, name)
		if !ok {
			return 0, false, true
		}
		row := rows[ref.table]
		if ref.index >= len(row) {
			return 0, true, false
		}
		f, err := strconv.ParseFloat(row[ref.index], 64)
		return f, true, err == nil
	}

	obs := models.Observation{Time: ts, UTC: ts.Unix()}

	var present, valid bool
	if obs.StationPressure, _, valid = value(catalog.ColumnStationPressure); !valid {
		return obs, false
	}
	if obs.Temperature, _, valid = value(catalog.ColumnTemperature); !valid {
		return obs, false
	}
	if obs.Humidity, _, valid = value(catalog.ColumnHumidity); !valid {
		return obs, false
	}

	var p float64
	if p, present, valid = value(catalog.ColumnPressure); present {
		if !valid {
			return obs, false
		}
		obs.Pressure = &p
	}

	var q float64
	if q, present, valid = value(catalog.ColumnQuality); present {
		if !valid {
			return obs, false
		}
		quality := int(q)
		obs.Quality = &quality
	}

	return obs, true
}
