package catalog

import (
	"regexp"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// DataKind describes one archive family of a period and how to find it.
type DataKind struct {
	Kind models.Kind
	// Listing returns the directory path of the archives for a category, relative to the period base.
	Listing func(category models.Category) string
	// Pattern matches an archive file name; it must capture station_id and may capture from/until.
	Pattern *regexp.Regexp
	// Shared listings are the same for every category.
	Shared bool
	// Series archives contribute a primary table to the join.
	Series bool
	// Metadata marks the archive whose device and elevation history is used.
	Metadata bool
}

// Derivation selects how the derived pressure is computed.
type Derivation int

const (
	// DeriveQFE computes station level pressure from the reported sea-level pressure.
	DeriveQFE Derivation = iota
	// DeriveQFF reduces the measured station pressure to sea level.
	DeriveQFF
)

// Period bundles everything that differs between the hourly and ten-minute feeds.
type Period struct {
	Name       string
	Path       string
	Categories []models.Category
	// StationFiles maps a category to its station description file.
	StationFiles map[models.Category]string
	Kinds        []DataKind
	// PrimaryPrefix is the name prefix of the data table inside each archive.
	PrimaryPrefix   string
	TimestampLayout string
	// BackShift converts the raw timestamp to the start of its interval.
	BackShift time.Duration
	// Columns renames source columns to canonical names.
	Columns map[string]string
	// Drop lists source columns not needed downstream.
	Drop       []string
	Derivation Derivation
}

const (
	PeriodHourly     = "hourly"
	PeriodTenMinutes = "ten_minutes"
)

// Canonical column names.
const (
	ColumnTimestamp       = "MESS_DATUM"
	ColumnPressure        = "pressure"
	ColumnStationPressure = "station_pressure"
	ColumnTemperature     = "temperature"
	ColumnHumidity        = "humidity"
	ColumnQuality         = "quality"
)

func categoryDir(dir string) func(models.Category) string {
	return func(c models.Category) string {
		return dir + string(c) + "/"
	}
}

// Hourly is the hourly pressure + air temperature feed.
var Hourly = Period{
	Name:       PeriodHourly,
	Path:       "hourly/",
	Categories: []models.Category{models.CategoryHistorical, models.CategoryRecent},
	StationFiles: map[models.Category]string{
		models.CategoryHistorical: "pressure/recent/P0_Stundenwerte_Beschreibung_Stationen.txt",
		models.CategoryRecent:     "pressure/recent/P0_Stundenwerte_Beschreibung_Stationen.txt",
	},
	Kinds: []DataKind{
		{
			Kind:     models.KindPressure,
			Listing:  categoryDir("pressure/"),
			Pattern:  regexp.MustCompile(`^stundenwerte_P0_(?P<station_id>[0-9]{5})_(?:akt|(?P<from>[0-9]{8})_(?P<until>[0-9]{8})_hist)\.zip$`),
			Series:   true,
			Metadata: true,
		},
		{
			Kind:    models.KindTemperature,
			Listing: categoryDir("air_temperature/"),
			Pattern: regexp.MustCompile(`^stundenwerte_TU_(?P<station_id>[0-9]{5})_(?:akt|(?P<from>[0-9]{8})_(?P<until>[0-9]{8})_hist)\.zip$`),
			Series:  true,
		},
	},
	PrimaryPrefix:   "produkt_",
	TimestampLayout: "2006010215",
	BackShift:       10 * time.Minute,
	Columns: map[string]string{
		"P":     ColumnPressure,
		"P0":    ColumnStationPressure,
		"TT_TU": ColumnTemperature,
		"RF_TU": ColumnHumidity,
	},
	Drop:       []string{"QN_8", "QN_9"},
	Derivation: DeriveQFE,
}

// TenMinutes is the ten-minute air temperature feed, which also carries station pressure.
var TenMinutes = Period{
	Name:       PeriodTenMinutes,
	Path:       "10_minutes/air_temperature/",
	Categories: []models.Category{models.CategoryHistorical, models.CategoryRecent, models.CategoryNow},
	StationFiles: map[models.Category]string{
		models.CategoryHistorical: "historical/zehn_min_tu_Beschreibung_Stationen.txt",
		models.CategoryRecent:     "recent/zehn_min_tu_Beschreibung_Stationen.txt",
		models.CategoryNow:        "now/zehn_now_tu_Beschreibung_Stationen.txt",
	},
	Kinds: []DataKind{
		{
			Kind:    models.KindTemperature,
			Listing: categoryDir(""),
			Pattern: regexp.MustCompile(`^10minutenwerte_TU_(?P<station_id>[0-9]{5})_(?:now|akt|(?P<from>[0-9]{8})_(?P<until>[0-9]{8})_hist)\.zip$`),
			Series:  true,
		},
		{
			Kind:     models.KindMetadata,
			Listing:  func(models.Category) string { return "meta_data/" },
			Pattern:  regexp.MustCompile(`^Meta_Daten_zehn_min_tu_(?P<station_id>[0-9]{5})\.zip$`),
			Shared:   true,
			Metadata: true,
		},
	},
	PrimaryPrefix:   "produkt_",
	TimestampLayout: "200601021504",
	Columns: map[string]string{
		"QN":    ColumnQuality,
		"PP_10": ColumnStationPressure,
		"TT_10": ColumnTemperature,
		"RF_10": ColumnHumidity,
	},
	Drop:       []string{"TM5_10", "TD_10"},
	Derivation: DeriveQFF,
}

// Periods lists the supported feeds by name.
var Periods = map[string]Period{
	PeriodHourly:     Hourly,
	PeriodTenMinutes: TenMinutes,
}

// HasCategory reports whether the period publishes the category.
func (p Period) HasCategory(c models.Category) bool {
	for _, have := range p.Categories {
		if have == c {
			return true
		}
	}
	return false
}

// MetadataKind returns the archive family carrying device and elevation history.
func (p Period) MetadataKind() (DataKind, bool) {
	for _, k := range p.Kinds {
		if k.Metadata {
			return k, true
		}
	}
	return DataKind{}, false
}

// SeriesKinds returns the archive families whose primary tables are joined, in join order.
func (p Period) SeriesKinds() []DataKind {
	var out []DataKind
	for _, k := range p.Kinds {
		if k.Series {
			out = append(out, k)
		}
	}
	return out
}
