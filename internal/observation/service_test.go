package observation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/archive"
	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/physics"
	"github.com/bbernstein/baroalt/backend-go/internal/station"
	"github.com/bbernstein/baroalt/backend-go/pkg/http/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = "https://opendata.example/climate/"

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// fakeHTTP serves canned bodies by URL
type fakeHTTP struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  map[string]int
}

func (f *fakeHTTP) Get(_ context.Context, url string) (*client.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	body, ok := f.bodies[url]
	if !ok {
		return &client.Response{StatusCode: http.StatusNotFound}, nil
	}
	return &client.Response{StatusCode: http.StatusOK, Body: body}, nil
}

// fakeCatalog returns a fixed catalog
type fakeCatalog struct {
	period  catalog.Period
	catalog *models.Catalog
	err     error
}

func (f *fakeCatalog) Period() catalog.Period {
	return f.period
}

func (f *fakeCatalog) Catalog(context.Context, time.Time) (*models.Catalog, error) {
	return f.catalog, f.err
}

// fakeArchives serves bundles by URL
type fakeArchives struct {
	bundles map[string]*models.ArchiveBundle
	err     error
	calls   int
}

func (f *fakeArchives) FetchAndUnpack(_ context.Context, url, _ string) (*models.ArchiveBundle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bundles[url]
	if !ok {
		return nil, &archive.TransportError{URL: url, StatusCode: http.StatusNotFound}
	}
	return b, nil
}

func zipOf(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func listing(names ...string) []byte {
	page := "<html><body><pre>\n"
	for _, n := range names {
		page += `<a href="` + n + `">` + n + "</a>\n"
	}
	return []byte(page + "</pre></body></html>")
}

const stationDescription = `Stations_id von_datum bis_datum Stationshoehe geoBreite geoLaenge Stationsname Bundesland
00044 19690101 20210804             44     52.9336    8.2370 Grossenkneten                            Niedersachsen
01766 19891001 20210804             48     52.1344    7.6969 Muenster/Osnabrueck                      Nordrhein-Westfalen
`

const pressureProduct = `STATIONS_ID;MESS_DATUM;QN_8;   P;  P0;eor
       1766;2021080417;    3;1014.2;1007.9;eor
       1766;2021080418;    3;1014.0;1007.7;eor
       1766;2021080419;    3;-999;-999;eor
       1766;2021080420;    3;1013.6;1007.3;eor
       1766;2021080421;    3;1013.5;1007.2;eor
`

const temperatureProduct = `STATIONS_ID;MESS_DATUM;QN_9;TT_TU;RF_TU;eor
       1766;2021080417;    3;  19.1;  68.0;eor
       1766;2021080418;    3;  18.5;  71.0;eor
       1766;2021080419;    3;  17.9;  75.0;eor
       1766;2021080420;    3;  17.0;  79.0;eor
       1766;2021080421;    3;  16.6;  81.0;eor
`

const deviceHistory = `Stations_ID;Stationsname;Geo. Laenge [Grad];Geo. Breite [Grad];Stationshoehe [m];Geberhoehe ueber Grund [m];Von_Datum;Bis_Datum;Geraetetyp Name;Messverfahren;eor
1766;Muenster/Osnabrueck;7.6969;52.1344;48;1.5;19891001;20210804;Stationsbarometer;Luftdruckmessung, konventionell;eor
1766;Muenster/Osnabrueck;7.6969;52.1344;48;1.5;20010101;;PTB 220;Luftdruckmessung, elektr.;eor
`

func hourlyUpstream(t *testing.T) *fakeHTTP {
	root := testBase + "hourly/"
	return &fakeHTTP{
		calls: make(map[string]int),
		bodies: map[string][]byte{
			root + "pressure/recent/P0_Stundenwerte_Beschreibung_Stationen.txt": []byte(stationDescription),
			root + "pressure/recent/": listing(
				"stundenwerte_P0_00044_akt.zip",
				"stundenwerte_P0_01766_akt.zip",
			),
			root + "air_temperature/recent/": listing(
				"stundenwerte_TU_00044_akt.zip",
				"stundenwerte_TU_01766_akt.zip",
			),
			root + "pressure/historical/":        listing(),
			root + "air_temperature/historical/": listing(),
			root + "pressure/recent/stundenwerte_P0_01766_akt.zip": zipOf(t, map[string]string{
				"produkt_p0_stunde_20200201_20210804_01766.txt": pressureProduct,
				"Metadaten_Geraete_Luftdruck_01766.txt":         deviceHistory,
			}),
			root + "air_temperature/recent/stundenwerte_TU_01766_akt.zip": zipOf(t, map[string]string{
				"produkt_tu_stunde_20200201_20210804_01766.txt": temperatureProduct,
			}),
		},
	}
}

func TestLookupHourlyEndToEnd(t *testing.T) {
	t.Parallel()

	clk := fixedClock{now: time.Date(2021, 8, 5, 9, 0, 0, 0, time.UTC)}
	upstream := hourlyUpstream(t)
	resolver := catalog.NewResolver(catalog.Hourly, testBase, upstream, catalog.WithClock(clk))
	svc := NewService(archive.NewFetcher(upstream, archive.WithClock(clk)), station.NewLocator(), resolver)

	date := time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC)
	bounds := 60 * time.Minute
	result, err := svc.Lookup(context.Background(), catalog.PeriodHourly, date, 52.52, 7.30, &bounds)
	require.NoError(t, err)

	assert.Equal(t, models.CategoryRecent, result.Category)
	assert.Equal(t, "01766", result.Station.ID)
	require.NotNil(t, result.Station.Distance)
	assert.InDelta(t, 51000, *result.Station.Distance, 2000)
	require.NotNil(t, result.Station.Device)
	assert.Equal(t, "PTB 220", result.Station.Device.DeviceName)

	// raw hour 19 is missing and 20 falls outside the window
	require.Len(t, result.Data, 1)
	row := result.Data[0]
	assert.Equal(t, time.Date(2021, 8, 4, 17, 50, 0, 0, time.UTC), row.Time)
	assert.Equal(t, 1007.7, row.StationPressure)

	h := physics.GeopotentialHeight(48, 52.1344)
	require.NotNil(t, row.DerivedPressure)
	assert.Equal(t, round2(physics.QFEFromQFF(1014.0, h, 18.5, 71)), *row.DerivedPressure)

	// the station of the other archive set is never downloaded
	assert.Zero(t, upstream.calls[testBase+"hourly/pressure/recent/stundenwerte_P0_00044_akt.zip"])
}

func TestLookupWholeValidity(t *testing.T) {
	t.Parallel()

	clk := fixedClock{now: time.Date(2021, 8, 5, 9, 0, 0, 0, time.UTC)}
	upstream := hourlyUpstream(t)
	resolver := catalog.NewResolver(catalog.Hourly, testBase, upstream, catalog.WithClock(clk))
	svc := NewService(archive.NewFetcher(upstream, archive.WithClock(clk)), station.NewLocator(), resolver)

	date := time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC)
	result, err := svc.Lookup(context.Background(), catalog.PeriodHourly, date, 52.52, 7.30, nil)
	require.NoError(t, err)

	// every joined row within the PTB 220 validity, without the missing hour
	require.Len(t, result.Data, 4)
	for _, o := range result.Data {
		assert.NotEqual(t, models.Missing, o.StationPressure)
		assert.NotNil(t, o.DerivedPressure)
	}
}

func TestStations(t *testing.T) {
	t.Parallel()

	recs := []models.StationRecord{
		{ID: "00044", Latitude: 52.9336, Longitude: 8.2370},
		{ID: "01766", Latitude: 52.1344, Longitude: 7.6969},
	}
	src := &fakeCatalog{
		period:  catalog.Hourly,
		catalog: &models.Catalog{Period: catalog.PeriodHourly, Category: models.CategoryRecent, Stations: recs},
	}
	svc := NewService(&fakeArchives{}, station.NewLocator(), src)
	date := time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC)

	t.Run("sorted by distance", func(t *testing.T) {
		lat, lon := 52.52, 7.30
		list, err := svc.Stations(context.Background(), catalog.PeriodHourly, date, &lat, &lon)
		require.NoError(t, err)
		require.Len(t, list.Stations, 2)
		assert.Equal(t, models.CategoryRecent, list.Category)
		assert.Equal(t, "01766", list.Stations[0].ID)
		assert.NotNil(t, list.Stations[0].Distance)
	})

	t.Run("catalog order without coordinates", func(t *testing.T) {
		list, err := svc.Stations(context.Background(), catalog.PeriodHourly, date, nil, nil)
		require.NoError(t, err)
		require.Len(t, list.Stations, 2)
		assert.Equal(t, "00044", list.Stations[0].ID)
		assert.Nil(t, list.Stations[0].Distance)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := svc.Stations(context.Background(), "daily", date, nil, nil)
		assert.True(t, errors.Is(err, ErrInvalidQuery))
	})
}

func TestLookupErrors(t *testing.T) {
	t.Parallel()

	date := time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC)
	st := models.StationRecord{
		ID:        "01766",
		Latitude:  52.1344,
		Longitude: 7.6969,
		Files: map[models.Kind]string{
			models.KindPressure:    "p.zip",
			models.KindTemperature: "t.zip",
		},
	}
	valid := models.Validity{From: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), Until: time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC)}
	withDevice := &models.ArchiveBundle{
		Primary:       hourlyPressureTable(),
		DeviceHistory: []models.DeviceRecord{{StationID: "01766", DeviceName: "PTB 220", Validity: valid, Elevation: 48, Latitude: 52.1344}},
	}

	tests := []struct {
		name     string
		catalog  *fakeCatalog
		archives *fakeArchives
		want     error
		alsoIs   error
	}{
		{
			name:     "catalog unavailable",
			catalog:  &fakeCatalog{period: catalog.Hourly, err: catalog.ErrUnavailable},
			archives: &fakeArchives{},
			want:     ErrCatalogUnavailable,
			alsoIs:   catalog.ErrUnavailable,
		},
		{
			name:     "no stations",
			catalog:  &fakeCatalog{period: catalog.Hourly, catalog: &models.Catalog{Category: models.CategoryRecent}},
			archives: &fakeArchives{},
			want:     ErrNoStations,
		},
		{
			name:     "archive download fails",
			catalog:  &fakeCatalog{period: catalog.Hourly, catalog: &models.Catalog{Category: models.CategoryRecent, Stations: []models.StationRecord{st}}},
			archives: &fakeArchives{err: &archive.TransportError{URL: "p.zip", StatusCode: http.StatusServiceUnavailable}},
			want:     ErrArchiveUnavailable,
			alsoIs:   archive.ErrTransport,
		},
		{
			name:    "no valid metadata",
			catalog: &fakeCatalog{period: catalog.Hourly, catalog: &models.Catalog{Category: models.CategoryRecent, Stations: []models.StationRecord{st}}},
			archives: &fakeArchives{bundles: map[string]*models.ArchiveBundle{
				"p.zip": {Primary: hourlyPressureTable()},
				"t.zip": {Primary: hourlyTemperatureTable()},
			}},
			want: ErrNoMetadata,
		},
		{
			name:    "temperature archive without data table",
			catalog: &fakeCatalog{period: catalog.Hourly, catalog: &models.Catalog{Category: models.CategoryRecent, Stations: []models.StationRecord{st}}},
			archives: &fakeArchives{bundles: map[string]*models.ArchiveBundle{
				"p.zip": withDevice,
				"t.zip": {},
			}},
			want: ErrArchiveUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.archives, station.NewLocator(), tt.catalog)
			_, err := svc.Lookup(context.Background(), catalog.PeriodHourly, date, 52.52, 7.30, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
			if tt.alsoIs != nil {
				assert.True(t, errors.Is(err, tt.alsoIs), err.Error())
			}
			var lookupErr *LookupError
			assert.True(t, errors.As(err, &lookupErr))
		})
	}
}

func TestFetchValidatesQuery(t *testing.T) {
	t.Parallel()

	date := time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC)
	svc := NewService(&fakeArchives{}, station.NewLocator(), &fakeCatalog{period: catalog.Hourly})
	st := models.StationRecord{ID: "01766", Files: map[models.Kind]string{models.KindTemperature: "t.zip"}}
	negative := -time.Minute

	tests := []struct {
		name     string
		period   string
		category models.Category
		bounds   *time.Duration
	}{
		{name: "unknown period", period: "daily", category: models.CategoryRecent},
		{name: "category not published", period: catalog.PeriodHourly, category: models.CategoryNow},
		{name: "negative bounds", period: catalog.PeriodHourly, category: models.CategoryRecent, bounds: &negative},
		{name: "missing archive", period: catalog.PeriodHourly, category: models.CategoryRecent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Fetch(context.Background(), tt.period, st, tt.category, date, tt.bounds)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
		})
	}
}

func TestFetchTenMinutes(t *testing.T) {
	t.Parallel()

	elevation := models.DeviceRecord{
		StationID: "01766",
		Validity: models.Validity{
			From:  time.Date(2005, 6, 1, 0, 0, 0, 0, time.UTC),
			Until: time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC),
		},
		Elevation: 47,
		Latitude:  52.1344,
		Longitude: 7.6969,
	}
	product := &models.Table{
		Columns: []string{"MESS_DATUM", "QN", "PP_10", "TT_10", "TM5_10", "RF_10", "TD_10"},
		Rows: [][]string{
			{"202108041840", "3", "1007.6", "18.7", "17.2", "70.5", "13.1"},
			{"202108041850", "3", "1007.6", "18.5", "17.0", "71.0", "13.1"},
			{"202108041900", "3", "1007.5", "-999", "16.8", "72.1", "13.2"},
		},
	}
	archives := &fakeArchives{bundles: map[string]*models.ArchiveBundle{
		"tu.zip":   {Primary: product},
		"meta.zip": {ElevationHistory: []models.DeviceRecord{elevation}},
	}}
	svc := NewService(archives, station.NewLocator(), &fakeCatalog{period: catalog.TenMinutes})

	st := models.StationRecord{
		ID:        "01766",
		Elevation: 48,
		Files: map[models.Kind]string{
			models.KindTemperature: "tu.zip",
			models.KindMetadata:    "meta.zip",
		},
	}
	date := time.Date(2021, 8, 4, 18, 45, 0, 0, time.UTC)

	result, err := svc.Fetch(context.Background(), catalog.PeriodTenMinutes, st, models.CategoryNow, date, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, archives.calls)

	// elevation and position come from the metadata record
	assert.Equal(t, 47.0, result.Station.Elevation)
	assert.Equal(t, 52.1344, result.Station.Latitude)

	require.Len(t, result.Data, 3)
	h := physics.GeopotentialHeight(47, 52.1344)
	require.NotNil(t, result.Data[0].DerivedPressure)
	assert.Equal(t, round2(physics.QFFFromQFE(1007.6, h, 18.7, 70.5)), *result.Data[0].DerivedPressure)
	require.NotNil(t, result.Data[0].Quality)
	assert.Equal(t, 3, *result.Data[0].Quality)
	assert.Nil(t, result.Data[2].DerivedPressure)
}

func TestFetchSharedArchiveDownloadedOnce(t *testing.T) {
	t.Parallel()

	valid := models.Validity{From: time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), Until: time.Date(2021, 8, 5, 0, 0, 0, 0, time.UTC)}
	archives := &fakeArchives{bundles: map[string]*models.ArchiveBundle{
		"all.zip": {
			Primary: &models.Table{
				Columns: []string{"MESS_DATUM", "QN", "PP_10", "TT_10", "RF_10"},
				Rows:    [][]string{{"202108041840", "3", "1007.6", "18.7", "70.5"}},
			},
			ElevationHistory: []models.DeviceRecord{{StationID: "01766", Validity: valid, Elevation: 48}},
		},
	}}
	svc := NewService(archives, station.NewLocator(), &fakeCatalog{period: catalog.TenMinutes})
	st := models.StationRecord{ID: "01766", Files: map[models.Kind]string{
		models.KindTemperature: "all.zip",
		models.KindMetadata:    "all.zip",
	}}

	result, err := svc.Fetch(context.Background(), catalog.PeriodTenMinutes, st, models.CategoryRecent,
		time.Date(2021, 8, 4, 18, 45, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	assert.Len(t, result.Data, 1)
	assert.Equal(t, 1, archives.calls)
}
