package observation

import (
	"context"
	"fmt"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/station"
	"github.com/rs/zerolog/log"
)

// CatalogSource resolves the eligible stations of one period for a date.
type CatalogSource interface {
	Period() catalog.Period
	Catalog(ctx context.Context, date time.Time) (*models.Catalog, error)
}

// ArchiveSource downloads and unpacks station archives.
type ArchiveSource interface {
	FetchAndUnpack(ctx context.Context, url, primaryPrefix string) (*models.ArchiveBundle, error)
}

type Service struct {
	catalogs map[string]CatalogSource
	archives ArchiveSource
	locator  station.StationLocator
}

func NewService(archives ArchiveSource, locator station.StationLocator, catalogs ...CatalogSource) *Service {
	s := &Service{
		catalogs: make(map[string]CatalogSource, len(catalogs)),
		archives: archives,
		locator:  locator,
	}
	for _, c := range catalogs {
		s.catalogs[c.Period().Name] = c
	}
	return s
}

func (s *Service) source(period string) (CatalogSource, error) {
	c, ok := s.catalogs[period]
	if !ok {
		return nil, NewLookupError(ErrInvalidQuery, fmt.Sprintf("unknown period %q", period), nil)
	}
	return c, nil
}

// Stations lists the stations of period eligible for date, nearest first when
// both coordinates are given.
func (s *Service) Stations(ctx context.Context, period string, date time.Time, lat, lon *float64) (*models.StationList, error) {
	src, err := s.source(period)
	if err != nil {
		return nil, err
	}

	cat, err := src.Catalog(ctx, date)
	if err != nil {
		return nil, NewLookupError(ErrCatalogUnavailable, "resolving "+period+" catalog", err)
	}

	return &models.StationList{
		Category: cat.Category,
		Stations: s.locator.Locate(cat.Stations, lat, lon),
	}, nil
}

// Lookup retrieves the observations of the station nearest to lat/lon around date.
func (s *Service) Lookup(ctx context.Context, period string, date time.Time, lat, lon float64, bounds *time.Duration) (*models.ResultBundle, error) {
	list, err := s.Stations(ctx, period, date, &lat, &lon)
	if err != nil {
		return nil, err
	}
	if len(list.Stations) == 0 {
		log.Warn().
			Str("period", period).
			Time("date", date).
			Msg("No suitable stations found")
		return nil, NewLookupError(ErrNoStations, date.Format(time.RFC3339), nil)
	}

	return s.Fetch(ctx, period, list.Stations[0], list.Category, date, bounds)
}

// Fetch retrieves the observations of an already resolved station.
func (s *Service) Fetch(ctx context.Context, period string, st models.StationRecord, category models.Category, date time.Time, bounds *time.Duration) (*models.ResultBundle, error) {
	src, err := s.source(period)
	if err != nil {
		return nil, err
	}
	p := src.Period()

	if !p.HasCategory(category) {
		return nil, NewLookupError(ErrInvalidQuery, fmt.Sprintf("category %q not published for %s", category, period), nil)
	}
	if bounds != nil && *bounds < 0 {
		return nil, NewLookupError(ErrInvalidQuery, "negative bounds", nil)
	}

	bundles, err := s.fetchArchives(ctx, p, st)
	if err != nil {
		return nil, err
	}

	metadataKind, _ := p.MetadataKind()
	device, ok := ResolveDevice(bundles[metadataKind.Kind], date)
	if !ok {
		return nil, NewLookupError(ErrNoMetadata, "station "+st.ID, nil)
	}

	var tables []*models.Table
	for _, kind := range p.SeriesKinds() {
		tables = append(tables, bundles[kind.Kind].Primary)
	}

	rows, err := Join(p, tables)
	if err != nil {
		return nil, NewLookupError(ErrArchiveUnavailable, "joining archives of station "+st.ID, err)
	}
	rows = Trim(rows, SelectWindow(date, bounds, device))

	log.Debug().
		Str("period", period).
		Str("station_id", st.ID).
		Str("category", string(category)).
		Str("device", device.DeviceName).
		Int("rows", len(rows)).
		Msg("Assembled observations")

	return Assemble(p, st.WithDevice(device), category, rows), nil
}

// fetchArchives downloads every archive of the station once.
func (s *Service) fetchArchives(ctx context.Context, p catalog.Period, st models.StationRecord) (map[models.Kind]*models.ArchiveBundle, error) {
	byURL := make(map[string]*models.ArchiveBundle)
	bundles := make(map[models.Kind]*models.ArchiveBundle, len(p.Kinds))

	for _, kind := range p.Kinds {
		url, ok := st.Files[kind.Kind]
		if !ok || url == "" {
			return nil, NewLookupError(ErrInvalidQuery, fmt.Sprintf("station %s has no %s archive", st.ID, kind.Kind), nil)
		}

		if bundle, ok := byURL[url]; ok {
			bundles[kind.Kind] = bundle
			continue
		}

		bundle, err := s.archives.FetchAndUnpack(ctx, url, p.PrimaryPrefix)
		if err != nil {
			return nil, NewLookupError(ErrArchiveUnavailable, "station "+st.ID, err)
		}
		byURL[url] = bundle
		bundles[kind.Kind] = bundle
	}

	return bundles, nil
}
