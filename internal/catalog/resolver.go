package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

// DefaultTTL is how long a snapshot is usable without refetching.
const DefaultTTL = 8 * time.Hour

// ErrRefresh marks a catalog download that did not complete.
var ErrRefresh = errors.New("catalog refresh failed")

// ErrUnavailable is returned when no snapshot has ever been published.
var ErrUnavailable = errors.New("catalog unavailable")

// RefreshError carries the request that aborted a refresh.
type RefreshError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *RefreshError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrRefresh, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s: status %d", ErrRefresh, e.URL, e.StatusCode)
}

func (e *RefreshError) Unwrap() error {
	return ErrRefresh
}

// Snapshot is an immutable view of the remote catalog of one period. It is
// replaced wholesale on refresh and never mutated once published.
type Snapshot struct {
	Period   string                                                 `json:"period"`
	Updated  time.Time                                              `json:"updated"`
	Stations map[models.Category][]models.StationRecord             `json:"stations"`
	Files    map[models.Kind]map[models.Category][]models.FileEntry `json:"files"`
}

// SnapshotStore persists snapshots between process lifetimes.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context, period string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// Resolver keeps a refreshable snapshot of the stations of one period and resolves
// which archives serve a requested date.
type Resolver struct {
	period  Period
	baseURL string
	client  client.Interface
	parser  Parser
	clock   clock.Clock
	ttl     time.Duration
	store   SnapshotStore

	refreshMu sync.Mutex
	mu        sync.RWMutex
	snapshot  *Snapshot
}

type Option func(*Resolver)

func WithParser(p Parser) Option {
	return func(r *Resolver) {
		r.parser = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		r.ttl = ttl
	}
}

// WithStore adds a persistent snapshot tier consulted before downloading.
func WithStore(s SnapshotStore) Option {
	return func(r *Resolver) {
		r.store = s
	}
}

// NewResolver creates a resolver for period rooted at baseURL, the climate directory of the open data server.
func NewResolver(period Period, baseURL string, httpClient client.Interface, opts ...Option) *Resolver {
	r := &Resolver{
		period:  period,
		baseURL: baseURL,
		client:  httpClient,
		parser:  NewParser(),
		clock:   clock.System{},
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Period() Period {
	return r.period
}

// Snapshot returns the currently published snapshot, or nil.
func (r *Resolver) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

func (r *Resolver) publish(s *Snapshot) {
	r.mu.Lock()
	r.snapshot = s
	r.mu.Unlock()
}

func (r *Resolver) isStale(s *Snapshot, now time.Time) bool {
	return s == nil || now.Sub(s.Updated) > r.ttl
}

// EnsureFresh refreshes the snapshot when none exists or it is older than the TTL.
// On failure the previously published snapshot, if any, stays in effect.
func (r *Resolver) EnsureFresh(ctx context.Context) error {
	if !r.isStale(r.Snapshot(), r.clock.Now()) {
		return nil
	}

	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	// another caller may have refreshed while we waited
	if !r.isStale(r.Snapshot(), r.clock.Now()) {
		return nil
	}

	if r.store != nil {
		stored, err := r.store.LoadSnapshot(ctx, r.period.Name)
		if err != nil {
			log.Warn().Err(err).Str("period", r.period.Name).Msg("Loading stored catalog snapshot failed")
		} else if stored != nil && !r.isStale(stored, r.clock.Now()) {
			log.Debug().Str("period", r.period.Name).Time("updated", stored.Updated).Msg("Using stored catalog snapshot")
			r.publish(stored)
			return nil
		}
	}

	return r.refreshLocked(ctx)
}

// Refresh downloads the full catalog and publishes it. Any failed request aborts
// the refresh without touching the published snapshot.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()
	return r.refreshLocked(ctx)
}

func (r *Resolver) refreshLocked(ctx context.Context) error {
	root := r.baseURL + r.period.Path
	snapshot := &Snapshot{
		Period:   r.period.Name,
		Stations: make(map[models.Category][]models.StationRecord),
		Files:    make(map[models.Kind]map[models.Category][]models.FileEntry),
	}

	parsedStations := make(map[string][]models.StationRecord)
	for _, category := range r.period.Categories {
		file := r.period.StationFiles[category]
		if _, ok := parsedStations[file]; !ok {
			body, err := r.fetch(ctx, root+file)
			if err != nil {
				return err
			}
			parsedStations[file] = r.parser.ParseStations(body)
		}
		snapshot.Stations[category] = parsedStations[file]
	}

	for _, kind := range r.period.Kinds {
		byCategory := make(map[models.Category][]models.FileEntry)
		var shared []models.FileEntry
		for i, category := range r.period.Categories {
			if kind.Shared && i > 0 {
				byCategory[category] = shared
				continue
			}
			listingURL := root + kind.Listing(category)
			body, err := r.fetch(ctx, listingURL)
			if err != nil {
				return err
			}
			entries := r.parser.ParseListing(body, listingURL, kind.Pattern)
			byCategory[category] = entries
			shared = entries
		}
		snapshot.Files[kind.Kind] = byCategory
	}

	snapshot.Updated = r.clock.Now()
	r.publish(snapshot)

	log.Debug().
		Str("period", r.period.Name).
		Time("updated", snapshot.Updated).
		Msg("Catalog refreshed")

	if r.store != nil {
		if err := r.store.SaveSnapshot(ctx, snapshot); err != nil {
			log.Warn().Err(err).Str("period", r.period.Name).Msg("Saving catalog snapshot failed")
		}
	}

	return nil
}

func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.client.Get(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("No valid response from server")
		return nil, &RefreshError{URL: url, Err: err}
	}
	if !resp.OK() {
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("No valid response from server")
		return nil, &RefreshError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// Catalog returns the stations eligible for date in the category that holds it.
// A station is eligible when its validity contains date and every archive kind
// of the period resolves to a file covering date.
func (r *Resolver) Catalog(ctx context.Context, date time.Time) (*models.Catalog, error) {
	if err := r.EnsureFresh(ctx); err != nil {
		if r.Snapshot() == nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		log.Warn().Err(err).Str("period", r.period.Name).Msg("Using previous catalog snapshot")
	}

	snapshot := r.Snapshot()
	if snapshot == nil {
		return nil, ErrUnavailable
	}

	category := SelectCategory(r.period, date, r.clock.Now())
	return Resolve(r.period, snapshot, category, date), nil
}

// Resolve joins the station table of a category with its file listings for date.
func Resolve(period Period, snapshot *Snapshot, category models.Category, date time.Time) *models.Catalog {
	index := make(map[models.Kind]map[string][]models.FileEntry, len(period.Kinds))
	for _, kind := range period.Kinds {
		byStation := make(map[string][]models.FileEntry)
		for _, entry := range snapshot.Files[kind.Kind][category] {
			byStation[entry.StationID] = append(byStation[entry.StationID], entry)
		}
		index[kind.Kind] = byStation
	}

	out := &models.Catalog{
		Period:   period.Name,
		Category: category,
		Updated:  snapshot.Updated,
		Stations: make([]models.StationRecord, 0),
	}

	for _, station := range snapshot.Stations[category] {
		if !station.Validity.Contains(date) {
			continue
		}
		files, ok := resolveFiles(period, index, station.ID, date)
		if !ok {
			continue
		}
		out.Stations = append(out.Stations, station.WithFiles(files))
	}

	return out
}

func resolveFiles(period Period, index map[models.Kind]map[string][]models.FileEntry, stationID string, date time.Time) (map[models.Kind]string, bool) {
	files := make(map[models.Kind]string, len(period.Kinds))
	for _, kind := range period.Kinds {
		var found bool
		for _, entry := range index[kind.Kind][stationID] {
			if entry.Covers(date) {
				files[kind.Kind] = entry.URL
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return files, true
}
