// Package archive downloads DWD zip archives and extracts their tables.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/pkg/http/client"
	"github.com/rs/zerolog/log"
)

const (
	geographyPrefix = "Metadaten_Geographie_"
	devicePrefix    = "Metadaten_Geraete_Luftdruck_"
	tableSuffix     = ".txt"
)

var (
	// ErrTransport marks an archive that could not be downloaded.
	ErrTransport = errors.New("archive download failed")
	// ErrFormat marks a body that is not a readable zip archive.
	ErrFormat = errors.New("malformed archive")
)

// TransportError carries the failed request.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrTransport, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s: status %d", ErrTransport, e.URL, e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return ErrTransport
}

// Fetcher downloads archives through a (typically caching) client.
type Fetcher struct {
	client client.Interface
	clock  clock.Clock
}

type Option func(*Fetcher)

func WithClock(c clock.Clock) Option {
	return func(f *Fetcher) {
		f.clock = c
	}
}

func NewFetcher(httpClient client.Interface, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: httpClient,
		clock:  clock.System{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAndUnpack downloads url and extracts the primary table whose entry name
// starts with primaryPrefix together with any metadata tables.
func (f *Fetcher) FetchAndUnpack(ctx context.Context, url, primaryPrefix string) (*models.ArchiveBundle, error) {
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("No data downloaded")
		return nil, &TransportError{URL: url, Err: err}
	}
	if !resp.OK() {
		log.Warn().Str("url", url).Int("status", resp.StatusCode).Msg("No data downloaded")
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	bundle, err := Unpack(resp.Body, primaryPrefix, f.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", url, err)
	}
	bundle.URL = url

	log.Debug().
		Str("url", url).
		Bool("primary", bundle.Primary != nil).
		Int("elevation_rows", len(bundle.ElevationHistory)).
		Int("device_rows", len(bundle.DeviceHistory)).
		Msg("Unpacked archive")

	return bundle, nil
}

// Unpack reads a zip archive held in memory. Open-ended metadata validity is
// closed at now.
func Unpack(body []byte, primaryPrefix string, now time.Time) (*models.ArchiveBundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	bundle := &models.ArchiveBundle{}
	for _, file := range zr.File {
		name := file.Name
		if !strings.HasSuffix(name, tableSuffix) {
			continue
		}

		switch {
		case strings.HasPrefix(name, primaryPrefix):
			data, err := readEntry(file)
			if err != nil {
				return nil, err
			}
			table, err := ParsePrimary(data)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", name, err)
			}
			bundle.Primary = table
		case strings.HasPrefix(name, geographyPrefix):
			data, err := readEntry(file)
			if err != nil {
				return nil, err
			}
			rows, err := ParseGeography(data, now)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", name, err)
			}
			bundle.ElevationHistory = rows
		case strings.HasPrefix(name, devicePrefix):
			data, err := readEntry(file)
			if err != nil {
				return nil, err
			}
			rows, err := ParseDevices(data, now)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", name, err)
			}
			bundle.DeviceHistory = rows
		}
	}

	return bundle, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrFormat, file.Name, err)
	}
	defer func(rc io.ReadCloser) {
		if err := rc.Close(); err != nil {
			log.Error().Err(err).Str("entry", file.Name).Msg("Error closing archive entry")
		}
	}(rc)

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFormat, file.Name, err)
	}
	return data, nil
}
