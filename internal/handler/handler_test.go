package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/baroalt/backend-go/internal/archive"
	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/observation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService implements both StationLister and ObservationFinder for testing
type mockService struct {
	stationsFn func(ctx context.Context, period string, date time.Time, lat, lon *float64) (*models.StationList, error)
	lookupFn   func(ctx context.Context, period string, date time.Time, lat, lon float64, bounds *time.Duration) (*models.ResultBundle, error)
}

func (m *mockService) Stations(ctx context.Context, period string, date time.Time, lat, lon *float64) (*models.StationList, error) {
	if m.stationsFn != nil {
		return m.stationsFn(ctx, period, date, lat, lon)
	}
	return &models.StationList{}, nil
}

func (m *mockService) Lookup(ctx context.Context, period string, date time.Time, lat, lon float64, bounds *time.Duration) (*models.ResultBundle, error) {
	if m.lookupFn != nil {
		return m.lookupFn(ctx, period, date, lat, lon, bounds)
	}
	return &models.ResultBundle{}, nil
}

func decode(t *testing.T, resp events.APIGatewayProxyResponse) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body
}

func request(params map[string]string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{QueryStringParameters: params}
}

func TestObservationsHandler(t *testing.T) {
	var gotPeriod string
	var gotDate time.Time
	var gotBounds *time.Duration

	svc := &mockService{
		lookupFn: func(_ context.Context, period string, date time.Time, lat, lon float64, bounds *time.Duration) (*models.ResultBundle, error) {
			gotPeriod, gotDate, gotBounds = period, date, bounds
			return &models.ResultBundle{
				Station:  models.StationRecord{ID: "01766", Latitude: lat, Longitude: lon},
				Category: models.CategoryRecent,
				Data:     []models.Observation{{StationPressure: 1007.7}},
			}, nil
		},
	}
	h := NewObservationsHandler(svc)

	resp, err := h.HandleRequest(context.Background(), request(map[string]string{
		"lat":    "52.52",
		"lon":    "7.30",
		"date":   "2021-08-04T18:49",
		"bounds": "60",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "hourly", gotPeriod)
	assert.Equal(t, time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC), gotDate)
	require.NotNil(t, gotBounds)
	assert.Equal(t, time.Hour, *gotBounds)

	body := decode(t, resp)
	assert.Equal(t, "observations", body["responseType"])
	assert.Equal(t, "recent", body["category"])
	assert.Len(t, body["data"], 1)

	resp, err = h.HandleRequest(context.Background(), request(map[string]string{
		"lat":    "52.52",
		"lon":    "7.30",
		"utc":    "1628102940",
		"format": "table",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)
	assert.NotContains(t, body, "data")
	table := body["table"].(map[string]interface{})
	assert.Equal(t, []interface{}{1007.7}, table["station_pressure"])
}

func TestObservationsHandlerValidation(t *testing.T) {
	tests := []struct {
		name          string
		params        map[string]string
		expectedError string
	}{
		{
			name:          "missing date",
			params:        map[string]string{"lat": "52.52", "lon": "7.30"},
			expectedError: "Invalid date",
		},
		{
			name:          "missing coordinates",
			params:        map[string]string{"date": "2021-08-04T18:49"},
			expectedError: "Coordinates required",
		},
		{
			name:          "invalid latitude",
			params:        map[string]string{"lat": "91", "lon": "0", "date": "2021-08-04"},
			expectedError: "Invalid coordinates",
		},
		{
			name:          "non-numeric coordinates",
			params:        map[string]string{"lat": "north", "lon": "0", "date": "2021-08-04"},
			expectedError: "Invalid parameters",
		},
		{
			name:          "negative bounds",
			params:        map[string]string{"lat": "52.52", "lon": "7.30", "date": "2021-08-04", "bounds": "-1"},
			expectedError: "Invalid bounds",
		},
		{
			name:          "unknown format",
			params:        map[string]string{"lat": "52.52", "lon": "7.30", "date": "2021-08-04", "format": "xml"},
			expectedError: "Invalid format",
		},
		{
			name:          "unknown period",
			params:        map[string]string{"lat": "52.52", "lon": "7.30", "date": "2021-08-04", "period": "monthly"},
			expectedError: "Invalid period",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewObservationsHandler(&mockService{
				lookupFn: func(context.Context, string, time.Time, float64, float64, *time.Duration) (*models.ResultBundle, error) {
					t.Fatal("lookup must not be called")
					return nil, nil
				},
			})

			resp, err := h.HandleRequest(context.Background(), request(tt.params))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, "error", body["responseType"])
			assert.Equal(t, tt.expectedError, body["error"])
		})
	}
}

func TestObservationsHandlerErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "no stations",
			err:            observation.NewLookupError(observation.ErrNoStations, "2021-08-04T18:49:00Z", nil),
			expectedStatus: http.StatusNotFound,
			expectedError:  "no station available for date",
		},
		{
			name:           "no metadata",
			err:            observation.NewLookupError(observation.ErrNoMetadata, "station 01766", nil),
			expectedStatus: http.StatusNotFound,
			expectedError:  "no station metadata valid for date",
		},
		{
			name: "archive unavailable",
			err: observation.NewLookupError(observation.ErrArchiveUnavailable, "station 01766",
				&archive.TransportError{URL: "x.zip", StatusCode: http.StatusServiceUnavailable}),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "station archive unavailable",
		},
		{
			name:           "catalog unavailable",
			err:            fmt.Errorf("lookup: %w", observation.NewLookupError(observation.ErrCatalogUnavailable, "hourly", assert.AnError)),
			expectedStatus: http.StatusBadGateway,
			expectedError:  "station catalog unavailable",
		},
		{
			name:           "invalid query",
			err:            observation.NewLookupError(observation.ErrInvalidQuery, "negative bounds", nil),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid query",
		},
		{
			name:           "unexpected",
			err:            errors.New("boom"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Error getting observations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewObservationsHandler(&mockService{
				lookupFn: func(context.Context, string, time.Time, float64, float64, *time.Duration) (*models.ResultBundle, error) {
					return nil, tt.err
				},
			})

			resp, err := h.HandleRequest(context.Background(), request(map[string]string{
				"lat": "52.52", "lon": "7.30", "utc": "1628102940",
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedError, decode(t, resp)["error"])
		})
	}
}

func TestStationsHandler(t *testing.T) {
	now := time.Date(2021, 8, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		params     map[string]string
		wantDate   time.Time
		wantPeriod string
		wantCoords bool
	}{
		{
			name:       "defaults to yesterday",
			params:     map[string]string{},
			wantDate:   time.Date(2021, 8, 4, 9, 0, 0, 0, time.UTC),
			wantPeriod: "hourly",
		},
		{
			name:       "explicit date and position",
			params:     map[string]string{"date": "2021-08-04", "lat": "52.52", "lon": "7.30", "period": "ten_minutes"},
			wantDate:   time.Date(2021, 8, 4, 0, 0, 0, 0, time.UTC),
			wantPeriod: "ten_minutes",
			wantCoords: true,
		},
		{
			name:       "epoch date",
			params:     map[string]string{"utc": "1628102940"},
			wantDate:   time.Date(2021, 8, 4, 18, 49, 0, 0, time.UTC),
			wantPeriod: "hourly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var called bool
			svc := &mockService{
				stationsFn: func(_ context.Context, period string, date time.Time, lat, lon *float64) (*models.StationList, error) {
					called = true
					assert.Equal(t, tt.wantPeriod, period)
					assert.Equal(t, tt.wantDate, date)
					assert.Equal(t, tt.wantCoords, lat != nil && lon != nil)
					return &models.StationList{
						Category: models.CategoryRecent,
						Stations: []models.StationRecord{{ID: "01766"}, {ID: "00044"}},
					}, nil
				},
			}
			h := NewStationsHandler(svc, clock.Func(func() time.Time { return now }))

			resp, err := h.HandleRequest(context.Background(), request(tt.params))
			require.NoError(t, err)
			require.True(t, called)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, "stations", body["responseType"])
			assert.Equal(t, tt.wantPeriod, body["period"])
			assert.Len(t, body["stations"], 2)
		})
	}
}

func TestStationsHandlerErrors(t *testing.T) {
	failing := &mockService{
		stationsFn: func(context.Context, string, time.Time, *float64, *float64) (*models.StationList, error) {
			return nil, observation.NewLookupError(observation.ErrCatalogUnavailable, "hourly", assert.AnError)
		},
	}

	tests := []struct {
		name           string
		params         map[string]string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "bad date",
			params:         map[string]string{"date": "someday"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid date",
		},
		{
			name:           "half a position",
			params:         map[string]string{"lon": "7.30"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Invalid coordinates",
		},
		{
			name:           "catalog down",
			params:         map[string]string{},
			expectedStatus: http.StatusBadGateway,
			expectedError:  "Error finding stations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewStationsHandler(failing, nil)

			resp, err := h.HandleRequest(context.Background(), request(tt.params))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedError, decode(t, resp)["error"])
		})
	}
}
