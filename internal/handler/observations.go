package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/baroalt/backend-go/internal/api"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/observation"
	"github.com/rs/zerolog/log"
)

// ObservationFinder retrieves the series of the station nearest to a position.
type ObservationFinder interface {
	Lookup(ctx context.Context, period string, date time.Time, lat, lon float64, bounds *time.Duration) (*models.ResultBundle, error)
}

type ObservationsHandler struct {
	finder ObservationFinder
}

func NewObservationsHandler(finder ObservationFinder) *ObservationsHandler {
	return &ObservationsHandler{
		finder: finder,
	}
}

func (h *ObservationsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	period, err := api.ParsePeriod(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	date, err := api.ParseDate(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	bounds, err := api.ParseBounds(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	asTable, err := api.ParseTableFormat(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	lat, lon, err := api.ParseCoordinates(params)
	if err != nil {
		var invalidCoordErr api.InvalidCoordinatesError
		if errors.As(err, &invalidCoordErr) {
			return api.Error(err.Error(), http.StatusBadRequest)
		}
		return api.Error("Invalid parameters", http.StatusBadRequest)
	}
	if lat == nil || lon == nil {
		return api.Error("Coordinates required", http.StatusBadRequest)
	}

	result, err := h.finder.Lookup(ctx, period, date, *lat, *lon, bounds)
	if err != nil {
		log.Error().Err(err).Str("period", period).Time("date", date).Msg("Error getting observations")
		return api.Error(messageFor(err), statusFor(err))
	}

	return api.Success(api.NewObservationsResponse(period, result, asTable))
}

// statusFor maps lookup failures to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, observation.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, observation.ErrNoStations), errors.Is(err, observation.ErrNoMetadata):
		return http.StatusNotFound
	case errors.Is(err, observation.ErrCatalogUnavailable), errors.Is(err, observation.ErrArchiveUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var lookupErr *observation.LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Reason.Error()
	}
	return "Error getting observations"
}
