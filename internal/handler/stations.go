package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/baroalt/backend-go/internal/api"
	"github.com/bbernstein/baroalt/backend-go/internal/clock"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/rs/zerolog/log"
)

// StationLister lists the stations of a period eligible for a date.
type StationLister interface {
	Stations(ctx context.Context, period string, date time.Time, lat, lon *float64) (*models.StationList, error)
}

type StationsHandler struct {
	lister StationLister
	clock  clock.Clock
}

func NewStationsHandler(lister StationLister, clk clock.Clock) *StationsHandler {
	if clk == nil {
		clk = clock.System{}
	}
	return &StationsHandler{
		lister: lister,
		clock:  clk,
	}
}

func (h *StationsHandler) HandleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters

	period, err := api.ParsePeriod(params)
	if err != nil {
		return api.Error(err.Error(), http.StatusBadRequest)
	}

	// Station descriptions end at the last complete day, so without a date
	// the stations active yesterday are listed
	date := h.clock.Now().AddDate(0, 0, -1)
	_, hasDate := params["date"]
	_, hasUTC := params["utc"]
	if hasDate || hasUTC {
		if date, err = api.ParseDate(params); err != nil {
			return api.Error(err.Error(), http.StatusBadRequest)
		}
	}

	lat, lon, err := api.ParseCoordinates(params)
	if err != nil {
		var invalidCoordErr api.InvalidCoordinatesError
		if errors.As(err, &invalidCoordErr) {
			return api.Error(err.Error(), http.StatusBadRequest)
		}
		return api.Error("Invalid parameters", http.StatusBadRequest)
	}

	list, err := h.lister.Stations(ctx, period, date, lat, lon)
	if err != nil {
		log.Error().Err(err).Str("period", period).Msg("Error listing stations")
		return api.Error("Error finding stations", statusFor(err))
	}

	return api.Success(api.NewStationsResponse(period, list))
}
