package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/observation"
)

type APIResponse struct {
	ResponseType string `json:"responseType"`
}

func (r APIResponse) GetResponseType() string {
	return r.ResponseType
}

type StationsResponse struct {
	APIResponse
	Period   string                 `json:"period"`
	Category models.Category        `json:"category"`
	Stations []models.StationRecord `json:"stations"`
}

type ObservationsResponse struct {
	APIResponse
	Period   string                   `json:"period"`
	Category models.Category          `json:"category"`
	Station  models.StationRecord     `json:"station"`
	Data     []models.Observation     `json:"data,omitempty"`
	Table    *models.ObservationTable `json:"table,omitempty"`
}

type ErrorResponse struct {
	APIResponse
	Error string `json:"error"`
}

func NewStationsResponse(period string, list *models.StationList) *StationsResponse {
	return &StationsResponse{
		APIResponse: APIResponse{ResponseType: "stations"},
		Period:      period,
		Category:    list.Category,
		Stations:    list.Stations,
	}
}

// NewObservationsResponse renders the series as rows, or as columns when asTable is set.
func NewObservationsResponse(period string, result *models.ResultBundle, asTable bool) *ObservationsResponse {
	resp := &ObservationsResponse{
		APIResponse: APIResponse{ResponseType: "observations"},
		Period:      period,
		Category:    result.Category,
		Station:     result.Station,
	}
	if asTable {
		table := result.Table()
		resp.Table = &table
	} else {
		resp.Data = result.Data
	}
	return resp
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{
		APIResponse: APIResponse{ResponseType: "error"},
		Error:       message,
	}
}

// Response helpers
func Success(body interface{}) (events.APIGatewayProxyResponse, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return Error("Internal Server Error", http.StatusInternalServerError)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(jsonBody),
	}, nil
}

func Error(message string, statusCode int) (events.APIGatewayProxyResponse, error) {
	body, _ := json.Marshal(NewErrorResponse(message))

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}, nil
}

// Parameter parsing helpers

// ParseCoordinates returns nil coordinates when neither lat nor lon is given.
func ParseCoordinates(params map[string]string) (*float64, *float64, error) {
	latStr, hasLat := params["lat"]
	lonStr, hasLon := params["lon"]

	if !hasLat && !hasLon {
		return nil, nil, nil
	}
	if !hasLat || !hasLon {
		return nil, nil, InvalidCoordinatesError{}
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, nil, err
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, nil, err
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, nil, InvalidCoordinatesError{}
	}

	return &lat, &lon, nil
}

// ParseDate reads either an ISO-like "date" or integer epoch seconds in "utc".
func ParseDate(params map[string]string) (time.Time, error) {
	if epoch, ok := params["utc"]; ok {
		seconds, err := strconv.ParseInt(strings.TrimSpace(epoch), 10, 64)
		if err != nil {
			return time.Time{}, InvalidParameterError{Name: "utc"}
		}
		return observation.DateFromEpoch(seconds), nil
	}

	s, ok := params["date"]
	if !ok {
		return time.Time{}, InvalidParameterError{Name: "date"}
	}
	date, err := observation.ParseDate(s)
	if err != nil {
		return time.Time{}, InvalidParameterError{Name: "date"}
	}
	return date, nil
}

// ParseBounds reads the half-width of the result window in minutes.
func ParseBounds(params map[string]string) (*time.Duration, error) {
	s, ok := params["bounds"]
	if !ok {
		return nil, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || minutes < 0 {
		return nil, InvalidParameterError{Name: "bounds"}
	}
	bounds := time.Duration(minutes) * time.Minute
	return &bounds, nil
}

// ParseTableFormat reports whether the columnar form was requested.
func ParseTableFormat(params map[string]string) (bool, error) {
	switch params["format"] {
	case "", "records":
		return false, nil
	case "table":
		return true, nil
	default:
		return false, InvalidParameterError{Name: "format"}
	}
}

// ParsePeriod defaults to the hourly feed.
func ParsePeriod(params map[string]string) (string, error) {
	period, ok := params["period"]
	if !ok || period == "" {
		return catalog.PeriodHourly, nil
	}
	if _, known := catalog.Periods[period]; !known {
		return "", InvalidParameterError{Name: "period"}
	}
	return period, nil
}

type InvalidCoordinatesError struct{}

func (e InvalidCoordinatesError) Error() string {
	return "Invalid coordinates"
}

type InvalidParameterError struct {
	Name string
}

func (e InvalidParameterError) Error() string {
	return fmt.Sprintf("Invalid %s", e.Name)
}
