package station

import (
	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// StationLocator defines the interface for ordering stations by proximity
type StationLocator interface {
	Locate(stations []models.StationRecord, lat, lon *float64) []models.StationRecord
}
