package station

import (
	"math"
	"sort"

	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/geodesic"
)

// Locator orders stations by geodesic distance to a point. The zero value is
// ready to use.
type Locator struct{}

func NewLocator() *Locator {
	return &Locator{}
}

// Locate returns copies of stations annotated with their distance in meters,
// nearest first. Ties keep their input order. Without both coordinates the
// input is returned unchanged.
func (l *Locator) Locate(stations []models.StationRecord, lat, lon *float64) []models.StationRecord {
	if lat == nil || lon == nil {
		return stations
	}

	out := make([]models.StationRecord, len(stations))
	for i, s := range stations {
		meters := Distance(*lat, *lon, s.Latitude, s.Longitude)
		out[i] = s.WithDistance(int64(math.Round(meters)))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].Distance < *out[j].Distance
	})

	log.Trace().Int("station_count", len(out)).Msg("Located stations")

	return out
}

// Distance returns the geodesic distance in meters between two points on the
// WGS84 ellipsoid.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	var meters float64
	geodesic.WGS84.Inverse(lat1, lon1, lat2, lon2, &meters, nil, nil)
	return meters
}
