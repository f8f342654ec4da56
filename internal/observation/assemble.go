package observation

import (
	"math"

	"github.com/bbernstein/baroalt/backend-go/internal/catalog"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"github.com/bbernstein/baroalt/backend-go/internal/physics"
)

// Assemble derives the complementary pressure for every row using the geopotential
// height of the station and returns the result bundle. The station is expected
// to carry the active device already.
func Assemble(period catalog.Period, station models.StationRecord, category models.Category, rows []models.Observation) *models.ResultBundle {
	data := make([]models.Observation, len(rows))
	copy(data, rows)

	if seriesValid(period.Derivation, data) {
		h := physics.GeopotentialHeight(station.Elevation, station.Latitude)
		for i := range data {
			data[i].DerivedPressure = derive(period.Derivation, data[i], h)
		}
	}

	return &models.ResultBundle{
		Station:  station,
		Category: category,
		Data:     data,
	}
}

// sourcePressure is the input of the derivation for a row, or Missing.
func sourcePressure(d catalog.Derivation, o models.Observation) float64 {
	switch d {
	case catalog.DeriveQFE:
		if o.Pressure == nil {
			return models.Missing
		}
		return *o.Pressure
	default:
		return o.StationPressure
	}
}

// seriesValid is false when the source pressure is missing throughout the series.
func seriesValid(d catalog.Derivation, rows []models.Observation) bool {
	highest := math.Inf(-1)
	for _, o := range rows {
		highest = math.Max(highest, sourcePressure(d, o))
	}
	return highest != models.Missing && !math.IsInf(highest, -1)
}

func derive(d catalog.Derivation, o models.Observation, h float64) *float64 {
	p := sourcePressure(d, o)
	if p == models.Missing || o.Temperature == models.Missing || o.Humidity == models.Missing {
		return nil
	}

	var v float64
	switch d {
	case catalog.DeriveQFE:
		v = physics.QFEFromQFF(p, h, o.Temperature, o.Humidity)
	default:
		v = physics.QFFFromQFE(p, h, o.Temperature, o.Humidity)
	}
	v = round2(v)
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
