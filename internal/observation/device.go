package observation

import (
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// ManualBarometer is the device type of the conventional mercury barometer.
const ManualBarometer = "Stationsbarometer"

// ResolveDevice picks the record describing the sensor active at date. Among
// several valid devices the manual barometers are discarded. Without a
// remaining device the first valid elevation record is used.
func ResolveDevice(bundle *models.ArchiveBundle, date time.Time) (models.DeviceRecord, bool) {
	if bundle == nil {
		return models.DeviceRecord{}, false
	}

	var candidates []models.DeviceRecord
	for _, d := range bundle.DeviceHistory {
		if d.Validity.Contains(date) {
			candidates = append(candidates, d)
		}
	}

	if len(candidates) > 1 {
		automated := candidates[:0]
		for _, d := range candidates {
			if d.DeviceName != ManualBarometer {
				automated = append(automated, d)
			}
		}
		candidates = automated
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}

	for _, e := range bundle.ElevationHistory {
		if e.Validity.Contains(date) {
			return e, true
		}
	}

	return models.DeviceRecord{}, false
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// SelectWindow returns [date-bounds, date+bounds) when bounds is set and the
// validity of the active device otherwise.
func SelectWindow(date time.Time, bounds *time.Duration, device models.DeviceRecord) Window {
	if bounds != nil {
		return Window{Start: date.Add(-*bounds), End: date.Add(*bounds)}
	}
	return Window{Start: device.Validity.From, End: device.Validity.End()}
}

// Trim keeps the observations inside w.
func Trim(rows []models.Observation, w Window) []models.Observation {
	out := make([]models.Observation, 0, len(rows))
	for _, r := range rows {
		if w.Contains(r.Time) {
			out = append(out, r)
		}
	}
	return out
}
