package catalog

import (
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/models"
)

// RecentWindowDays is how far before yesterday the recent archives reach.
const RecentWindowDays = 500

// floorDay truncates t to midnight UTC.
func floorDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SelectCategory maps a requested date to the archive vintage that holds it.
// Dates older than yesterday minus RecentWindowDays are historical; for periods
// publishing a now feed, dates from today on are now; everything else is recent.
func SelectCategory(p Period, requested, now time.Time) models.Category {
	today := floorDay(now)
	yesterday := today.AddDate(0, 0, -1)

	if requested.Before(yesterday.AddDate(0, 0, -RecentWindowDays)) {
		return models.CategoryHistorical
	}
	if p.HasCategory(models.CategoryNow) && !requested.Before(today) {
		return models.CategoryNow
	}
	return models.CategoryRecent
}
