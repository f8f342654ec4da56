package observation

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted for naive (zone-less) dates, which are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102T150405",
	"20060102T1504",
	"20060102T15",
	"20060102",
}

// ParseDate reads an ISO-like timestamp such as "2021-08-04T18:49",
// "20210804T1849" or an RFC 3339 string. The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, NewLookupError(ErrInvalidQuery, "empty date", nil)
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}

	return time.Time{}, NewLookupError(ErrInvalidQuery, fmt.Sprintf("unrecognised date %q", s), nil)
}

// DateFromEpoch converts seconds since the epoch to a UTC time.
func DateFromEpoch(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}
