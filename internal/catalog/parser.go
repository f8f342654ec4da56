package catalog

import (
	"bufio"
	"bytes"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/baroalt/backend-go/internal/encoding/latin1"
	"github.com/bbernstein/baroalt/backend-go/internal/models"
	"golang.org/x/net/html"
)

// Parser turns the raw catalog documents into records.
type Parser interface {
	ParseStations(text []byte) []models.StationRecord
	ParseListing(page []byte, listingURL string, pattern *regexp.Regexp) []models.FileEntry
}

// stationLine matches one fixed-position row of a station description file.
var stationLine = regexp.MustCompile(
	`(?P<station_id>[0-9]{5}) (?P<from>[0-9]{8}) (?P<until>[0-9]{8})` +
		`\s+(?P<elevation>-?[0-9]{1,4})\s+(?P<lat>[45][0-9]\.[0-9]{4})` +
		`\s+(?P<lon>[1]?[0-9]\.[0-9]{4})\s+(?P<station_name>[A-ZÄ-Ü].*\S)` +
		`\s+(?P<state>[A-Z].*\S)`,
)

// RegexpParser parses the DWD fixed-format files with regular expressions.
type RegexpParser struct{}

func NewParser() *RegexpParser {
	return &RegexpParser{}
}

// ParseStations reads a station description file. Header and malformed lines are skipped.
func (RegexpParser) ParseStations(text []byte) []models.StationRecord {
	var stations []models.StationRecord

	scanner := bufio.NewScanner(bytes.NewReader(latin1.Decode(text)))
	for scanner.Scan() {
		station, ok := parseStationLine(scanner.Text())
		if !ok {
			continue
		}
		stations = append(stations, station)
	}

	return stations
}

func parseStationLine(line string) (models.StationRecord, bool) {
	m := namedGroups(stationLine, line)
	if m == nil {
		return models.StationRecord{}, false
	}

	from, err := time.Parse(models.DateLayout, m["from"])
	if err != nil {
		return models.StationRecord{}, false
	}
	until, err := time.Parse(models.DateLayout, m["until"])
	if err != nil {
		return models.StationRecord{}, false
	}
	elevation, err := strconv.ParseFloat(m["elevation"], 64)
	if err != nil {
		return models.StationRecord{}, false
	}
	lat, err := strconv.ParseFloat(m["lat"], 64)
	if err != nil {
		return models.StationRecord{}, false
	}
	lon, err := strconv.ParseFloat(m["lon"], 64)
	if err != nil {
		return models.StationRecord{}, false
	}

	return models.StationRecord{
		ID:        m["station_id"],
		Validity:  models.Validity{From: from, Until: until},
		Elevation: elevation,
		Latitude:  lat,
		Longitude: lon,
		Name:      m["station_name"],
		State:     m["state"],
	}, true
}

// ParseListing collects the anchors of a directory listing whose file name
// matches pattern. The href is tried first, then the anchor text.
func (RegexpParser) ParseListing(page []byte, listingURL string, pattern *regexp.Regexp) []models.FileEntry {
	var entries []models.FileEntry
	seen := make(map[string]bool)

	add := func(name string) bool {
		entry, ok := parseFileName(pattern, name, listingURL)
		if !ok {
			return false
		}
		if !seen[entry.Name] {
			seen[entry.Name] = true
			entries = append(entries, entry)
		}
		return true
	}

	z := html.NewTokenizer(bytes.NewReader(page))
	var inLink, matched bool

	for {
		tokenType := z.Next()

		switch tokenType {
		case html.ErrorToken:
			return entries
		case html.StartTagToken:
			token := z.Token()
			if token.Data != "a" {
				continue
			}
			inLink = true
			matched = false
			for _, attr := range token.Attr {
				if attr.Key == "href" {
					matched = add(path.Base(strings.TrimSpace(attr.Val)))
				}
			}
		case html.TextToken:
			if inLink && !matched {
				matched = add(strings.TrimSpace(string(z.Text())))
			}
		case html.EndTagToken:
			if z.Token().Data == "a" {
				inLink = false
			}
		default:
			continue
		}
	}
}

func parseFileName(pattern *regexp.Regexp, name, listingURL string) (models.FileEntry, bool) {
	m := namedGroups(pattern, name)
	if m == nil || m["station_id"] == "" {
		return models.FileEntry{}, false
	}

	entry := models.FileEntry{
		StationID: m["station_id"],
		Name:      name,
		URL:       listingURL + name,
	}

	if m["from"] != "" && m["until"] != "" {
		from, err := time.Parse(models.DateLayout, m["from"])
		if err != nil {
			return models.FileEntry{}, false
		}
		until, err := time.Parse(models.DateLayout, m["until"])
		if err != nil {
			return models.FileEntry{}, false
		}
		entry.Range = &models.Validity{From: from, Until: until}
	}

	return entry, true
}

// namedGroups returns the named submatches of re in s, or nil without a match.
func namedGroups(re *regexp.Regexp, s string) map[string]string {
	match := re.FindStringSubmatch(s)
	if match == nil {
		return nil
	}
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" {
			out[name] = match[i]
		}
	}
	return out
}
