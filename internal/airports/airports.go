// Package airports resolves IATA and ICAO airport codes against a bundled
// dataset and maps resolved airports to their IANA timezones.
package airports

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jszwec/csvutil"
)

//go:embed airports.csv
var datasetCSV []byte

// Airport is one row of the bundled dataset.
type Airport struct {
	IATA     string `csv:"iata"`
	ICAO     string `csv:"icao"`
	Name     string `csv:"name"`
	City     string `csv:"city"`
	Timezone string `csv:"tz"`
}

var (
	loadOnce sync.Once
	loadErr  error
	byIATA   map[string]Airport
	byICAO   map[string]Airport

	locMu  sync.Mutex
	locMap map[string]*time.Location
)

func load() {
	var rows []Airport
	if err := csvutil.Unmarshal(datasetCSV, &rows); err != nil {
		loadErr = fmt.Errorf("decode airports dataset: %w", err)
		return
	}
	byIATA = make(map[string]Airport, len(rows))
	byICAO = make(map[string]Airport, len(rows))
	for _, row := range rows {
		byIATA[row.IATA] = row
		byICAO[row.ICAO] = row
	}
}

func ensureLoaded() error {
	loadOnce.Do(load)
	return loadErr
}

// NormalizeCode trims and uppercases an airport code without resolving it.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ByIATA resolves a three-letter IATA code.
func ByIATA(code string) (Airport, bool) {
	if err := ensureLoaded(); err != nil {
		return Airport{}, false
	}
	airport, ok := byIATA[NormalizeCode(code)]
	return airport, ok
}

// ByICAO resolves a four-letter ICAO code.
func ByICAO(code string) (Airport, bool) {
	if err := ensureLoaded(); err != nil {
		return Airport{}, false
	}
	airport, ok := byICAO[NormalizeCode(code)]
	return airport, ok
}

// Lookup resolves a code in either system. Three-letter inputs are treated
// as IATA, four-letter as ICAO. A four-letter code with a leading K that the
// dataset does not know falls back to the US convention of IATA plus a K
// prefix before giving up.
func Lookup(code string) (Airport, bool) {
	normalized := NormalizeCode(code)
	switch len(normalized) {
	case 3:
		return ByIATA(normalized)
	case 4:
		if airport, ok := ByICAO(normalized); ok {
			return airport, true
		}
		if strings.HasPrefix(normalized, "K") {
			return ByIATA(normalized[1:])
		}
	}
	return Airport{}, false
}

// Canonical maps any known airport code to its IATA form so codes from
// different systems compare equal. Unknown codes come back trimmed and
// uppercased.
func Canonical(code string) string {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return ""
	}
	if airport, ok := Lookup(normalized); ok {
		return airport.IATA
	}
	return normalized
}

// Location returns the airport's IANA timezone.
func (a Airport) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return nil, fmt.Errorf("airport %s has no timezone", a.IATA)
	}
	locMu.Lock()
	defer locMu.Unlock()
	if locMap == nil {
		locMap = make(map[string]*time.Location)
	}
	if loc, ok := locMap[a.Timezone]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", a.Timezone, err)
	}
	locMap[a.Timezone] = loc
	return loc, nil
}
