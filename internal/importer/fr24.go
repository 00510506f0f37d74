package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jszwec/csvutil"

	"tailspot/internal/flightlog"
)

// fr24Row mirrors the myFlightradar24 CSV header. Extra columns (Dep_id,
// Arr_id, Airline_id, Aircraft_id) are ignored by the decoder.
type fr24Row struct {
	Date         string `csv:"Date"`
	FlightNumber string `csv:"Flight number"`
	From         string `csv:"From"`
	To           string `csv:"To"`
	DepTime      string `csv:"Dep time"`
	ArrTime      string `csv:"Arr time"`
	Duration     string `csv:"Duration"`
	Airline      string `csv:"Airline"`
	Aircraft     string `csv:"Aircraft"`
	Registration string `csv:"Registration"`
	SeatNumber   string `csv:"Seat number"`
	FlightClass  string `csv:"Flight class"`
	Note         string `csv:"Note"`
}

// Airport cells look like "London / Heathrow Airport (LHR/EGLL)".
var fr24AirportRe = regexp.MustCompile(`^(.+?)\s*/\s*(.+?)\s*\((\w{3})/(\w{4})\)$`)

// Exports normally carry ISO dates; older files show regional variants.
var fr24DateLayouts = []string{time.DateOnly, "01/02/06", "01/02/2006", "02/01/2006", "02-01-2006"}

// Exports encode the cabin class numerically.
var fr24ClassNames = map[string]string{
	"1": "Economy",
	"2": "Business",
	"3": "First",
}

// ParseFR24 decodes a myFlightradar24 CSV export into raw flight-log rows.
// Exports start with a blank line before the header; leading blank lines are
// skipped.
func ParseFR24(r io.Reader) ([]flightlog.RawRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}

	lines := strings.Split(string(content), "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	cleaned := strings.Join(lines[start:], "\n")

	csvReader := csv.NewReader(strings.NewReader(cleaned))
	decoder, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	var rows []fr24Row
	if err := decoder.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	records := make([]flightlog.RawRecord, 0, len(rows))
	for i, row := range rows {
		rec := flightlog.RawRecord{
			RowIndex:      i,
			FlightDate:    normalizeFR24Date(row.Date),
			FlightNumber:  strings.TrimSpace(row.FlightNumber),
			Airline:       strings.TrimSpace(row.Airline),
			Aircraft:      strings.TrimSpace(row.Aircraft),
			Registration:  strings.TrimSpace(row.Registration),
			DepartureTime: strings.TrimSpace(row.DepTime),
			ArrivalTime:   strings.TrimSpace(row.ArrTime),
			SeatNumber:    strings.TrimSpace(row.SeatNumber),
			SeatClass:     fr24Class(row.FlightClass),
			Note:          strings.TrimSpace(row.Note),
		}
		rec.OriginCity, rec.OriginName, rec.OriginIATA, rec.OriginICAO = parseFR24Airport(row.From)
		rec.DestinationCity, rec.DestinationName, rec.DestinationIATA, rec.DestinationICAO = parseFR24Airport(row.To)
		records = append(records, rec)
	}
	return records, nil
}

// parseFR24Airport splits "City / Name (IATA/ICAO)" cells. Cells that do not
// match keep the whole text as the city so nothing is lost.
func parseFR24Airport(raw string) (city, name, iata, icao string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", "", ""
	}
	m := fr24AirportRe.FindStringSubmatch(trimmed)
	if m == nil {
		return trimmed, "", "", ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2]), m[3], m[4]
}

// normalizeFR24Date rewrites recognized date layouts to YYYY-MM-DD.
// Unrecognized values pass through for the itinerary calculator to reject.
func normalizeFR24Date(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	for _, layout := range fr24DateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.Format(time.DateOnly)
		}
	}
	return trimmed
}

func fr24Class(value string) string {
	trimmed := strings.TrimSpace(value)
	if name, ok := fr24ClassNames[trimmed]; ok {
		return name
	}
	return trimmed
}
