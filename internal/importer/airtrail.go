package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"tailspot/internal/airports"
	"tailspot/internal/flightlog"
)

// airTrailExport is the top level of an AirTrail JSON export. Only the
// flights array is read; the users array carries nothing the log needs.
type airTrailExport struct {
	Flights airTrailFlightList `json:"flights"`
}

// airTrailFlightList also accepts the legacy export shape where flights is
// an object keyed by ID. Keyed entries decode in key order.
type airTrailFlightList []airTrailFlight

func (l *airTrailFlightList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var keyed map[string]airTrailFlight
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return err
		}
		keys := make([]string, 0, len(keyed))
		for key := range keyed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			*l = append(*l, keyed[key])
		}
		return nil
	}
	var plain []airTrailFlight
	if err := json.Unmarshal(trimmed, &plain); err != nil {
		return err
	}
	*l = plain
	return nil
}

type airTrailFlight struct {
	From            airTrailAirport `json:"from"`
	To              airTrailAirport `json:"to"`
	Date            string          `json:"date"`
	DepartureDate   string          `json:"departureDate"`
	ArrivalDate     string          `json:"arrivalDate"`
	Duration        float64         `json:"duration"`
	FlightNumber    flexString      `json:"flightNumber"`
	FlightNumberAlt flexString      `json:"flight_number"`
	Airline         flexString      `json:"airline"`
	Aircraft        flexString      `json:"aircraft"`
	AircraftType    flexString      `json:"aircraftType"`
	AircraftReg     flexString      `json:"aircraftReg"`
	Registration    flexString      `json:"registration"`
	Note            flexString      `json:"note"`
	Notes           flexString      `json:"notes"`
	SeatClass       flexString      `json:"seatClass"`
	Class           flexString      `json:"class"`
	Seats           []airTrailSeat  `json:"seats"`
}

type airTrailSeat struct {
	Seat      flexString `json:"seat"`
	Number    flexString `json:"number"`
	Class     flexString `json:"class"`
	SeatClass flexString `json:"seatClass"`
}

// airTrailAirport accepts both shapes the export uses: a bare code string
// and an object carrying icao/iata fields.
type airTrailAirport struct {
	ICAO string `json:"icao"`
	IATA string `json:"iata"`
	Name string `json:"name"`
	City string `json:"city"`
}

func (a *airTrailAirport) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var code string
		if err := json.Unmarshal(trimmed, &code); err != nil {
			return err
		}
		code = strings.TrimSpace(code)
		if len(code) == 4 {
			a.ICAO = code
		} else {
			a.IATA = code
		}
		return nil
	}
	type bare airTrailAirport
	var decoded bare
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*a = airTrailAirport(decoded)
	return nil
}

// flexString tolerates the export's loose typing: strings, numbers, null,
// and objects carrying a name/value/code field all collapse to a string.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	switch trimmed[0] {
	case '"':
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*s = flexString(value)
	case '{':
		var obj struct {
			Name  string `json:"name"`
			Value string `json:"value"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		switch {
		case obj.Name != "":
			*s = flexString(obj.Name)
		case obj.Value != "":
			*s = flexString(obj.Value)
		default:
			*s = flexString(obj.Code)
		}
	case '[':
		*s = ""
	default:
		*s = flexString(string(trimmed))
	}
	return nil
}

func (s flexString) String() string { return strings.TrimSpace(string(s)) }

func firstNonEmpty(values ...flexString) string {
	for _, value := range values {
		if trimmed := value.String(); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// ParseAirTrail decodes an AirTrail JSON export into raw flight-log rows.
// The export carries UTC instants; rows are rendered back to airport-local
// clock times, which is the shape the itinerary calculator expects. Rows
// without any usable date or times come through as-is and fail resolution
// as data-quality rejections.
func ParseAirTrail(r io.Reader) ([]flightlog.RawRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	var export airTrailExport
	if err := json.Unmarshal(content, &export); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	records := make([]flightlog.RawRecord, 0, len(export.Flights))
	for i, entry := range export.Flights {
		rec := flightlog.RawRecord{
			RowIndex:        i,
			FlightNumber:    firstNonEmpty(entry.FlightNumber, entry.FlightNumberAlt),
			Airline:         entry.Airline.String(),
			Aircraft:        firstNonEmpty(entry.Aircraft, entry.AircraftType),
			Registration:    firstNonEmpty(entry.AircraftReg, entry.Registration),
			Note:            firstNonEmpty(entry.Note, entry.Notes),
			OriginName:      entry.From.Name,
			OriginCity:      entry.From.City,
			OriginIATA:      entry.From.IATA,
			OriginICAO:      entry.From.ICAO,
			DestinationName: entry.To.Name,
			DestinationCity: entry.To.City,
			DestinationIATA: entry.To.IATA,
			DestinationICAO: entry.To.ICAO,
			SeatNumber:      seatNumber(entry.Seats),
			SeatClass:       seatClass(entry),
		}

		departure, depOK := parseAirTrailInstant(entry.DepartureDate)
		arrival, arrOK := parseAirTrailInstant(entry.ArrivalDate)
		if depOK && !arrOK && entry.Duration > 0 {
			arrival = departure.Add(time.Duration(entry.Duration) * time.Minute)
			arrOK = true
		}

		originLoc := enrichEndpoint(&rec.OriginName, &rec.OriginCity, rec.OriginIATA, rec.OriginICAO)
		destLoc := enrichEndpoint(&rec.DestinationName, &rec.DestinationCity, rec.DestinationIATA, rec.DestinationICAO)

		if depOK {
			local := departure.In(originLoc)
			rec.FlightDate = local.Format(time.DateOnly)
			rec.DepartureTime = local.Format("15:04:05")
		} else if date := strings.TrimSpace(entry.Date); date != "" {
			if len(date) >= len(time.DateOnly) {
				rec.FlightDate = date[:len(time.DateOnly)]
			} else {
				rec.FlightDate = date
			}
		}
		if arrOK {
			rec.ArrivalTime = arrival.In(destLoc).Format("15:04:05")
		}

		records = append(records, rec)
	}
	return records, nil
}

// parseAirTrailInstant accepts RFC 3339 timestamps and the naive variant
// without an offset, which the export treats as UTC.
func parseAirTrailInstant(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed.UTC(), true
	}
	if parsed, err := time.Parse("2006-01-02T15:04:05", trimmed); err == nil {
		return parsed.UTC(), true
	}
	return time.Time{}, false
}

// enrichEndpoint resolves an airport against the bundled dataset, filling
// the empty name and city fields and returning the timezone for rendering
// local clock times. Unknown airports keep UTC.
func enrichEndpoint(name, city *string, iata, icao string) *time.Location {
	for _, code := range []string{iata, icao} {
		if code == "" {
			continue
		}
		airport, ok := airports.Lookup(code)
		if !ok {
			continue
		}
		if *name == "" {
			*name = airport.Name
		}
		if *city == "" {
			*city = airport.City
		}
		if loc, err := airport.Location(); err == nil {
			return loc
		}
		return time.UTC
	}
	return time.UTC
}

func seatNumber(seats []airTrailSeat) string {
	if len(seats) == 0 {
		return ""
	}
	return firstNonEmpty(seats[0].Seat, seats[0].Number)
}

func seatClass(entry airTrailFlight) string {
	raw := ""
	if len(entry.Seats) > 0 {
		raw = firstNonEmpty(entry.Seats[0].Class, entry.Seats[0].SeatClass)
	}
	if raw == "" {
		raw = firstNonEmpty(entry.Class, entry.SeatClass)
	}
	return cabinClassName(raw)
}

// cabinClassName maps the export's snake_case cabin values to display names.
// Unrecognized values pass through title-cased.
func cabinClassName(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	switch lowered {
	case "":
		return ""
	case "economy":
		return "Economy"
	case "premium_economy":
		return "Premium Economy"
	case "business":
		return "Business"
	case "first":
		return "First"
	}
	return titleCaser.String(lowered)
}
