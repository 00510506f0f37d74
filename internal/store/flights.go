package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"tailspot/internal/flightlog"
)

const flightColumns = "id, batch_id, row_index, natural_key, flight_date, flight_number, airline, aircraft, registration, " +
	"origin_name, origin_city, origin_iata, origin_icao, destination_name, destination_city, destination_iata, destination_icao, " +
	"departure_time, arrival_time, departure_utc, arrival_utc, arrival_date, timezone_degraded, seat_number, seat_class, note, " +
	"created_at, updated_at"

// InsertFlight stores a normalized flight. Re-imports of the same natural key
// are ignored, making imports idempotent; the return value reports whether a
// row was actually inserted.
func (s *Store) InsertFlight(ctx context.Context, flight *flightlog.Flight) (bool, error) {
	if flight == nil {
		return false, errors.New("flight is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO flights (
            batch_id, row_index, natural_key, flight_date, flight_number, airline, aircraft, registration,
            origin_name, origin_city, origin_iata, origin_icao,
            destination_name, destination_city, destination_iata, destination_icao,
            departure_time, arrival_time, departure_utc, arrival_utc, arrival_date, timezone_degraded,
            seat_number, seat_class, note, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(natural_key) DO NOTHING`,
		flight.BatchID,
		flight.RowIndex,
		flight.NaturalKey(),
		flight.FlightDate.Format(time.DateOnly),
		nullableString(flight.FlightNumber),
		nullableString(flight.Airline),
		nullableString(flight.Aircraft),
		nullableString(flight.Registration),
		nullableString(flight.OriginName),
		nullableString(flight.OriginCity),
		nullableString(flight.OriginIATA),
		nullableString(flight.OriginICAO),
		nullableString(flight.DestinationName),
		nullableString(flight.DestinationCity),
		nullableString(flight.DestinationIATA),
		nullableString(flight.DestinationICAO),
		nullableString(flight.DepartureTime),
		nullableString(flight.ArrivalTime),
		flight.DepartureUTC.UTC().Format(time.RFC3339Nano),
		flight.ArrivalUTC.UTC().Format(time.RFC3339Nano),
		flight.ArrivalDate.Format(time.DateOnly),
		boolToInt(flight.TimezoneDegraded),
		nullableString(flight.SeatNumber),
		nullableString(flight.SeatClass),
		nullableString(flight.Note),
		timestamp,
		timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert flight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert flight rows affected: %w", err)
	}
	if affected > 0 {
		if id, err := res.LastInsertId(); err == nil {
			flight.ID = id
		}
		flight.CreatedAt = now
		flight.UpdatedAt = now
	}
	return affected > 0, nil
}

// GetFlight fetches a flight by identifier, or nil when absent.
func (s *Store) GetFlight(ctx context.Context, id int64) (*flightlog.Flight, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = ?`, id)
	flight, err := scanFlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return flight, nil
}

// FlightFilter narrows ListFlights output.
type FlightFilter struct {
	Registration string
	Year         int
}

// ListFlights returns flights newest-first, optionally filtered.
func (s *Store) ListFlights(ctx context.Context, filter FlightFilter) ([]*flightlog.Flight, error) {
	builder := squirrel.Select(flightColumns).
		From("flights").
		OrderBy("flight_date DESC", "id DESC")
	if reg := flightlog.CanonicalRegistration(filter.Registration); reg != "" {
		builder = builder.Where(squirrel.Eq{"registration": reg})
	}
	if filter.Year > 0 {
		builder = builder.Where(squirrel.Expr("substr(flight_date, 1, 4) = ?", fmt.Sprintf("%04d", filter.Year)))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flight query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	defer rows.Close()

	var flights []*flightlog.Flight
	for rows.Next() {
		flight, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, flight)
	}
	return flights, rows.Err()
}

// FlightsByRegistration returns every flight flown on one airframe, oldest
// first so scoring tie-breaks resolve deterministically.
func (s *Store) FlightsByRegistration(ctx context.Context, registration string) ([]*flightlog.Flight, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+flightColumns+` FROM flights WHERE registration = ? ORDER BY flight_date, id`,
		flightlog.CanonicalRegistration(registration),
	)
	if err != nil {
		return nil, fmt.Errorf("flights by registration: %w", err)
	}
	defer rows.Close()

	var flights []*flightlog.Flight
	for rows.Next() {
		flight, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, flight)
	}
	return flights, rows.Err()
}

// Registrations lists the distinct non-empty registrations in the flight log.
func (s *Store) Registrations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT registration FROM flights WHERE registration IS NOT NULL AND registration != '' ORDER BY registration`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var registrations []string
	for rows.Next() {
		var registration string
		if err := rows.Scan(&registration); err != nil {
			return nil, err
		}
		registrations = append(registrations, registration)
	}
	return registrations, rows.Err()
}

// FlightCount returns the number of stored flights.
func (s *Store) FlightCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM flights`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count flights: %w", err)
	}
	return count, nil
}

// DeleteFlight removes one flight. Candidates matched to it keep their rows
// with the match reference cleared.
func (s *Store) DeleteFlight(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM flights WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete flight: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ResetAll clears the flight log and everything derived from it.
func (s *Store) ResetAll(ctx context.Context) error {
	for _, table := range []string{"scrape_runs", "scrape_jobs", "candidate_photos", "flights"} {
		if _, err := s.execWithRetry(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return nil
}

func scanFlight(scanner interface{ Scan(dest ...any) error }) (*flightlog.Flight, error) {
	var (
		id              int64
		batchID         string
		rowIndex        int
		naturalKey      string
		flightDateRaw   string
		flightNumber    sql.NullString
		airline         sql.NullString
		aircraft        sql.NullString
		registration    sql.NullString
		originName      sql.NullString
		originCity      sql.NullString
		originIATA      sql.NullString
		originICAO      sql.NullString
		destName        sql.NullString
		destCity        sql.NullString
		destIATA        sql.NullString
		destICAO        sql.NullString
		departureTime   sql.NullString
		arrivalTime     sql.NullString
		departureUTCRaw string
		arrivalUTCRaw   string
		arrivalDateRaw  string
		degraded        int
		seatNumber      sql.NullString
		seatClass       sql.NullString
		note            sql.NullString
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id, &batchID, &rowIndex, &naturalKey, &flightDateRaw, &flightNumber, &airline, &aircraft, &registration,
		&originName, &originCity, &originIATA, &originICAO, &destName, &destCity, &destIATA, &destICAO,
		&departureTime, &arrivalTime, &departureUTCRaw, &arrivalUTCRaw, &arrivalDateRaw, &degraded,
		&seatNumber, &seatClass, &note, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	flight := &flightlog.Flight{
		ID:               id,
		BatchID:          batchID,
		RowIndex:         rowIndex,
		FlightNumber:     flightNumber.String,
		Airline:          airline.String,
		Aircraft:         aircraft.String,
		Registration:     registration.String,
		OriginName:       originName.String,
		OriginCity:       originCity.String,
		OriginIATA:       originIATA.String,
		OriginICAO:       originICAO.String,
		DestinationName:  destName.String,
		DestinationCity:  destCity.String,
		DestinationIATA:  destIATA.String,
		DestinationICAO:  destICAO.String,
		DepartureTime:    departureTime.String,
		ArrivalTime:      arrivalTime.String,
		TimezoneDegraded: degraded != 0,
		SeatNumber:       seatNumber.String,
		SeatClass:        seatClass.String,
		Note:             note.String,
	}

	if date, err := parseDateString(flightDateRaw); err == nil {
		flight.FlightDate = date
	}
	if date, err := parseDateString(arrivalDateRaw); err == nil {
		flight.ArrivalDate = date
	}
	if instant, err := parseTimeString(departureUTCRaw); err == nil {
		flight.DepartureUTC = instant
	}
	if instant, err := parseTimeString(arrivalUTCRaw); err == nil {
		flight.ArrivalUTC = instant
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		flight.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		flight.UpdatedAt = updated
	}
	return flight, nil
}
