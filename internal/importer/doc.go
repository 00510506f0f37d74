// Package importer turns flight-log exports into stored flights and scrape
// jobs.
//
// Two formats are supported: the myFlightradar24 CSV export and the AirTrail
// JSON export. Parsers produce flightlog.RawRecord rows; the service resolves
// them to UTC itineraries, deduplicates against the store, and seeds one
// scrape job per new registration and enabled source. Row-level failures are
// counted and reported per batch, never aborting the import.
package importer
