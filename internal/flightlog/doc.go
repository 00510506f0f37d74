// Package flightlog defines the normalized flight model and the itinerary
// calculator that turns raw import rows into UTC instants.
//
// Import parsers hand the calculator rows whose clock times are local to
// their airports. Resolve interprets those times in the airports' IANA
// zones, applies the overnight (red-eye) adjustment, and guarantees that
// every accepted flight satisfies UTC arrival >= UTC departure. Rows that
// cannot satisfy the guarantee are rejected with DataQualityError; rows
// whose airports are unknown are kept with degraded (UTC) precision and
// flagged instead.
package flightlog
