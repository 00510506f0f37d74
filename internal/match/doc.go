// Package match scores candidate photos against the flight log.
//
// Registration equality is the join key and a precondition, so every pair
// starts from a fixed base weight. Airport agreement and date proximity add
// the rest: the airport component compares codes across IATA and ICAO, and
// the date component halves per day of distance from the departure date
// until a configurable window cuts it off. Scores are clamped to [0, 100]
// and the best flight is recorded on the candidate.
//
// Scoring is deterministic: rescoring the same data always yields the same
// winner (ties go to the earliest departure, then the lowest flight ID), so
// rescans and flight edits can recompute freely without churning review
// decisions.
package match
