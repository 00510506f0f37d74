// Package store persists flights, scrape jobs, runs, and candidate photos in
// SQLite and exposes helpers for driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats queries,
// heartbeat tracking, stale-job recovery, and the status transitions the
// orchestrator depends on. Claims and completions are guarded by the job
// generation so a rescan can never lose a finished job's results to a stale
// worker, and review decisions are one-way at the SQL level.
//
// Timestamps are stored as RFC 3339 strings and calendar dates as YYYY-MM-DD
// strings; comparisons in SQL rely on their lexicographic ordering.
package store
