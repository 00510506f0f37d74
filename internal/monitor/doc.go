// Package monitor aggregates pipeline status for the API and CLI and owns
// the Prometheus metric definitions.
//
// Snapshots are computed on demand from the store plus live orchestrator
// state, so a few seconds of staleness is expected and fine. The orchestrator
// feeds the run counters and duration histogram directly as jobs finish;
// gauges are refreshed whenever a snapshot is taken.
package monitor
