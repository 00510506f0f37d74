// Package daemon coordinates the long-running tailspot process.
//
// It wires configuration, the store, the source registry, the scrape
// orchestrator, the monitor, the event hub, and the HTTP API into a single
// lifecycle with flock-based locking to prevent multiple instances. Keep
// orchestration logic here: pipeline steps live in their own packages while
// the daemon focuses on startup, shutdown, and wiring order.
package daemon
