// Package main hosts the tailspot CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the daemon's HTTP API when one is
// running and falls back to direct SQLite access for reads and queue
// maintenance when it is not. It centralizes configuration resolution, API
// address discovery, and table rendering so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
