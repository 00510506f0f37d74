// Package api serves the daemon's HTTP surface: JSON endpoints for status,
// queue control, review, and the library, a Prometheus /metrics endpoint,
// and a websocket event stream at /api/events.
//
// The view types here are the wire contract between the daemon and the CLI;
// store and service types never cross the API boundary directly.
package api
