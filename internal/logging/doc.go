// Package logging builds the slog loggers used throughout tailspot and
// defines the shared structured field names.
//
// The console format renders compact single-line output for interactive use;
// the json format suits log shippers. NewComponentLogger tags subsystem
// loggers so daemon output can be filtered per component.
package logging
