package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tailspot/internal/importer"
	"tailspot/internal/logging"
	"tailspot/internal/notifications"
	"tailspot/internal/store"
	"tailspot/internal/testsupport"
)

func newImportService(t *testing.T) (*importer.Service, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := importer.NewService(st, cfg, notifications.NewService(cfg), logging.NewNop())
	return svc, st
}

func TestImportSeedsJobsPerEnabledSource(t *testing.T) {
	svc, st := newImportService(t)
	ctx := context.Background()

	report, err := svc.Import(ctx, strings.NewReader(fr24Export), importer.FormatFR24, false)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if report.Rows != 2 || report.Imported != 2 || report.Skipped != 0 || report.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Registrations) != 2 || report.Registrations[0] != "G-STBA" || report.Registrations[1] != "N407DX" {
		t.Fatalf("unexpected registrations %v", report.Registrations)
	}
	// Two new registrations, four sources enabled by default.
	if report.JobsCreated != 8 {
		t.Fatalf("expected 8 jobs, got %d", report.JobsCreated)
	}

	count, err := st.FlightCount(ctx)
	if err != nil {
		t.Fatalf("FlightCount returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored flights, got %d", count)
	}

	flights, err := st.FlightsByRegistration(ctx, "G-STBA")
	if err != nil {
		t.Fatalf("FlightsByRegistration returned error: %v", err)
	}
	if len(flights) != 1 || flights[0].BatchID != report.BatchID {
		t.Fatalf("stored flight should carry the batch ID %q", report.BatchID)
	}

	job, err := st.JobByKey(ctx, "G-STBA", "jetphotos")
	if err != nil {
		t.Fatalf("JobByKey returned error: %v", err)
	}
	if job == nil || job.Status != store.JobQueued {
		t.Fatalf("expected a queued job, got %+v", job)
	}
}

func TestImportIsIdempotent(t *testing.T) {
	svc, st := newImportService(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, strings.NewReader(fr24Export), importer.FormatFR24, false); err != nil {
		t.Fatalf("first import returned error: %v", err)
	}
	report, err := svc.Import(ctx, strings.NewReader(fr24Export), importer.FormatFR24, false)
	if err != nil {
		t.Fatalf("second import returned error: %v", err)
	}
	if report.Imported != 0 || report.Skipped != 2 || report.JobsCreated != 0 {
		t.Fatalf("re-import should be a no-op, got %+v", report)
	}

	count, err := st.FlightCount(ctx)
	if err != nil {
		t.Fatalf("FlightCount returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored flights after re-import, got %d", count)
	}
}

func TestImportDryRunWritesNothing(t *testing.T) {
	svc, st := newImportService(t)
	ctx := context.Background()

	report, err := svc.Import(ctx, strings.NewReader(fr24Export), importer.FormatFR24, true)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if !report.DryRun {
		t.Fatal("report should be marked as a dry run")
	}
	if report.Imported != 2 || report.JobsCreated != 0 {
		t.Fatalf("unexpected dry-run counts: %+v", report)
	}
	if len(report.Registrations) != 2 {
		t.Fatalf("dry run should still report registrations, got %v", report.Registrations)
	}

	count, err := st.FlightCount(ctx)
	if err != nil {
		t.Fatalf("FlightCount returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("dry run must not store flights, found %d", count)
	}
	jobs, err := st.ListJobs(ctx, store.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs returned error: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("dry run must not seed jobs, found %d", len(jobs))
	}
}

func TestImportCountsRowFailures(t *testing.T) {
	const export = `
Date,Flight number,From,To,Dep time,Arr time,Duration,Airline,Aircraft,Registration,Seat number,Flight class,Note
2024-03-15,BA178,New York / John F. Kennedy International (JFK/KJFK),London / Heathrow Airport (LHR/EGLL),21:30,09:25,06:55,British Airways,Boeing 777-300ER,G-STBA,34K,1,
someday,XX1,New York / John F. Kennedy International (JFK/KJFK),London / Heathrow Airport (LHR/EGLL),10:00,18:00,08:00,Mystery Air,Unknown,N111XX,1A,1,
`
	svc, st := newImportService(t)
	ctx := context.Background()

	report, err := svc.Import(ctx, strings.NewReader(export), importer.FormatFR24, false)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if report.Rows != 2 || report.Imported != 1 || report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Failures) != 1 || report.Failures[0].Row != 1 {
		t.Fatalf("unexpected failures %v", report.Failures)
	}
	if !strings.Contains(report.Failures[0].Reason, "date") {
		t.Errorf("failure reason should name the field, got %q", report.Failures[0].Reason)
	}

	count, err := st.FlightCount(ctx)
	if err != nil {
		t.Fatalf("FlightCount returned error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the good row stored, got %d flights", count)
	}
}

func TestImportPolishesShoutyNames(t *testing.T) {
	const export = `
Date,Flight number,From,To,Dep time,Arr time,Duration,Airline,Aircraft,Registration,Seat number,Flight class,Note
2024-03-15,BA178,NEW YORK / JOHN F. KENNEDY INTERNATIONAL (JFK/KJFK),London / Heathrow Airport (LHR/EGLL),21:30,09:25,06:55,BRITISH AIRWAYS,Boeing 777-300ER,G-STBA,34K,1,
`
	svc, st := newImportService(t)
	ctx := context.Background()

	if _, err := svc.Import(ctx, strings.NewReader(export), importer.FormatFR24, false); err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	flights, err := st.FlightsByRegistration(ctx, "G-STBA")
	if err != nil {
		t.Fatalf("FlightsByRegistration returned error: %v", err)
	}
	if len(flights) != 1 {
		t.Fatalf("expected 1 flight, got %d", len(flights))
	}
	flight := flights[0]
	if flight.Airline != "British Airways" {
		t.Errorf("shouty airline should be title-cased, got %q", flight.Airline)
	}
	if flight.OriginCity != "New York" || flight.OriginName != "John F. Kennedy International" {
		t.Errorf("shouty origin should be title-cased, got %q / %q", flight.OriginCity, flight.OriginName)
	}
	if flight.DestinationName != "Heathrow Airport" {
		t.Errorf("mixed-case name must pass through, got %q", flight.DestinationName)
	}
	if flight.Aircraft != "Boeing 777-300ER" {
		t.Errorf("aircraft model must never be rewritten, got %q", flight.Aircraft)
	}
}

func TestImportAirTrailCountsTimelessRows(t *testing.T) {
	svc, st := newImportService(t)
	ctx := context.Background()

	report, err := svc.Import(ctx, strings.NewReader(airTrailExport), importer.FormatAirTrail, false)
	if err != nil {
		t.Fatalf("Import returned error: %v", err)
	}
	if report.Rows != 3 || report.Imported != 2 || report.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if len(report.Registrations) != 2 {
		t.Fatalf("unexpected registrations %v", report.Registrations)
	}

	count, err := st.FlightCount(ctx)
	if err != nil {
		t.Fatalf("FlightCount returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored flights, got %d", count)
	}
}

func TestImportFileDetectsFormat(t *testing.T) {
	svc, _ := newImportService(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "flights.csv")
	if err := os.WriteFile(path, []byte(fr24Export), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	report, err := svc.ImportFile(ctx, path, "", true)
	if err != nil {
		t.Fatalf("ImportFile returned error: %v", err)
	}
	if report.Format != importer.FormatFR24 {
		t.Fatalf("expected fr24 detection, got %q", report.Format)
	}

	if _, err := svc.ImportFile(ctx, filepath.Join(t.TempDir(), "flights.txt"), "", true); err == nil {
		t.Fatal("expected error for unknown extension")
	}
}

func TestParseFormat(t *testing.T) {
	if format, err := importer.ParseFormat("AirTrail"); err != nil || format != importer.FormatAirTrail {
		t.Fatalf("ParseFormat(AirTrail) = %q, %v", format, err)
	}
	if _, err := importer.ParseFormat("excel"); err == nil {
		t.Fatal("expected error for unknown format name")
	}
}
