package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tailspot/internal/config"
	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
	"tailspot/internal/notifications"
	"tailspot/internal/store"
)

// Format selects a flight-log export parser.
type Format string

const (
	FormatFR24     Format = "fr24"
	FormatAirTrail Format = "airtrail"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(FormatFR24):
		return FormatFR24, nil
	case string(FormatAirTrail):
		return FormatAirTrail, nil
	}
	return "", fmt.Errorf("unknown import format %q (expected fr24 or airtrail)", name)
}

// DetectFormat infers the export format from the file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatFR24, nil
	case ".json":
		return FormatAirTrail, nil
	}
	return "", fmt.Errorf("cannot infer import format from %q; pass --format", filepath.Base(path))
}

// RowFailure records one rejected row with the reason it failed resolution.
type RowFailure struct {
	Row    int
	Reason string
}

// Report summarizes one import batch.
type Report struct {
	BatchID       string
	Format        Format
	DryRun        bool
	Rows          int
	Imported      int
	Skipped       int
	Failed        int
	Registrations []string
	JobsCreated   int
	Failures      []RowFailure
}

// Service parses flight-log exports, persists the resolved flights, and
// seeds one scrape job per new registration and enabled source.
type Service struct {
	store    *store.Store
	cfg      *config.Config
	notifier notifications.Service
	logger   *slog.Logger
}

func NewService(st *store.Store, cfg *config.Config, notifier notifications.Service, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		cfg:      cfg,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "importer"),
	}
}

// ImportFile imports the export at path, inferring the format from the
// extension when format is empty.
func (s *Service) ImportFile(ctx context.Context, path string, format Format, dryRun bool) (*Report, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer file.Close()
	return s.Import(ctx, file, format, dryRun)
}

// Import parses and resolves an export. Rows that fail resolution are
// counted and reported; they never abort the batch. A dry run stops after
// resolution: nothing is written, so the skipped and job counts stay zero
// and Imported counts every row that would resolve.
func (s *Service) Import(ctx context.Context, r io.Reader, format Format, dryRun bool) (*Report, error) {
	var (
		records []flightlog.RawRecord
		err     error
	)
	switch format {
	case FormatFR24:
		records, err = ParseFR24(r)
	case FormatAirTrail:
		records, err = ParseAirTrail(r)
	default:
		return nil, fmt.Errorf("unknown import format %q", format)
	}
	if err != nil {
		return nil, err
	}

	report := &Report{
		BatchID: uuid.NewString(),
		Format:  format,
		DryRun:  dryRun,
		Rows:    len(records),
	}

	flights := make([]flightlog.Flight, 0, len(records))
	for _, rec := range records {
		flight, err := flightlog.Resolve(rec)
		if err != nil {
			if !flightlog.IsDataQuality(err) {
				return nil, err
			}
			report.Failed++
			report.Failures = append(report.Failures, RowFailure{Row: rec.RowIndex, Reason: err.Error()})
			s.logger.Warn("flight row rejected",
				logging.Int("row", rec.RowIndex),
				logging.Error(err))
			continue
		}
		flight.BatchID = report.BatchID
		polishNames(&flight)
		flights = append(flights, flight)
	}

	if dryRun {
		report.Imported = len(flights)
		report.Registrations = registrations(flights)
		s.logger.Info("dry run complete",
			logging.String("format", string(format)),
			logging.Int("rows", report.Rows),
			logging.Int("failed", report.Failed))
		return report, nil
	}

	created := make(map[string]struct{})
	for i := range flights {
		inserted, err := s.store.InsertFlight(ctx, &flights[i])
		if err != nil {
			return nil, fmt.Errorf("insert flight: %w", err)
		}
		if !inserted {
			report.Skipped++
			continue
		}
		report.Imported++
		if reg := flights[i].Registration; reg != "" {
			created[reg] = struct{}{}
		}
	}

	now := time.Now().UTC()
	for reg := range created {
		report.Registrations = append(report.Registrations, reg)
		for _, source := range s.cfg.EnabledSources() {
			seeded, err := s.store.EnsureJob(ctx, reg, source, now)
			if err != nil {
				return nil, fmt.Errorf("seed job: %w", err)
			}
			if seeded {
				report.JobsCreated++
			}
		}
	}
	sort.Strings(report.Registrations)

	s.logger.Info("import complete",
		logging.String(logging.FieldBatchID, report.BatchID),
		logging.String("format", string(format)),
		logging.Int("imported", report.Imported),
		logging.Int("skipped", report.Skipped),
		logging.Int("failed", report.Failed),
		logging.Int("jobs_created", report.JobsCreated))

	if err := s.notifier.NotifyImportCompleted(ctx, string(format), report.Imported, report.Skipped, report.Failed); err != nil && ctx.Err() == nil {
		s.logger.Debug("import notification failed", logging.Error(err))
	}
	return report, nil
}

func registrations(flights []flightlog.Flight) []string {
	seen := make(map[string]struct{})
	for i := range flights {
		if reg := flights[i].Registration; reg != "" {
			seen[reg] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for reg := range seen {
		out = append(out, reg)
	}
	sort.Strings(out)
	return out
}

// polishNames rewrites all-caps airline and airport names to title case.
// Values with any lowercase letter pass through untouched, and aircraft
// model codes are never rewritten.
func polishNames(flight *flightlog.Flight) {
	flight.Airline = titleIfShouty(flight.Airline)
	flight.OriginName = titleIfShouty(flight.OriginName)
	flight.OriginCity = titleIfShouty(flight.OriginCity)
	flight.DestinationName = titleIfShouty(flight.DestinationName)
	flight.DestinationCity = titleIfShouty(flight.DestinationCity)
}

var titleCaser = cases.Title(language.Und)

func titleIfShouty(value string) string {
	hasLetter := false
	for _, r := range value {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return value
			}
		}
	}
	if !hasLetter {
		return value
	}
	return titleCaser.String(strings.ToLower(value))
}
