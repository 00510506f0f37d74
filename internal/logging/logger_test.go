package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tailspot/internal/logging"
)

func TestNewConsoleWritesComponentPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	scoped := logging.NewComponentLogger(logger, "scraper")
	scoped.Info("job finished", logging.String(logging.FieldRegistration, "N506DN"), logging.Int(logging.FieldCount, 4))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO scraper: job finished") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "registration=N506DN") || !strings.Contains(line, "count=4") {
		t.Fatalf("expected attrs in log line: %q", line)
	}
}

func TestNewJSONLowercasesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Warn("slow response", logging.String(logging.FieldSource, "jetphotos"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"level":"warn"`) {
		t.Fatalf("expected lowercase level in %q", string(data))
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("ignored")
	logger.Warn("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "ignored") {
		t.Fatalf("info line should have been filtered: %q", string(data))
	}
	if !strings.Contains(string(data), "kept") {
		t.Fatalf("warn line missing: %q", string(data))
	}
}
