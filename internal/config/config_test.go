package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tailspot/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "tailspot")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7445" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Scrape.Concurrency != 3 {
		t.Fatalf("unexpected default concurrency: %d", cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.RescanIntervalHours != 168 {
		t.Fatalf("unexpected rescan interval: %d", cfg.Scrape.RescanIntervalHours)
	}
	if cfg.Match.ReviewThreshold != 75 {
		t.Fatalf("unexpected review threshold: %d", cfg.Match.ReviewThreshold)
	}
	if got := cfg.EnabledSources(); len(got) != 4 {
		t.Fatalf("expected all four sources enabled by default, got %v", got)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "tailspot.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[paths]
data_dir = "~/tailspot-data"

[scrape]
concurrency = 99
rescan_interval_hours = 91

[sources.jetphotos]
enabled = true
base_url = "https://example.test/"
requests_per_window = 5
window_seconds = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatalf("expected config file to resolve, got exists=%v path=%q", exists, resolved)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "tailspot-data") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Paths.DataDir)
	}
	if cfg.Scrape.Concurrency != config.ConcurrencyMax {
		t.Fatalf("expected concurrency clamped to %d, got %d", config.ConcurrencyMax, cfg.Scrape.Concurrency)
	}
	if cfg.Scrape.RescanIntervalHours != 168 {
		t.Fatalf("expected off-menu rescan interval snapped to default, got %d", cfg.Scrape.RescanIntervalHours)
	}
	if cfg.Sources.JetPhotos.BaseURL != "https://example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Sources.JetPhotos.BaseURL)
	}
	if cfg.Sources.JetPhotos.RequestsPerWindow != 5 || cfg.Sources.JetPhotos.WindowSeconds != 10 {
		t.Fatalf("expected site rate overrides preserved, got %+v", cfg.Sources.JetPhotos)
	}
	// Untouched sites keep defaults.
	if cfg.Sources.Airliners.MaxPages != 5 {
		t.Fatalf("expected airliners page cap default, got %d", cfg.Sources.Airliners.MaxPages)
	}
}

func TestValidateRejectsEnabledSourceWithoutBaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.JetPhotos.BaseURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for enabled source without base_url")
	}
}

func TestValidateRejectsAllSourcesDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.JetPhotos.Enabled = false
	cfg.Sources.Planespotters.Enabled = false
	cfg.Sources.Airliners.Enabled = false
	cfg.Sources.AirplanePictures.Enabled = false
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when every source is disabled")
	}
}

func TestCreateSampleWritesEmbeddedTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected sample config content")
	}
}

func TestSiteLookup(t *testing.T) {
	cfg := config.Default()
	if cfg.Site("jetphotos") == nil {
		t.Fatal("expected jetphotos site settings")
	}
	if cfg.Site("unknown") != nil {
		t.Fatal("expected nil for unknown source name")
	}
}
