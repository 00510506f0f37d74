package testsupport

import (
	"path/filepath"
	"testing"

	"tailspot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Scrape.PollInterval = 1
	cfg.Notifications.NtfyTopic = ""

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithConcurrency sets the scrape worker count on the test config.
func WithConcurrency(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scrape.Concurrency = workers
	}
}

// WithReviewThreshold sets the match review threshold on the test config.
func WithReviewThreshold(threshold int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Match.ReviewThreshold = threshold
	}
}

// WithSourceURL points one source site at a test server and enables it.
func WithSourceURL(name, baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		site := cfg.Site(name)
		if site == nil {
			return
		}
		site.Enabled = true
		site.BaseURL = baseURL
	}
}
