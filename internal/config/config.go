package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths describes filesystem locations and the API bind address.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// SourceSite holds per-site scraping settings.
type SourceSite struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	RequestsPerWindow int    `toml:"requests_per_window"`
	WindowSeconds     int    `toml:"window_seconds"`
	MaxPages          int    `toml:"max_pages"`
}

// Sources groups the photo sites and shared HTTP client settings.
type Sources struct {
	RequestTimeout   int        `toml:"request_timeout"`
	UserAgent        string     `toml:"user_agent"`
	JetPhotos        SourceSite `toml:"jetphotos"`
	Planespotters    SourceSite `toml:"planespotters"`
	Airliners        SourceSite `toml:"airliners"`
	AirplanePictures SourceSite `toml:"airplane_pictures"`
}

// Scrape contains orchestrator tuning knobs.
type Scrape struct {
	Concurrency         int `toml:"concurrency"`
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoff        int `toml:"retry_backoff"`
	RetryBackoffMax     int `toml:"retry_backoff_max"`
	PollInterval        int `toml:"poll_interval"`
	RescanIntervalHours int `toml:"rescan_interval_hours"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
	HeartbeatTimeout    int `toml:"heartbeat_timeout"`
}

// Match contains scoring thresholds.
type Match struct {
	DateWindowDays  int `toml:"date_window_days"`
	ReviewThreshold int `toml:"review_threshold"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Imports        bool   `toml:"imports"`
	Scraping       bool   `toml:"scraping"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Logging controls log output format and verbosity.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for tailspot.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Sources: per-site scraping toggles, rate windows, HTTP client settings
//   - Scrape: orchestrator concurrency, retries, rescan cadence
//   - Match: scoring window and review threshold
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sources       Sources       `toml:"sources"`
	Scrape        Scrape        `toml:"scrape"`
	Match         Match         `toml:"match"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tailspot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A missing file yields pure defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tailspot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "tailspot.db")
}

// LockFilePath returns the daemon single-instance lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "tailspot.lock")
}

// Site returns the settings for a named source, or nil when unknown.
func (c *Config) Site(name string) *SourceSite {
	switch name {
	case "jetphotos":
		return &c.Sources.JetPhotos
	case "planespotters":
		return &c.Sources.Planespotters
	case "airliners":
		return &c.Sources.Airliners
	case "airplane_pictures":
		return &c.Sources.AirplanePictures
	}
	return nil
}

// EnabledSources lists the source names switched on in configuration,
// in stable order.
func (c *Config) EnabledSources() []string {
	names := make([]string, 0, 4)
	for _, name := range []string{"jetphotos", "planespotters", "airliners", "airplane_pictures"} {
		if site := c.Site(name); site != nil && site.Enabled {
			names = append(names, name)
		}
	}
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
