package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeScrape()
	c.normalizeMatch()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		if value, ok := os.LookupEnv("TAILSPOT_API_BIND"); ok {
			c.Paths.APIBind = strings.TrimSpace(value)
		}
	}
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeSources() {
	if c.Sources.RequestTimeout <= 0 {
		c.Sources.RequestTimeout = defaultRequestTimeout
	}
	c.Sources.UserAgent = strings.TrimSpace(c.Sources.UserAgent)
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = defaultUserAgent
	}
	for _, site := range []*SourceSite{
		&c.Sources.JetPhotos,
		&c.Sources.Planespotters,
		&c.Sources.Airliners,
		&c.Sources.AirplanePictures,
	} {
		site.BaseURL = strings.TrimRight(strings.TrimSpace(site.BaseURL), "/")
		if site.RequestsPerWindow <= 0 {
			site.RequestsPerWindow = defaultRequestsPerWindow
		}
		if site.WindowSeconds <= 0 {
			site.WindowSeconds = defaultWindowSeconds
		}
		if site.MaxPages < 0 {
			site.MaxPages = 0
		}
	}
}

func (c *Config) normalizeScrape() {
	c.Scrape.Concurrency = ClampConcurrency(c.Scrape.Concurrency)
	if c.Scrape.MaxAttempts <= 0 {
		c.Scrape.MaxAttempts = defaultMaxAttempts
	}
	if c.Scrape.RetryBackoff <= 0 {
		c.Scrape.RetryBackoff = defaultRetryBackoff
	}
	if c.Scrape.RetryBackoffMax < c.Scrape.RetryBackoff {
		c.Scrape.RetryBackoffMax = defaultRetryBackoffMax
	}
	if c.Scrape.PollInterval <= 0 {
		c.Scrape.PollInterval = defaultPollInterval
	}
	c.Scrape.RescanIntervalHours = snapRescanInterval(c.Scrape.RescanIntervalHours)
	if c.Scrape.HeartbeatInterval <= 0 {
		c.Scrape.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Scrape.HeartbeatTimeout <= c.Scrape.HeartbeatInterval {
		c.Scrape.HeartbeatTimeout = defaultHeartbeatTimeout
	}
}

func (c *Config) normalizeMatch() {
	if c.Match.DateWindowDays < 0 {
		c.Match.DateWindowDays = defaultDateWindowDays
	}
	if c.Match.ReviewThreshold < 0 || c.Match.ReviewThreshold > 100 {
		c.Match.ReviewThreshold = defaultReviewThreshold
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("TAILSPOT_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// ClampConcurrency bounds a worker pool size to the accepted range. Zero or
// negative values fall back to the default.
func ClampConcurrency(n int) int {
	if n == 0 {
		return defaultConcurrency
	}
	if n < ConcurrencyMin {
		return ConcurrencyMin
	}
	if n > ConcurrencyMax {
		return ConcurrencyMax
	}
	return n
}

func snapRescanInterval(hours int) int {
	for _, allowed := range RescanIntervals {
		if hours == allowed {
			return hours
		}
	}
	return defaultRescanIntervalHours
}
