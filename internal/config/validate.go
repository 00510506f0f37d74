package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateScrape(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSources() error {
	for _, entry := range []struct {
		name string
		site SourceSite
	}{
		{"jetphotos", c.Sources.JetPhotos},
		{"planespotters", c.Sources.Planespotters},
		{"airliners", c.Sources.Airliners},
		{"airplane_pictures", c.Sources.AirplanePictures},
	} {
		if entry.site.Enabled && entry.site.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url must be set when the source is enabled", entry.name)
		}
	}
	if len(c.EnabledSources()) == 0 {
		return errors.New("at least one source must be enabled")
	}
	return nil
}

func (c *Config) validateScrape() error {
	if c.Scrape.Concurrency < ConcurrencyMin || c.Scrape.Concurrency > ConcurrencyMax {
		return fmt.Errorf("scrape.concurrency must be between %d and %d", ConcurrencyMin, ConcurrencyMax)
	}
	if c.Scrape.MaxAttempts > 10 {
		return errors.New("scrape.max_attempts must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	}
	return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
}
