package config

const (
	defaultDataDir = "~/.local/share/tailspot"
	defaultLogDir  = "~/.local/share/tailspot/logs"
	defaultAPIBind = "127.0.0.1:7445"

	defaultRequestTimeout = 30
	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

	defaultRequestsPerWindow = 30
	defaultWindowSeconds     = 60
	defaultAirlinersMaxPages = 5

	defaultConcurrency         = 3
	defaultMaxAttempts         = 3
	defaultRetryBackoff        = 5
	defaultRetryBackoffMax     = 120
	defaultPollInterval        = 2
	defaultRescanIntervalHours = 168
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 600

	defaultDateWindowDays  = 3
	defaultReviewThreshold = 75

	defaultNotifyRequestTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	// ConcurrencyMin and ConcurrencyMax bound the worker pool size.
	ConcurrencyMin = 1
	ConcurrencyMax = 10
)

// RescanIntervals lists the accepted rescan cadences in hours. Zero disables
// periodic rescans.
var RescanIntervals = []int{0, 24, 72, 168, 336, 720}

// Default returns a Config populated with repository defaults.
func Default() Config {
	site := func(base string) SourceSite {
		return SourceSite{
			Enabled:           true,
			BaseURL:           base,
			RequestsPerWindow: defaultRequestsPerWindow,
			WindowSeconds:     defaultWindowSeconds,
		}
	}
	airliners := site("https://www.airliners.net")
	airliners.MaxPages = defaultAirlinersMaxPages

	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Sources: Sources{
			RequestTimeout:   defaultRequestTimeout,
			UserAgent:        defaultUserAgent,
			JetPhotos:        site("https://www.jetphotos.com"),
			Planespotters:    site("https://www.planespotters.net"),
			Airliners:        airliners,
			AirplanePictures: site("https://www.airplane-pictures.net"),
		},
		Scrape: Scrape{
			Concurrency:         defaultConcurrency,
			MaxAttempts:         defaultMaxAttempts,
			RetryBackoff:        defaultRetryBackoff,
			RetryBackoffMax:     defaultRetryBackoffMax,
			PollInterval:        defaultPollInterval,
			RescanIntervalHours: defaultRescanIntervalHours,
			HeartbeatInterval:   defaultHeartbeatInterval,
			HeartbeatTimeout:    defaultHeartbeatTimeout,
		},
		Match: Match{
			DateWindowDays:  defaultDateWindowDays,
			ReviewThreshold: defaultReviewThreshold,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Imports:        true,
			Scraping:       true,
			Review:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
