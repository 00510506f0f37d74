package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tailspot/internal/config"
	"tailspot/internal/logging"
	"tailspot/internal/ratelimit"
)

// Canonical source names. They match the config section keys and the values
// stored in scrape_jobs.source.
const (
	JetPhotosName        = "jetphotos"
	PlanespottersName    = "planespotters"
	AirlinersName        = "airliners"
	AirplanePicturesName = "airplane_pictures"
)

// Names lists every supported source in canonical order.
func Names() []string {
	return []string{JetPhotosName, PlanespottersName, AirlinersName, AirplanePicturesName}
}

// Photo is one scraped result, normalized across sites.
type Photo struct {
	Source        string
	SourcePhotoID string
	PageURL       string
	ThumbnailURL  string
	Registration  string
	AirportRaw    string
	AirportCode   string
	PhotoDate     *time.Time
	Photographer  string
}

// Adapter searches one photo site for an aircraft registration. Search
// returns an empty slice when the site has no photos; errors carry one of
// the package sentinels.
type Adapter interface {
	Name() string
	Search(ctx context.Context, registration string) ([]Photo, error)
}

// Registry holds the enabled adapters keyed by source name.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds adapters for every enabled source in the config. Each
// adapter gets its own rate limiter sized from its site settings; requests
// share one HTTP client.
func NewRegistry(cfg *config.Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &http.Client{Timeout: time.Duration(cfg.Sources.RequestTimeout) * time.Second}

	registry := &Registry{adapters: make(map[string]Adapter)}
	for _, name := range Names() {
		site := cfg.Site(name)
		if site == nil || !site.Enabled {
			continue
		}
		f := fetcher{
			source:    name,
			baseURL:   strings.TrimRight(site.BaseURL, "/"),
			client:    client,
			limiter:   ratelimit.New(site.RequestsPerWindow, time.Duration(site.WindowSeconds)*time.Second),
			userAgent: cfg.Sources.UserAgent,
			logger:    logging.NewComponentLogger(logger, "sources."+name),
		}
		var adapter Adapter
		switch name {
		case JetPhotosName:
			adapter = &JetPhotos{fetcher: f}
		case PlanespottersName:
			adapter = &Planespotters{fetcher: f}
		case AirlinersName:
			adapter = &Airliners{fetcher: f, maxPages: site.MaxPages}
		case AirplanePicturesName:
			adapter = &AirplanePictures{fetcher: f}
		}
		registry.adapters[name] = adapter
		registry.order = append(registry.order, name)
	}
	return registry
}

// Get returns the adapter for a source name.
func (r *Registry) Get(name string) (Adapter, bool) {
	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Enabled lists the registered source names in canonical order.
func (r *Registry) Enabled() []string {
	return append([]string(nil), r.order...)
}

// fetcher is the request plumbing shared by all adapters: rate limiting,
// headers, status classification, HTML parsing.
type fetcher struct {
	source    string
	baseURL   string
	client    *http.Client
	limiter   *ratelimit.Limiter
	userAgent string
	logger    *slog.Logger
}

func (f *fetcher) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil)
}

func (f *fetcher) postForm(ctx context.Context, rawURL string, form url.Values) (*goquery.Document, error) {
	return f.do(ctx, http.MethodPost, rawURL, form)
}

func (f *fetcher) do(ctx context.Context, method, rawURL string, form url.Values) (*goquery.Document, error) {
	if err := f.limiter.Acquire(ctx, f.source); err != nil {
		return nil, err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, wrap(ErrStructural, f.source, "build request", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, wrap(ErrTransient, f.source, "request "+rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden:
		return nil, wrap(ErrBlocked, f.source, fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL), nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, wrap(ErrTransient, f.source, fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL), nil)
	default:
		return nil, wrap(ErrStructural, f.source, fmt.Sprintf("unexpected HTTP %d for %s", resp.StatusCode, rawURL), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, wrap(ErrStructural, f.source, "parse document", err)
	}
	return doc, nil
}

// absoluteURL resolves site-relative and scheme-relative references.
func (f *fetcher) absoluteURL(ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "/"):
		return f.baseURL + ref
	default:
		return f.baseURL + "/" + ref
	}
}

// stripQuery removes query parameters from a path or URL.
func stripQuery(ref string) string {
	if idx := strings.IndexByte(ref, '?'); idx >= 0 {
		return ref[:idx]
	}
	return ref
}
