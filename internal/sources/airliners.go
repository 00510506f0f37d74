package sources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
)

var (
	airlinersMonthDatePattern = regexp.MustCompile(
		`(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2}),?\s*(\d{4})`)
	airlinersIATAPattern    = regexp.MustCompile(`\(([A-Z]{3})\s*/\s*[A-Z]{4}\)`)
	airlinersPhotoIDPattern = regexp.MustCompile(`/(\d+)(\?|$)`)
)

// Airliners scrapes airliners.net search results, following pagination up to
// maxPages.
type Airliners struct {
	fetcher
	maxPages int
}

func (a *Airliners) Name() string { return AirlinersName }

func (a *Airliners) Search(ctx context.Context, registration string) ([]Photo, error) {
	canonical := flightlog.CanonicalRegistration(registration)
	maxPages := a.maxPages
	if maxPages <= 0 {
		maxPages = 5
	}

	var photos []Photo
	for page := 1; page <= maxPages; page++ {
		pageURL := fmt.Sprintf("%s/search?registrationActual=%s&page=%d", a.baseURL, url.QueryEscape(canonical), page)
		doc, err := a.get(ctx, pageURL)
		if errors.Is(err, errNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}

		rows := doc.Find(".ps-v2-results-display-detail-col")
		if rows.Length() == 0 {
			break
		}

		parsed := 0
		rows.Each(func(_ int, row *goquery.Selection) {
			if photo, ok := a.parseRow(row, canonical); ok {
				photos = append(photos, photo)
				parsed++
			}
		})
		if parsed == 0 {
			return nil, wrap(ErrStructural, AirlinersName, "result rows present but none parsed", nil)
		}

		next := doc.Find(`a[rel="next"]`)
		if next.Length() == 0 {
			next = doc.Find(".ps-v2-results-pagination-next a")
		}
		if next.Length() == 0 {
			break
		}
	}

	a.logger.Info("search complete",
		logging.String(logging.FieldRegistration, canonical),
		logging.Int(logging.FieldCount, len(photos)))
	return photos, nil
}

func (a *Airliners) parseRow(row *goquery.Selection, registration string) (Photo, bool) {
	link := row.Find(`a[href*="/photo/"]`).First()
	if link.Length() == 0 {
		return Photo{}, false
	}
	href, _ := link.Attr("href")
	m := airlinersPhotoIDPattern.FindStringSubmatch(href)
	if m == nil {
		return Photo{}, false
	}

	photo := Photo{
		Source:        AirlinersName,
		SourcePhotoID: m[1],
		PageURL:       a.absoluteURL(stripQuery(href)),
		Registration:  registration,
	}

	img := row.Find(`img[src*="imgproc"]`).First()
	if img.Length() > 0 {
		if src, ok := img.Attr("src"); ok {
			photo.ThumbnailURL = a.absoluteURL(src)
		}
	} else if src, ok := row.Find(`img[data-src*="imgproc"]`).First().Attr("data-src"); ok {
		photo.ThumbnailURL = a.absoluteURL(src)
	}

	row.Find(".ps-v2-results-col").Each(func(_ int, col *goquery.Selection) {
		text := strings.TrimSpace(col.Text())
		if text == "" {
			return
		}
		if photo.AirportCode == "" {
			if am := airlinersIATAPattern.FindStringSubmatch(text); am != nil {
				photo.AirportCode = am[1]
				photo.AirportRaw = text
			}
		}
		if photo.PhotoDate == nil {
			if dm := airlinersMonthDatePattern.FindStringSubmatch(text); dm != nil {
				raw := fmt.Sprintf("%s %s, %s", dm[1], dm[2], dm[3])
				if date, err := time.Parse("January 2, 2006", raw); err == nil {
					photo.PhotoDate = &date
				}
			}
		}
		if photo.Photographer == "" && strings.Contains(text, "Photographer") {
			name := strings.TrimSpace(strings.ReplaceAll(text, "Photographer", ""))
			if idx := strings.IndexByte(name, '\n'); idx >= 0 {
				name = strings.TrimSpace(name[:idx])
			}
			photo.Photographer = name
		}
	})

	return photo, true
}
