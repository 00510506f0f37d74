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
	apPhotoIDPattern = regexp.MustCompile(`/photo/(\d+)`)
	apOnclickPattern = regexp.MustCompile(`location\.href='([^']+)'`)
	// Detail pages render "Sep 13th 2018 / 13.09.2018"; the numeric half is
	// the parseable one.
	apTakenDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{2})\.(\d{4})`)
)

// AirplanePictures scrapes airplane-pictures.net. The search result cards
// omit dates, so every hit costs an extra detail-page request; the shared
// limiter paces both.
type AirplanePictures struct {
	fetcher
}

func (a *AirplanePictures) Name() string { return AirplanePicturesName }

func (a *AirplanePictures) Search(ctx context.Context, registration string) ([]Photo, error) {
	canonical := flightlog.CanonicalRegistration(registration)

	form := url.Values{"apreg": {canonical}}
	doc, err := a.postForm(ctx, a.baseURL+"/search", form)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cards := doc.Find(".card.ap-card")
	if cards.Length() == 0 {
		return nil, nil
	}

	detailURLs := a.collectDetailURLs(cards)
	if len(detailURLs) == 0 {
		return nil, wrap(ErrStructural, AirplanePicturesName, "result cards present but none linked a photo", nil)
	}

	photos := make([]Photo, 0, len(detailURLs))
	for _, detailURL := range detailURLs {
		photo, err := a.fetchDetail(ctx, detailURL, canonical)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		photos = append(photos, photo)
	}

	a.logger.Info("search complete",
		logging.String(logging.FieldRegistration, canonical),
		logging.Int(logging.FieldCount, len(photos)))
	return photos, nil
}

// collectDetailURLs extracts unique photo page URLs from result cards.
// Cards link either through an onclick redirect or a plain anchor.
func (a *AirplanePictures) collectDetailURLs(cards *goquery.Selection) []string {
	var urls []string
	seen := make(map[string]struct{})

	add := func(ref string) {
		m := apPhotoIDPattern.FindStringSubmatch(ref)
		if m == nil {
			return
		}
		if _, dup := seen[m[1]]; dup {
			return
		}
		seen[m[1]] = struct{}{}
		urls = append(urls, a.absoluteURL(ref))
	}

	cards.Each(func(_ int, card *goquery.Selection) {
		if onclick, ok := card.Attr("onclick"); ok {
			if m := apOnclickPattern.FindStringSubmatch(onclick); m != nil {
				add(m[1])
				return
			}
		}
		if href, ok := card.Find(`a[href*="/photo/"]`).First().Attr("href"); ok {
			add(href)
		}
	})
	return urls
}

func (a *AirplanePictures) fetchDetail(ctx context.Context, detailURL, registration string) (Photo, error) {
	m := apPhotoIDPattern.FindStringSubmatch(detailURL)
	if m == nil {
		return Photo{}, wrap(ErrStructural, AirplanePicturesName, "detail URL missing photo id: "+detailURL, nil)
	}

	doc, err := a.get(ctx, detailURL)
	if err != nil {
		return Photo{}, err
	}

	photo := Photo{
		Source:        AirplanePicturesName,
		SourcePhotoID: m[1],
		PageURL:       detailURL,
		Registration:  registration,
	}
	if src, ok := doc.Find(`img[src*="/images/uploaded-images/"]`).First().Attr("src"); ok {
		photo.ThumbnailURL = a.absoluteURL(src)
	}

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(cells.First().Text()), ":"))
		value := strings.TrimSpace(cells.Last().Text())
		switch label {
		case "taken":
			if photo.PhotoDate == nil {
				if dm := apTakenDatePattern.FindStringSubmatch(value); dm != nil {
					raw := fmt.Sprintf("%s-%s-%s", dm[3], dm[2], dm[1])
					if date, err := time.Parse("2006-01-2", raw); err == nil {
						photo.PhotoDate = &date
					}
				}
			}
		case "iata":
			if photo.AirportCode == "" && len(value) == 3 && isAlpha(value) {
				photo.AirportCode = strings.ToUpper(value)
			}
		case "icao":
			if photo.AirportCode == "" && len(value) == 4 && isAlpha(value) {
				photo.AirportCode = strings.ToUpper(value)
			}
		case "airport":
			if photo.AirportRaw == "" {
				photo.AirportRaw = value
			}
		case "photographer":
			if photo.Photographer == "" {
				photo.Photographer = value
			}
		}
	})

	return photo, nil
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return s != ""
}
