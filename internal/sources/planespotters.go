package sources

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tailspot/internal/flightlog"
	"tailspot/internal/logging"
)

// Matches "Name (IATA / ICAO)" airport captions.
var planespottersAirportPattern = regexp.MustCompile(`\(([A-Z]{3})\s*/\s*([A-Z]{4})\)`)

// Planespotters scrapes planespotters.net photo search pages. The site
// accepts hyphenated registrations directly.
type Planespotters struct {
	fetcher
}

func (p *Planespotters) Name() string { return PlanespottersName }

func (p *Planespotters) Search(ctx context.Context, registration string) ([]Photo, error) {
	canonical := flightlog.CanonicalRegistration(registration)

	doc, err := p.get(ctx, p.baseURL+"/photos/reg/"+canonical)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cards := doc.Find(".photo-card-clickable")
	if cards.Length() == 0 {
		return nil, nil
	}

	photos := make([]Photo, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		photoID, ok := card.Attr("id")
		if !ok || photoID == "" {
			return
		}
		photo := Photo{
			Source:        PlanespottersName,
			SourcePhotoID: photoID,
			Registration:  canonical,
		}

		if path, ok := card.Attr("data-photo-url"); ok && path != "" {
			photo.PageURL = p.absoluteURL(stripQuery(path))
		} else {
			photo.PageURL = p.baseURL + "/photo/" + photoID
		}
		if src, ok := card.Find("img").First().Attr("src"); ok {
			photo.ThumbnailURL = p.absoluteURL(src)
		}
		if credit := strings.TrimSpace(card.Find(".drop-shadow-lg").First().Text()); credit != "" {
			photo.Photographer = strings.TrimSpace(strings.TrimPrefix(credit, "©"))
		}

		airportLink := card.Find(`a[href*="/photos/airport/"]`).First()
		if airportLink.Length() > 0 {
			caption, _ := airportLink.Attr("title")
			if caption == "" {
				caption = airportLink.Text()
			}
			caption = strings.TrimSpace(caption)
			photo.AirportRaw = caption
			if m := planespottersAirportPattern.FindStringSubmatch(caption); m != nil {
				photo.AirportCode = m[1]
			}
		}

		photo.PhotoDate = parsePlanespottersDate(card)
		photos = append(photos, photo)
	})

	if len(photos) == 0 {
		return nil, wrap(ErrStructural, PlanespottersName, "photo cards present but none parsed", nil)
	}
	p.logger.Info("search complete",
		logging.String(logging.FieldRegistration, canonical),
		logging.Int(logging.FieldCount, len(photos)))
	return photos, nil
}

// parsePlanespottersDate assembles a date from the day/month/year link trio.
// Some photos carry only month and year; those resolve to the first of the
// month.
func parsePlanespottersDate(card *goquery.Selection) *time.Time {
	var parts []string
	card.Find(`a[href*="/photos/date/"]`).Each(func(_ int, link *goquery.Selection) {
		if text := strings.TrimSpace(link.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	var raw string
	switch {
	case len(parts) >= 3:
		raw = parts[0] + " " + parts[1] + " " + parts[2]
	case len(parts) == 2:
		raw = "1 " + parts[0] + " " + parts[1]
	default:
		return nil
	}
	date, err := time.Parse("2 January 2006", raw)
	if err != nil {
		return nil
	}
	return &date
}
