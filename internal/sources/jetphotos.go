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

var (
	jetphotosICAOPattern = regexp.MustCompile(`- ([A-Z]{4})(?:,|\s)`)
	isoDatePattern       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

// JetPhotos scrapes jetphotos.com registration pages. The site sits behind
// Cloudflare and rejects non-browser clients with 403, which surfaces as
// ErrBlocked.
type JetPhotos struct {
	fetcher
}

func (j *JetPhotos) Name() string { return JetPhotosName }

func (j *JetPhotos) Search(ctx context.Context, registration string) ([]Photo, error) {
	canonical := flightlog.CanonicalRegistration(registration)
	// JetPhotos URLs use hyphenless registrations.
	slug := strings.ReplaceAll(canonical, "-", "")

	doc, err := j.get(ctx, j.baseURL+"/registration/"+slug)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cards := doc.Find(".result[data-photo]")
	if cards.Length() == 0 {
		return nil, nil
	}

	photos := make([]Photo, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		photoID, ok := card.Attr("data-photo")
		if !ok || photoID == "" {
			return
		}
		photo := Photo{
			Source:        JetPhotosName,
			SourcePhotoID: photoID,
			PageURL:       j.baseURL + "/photo/" + photoID,
			Registration:  canonical,
		}
		if src, ok := card.Find(".result__photo").First().Attr("src"); ok {
			photo.ThumbnailURL = j.absoluteURL(src)
		}
		photo.Photographer = strings.TrimSpace(card.Find(".result__infoListText--photographer a").First().Text())

		card.Find(".desktop-only.desktop-only--block li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			text := strings.TrimSpace(li.Text())
			if !strings.HasPrefix(text, "Photo date:") {
				return true
			}
			if raw := isoDatePattern.FindString(text); raw != "" {
				if date, err := time.Parse(time.DateOnly, raw); err == nil {
					photo.PhotoDate = &date
				}
			}
			return false
		})

		card.Find(".result__section--info2-wrapper li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
			text := strings.TrimSpace(li.Text())
			if !strings.HasPrefix(text, "Location:") {
				return true
			}
			photo.AirportRaw = strings.TrimSpace(strings.TrimPrefix(text, "Location:"))
			if m := jetphotosICAOPattern.FindStringSubmatch(text); m != nil {
				photo.AirportCode = m[1]
			}
			return false
		})

		photos = append(photos, photo)
	})

	if len(photos) == 0 {
		return nil, wrap(ErrStructural, JetPhotosName, "result cards present but none parsed", nil)
	}
	j.logger.Info("search complete",
		logging.String(logging.FieldRegistration, canonical),
		logging.Int(logging.FieldCount, len(photos)))
	return photos, nil
}
