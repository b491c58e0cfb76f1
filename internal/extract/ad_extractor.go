package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
)

var listingIDRe = regexp.MustCompile(`/obyavlenie/([a-zA-Z0-9\-]+)`)

// ListingIDFromURL derives the stable listing identifier from an ad URL.
func ListingIDFromURL(url string) string {
	if m := listingIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// AdExtractor pulls the flat raw fields out of a fetched ad page. It knows
// nothing about normalization or matching; it only maps selectors to
// strings.
type AdExtractor struct {
	logger *zap.Logger
}

// NewAdExtractor builds an extractor.
func NewAdExtractor(logger *zap.Logger) *AdExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdExtractor{logger: logger}
}

// ExtractAd parses an ad page's HTML into a RawAd. Extraction is best
// effort per field; only an unparseable document is an error.
func (ae *AdExtractor) ExtractAd(url, html string, scrapedAt time.Time) (models.RawAd, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.RawAd{}, fmt.Errorf("parse ad page: %w", err)
	}

	raw := models.RawAd{
		ListingID: ListingIDFromURL(url),
		URL:       url,
		Title:     text(doc.Find("h1").First()),
		PriceText: text(doc.Find(`h3[data-testid="ad-price"]`).First()),
		ScrapedAt: scrapedAt,
	}

	// Breadcrumbs: first link is the region, last the district.
	locs := doc.Find(`a[data-testid="location-link"]`)
	if locs.Length() >= 1 {
		raw.Region = text(locs.First())
	}
	if locs.Length() >= 2 {
		raw.District = text(locs.Last())
	}

	doc.Find(`li[data-testid="ad-attribute-value"]`).Each(func(_ int, s *goquery.Selection) {
		t := strings.ToLower(text(s))
		switch {
		case strings.Contains(t, "комнат") || strings.Contains(t, "xona"):
			raw.Rooms = t
		case strings.Contains(t, "спальных мест") || strings.Contains(t, "o‘rin") || strings.Contains(t, "o'rin"):
			raw.CapacityBeds = t
		case strings.Contains(t, "м²") || strings.Contains(t, "м2") || strings.Contains(t, "kv"):
			raw.AreaM2 = t
		}
	})

	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := text(s)
		if strings.Contains(t, "Опубликовано") || strings.Contains(t, "E'lon qilingan") {
			raw.PostedText = t
			return false
		}
		return true
	})

	seller := doc.Find(`div[data-testid="seller-profile"]`).First()
	if seller.Length() > 0 {
		raw.SellerName = text(seller.Find("h4").First())
		raw.SellerLabel = text(seller.Find("span").First())
	}

	raw.ViewsText = text(doc.Find(`span[data-testid="views-count"]`).First())
	raw.Description = text(doc.Find(`div[data-testid="ad-description"]`).First())
	raw.PhotoCount = doc.Find(`img[data-testid="image-gallery-photo"]`).Length()

	return raw, nil
}

// ExtractListingLinks harvests ad URLs from a search results page,
// deduplicated and absolutized against the base.
func (ae *AdExtractor) ExtractListingLinks(base, html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	seen := make(map[string]struct{})
	var urls []string
	doc.Find(`a[href*="/d/obyavlenie/"]`).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = strings.TrimRight(base, "/") + href
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		urls = append(urls, href)
	})

	ae.logger.Debug("listing links extracted", zap.Int("count", len(urls)))
	return urls, nil
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}
