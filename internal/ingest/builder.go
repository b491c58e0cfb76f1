package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
	"github.com/dacha-ingest/internal/matcher"
	"github.com/dacha-ingest/internal/normalizer"
)

// DefaultMemoSize bounds the in-memory analysis memo. Repeat scrapes of
// unchanged ad text skip re-normalization and re-matching entirely.
const DefaultMemoSize = 4096

var (
	digitsRe  = regexp.MustCompile(`\d+`)
	nonDigits = regexp.MustCompile(`[^\d]`)
	uzPhoneRe = regexp.MustCompile(`^\+998\d{9}$`)
	floatRe   = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	dayTimeRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	dateRe    = regexp.MustCompile(`\b(\d{1,2})\s+([\p{L}’]+)\s+(\d{4})\b`)
)

// negotiablePhrases mark an ad with no fixed price.
var negotiablePhrases = []string{"договорная", "kelishiladi", "kelishilgan"}

// monthNames maps Russian and Uzbek month spellings (genitive included) to
// month numbers, for the "Опубликовано 12 июня 2024 г." span.
var monthNames = map[string]time.Month{
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4, "мая": 5,
	"июня": 6, "июля": 7, "августа": 8, "сентября": 9, "октября": 10,
	"ноября": 11, "декабря": 12,
	"yanvar": 1, "fevral": 2, "mart": 3, "aprel": 4, "may": 5,
	"iyun": 6, "iyul": 7, "avgust": 8, "sentabr": 9, "oktabr": 10,
	"noyabr": 11, "dekabr": 12,
}

// textAnalysis is the memoized outcome of analyzing one ad's free text.
type textAnalysis struct {
	lang     models.LanguageLabel
	flags    models.AttributeFlags
	relevant bool
}

// RecordBuilder assembles one canonical ListingRecord per scraped ad from
// the raw extracted fields plus normalization, language detection and
// attribute matching.
type RecordBuilder struct {
	norm     *normalizer.TextNormalizer
	detector *normalizer.LanguageDetector
	matcher  *matcher.FuzzyMatcher
	memo     *lru.Cache[string, textAnalysis]
	logger   *zap.Logger
	loc      *time.Location
}

// NewRecordBuilder wires the three text components into a builder. Posted
// dates are interpreted in loc (the marketplace's local zone); nil keeps
// UTC.
func NewRecordBuilder(norm *normalizer.TextNormalizer, detector *normalizer.LanguageDetector, fm *matcher.FuzzyMatcher, loc *time.Location, logger *zap.Logger) *RecordBuilder {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	memo, err := lru.New[string, textAnalysis](DefaultMemoSize)
	if err != nil {
		// lru.New only fails on a non-positive size; DefaultMemoSize is a
		// positive constant.
		panic(err)
	}
	return &RecordBuilder{norm: norm, detector: detector, matcher: fm, memo: memo, logger: logger, loc: loc}
}

// analyze runs language detection, attribute matching and the relevance
// check once per distinct title+description pair.
func (b *RecordBuilder) analyze(title, description string) textAnalysis {
	key := title + "\x1f" + description
	if cached, ok := b.memo.Get(key); ok {
		return cached
	}
	full := title + " " + description
	out := textAnalysis{
		lang:     b.detector.Detect(full),
		flags:    b.matcher.Match(title, description),
		relevant: b.matcher.MatchesAny(full),
	}
	b.memo.Add(key, out)
	return out
}

// Build turns a raw ad into a canonical record. A missing listing_id is a
// MalformedRecord: the error wraps ErrMalformedRecord and the caller skips
// the record.
func (b *RecordBuilder) Build(raw models.RawAd) (*models.ListingRecord, error) {
	id := strings.TrimSpace(raw.ListingID)
	if id == "" {
		return nil, fmt.Errorf("%w: ad %q has no listing_id", ErrMalformedRecord, raw.URL)
	}

	price, negotiable := parsePrice(raw.PriceText)
	phone := NormalizePhone(raw.SellerPhone)

	rec := &models.ListingRecord{
		ScrapeTS:      raw.ScrapedAt,
		ListingID:     id,
		URL:           raw.URL,
		Title:         strings.TrimSpace(raw.Title),
		PriceUZS:      price,
		Negotiable:    negotiable,
		Region:        strings.TrimSpace(raw.Region),
		District:      strings.TrimSpace(raw.District),
		Rooms:         parseIntField(raw.Rooms),
		CapacityBeds:  parseIntField(raw.CapacityBeds),
		AreaM2:        parseFloatField(raw.AreaM2),
		PostedDTLocal: b.parsePostedDate(raw.PostedText),
		SellerName:    strings.TrimSpace(raw.SellerName),
		SellerType:    classifySeller(raw.SellerLabel),
		SellerPhone:   phone,
		ViewsCount:    parseIntField(raw.ViewsText),
		PhotoCount:    raw.PhotoCount,
	}
	if phone != "" {
		rec.SellerPhoneHash = HashPhone(phone)
	}

	analysis := b.analyze(rec.Title, raw.Description)
	rec.LangDetect = analysis.lang
	rec.Flags = analysis.flags

	return rec, nil
}

// Relevant reports whether the ad's free text fuzz-matches the dacha
// relevance dictionary.
func (b *RecordBuilder) Relevant(raw models.RawAd) bool {
	return b.analyze(strings.TrimSpace(raw.Title), raw.Description).relevant
}

// parsePrice extracts the UZS integer price, or flags the ad negotiable
// when the price text says so.
func parsePrice(text string) (*int64, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range negotiablePhrases {
		if strings.Contains(lower, phrase) {
			return nil, true
		}
	}
	digits := nonDigits.ReplaceAllString(text, "")
	if digits == "" {
		return nil, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil, false
	}
	return &v, false
}

func parseIntField(text string) *int {
	m := digitsRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloatField(text string) *float64 {
	m := floatRe.FindString(text)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// NormalizePhone canonicalizes an Uzbek phone number to +998XXXXXXXXX.
// Anything that does not resolve to a valid number returns empty.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	var phone string
	switch {
	case strings.HasPrefix(digits, "998") && len(digits) == 12:
		phone = "+" + digits
	case strings.HasPrefix(digits, "8") && len(digits) == 10:
		phone = "+998" + digits[1:]
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		phone = "+998" + digits[1:]
	case len(digits) == 9:
		phone = "+998" + digits
	default:
		return ""
	}
	if !uzPhoneRe.MatchString(phone) {
		return ""
	}
	return phone
}

// HashPhone derives the one-way phone fingerprint stored instead of reuse
// of the raw number across runs.
func HashPhone(phone string) string {
	sum := sha256.Sum256([]byte(phone))
	return hex.EncodeToString(sum[:])
}

// parsePostedDate pulls a local timestamp out of the "Опубликовано …" /
// "E'lon qilingan …" span. Nil when nothing parseable is present.
func (b *RecordBuilder) parsePostedDate(text string) *time.Time {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lower := strings.ToLower(text)

	if m := dateRe.FindStringSubmatch(lower); m != nil {
		if month, ok := monthNames[strings.Trim(m[2], "’")]; ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			hour, minute := 0, 0
			if tm := dayTimeRe.FindStringSubmatch(lower); tm != nil {
				hour, _ = strconv.Atoi(tm[1])
				minute, _ = strconv.Atoi(tm[2])
			}
			t := time.Date(year, month, day, hour, minute, 0, 0, b.loc)
			return &t
		}
	}

	for _, layout := range []string{"02.01.2006 15:04", "02.01.2006", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(text), b.loc); err == nil {
			return &t
		}
	}
	return nil
}

// classifySeller types the seller from the profile box label.
func classifySeller(label string) models.SellerType {
	lower := strings.ToLower(label)
	switch {
	case lower == "":
		return models.SellerUnknown
	case strings.Contains(lower, "частное"), strings.Contains(lower, "xususiy"), strings.Contains(lower, "shaxsiy"):
		return models.SellerPrivate
	case strings.Contains(lower, "бизнес"), strings.Contains(lower, "агент"), strings.Contains(lower, "biznes"), strings.Contains(lower, "agent"):
		return models.SellerAgency
	default:
		return models.SellerUnknown
	}
}
