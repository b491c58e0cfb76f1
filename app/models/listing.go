package models

import (
	"strconv"
	"time"
)

// LanguageLabel is the detected script/language of a listing's free text.
type LanguageLabel string

const (
	LangRU    LanguageLabel = "ru"
	LangUzLat LanguageLabel = "uz_lat"
	LangUzCyr LanguageLabel = "uz_cyr"
	LangMixed LanguageLabel = "mixed"
)

// ScriptHint classifies which script dominates a raw text field.
type ScriptHint string

const (
	ScriptCyrillic ScriptHint = "cyrillic"
	ScriptLatin    ScriptHint = "latin"
	ScriptMixed    ScriptHint = "mixed"
	ScriptUnknown  ScriptHint = "unknown"
)

// SellerType classifies the seller profile box on an ad page.
type SellerType string

const (
	SellerPrivate SellerType = "private"
	SellerAgency  SellerType = "agency"
	SellerUnknown SellerType = "unknown"
)

// AttributeFlags maps amenity/rule names to detected booleans.
// A flag is true only when at least one dictionary keyword matched
// above threshold in some text field of the listing.
type AttributeFlags map[string]bool

// RawAd holds the flat extracted fields of one ad page, before any
// normalization or validation. Produced by the extract layer.
type RawAd struct {
	ListingID    string
	URL          string
	Title        string
	Description  string
	PriceText    string
	Region       string
	District     string
	Rooms        string
	CapacityBeds string
	AreaM2       string
	PostedText   string
	SellerName   string
	SellerLabel  string
	SellerPhone  string
	ViewsText    string
	PhotoCount   int
	ScrapedAt    time.Time
}

// ListingRecord is the canonical unit persisted per ad. Created fresh on
// every scrape; never mutated in place. A later scrape of the same
// ListingID produces a new record that the merge engine compares against
// the indexed snapshot.
type ListingRecord struct {
	ScrapeTS        time.Time      `json:"scrape_ts"`
	ListingID       string         `json:"listing_id"`
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	PriceUZS        *int64         `json:"price_uzs"`
	Negotiable      bool           `json:"negotiable"`
	Region          string         `json:"region"`
	District        string         `json:"district"`
	Rooms           *int           `json:"rooms"`
	CapacityBeds    *int           `json:"capacity_beds"`
	AreaM2          *float64       `json:"area_m2"`
	PostedDTLocal   *time.Time     `json:"posted_dt_local"`
	SellerName      string         `json:"seller_name"`
	SellerType      SellerType     `json:"seller_type"`
	SellerPhone     string         `json:"seller_phone"`
	SellerPhoneHash string         `json:"seller_phone_hash"`
	ViewsCount      *int           `json:"views_count"`
	Flags           AttributeFlags `json:"flags"`
	PhotoCount      int            `json:"photo_count"`
	LangDetect      LanguageLabel  `json:"lang_detect"`
}

// AmenityColumns is the fixed amenity flag order in the output row.
var AmenityColumns = []string{
	"has_pool", "has_billiards", "has_karaoke", "has_table_tennis",
	"has_sauna", "has_wifi", "has_ac", "has_parking", "has_terrace",
	"has_garden",
}

// RuleColumns is the fixed house-rule flag order used for the rules blob.
var RuleColumns = []string{
	"families_only", "no_parties", "no_unmarried", "kids_ok",
	"pets_allowed", "quiet_hours",
}

// Header returns the flat row schema written to every shard.
func Header() []string {
	h := []string{
		"scrape_ts", "listing_id", "url", "title", "price_uzs", "negotiable",
		"region", "district", "rooms", "capacity_beds", "area_m2",
		"posted_dt_local", "seller_name", "seller_type", "seller_phone",
		"seller_phone_hash", "views_count", "amenities", "rules",
		"photo_count",
	}
	h = append(h, AmenityColumns...)
	h = append(h, "lang_detect")
	return h
}

// Row flattens the record into the Header column order.
func (r *ListingRecord) Row() []string {
	row := []string{
		r.ScrapeTS.Format(time.RFC3339),
		r.ListingID,
		r.URL,
		r.Title,
		formatInt64Ptr(r.PriceUZS),
		strconv.FormatBool(r.Negotiable),
		r.Region,
		r.District,
		formatIntPtr(r.Rooms),
		formatIntPtr(r.CapacityBeds),
		formatFloatPtr(r.AreaM2),
		formatTimePtr(r.PostedDTLocal),
		r.SellerName,
		string(r.SellerType),
		r.SellerPhone,
		r.SellerPhoneHash,
		formatIntPtr(r.ViewsCount),
		r.AmenitiesBlob(),
		r.RulesBlob(),
		strconv.Itoa(r.PhotoCount),
	}
	for _, col := range AmenityColumns {
		row = append(row, strconv.FormatBool(r.Flags[col]))
	}
	row = append(row, string(r.LangDetect))
	return row
}

// AmenitiesBlob joins set amenity flags the way the raw sheet stores them.
func (r *ListingRecord) AmenitiesBlob() string {
	return joinSetFlags(r.Flags, AmenityColumns)
}

// RulesBlob joins set house-rule flags.
func (r *ListingRecord) RulesBlob() string {
	return joinSetFlags(r.Flags, RuleColumns)
}

func joinSetFlags(flags AttributeFlags, order []string) string {
	out := ""
	for _, name := range order {
		if !flags[name] {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += name
	}
	return out
}

func formatInt64Ptr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatIntPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTimePtr(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
