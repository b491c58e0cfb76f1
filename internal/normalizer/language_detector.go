package normalizer

import (
	"strings"
	"unicode"

	"github.com/dacha-ingest/app/models"
)

// DefaultMinLetters is the smallest letter count the detector will commit
// a label on; anything shorter is labeled mixed.
const DefaultMinLetters = 6

// dominanceRatio is the letter share one script must reach before the
// lexicon stage runs.
const dominanceRatio = 0.8

// uzCyrLetters are Cyrillic letters used by Uzbek but not Russian; a single
// occurrence is strong evidence.
const uzCyrLetters = "қғўҳ"

// uzCyrMarkers are common Uzbek function/domain words in Cyrillic spelling.
var uzCyrMarkers = []string{
	"ижарага", "ижара", "ҳовли", "уй", "дам", "олиш",
	"учун", "билан", "катта", "янги", "бор",
}

// uzLatMarkers are common Uzbek function/domain words in Latin spelling.
// Matched whole-word against the case-folded text.
var uzLatMarkers = []string{
	"ijaraga", "ijara", "hovli", "uy", "uyi", "dam", "olish",
	"uchun", "bilan", "katta", "yangi", "bor",
}

// LanguageDetector labels a text field as ru / uz_lat / uz_cyr / mixed by
// a deterministic rule cascade: script ratios first, marker lexicons
// second. It never fails; unresolvable input maps to mixed.
type LanguageDetector struct {
	minLetters int
}

// NewLanguageDetector builds a detector. minLetters <= 0 selects the
// default.
func NewLanguageDetector(minLetters int) *LanguageDetector {
	if minLetters <= 0 {
		minLetters = DefaultMinLetters
	}
	return &LanguageDetector{minLetters: minLetters}
}

// Detect classifies the field. Empty, too-short or script-contradictory
// text resolves to LangMixed.
func (ld *LanguageDetector) Detect(text string) models.LanguageLabel {
	folded := foldApostrophes(strings.ToLower(text))

	var cyr, lat, letters int
	for _, r := range folded {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case unicode.Is(unicode.Latin, r):
			lat++
		}
	}
	if letters < ld.minLetters {
		return models.LangMixed
	}

	cyrRatio := float64(cyr) / float64(letters)
	latRatio := float64(lat) / float64(letters)

	switch {
	case cyrRatio >= dominanceRatio:
		if ld.hasUzbekCyrillicEvidence(folded) {
			return models.LangUzCyr
		}
		return models.LangRU
	case latRatio >= dominanceRatio:
		if ld.hasUzbekLatinEvidence(folded) {
			return models.LangUzLat
		}
		// Latin text without Uzbek markers is almost always transliterated
		// Russian spillover on this marketplace.
		return models.LangRU
	default:
		return models.LangMixed
	}
}

func (ld *LanguageDetector) hasUzbekCyrillicEvidence(folded string) bool {
	if strings.ContainsAny(folded, uzCyrLetters) {
		return true
	}
	return containsAnyWord(folded, uzCyrMarkers)
}

func (ld *LanguageDetector) hasUzbekLatinEvidence(folded string) bool {
	// The o‘ / g‘ diacritic letters only exist in Uzbek Latin orthography.
	if strings.Contains(folded, "o’") || strings.Contains(folded, "g’") {
		return true
	}
	return containsAnyWord(folded, uzLatMarkers)
}

// containsAnyWord checks whole-token membership so short markers like "uy"
// never fire inside unrelated words.
func containsAnyWord(folded string, markers []string) bool {
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && r != Apostrophe
	})
	for _, tok := range tokens {
		for _, m := range markers {
			if tok == m {
				return true
			}
		}
	}
	return false
}
