package normalizer

import (
	"testing"

	"github.com/dacha-ingest/app/models"
)

func TestDetect_RuleCascade(t *testing.T) {
	ld := NewLanguageDetector(0)

	testCases := []struct {
		name     string
		input    string
		expected models.LanguageLabel
	}{
		{
			name:     "Russian",
			input:    "Сдается дача с бассейном на выходные",
			expected: models.LangRU,
		},
		{
			name:     "Uzbek_Latin_By_Markers",
			input:    "Dam olish uchun hovli ijaraga beriladi",
			expected: models.LangUzLat,
		},
		{
			name:     "Uzbek_Latin_By_Diacritic_Letter",
			input:    "Chorvoqda bog’ uyi arzon narxda",
			expected: models.LangUzLat,
		},
		{
			name:     "Uzbek_Cyrillic_By_Letters",
			input:    "Ҳовли ижарага берилади, Чирчиқ",
			expected: models.LangUzCyr,
		},
		{
			name:     "Uzbek_Cyrillic_By_Marker_Words",
			input:    "Дам олиш учун жой берилади",
			expected: models.LangUzCyr,
		},
		{
			name:     "Latin_Without_Uzbek_Evidence_Is_Russian",
			input:    "sdayu dachu na vyhodnye nedorogo",
			expected: models.LangRU,
		},
		{
			name:     "Mixed_Scripts",
			input:    "Дача ijaraga, hovli у озера сдается",
			expected: models.LangMixed,
		},
		{
			name:     "Empty",
			input:    "",
			expected: models.LangMixed,
		},
		{
			name:     "Too_Short",
			input:    "дача",
			expected: models.LangMixed,
		},
		{
			name:     "Digits_Only",
			input:    "12 000 000",
			expected: models.LangMixed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ld.Detect(tc.input)
			if got != tc.expected {
				t.Errorf("Detect(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestDetect_MarkerWholeWordOnly guards against short markers firing inside
// unrelated tokens.
func TestDetect_MarkerWholeWordOnly(t *testing.T) {
	ld := NewLanguageDetector(0)

	// "uy" appears inside "buyuk" but never as its own token; no Uzbek
	// evidence means the Latin branch resolves to Russian.
	got := ld.Detect("buyuk prospekt ryadom magazin")
	if got != models.LangRU {
		t.Errorf("Detect = %v, want ru for marker-free Latin text", got)
	}
}

func TestDetect_CustomMinLetters(t *testing.T) {
	ld := NewLanguageDetector(20)
	if got := ld.Detect("Сдается дача"); got != models.LangMixed {
		t.Errorf("Detect below min letters = %v, want mixed", got)
	}
}
