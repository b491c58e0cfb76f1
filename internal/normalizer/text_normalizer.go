package normalizer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dacha-ingest/app/models"
)

// NormalizedText carries the canonical matching form of a text field next
// to the untouched original kept for audit.
type NormalizedText struct {
	Original   string            `json:"original"`
	Normalized string            `json:"normalized"`
	ScriptHint models.ScriptHint `json:"script_hint"`
}

// TextNormalizer canonicalizes raw listing text: NFKC, case fold, Uzbek
// Cyrillic → Latin transliteration, whitespace collapse and punctuation
// strip. Normalize is pure and idempotent.
type TextNormalizer struct{}

// NewTextNormalizer builds a TextNormalizer.
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// Normalize produces the canonical form of a text field. Re-applying it to
// its own output is a no-op.
func (tn *TextNormalizer) Normalize(text string) NormalizedText {
	return NormalizedText{
		Original:   text,
		Normalized: tn.Canonical(text),
		ScriptHint: DetectScriptHint(text),
	}
}

// Canonical returns just the normalized string. Dictionary keywords run
// through the same path so keyword and text always compare in one space.
func (tn *TextNormalizer) Canonical(text string) string {
	s := norm.NFKC.String(text)
	s = strings.ToLower(s)
	s = foldApostrophes(s)
	s = TransliterateUzCyrillic(s)
	return collapseAndStrip(s)
}

// collapseAndStrip replaces semantically empty punctuation with spaces,
// trims hyphens and apostrophes that are not word-internal, and collapses
// whitespace runs to a single space.
func collapseAndStrip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == Apostrophe:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		f = trimEdges(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// trimEdges strips hyphens and apostrophes that are not part of a word:
// leading runs, trailing hyphens, and trailing apostrophes. A word-final
// apostrophe after o or g stays, since it completes the Uzbek o’/g’ letter
// (боғ transliterates to bog’, not bog).
func trimEdges(f string) string {
	f = strings.TrimLeft(f, "-’")
	for len(f) > 0 {
		r, size := utf8.DecodeLastRuneInString(f)
		if r == '-' {
			f = f[:len(f)-size]
			continue
		}
		if r == Apostrophe {
			prev, _ := utf8.DecodeLastRuneInString(f[:len(f)-size])
			if prev == 'o' || prev == 'g' {
				break
			}
			f = f[:len(f)-size]
			continue
		}
		break
	}
	return f
}

// DetectScriptHint reports which script dominates the letter characters of
// a raw field. Digits, punctuation and whitespace are ignored.
func DetectScriptHint(text string) models.ScriptHint {
	var cyr, lat int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case unicode.Is(unicode.Latin, r):
			lat++
		}
	}
	switch {
	case cyr == 0 && lat == 0:
		return models.ScriptUnknown
	case cyr > 0 && lat > 0:
		return models.ScriptMixed
	case cyr > 0:
		return models.ScriptCyrillic
	default:
		return models.ScriptLatin
	}
}
