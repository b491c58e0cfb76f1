package normalizer

import "strings"

// Apostrophe is the canonical apostrophe the normalizer emits for the
// Uzbek o‘/g‘ letters and for ъ. Every apostrophe-like rune in the input
// is folded to this one before matching.
const Apostrophe = '’'

// uzCyrToLat is the total Uzbek-Cyrillic → Latin table, keyed by the
// case-folded letter. Every Cyrillic letter of Uzbek orthography has
// exactly one mapping; digraphs (ш→sh, ч→ch, ё→yo) are spelled out and
// ь maps to nothing.
var uzCyrToLat = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d",
	'е': "e", 'ё': "yo", 'ж': "j", 'з': "z", 'и': "i",
	'й': "y", 'к': "k", 'л': "l", 'м': "m", 'н': "n",
	'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t",
	'у': "u", 'ф': "f", 'х': "x", 'ц': "s", 'ч': "ch",
	'ш': "sh", 'щ': "sh", 'ъ': "’", 'ы': "i", 'ь': "",
	'э': "e", 'ю': "yu", 'я': "ya",
	'ў': "o’", 'қ': "q", 'ғ': "g’", 'ҳ': "h",
}

// TransliterateUzCyrillic maps Uzbek Cyrillic letters to their Latin
// equivalents, leaving everything else untouched. Input is expected to be
// case-folded already.
func TransliterateUzCyrillic(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if lat, ok := uzCyrToLat[r]; ok {
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// foldApostrophes maps every apostrophe-like rune to the canonical one so
// o', o`, oʻ and o’ all compare equal after normalization.
func foldApostrophes(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '`', '‘', '’', 'ʻ', 'ʼ', '´':
			return Apostrophe
		}
		return r
	}, s)
}
