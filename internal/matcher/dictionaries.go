package matcher

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dictionaries maps an attribute flag name to its keyword variants. The
// variants span Russian, Uzbek Latin and Uzbek Cyrillic spellings plus the
// transliteration noise seen in real ads; robustness to typos comes from
// the fuzzy matcher, not from enumerating every misspelling.
type Dictionaries map[string][]string

// DefaultDictionaries covers the amenity and house-rule flags of the raw
// listings sheet.
func DefaultDictionaries() Dictionaries {
	return Dictionaries{
		// Amenities.
		"has_pool":         {"бассейн", "бассейном", "hovuz", "hovz", "pool", "basseyn"},
		"has_billiards":    {"бильярд", "bilyard", "billiard"},
		"has_karaoke":      {"караоке", "karaoke"},
		"has_table_tennis": {"настольный теннис", "stol tennisi", "ping pong", "пинг понг"},
		"has_sauna":        {"сауна", "sauna", "баня", "banya", "hammom"},
		"has_wifi":         {"wifi", "wi-fi", "wi fi", "вайфай", "вай фай", "internet", "интернет"},
		"has_ac":           {"кондиционер", "konditsioner", "konditsioneri"},
		"has_parking":      {"парковка", "автостоянка", "parking", "avtoturargoh"},
		"has_terrace":      {"терраса", "terrasa", "ayvon", "веранда", "veranda"},
		"has_garden":       {"сад", "мангал", "barbekyu", "barbecue", "bbq", "bog’", "боғ", "mangal"},

		// House rules.
		"families_only": {"только семейным", "семьям", "oilalarga", "oilaviy"},
		"no_parties":    {"без вечеринок", "без шума", "вечеринки запрещены", "bazm taqiqlangan"},
		"no_unmarried":  {"свидетельство о браке", "nikoh guvohnomasi", "паспорт семьи"},
		"kids_ok":       {"с детьми", "bolalar bilan", "болалар билан"},
		"pets_allowed":  {"с животными", "hayvonlar bilan", "pets allowed"},
		"quiet_hours":   {"тихий час", "режим тишины", "tinchlik vaqti", "после 23"},
	}
}

// DachaKeywords is the relevance dictionary: an ad must fuzz-match at least
// one of these in its title or description to be treated as a dacha
// listing at all.
var DachaKeywords = []string{
	"дача", "дачу", "коттедж", "загородный дом", "дом отдыха", "вилла",
	"hovli", "dacha", "ijaraga", "villa", "cottej", "dam olish",
	"ферма", "farm", "ҳовли", "дам олиш",
}

// dictionaryFile is the YAML shape of an external dictionary override.
type dictionaryFile struct {
	Attributes map[string][]string `yaml:"attributes"`
	Relevance  []string            `yaml:"relevance"`
}

// LoadDictionaries reads attribute dictionaries from a YAML file. Missing
// attributes fall back to the defaults; an empty relevance list keeps
// DachaKeywords.
func LoadDictionaries(path string) (Dictionaries, []string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read dictionaries: %w", err)
	}
	var f dictionaryFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("parse dictionaries: %w", err)
	}

	dicts := DefaultDictionaries()
	for attr, variants := range f.Attributes {
		if len(variants) > 0 {
			dicts[attr] = variants
		}
	}
	relevance := DachaKeywords
	if len(f.Relevance) > 0 {
		relevance = f.Relevance
	}
	return dicts, relevance, nil
}
