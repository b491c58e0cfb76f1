package matcher

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"

	"github.com/dacha-ingest/app/models"
	"github.com/dacha-ingest/internal/normalizer"
)

// DefaultThreshold is the normalized-similarity floor for accepting an
// approximate keyword match.
const DefaultThreshold = 0.85

// compiledVariant is one keyword variant, pre-normalized and tokenized.
type compiledVariant struct {
	joined string
	tokens int
}

// compiledAttribute is one attribute flag with all of its variants.
type compiledAttribute struct {
	name     string
	variants []compiledVariant
}

// FuzzyMatcher scans normalized listing text for dictionary keywords using
// sliding token windows and normalized Levenshtein similarity. Matching is
// pure: the same text always yields the same flags.
type FuzzyMatcher struct {
	norm      *normalizer.TextNormalizer
	attrs     []compiledAttribute
	relevance []compiledVariant
	threshold float64
	logger    *zap.Logger
}

// NewFuzzyMatcher compiles the dictionaries through the normalizer so
// keywords and text always compare in the same canonical space. A
// threshold <= 0 selects the default.
func NewFuzzyMatcher(norm *normalizer.TextNormalizer, dicts Dictionaries, relevance []string, threshold float64, logger *zap.Logger) *FuzzyMatcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	names := make([]string, 0, len(dicts))
	for name := range dicts {
		names = append(names, name)
	}
	// Scan order across attributes does not affect the flags, but a fixed
	// order keeps debug logs reproducible.
	sort.Strings(names)

	attrs := make([]compiledAttribute, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, compiledAttribute{
			name:     name,
			variants: compileVariants(norm, dicts[name]),
		})
	}

	return &FuzzyMatcher{
		norm:      norm,
		attrs:     attrs,
		relevance: compileVariants(norm, relevance),
		threshold: threshold,
		logger:    logger,
	}
}

func compileVariants(norm *normalizer.TextNormalizer, keywords []string) []compiledVariant {
	out := make([]compiledVariant, 0, len(keywords))
	for _, kw := range keywords {
		canon := norm.Canonical(kw)
		if canon == "" {
			continue
		}
		out = append(out, compiledVariant{
			joined: canon,
			tokens: len(strings.Fields(canon)),
		})
	}
	return out
}

// Match evaluates every attribute against every text field and returns the
// OR of all matches. Absent evidence means false, never unknown. Within an
// attribute the first accepted match short-circuits the remaining fields.
func (fm *FuzzyMatcher) Match(fields ...string) models.AttributeFlags {
	tokenized := make([][]string, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			continue
		}
		tokenized = append(tokenized, strings.Fields(fm.norm.Canonical(f)))
	}

	flags := make(models.AttributeFlags, len(fm.attrs))
	for _, attr := range fm.attrs {
		matched := false
		for _, tokens := range tokenized {
			if kw, window, sim, ok := fm.scan(tokens, attr.variants); ok {
				fm.logger.Debug("attribute matched",
					zap.String("attribute", attr.name),
					zap.String("keyword", kw),
					zap.String("window", window),
					zap.Float64("similarity", sim),
					zap.Float64("jaro_winkler", smetrics.JaroWinkler(kw, window, 0.7, 4)))
				matched = true
				break
			}
		}
		flags[attr.name] = matched
	}
	return flags
}

// MatchesAny reports whether the text fuzz-matches at least one relevance
// keyword. Used for the dacha-relevance filter.
func (fm *FuzzyMatcher) MatchesAny(text string) bool {
	tokens := strings.Fields(fm.norm.Canonical(text))
	_, _, _, ok := fm.scan(tokens, fm.relevance)
	return ok
}

// scan slides a window of each variant's token count across the field and
// accepts the first window whose similarity clears the threshold.
func (fm *FuzzyMatcher) scan(tokens []string, variants []compiledVariant) (keyword, window string, sim float64, ok bool) {
	for _, v := range variants {
		if v.tokens == 0 || v.tokens > len(tokens) {
			continue
		}
		for i := 0; i+v.tokens <= len(tokens); i++ {
			win := strings.Join(tokens[i:i+v.tokens], " ")
			s := Similarity(v.joined, win)
			if s >= fm.threshold {
				return v.joined, win, s, true
			}
		}
	}
	return "", "", 0, false
}

// Similarity is the normalized edit-distance similarity on a 0–1 scale:
// 1 − distance/maxRuneLen. 1.0 means exact.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
