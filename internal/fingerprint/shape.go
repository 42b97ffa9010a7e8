package fingerprint

import (
	"strings"
	"unicode/utf8"
)

// #region patterns

// suffixFamilies maps inflectional endings onto a shared family so that
// "happily" and "happy" hit the same pattern. Order matters: the first
// matching suffix wins.
var suffixFamilies = []struct {
	suffix string
	family string
}{
	{"ily", "y"},
	{"ies", "y"},
	{"ying", "ing"},
	{"ing", "ing"},
	{"ed", "ed"},
	{"ly", "ly"},
	{"ness", "ness"},
	{"ment", "ment"},
	{"tion", "tion"},
	{"able", "able"},
	{"ful", "ful"},
	{"less", "less"},
	{"est", "est"},
	{"er", "er"},
	{"es", "s"},
	{"s", "s"},
	{"y", "y"},
}

// knownPrefixes are derivational prefixes counted as pattern hits.
var knownPrefixes = []string{
	"un",
	"re",
	"in",
	"dis",
	"pre",
	"over",
	"under",
	"mis",
	"non",
	"anti",
}

// minStemRunes is the shortest stem left behind when stripping an affix.
const minStemRunes = 3

// #endregion patterns

// #region shape

// Shape is the static, call-independent description of a symbol.
type Shape struct {
	Runes        int    // normalized length in runes
	Distinct     int    // distinct runes
	Vowels       int    // ASCII vowels
	Stem         string // symbol with the matched suffix removed
	SuffixFamily string // "" when no suffix matched
	PrefixHits   int    // derivational prefixes matched (0 or 1)
}

// PatternHits counts fixed pattern-dictionary matches.
func (s Shape) PatternHits() int {
	hits := s.PrefixHits
	if s.SuffixFamily != "" {
		hits++
	}
	return hits
}

// Normalize lowercases, trims and collapses inner whitespace to single spaces.
func Normalize(symbol string) string {
	return strings.Join(strings.Fields(strings.ToLower(symbol)), " ")
}

// ShapeOf computes the Shape of an already-normalized symbol.
func ShapeOf(s string) Shape {
	runes := []rune(s)
	distinct := make(map[rune]struct{}, len(runes))
	vowels := 0
	for _, r := range runes {
		distinct[r] = struct{}{}
		if strings.ContainsRune("aeiou", r) {
			vowels++
		}
	}
	stem, family := splitSuffix(s)
	return Shape{
		Runes:        len(runes),
		Distinct:     len(distinct),
		Vowels:       vowels,
		Stem:         stem,
		SuffixFamily: family,
		PrefixHits:   prefixHits(s),
	}
}

func splitSuffix(s string) (string, string) {
	n := utf8.RuneCountInString(s)
	for _, sf := range suffixFamilies {
		if n-utf8.RuneCountInString(sf.suffix) >= minStemRunes && strings.HasSuffix(s, sf.suffix) {
			return strings.TrimSuffix(s, sf.suffix), sf.family
		}
	}
	return s, ""
}

func prefixHits(s string) int {
	n := utf8.RuneCountInString(s)
	for _, p := range knownPrefixes {
		if n-utf8.RuneCountInString(p) >= minStemRunes && strings.HasPrefix(s, p) {
			return 1
		}
	}
	return 0
}

// #endregion shape
