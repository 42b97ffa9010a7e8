package fingerprint

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/adpc/internal/errs"
)

// #region layout

// shapeDims is the size of the reserved structural block at the tail of
// every fingerprint. The remaining dimensions hold hashed features.
const shapeDims = 4

// minDimensions keeps the hashed block wide enough to spread n-grams.
const minDimensions = 16

// shortWordRunes is the length at or below which a symbol is treated as a
// high-frequency word by the commonness heuristic.
const shortWordRunes = 3

// saturationRunes caps the length feature.
const saturationRunes = 20

// #endregion layout

// #region encoder

// Encoder maps symbols to fingerprints. It holds no mutable state and is safe
// for concurrent use.
type Encoder struct {
	config     Config
	hashedDims uint64
}

// NewEncoder validates config and returns an Encoder.
func NewEncoder(config Config) (*Encoder, error) {
	if config.Dimensions < minDimensions {
		return nil, errs.Configuration("encoder dimensions %d below minimum %d", config.Dimensions, minDimensions)
	}
	for i, w := range config.NGramWeights {
		if w < 0 || math.IsNaN(w) {
			return nil, errs.Configuration("n-gram weight %d is %v", i+1, w)
		}
	}
	if config.StemWeight < 0 || config.SuffixWeight < 0 || config.ShapeWeight < 0 {
		return nil, errs.Configuration("feature weights must be non-negative")
	}
	return &Encoder{
		config:     config,
		hashedDims: uint64(config.Dimensions - shapeDims),
	}, nil
}

// Dimensions returns the configured fingerprint length.
func (e *Encoder) Dimensions() int {
	return e.config.Dimensions
}

// #endregion encoder

// #region encode

// Encode returns the fingerprint of a single symbol. The result depends only
// on the symbol's runes and the encoder config.
func (e *Encoder) Encode(symbol string) (Fingerprint, error) {
	if !utf8.ValidString(symbol) {
		return nil, errs.Invalid("symbol %q is not valid UTF-8", symbol)
	}
	s := Normalize(symbol)
	if s == "" {
		return nil, errs.Invalid("empty symbol")
	}
	runes := []rune(s)
	v := make(Fingerprint, e.config.Dimensions)

	for i, w := range e.config.NGramWeights {
		n := i + 1
		if w == 0 {
			continue
		}
		window := runes
		if n > 1 {
			window = make([]rune, 0, len(runes)+2)
			window = append(window, '^')
			window = append(window, runes...)
			window = append(window, '$')
		}
		prefix := strconv.Itoa(n) + ":"
		for j := 0; j+n <= len(window); j++ {
			e.addHashed(v, prefix+string(window[j:j+n]), w)
		}
	}

	shape := ShapeOf(s)
	if e.config.StemWeight > 0 {
		e.addHashed(v, "stem:"+shape.Stem, e.config.StemWeight)
	}
	if shape.SuffixFamily != "" && e.config.SuffixWeight > 0 {
		e.addHashed(v, "suffix:"+shape.SuffixFamily, e.config.SuffixWeight)
	}
	e.writeShape(v, shape)
	return v, nil
}

// EncodePhrase splits text on whitespace and returns the element-wise mean of
// the token fingerprints. With up to ~4 tokens of comparable magnitude the
// phrase stays close to each constituent token.
func (e *Encoder) EncodePhrase(text string) (Fingerprint, error) {
	if !utf8.ValidString(text) {
		return nil, errs.Invalid("phrase %q is not valid UTF-8", text)
	}
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, errs.Invalid("empty phrase")
	}
	sum := make(Fingerprint, e.config.Dimensions)
	for _, tok := range tokens {
		v, err := e.Encode(tok)
		if err != nil {
			return nil, err
		}
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(tokens)), sum)
	return sum, nil
}

// #endregion encode

// #region features

// addHashed folds a feature into the hashed block. The top hash bit picks the
// sign so that unrelated features cancel rather than accumulate.
func (e *Encoder) addHashed(v Fingerprint, key string, weight float64) {
	h := xxhash.Sum64String(key)
	idx := h % e.hashedDims
	if h>>63 == 0 {
		v[idx] += weight
	} else {
		v[idx] -= weight
	}
}

// writeShape fills the reserved structural dimensions: length, vowel ratio,
// short-word commonness and pattern-dictionary hits.
func (e *Encoder) writeShape(v Fingerprint, shape Shape) {
	w := e.config.ShapeWeight
	if w == 0 {
		return
	}
	base := int(e.hashedDims)
	v[base] = w * float64(min(shape.Runes, saturationRunes)) / saturationRunes
	v[base+1] = w * float64(shape.Vowels) / float64(shape.Runes)
	if shape.Runes <= shortWordRunes {
		v[base+2] = w
	}
	v[base+3] = w * float64(min(shape.PatternHits(), 2)) / 2
}

// #endregion features
