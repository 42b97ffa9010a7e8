package fingerprint

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// #region fingerprint

// Fingerprint is a fixed-length numeric vector derived from a symbol.
// Callers own the returned slice; the encoder never retains it.
type Fingerprint []float64

// Dimensions returns the vector length.
func (f Fingerprint) Dimensions() int {
	return len(f)
}

// Norm returns the L2 magnitude.
func (f Fingerprint) Norm() float64 {
	if len(f) == 0 {
		return 0
	}
	return floats.Norm(f, 2)
}

// Equal reports element-wise exact equality.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if math.Float64bits(f[i]) != math.Float64bits(other[i]) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (f Fingerprint) Clone() Fingerprint {
	out := make(Fingerprint, len(f))
	copy(out, f)
	return out
}

// #endregion fingerprint

// #region cosine

// Cosine computes the normalized dot product of a and b, clamped to [-1, 1].
// Returns 0 for mismatched lengths or when either vector has zero magnitude.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	aa := floats.Dot(a, a)
	bb := floats.Dot(b, b)
	if aa == 0 || bb == 0 {
		return 0
	}
	sim := floats.Dot(a, b) / math.Sqrt(aa*bb)
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// #endregion cosine

// #region config

// Config holds the feature weights of the encoder. All values are fixed at
// construction; two encoders with equal configs produce identical fingerprints.
type Config struct {
	Dimensions   int        // total vector length (default 128)
	NGramWeights [3]float64 // weight of character 1-, 2- and 3-grams
	StemWeight   float64    // weight of the stem left after suffix stripping
	SuffixWeight float64    // weight of the suffix-family pattern hit
	ShapeWeight  float64    // scale of the reserved structural dimensions
}

// DefaultConfig returns the canonical 128-dimension configuration.
func DefaultConfig() Config {
	return Config{
		Dimensions:   128,
		NGramWeights: [3]float64{1.0, 0.6, 0.35},
		StemWeight:   1.5,
		SuffixWeight: 1.5,
		ShapeWeight:  0.3,
	}
}

// #endregion config
