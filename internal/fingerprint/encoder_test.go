package fingerprint

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/adpc/internal/errs"
)

func newTestEncoder(t *testing.T) *Encoder {
	t.Helper()
	enc, err := NewEncoder(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	return enc
}

func mustEncode(t *testing.T, enc *Encoder, s string) Fingerprint {
	t.Helper()
	v, err := enc.Encode(s)
	if err != nil {
		t.Fatalf("Encode(%q): %v", s, err)
	}
	return v
}

// #region determinism-tests
func TestEncodeDeterministic(t *testing.T) {
	enc := newTestEncoder(t)
	for _, s := range []string{"a", "cat", "elephant", "internationalization", "naïve", "x y"} {
		first := mustEncode(t, enc, s)
		for i := 0; i < 5; i++ {
			again := mustEncode(t, enc, s)
			if !first.Equal(again) {
				t.Fatalf("Encode(%q) changed on call %d", s, i+2)
			}
		}
	}
}

func TestEncodeDeterministicAcrossInstances(t *testing.T) {
	a := newTestEncoder(t)
	b := newTestEncoder(t)
	va := mustEncode(t, a, "elephant")
	vb := mustEncode(t, b, "elephant")
	if diff := cmp.Diff([]float64(va), []float64(vb)); diff != "" {
		t.Fatalf("fingerprints differ across instances (-a +b):\n%s", diff)
	}
}

func TestEncodeConcurrent(t *testing.T) {
	enc := newTestEncoder(t)
	want := mustEncode(t, enc, "concurrency")

	var wg sync.WaitGroup
	errCh := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := enc.Encode("concurrency")
			if err != nil || !got.Equal(want) {
				errCh <- "mismatch"
			}
		}()
	}
	wg.Wait()
	close(errCh)
	if len(errCh) > 0 {
		t.Fatal("concurrent Encode produced a different fingerprint")
	}
}

func TestEncodeNormalizesCase(t *testing.T) {
	enc := newTestEncoder(t)
	if !mustEncode(t, enc, "Cat").Equal(mustEncode(t, enc, "  cat ")) {
		t.Fatal("expected case and surrounding whitespace to be ignored")
	}
}

// #endregion determinism-tests

// #region similarity-tests
func TestEncodeDiscrimination(t *testing.T) {
	enc := newTestEncoder(t)
	cat := mustEncode(t, enc, "cat")
	dog := mustEncode(t, enc, "dog")
	if cat.Equal(dog) {
		t.Fatal("cat and dog must not share a fingerprint")
	}
	if sim := Cosine(cat, cat); math.Abs(sim-1) > 1e-12 {
		t.Fatalf("expected self-similarity 1.0, got %v", sim)
	}
}

func TestEncodeOrthographicSimilarity(t *testing.T) {
	enc := newTestEncoder(t)
	cases := []struct {
		a, b   string
		target float64
	}{
		{"testing", "test", 0.77},
		{"happily", "happy", 0.90},
	}
	for _, tc := range cases {
		sim := Cosine(mustEncode(t, enc, tc.a), mustEncode(t, enc, tc.b))
		if sim <= 0.4 {
			t.Errorf("%s/%s: similarity %.4f not above 0.4", tc.a, tc.b, sim)
		}
		if math.Abs(sim-tc.target) > 0.1 {
			t.Errorf("%s/%s: similarity %.4f outside %.2f±0.10", tc.a, tc.b, sim, tc.target)
		}
	}
}

func TestEncodeDissimilarity(t *testing.T) {
	enc := newTestEncoder(t)
	pairs := [][2]string{
		{"cat", "computer"},
		{"dog", "mathematics"},
		{"apple", "zebra"},
		{"house", "quantum"},
		{"run", "elephant"},
		{"sky", "keyboard"},
		{"blue", "triangle"},
		{"fish", "democracy"},
		{"tree", "algorithm"},
		{"car", "philosophy"},
		{"moon", "sandwich"},
		{"book", "volcano"},
	}
	below := 0
	for _, p := range pairs {
		if Cosine(mustEncode(t, enc, p[0]), mustEncode(t, enc, p[1])) < 0.5 {
			below++
		}
	}
	if frac := float64(below) / float64(len(pairs)); frac < 0.75 {
		t.Fatalf("expected >=75%% of unrelated pairs below 0.5, got %.2f", frac)
	}
}

func TestEncodeIsNotSemantic(t *testing.T) {
	enc := newTestEncoder(t)
	sim := Cosine(mustEncode(t, enc, "cat"), mustEncode(t, enc, "kitten"))
	if sim > 0.5 {
		t.Fatalf("cat/kitten share few characters, expected low similarity, got %.4f", sim)
	}
}

// #endregion similarity-tests

// #region phrase-tests
func TestEncodePhraseCompositional(t *testing.T) {
	enc := newTestEncoder(t)
	phrase, err := enc.EncodePhrase("cat sat")
	if err != nil {
		t.Fatalf("EncodePhrase: %v", err)
	}
	for _, w := range []string{"cat", "sat"} {
		if sim := Cosine(phrase, mustEncode(t, enc, w)); sim <= 0.3 {
			t.Errorf("phrase vs %s: similarity %.4f not above 0.3", w, sim)
		}
	}
}

func TestEncodePhraseFourTokens(t *testing.T) {
	enc := newTestEncoder(t)
	phrase, err := enc.EncodePhrase("the quick brown fox")
	if err != nil {
		t.Fatalf("EncodePhrase: %v", err)
	}
	for _, w := range []string{"the", "quick", "brown", "fox"} {
		if sim := Cosine(phrase, mustEncode(t, enc, w)); sim < 0.3 {
			t.Errorf("phrase vs %s: similarity %.4f below floor 0.3", w, sim)
		}
	}
}

func TestEncodePhraseSingleTokenMatchesEncode(t *testing.T) {
	enc := newTestEncoder(t)
	phrase, err := enc.EncodePhrase("elephant")
	if err != nil {
		t.Fatalf("EncodePhrase: %v", err)
	}
	if !phrase.Equal(mustEncode(t, enc, "elephant")) {
		t.Fatal("single-token phrase should equal the token fingerprint")
	}
}

// #endregion phrase-tests

// #region error-tests
func TestEncodeRejectsEmpty(t *testing.T) {
	enc := newTestEncoder(t)
	for _, s := range []string{"", "   ", "\t\n"} {
		if _, err := enc.Encode(s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Encode(%q): expected ErrInvalidInput, got %v", s, err)
		}
		if _, err := enc.EncodePhrase(s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("EncodePhrase(%q): expected ErrInvalidInput, got %v", s, err)
		}
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	enc := newTestEncoder(t)
	for _, s := range []string{"\xff\xfe", "\xfe\xff", "ca\xfft"} {
		if _, err := enc.Encode(s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("Encode(%q): expected ErrInvalidInput, got %v", s, err)
		}
		if _, err := enc.EncodePhrase("big " + s); !errors.Is(err, errs.ErrInvalidInput) {
			t.Errorf("EncodePhrase(%q): expected ErrInvalidInput, got %v", s, err)
		}
	}
}

func TestEncodeSingleCharacter(t *testing.T) {
	enc := newTestEncoder(t)
	v := mustEncode(t, enc, "a")
	if len(v) != 128 {
		t.Fatalf("expected 128 dimensions, got %d", len(v))
	}
	if v.Norm() == 0 {
		t.Fatal("expected non-zero fingerprint for single character")
	}
}

func TestNewEncoderRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dimensions = 8
	if _, err := NewEncoder(cfg); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for tiny dimensions, got %v", err)
	}
	cfg = DefaultConfig()
	cfg.NGramWeights[1] = -1
	if _, err := NewEncoder(cfg); !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for negative weight, got %v", err)
	}
}

// #endregion error-tests

// #region cosine-tests
func TestCosineEdgeCases(t *testing.T) {
	if got := Cosine([]float64{0, 0}, []float64{1, 0}); got != 0 {
		t.Errorf("zero vector: expected 0, got %v", got)
	}
	if got := Cosine([]float64{1}, []float64{1, 0}); got != 0 {
		t.Errorf("length mismatch: expected 0, got %v", got)
	}
	if got := Cosine([]float64{1, 0}, []float64{-1, 0}); got != -1 {
		t.Errorf("opposite vectors: expected -1, got %v", got)
	}
}

// #endregion cosine-tests

// #region shape-tests
func TestShapeOf(t *testing.T) {
	cases := []struct {
		in     string
		stem   string
		family string
		hits   int
	}{
		{"happily", "happ", "y", 1},
		{"happy", "happ", "y", 1},
		{"testing", "test", "ing", 1},
		{"test", "test", "", 0},
		{"unhappy", "unhapp", "y", 2},
		{"cats", "cat", "s", 1},
		{"is", "is", "", 0},
	}
	for _, tc := range cases {
		got := ShapeOf(tc.in)
		if got.Stem != tc.stem || got.SuffixFamily != tc.family || got.PatternHits() != tc.hits {
			t.Errorf("ShapeOf(%q) = %+v, want stem=%q family=%q hits=%d", tc.in, got, tc.stem, tc.family, tc.hits)
		}
	}
}

// #endregion shape-tests
