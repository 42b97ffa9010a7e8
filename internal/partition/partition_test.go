package partition

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
)

var diverseWords = []string{
	"cat", "dog", "house", "tree", "computer", "elephant", "run", "jump",
	"blue", "happy", "mathematics", "zebra", "quantum", "music", "river", "apple",
}

func setup(t *testing.T) (*fingerprint.Encoder, *Partitioner) {
	t.Helper()
	enc, err := fingerprint.NewEncoder(fingerprint.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	p, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return enc, p
}

func encode(t *testing.T, enc *fingerprint.Encoder, s string) fingerprint.Fingerprint {
	t.Helper()
	v, err := enc.Encode(s)
	if err != nil {
		t.Fatalf("Encode(%q): %v", s, err)
	}
	return v
}

func regionOf(t *testing.T, p *Partitioner, v fingerprint.Fingerprint) RegionID {
	t.Helper()
	id, err := p.RegionID(v)
	if err != nil {
		t.Fatalf("RegionID: %v", err)
	}
	return id
}

// #region construction-tests
func TestNewRejectsDegenerateConfig(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero bands", func(c *Config) { c.Bands = 0 }},
		{"negative rows", func(c *Config) { c.RowsPerBand = -1 }},
		{"zero rows", func(c *Config) { c.RowsPerBand = 0 }},
		{"too many rows", func(c *Config) { c.RowsPerBand = 65 }},
		{"zero dimensions", func(c *Config) { c.Dimensions = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mut(&cfg)
		if _, err := New(cfg); !errors.Is(err, errs.ErrConfiguration) {
			t.Errorf("%s: expected ErrConfiguration, got %v", tc.name, err)
		}
	}
}

func TestHyperplanesReproducible(t *testing.T) {
	enc, p1 := setup(t)
	p2, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, w := range diverseWords {
		v := encode(t, enc, w)
		if a, b := regionOf(t, p1, v), regionOf(t, p2, v); a != b {
			t.Fatalf("%s: region differs across instances: %s vs %s", w, a, b)
		}
	}
}

func TestSeedChangesAssignment(t *testing.T) {
	enc, p1 := setup(t)
	cfg := DefaultConfig()
	cfg.Seed = 7
	p2, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	differ := 0
	for _, w := range diverseWords {
		v := encode(t, enc, w)
		if regionOf(t, p1, v) != regionOf(t, p2, v) {
			differ++
		}
	}
	if differ == 0 {
		t.Fatal("expected a different seed to move at least one word")
	}
}

// #endregion construction-tests

// #region region-tests
func TestRegionIDShape(t *testing.T) {
	enc, p := setup(t)
	id := regionOf(t, p, encode(t, enc, "elephant"))
	keys := bandKeys(id)
	if len(keys) != 4 {
		t.Fatalf("expected 4 band groups in %q, got %d", id, len(keys))
	}
	for _, g := range []byte(id) {
		if g != '-' && !(g >= '0' && g <= '9' || g >= 'a' && g <= 'f') {
			t.Fatalf("unexpected character %q in region id %q", g, id)
		}
	}
}

func TestRegionWideBands(t *testing.T) {
	enc, _ := setup(t)
	p, err := New(Config{Dimensions: 128, Bands: 2, RowsPerBand: 10, Seed: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id := regionOf(t, p, encode(t, enc, "cat"))
	if len(id) != 3+1+3 {
		t.Fatalf("expected two 3-digit hex groups, got %q", id)
	}
}

func TestRegionDistribution(t *testing.T) {
	enc, p := setup(t)
	counts := make(map[RegionID]int)
	for _, w := range diverseWords {
		counts[regionOf(t, p, encode(t, enc, w))]++
	}
	if len(counts) < 8 {
		t.Fatalf("expected >=8 unique regions for 16 words, got %d", len(counts))
	}
	for id, n := range counts {
		if n > 5 {
			t.Errorf("region %s holds %d of 16 words", id, n)
		}
	}
}

func TestRegionDimensionMismatch(t *testing.T) {
	_, p := setup(t)
	if _, err := p.RegionID(make(fingerprint.Fingerprint, 64)); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := p.NearbyRegions(make(fingerprint.Fingerprint, 64), 3); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput from NearbyRegions, got %v", err)
	}
}

// #endregion region-tests

// #region nearby-tests
func TestNearbyRegionsStartsWithOwnRegion(t *testing.T) {
	enc, p := setup(t)
	for _, w := range diverseWords {
		v := encode(t, enc, w)
		own := regionOf(t, p, v)
		near, err := p.NearbyRegions(v, 8)
		if err != nil {
			t.Fatalf("NearbyRegions: %v", err)
		}
		if len(near) == 0 || near[0] != own {
			t.Fatalf("%s: expected own region %s first, got %v", w, own, near)
		}
		if len(near) > 8 {
			t.Fatalf("%s: expected at most 8 regions, got %d", w, len(near))
		}
		seen := map[RegionID]bool{}
		for _, id := range near {
			if seen[id] {
				t.Fatalf("%s: duplicate region %s", w, id)
			}
			seen[id] = true
			if d := Hamming(own, id); d > 2 {
				t.Errorf("%s: region %s is %d bits from own region", w, id, d)
			}
		}
	}
}

func TestNearbyRegionsSingleFlipsFirst(t *testing.T) {
	enc, p := setup(t)
	v := encode(t, enc, "quantum")
	own := regionOf(t, p, v)
	near, err := p.NearbyRegions(v, 17)
	if err != nil {
		t.Fatalf("NearbyRegions: %v", err)
	}
	if len(near) != 17 {
		t.Fatalf("expected own region plus 16 single flips, got %d", len(near))
	}
	for _, id := range near[1:] {
		if d := Hamming(own, id); d != 1 {
			t.Errorf("expected single-bit neighbor, %s is %d bits away", id, d)
		}
	}
}

func TestNearbyRegionsBoundedByProbes(t *testing.T) {
	enc, p := setup(t)
	near, err := p.NearbyRegions(encode(t, enc, "river"), 1000)
	if err != nil {
		t.Fatalf("NearbyRegions: %v", err)
	}
	want := 1 + 16 + pairProbeWidth*(pairProbeWidth-1)/2
	if len(near) != want {
		t.Fatalf("expected %d probes, got %d", want, len(near))
	}
}

func TestNearbyRegionsHugeK(t *testing.T) {
	enc, p := setup(t)
	near, err := p.NearbyRegions(encode(t, enc, "elephant"), 1<<31-1)
	if err != nil {
		t.Fatalf("NearbyRegions: %v", err)
	}
	if want := 1 + 16 + pairProbeWidth*(pairProbeWidth-1)/2; len(near) != want {
		t.Fatalf("expected %d probes, got %d", want, len(near))
	}
	if cap(near) > 1+16+pairProbeWidth*(pairProbeWidth-1)/2 {
		t.Fatalf("result capacity %d grew with k", cap(near))
	}
}

func TestNearbyRegionsDeterministic(t *testing.T) {
	enc, p := setup(t)
	v := encode(t, enc, "music")
	a, _ := p.NearbyRegions(v, 30)
	b, _ := p.NearbyRegions(v, 30)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("probe %d differs: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestNearbyRegionsRejectsNonPositiveK(t *testing.T) {
	enc, p := setup(t)
	if _, err := p.NearbyRegions(encode(t, enc, "cat"), 0); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNearbyRegionsOne(t *testing.T) {
	enc, p := setup(t)
	v := encode(t, enc, "tree")
	near, err := p.NearbyRegions(v, 1)
	if err != nil {
		t.Fatalf("NearbyRegions: %v", err)
	}
	if len(near) != 1 || near[0] != regionOf(t, p, v) {
		t.Fatalf("expected only own region, got %v", near)
	}
}

// #endregion nearby-tests

// #region similarity-tests
func TestCosineSimilarity(t *testing.T) {
	enc, p := setup(t)
	cat := encode(t, enc, "cat")
	if got := p.CosineSimilarity(cat, cat); got < 1-1e-12 {
		t.Fatalf("expected self-similarity 1, got %v", got)
	}
	if got := p.CosineSimilarity(cat, make(fingerprint.Fingerprint, 128)); got != 0 {
		t.Fatalf("expected 0 against zero vector, got %v", got)
	}
	got := p.CosineSimilarity(cat, encode(t, enc, "dog"))
	if got < -1 || got > 1 {
		t.Fatalf("similarity out of range: %v", got)
	}
}

// #endregion similarity-tests
