package partition

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
)

// seedMix derives the second PCG word from the configured seed.
const seedMix = 0x9E3779B97F4A7C15

// #region partitioner

// Partitioner assigns fingerprints to regions with banded random-hyperplane
// LSH. The hyperplanes are drawn once at construction and never change, so a
// Partitioner is safe for concurrent use.
type Partitioner struct {
	config   Config
	planes   [][]float64 // [Bands*RowsPerBand][Dimensions], unit length
	hexWidth int
}

// New draws Bands*RowsPerBand unit hyperplanes from a PCG stream seeded by
// config.Seed.
func New(config Config) (*Partitioner, error) {
	switch {
	case config.Dimensions <= 0:
		return nil, errs.Configuration("partition dimensions must be positive, got %d", config.Dimensions)
	case config.Bands <= 0:
		return nil, errs.Configuration("bands must be positive, got %d", config.Bands)
	case config.RowsPerBand <= 0:
		return nil, errs.Configuration("rows per band must be positive, got %d", config.RowsPerBand)
	case config.RowsPerBand > 64:
		return nil, errs.Configuration("rows per band %d exceeds 64", config.RowsPerBand)
	}

	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^seedMix))
	planes := make([][]float64, config.Bands*config.RowsPerBand)
	for i := range planes {
		plane := make([]float64, config.Dimensions)
		for j := range plane {
			plane[j] = 2*rng.Float64() - 1
		}
		norm := floats.Norm(plane, 2)
		if norm == 0 {
			return nil, errs.Configuration("hyperplane %d is degenerate", i)
		}
		floats.Scale(1/norm, plane)
		planes[i] = plane
	}

	return &Partitioner{
		config:   config,
		planes:   planes,
		hexWidth: (config.RowsPerBand + 3) / 4,
	}, nil
}

// Config returns the construction config.
func (p *Partitioner) Config() Config {
	return p.config
}

// #endregion partitioner

// #region region-id

// RegionID returns the strict banded signature of v.
func (p *Partitioner) RegionID(v fingerprint.Fingerprint) (RegionID, error) {
	margins, err := p.margins(v)
	if err != nil {
		return "", err
	}
	return p.format(signBits(margins)), nil
}

// BandKeys returns one key per band. Two fingerprints share a band key iff
// they agree on every hyperplane of that band.
func (p *Partitioner) BandKeys(v fingerprint.Fingerprint) ([]string, error) {
	id, err := p.RegionID(v)
	if err != nil {
		return nil, err
	}
	return bandKeys(id), nil
}

// #endregion region-id

// #region nearby

type probe struct {
	flips []int
	score float64
}

// NearbyRegions returns at most k regions ordered by estimated proximity to v,
// starting with v's own region. Candidates come from flipping up to two
// hyperplane bits, scored by the squared margins of the flipped bits so that
// bits nearest their boundary flip first.
func (p *Partitioner) NearbyRegions(v fingerprint.Fingerprint, k int) ([]RegionID, error) {
	if k <= 0 {
		return nil, errs.Invalid("neighbors must be positive, got %d", k)
	}
	margins, err := p.margins(v)
	if err != nil {
		return nil, err
	}
	bits := signBits(margins)

	probes := []probe{{score: 0}}
	for i, m := range margins {
		probes = append(probes, probe{flips: []int{i}, score: m * m})
	}
	if k > len(probes) {
		order := make([]int, len(margins))
		for i := range order {
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			return cmp.Compare(margins[a]*margins[a], margins[b]*margins[b])
		})
		width := min(pairProbeWidth, len(order))
		for x := 0; x < width; x++ {
			for y := x + 1; y < width; y++ {
				i, j := min(order[x], order[y]), max(order[x], order[y])
				probes = append(probes, probe{
					flips: []int{i, j},
					score: margins[i]*margins[i] + margins[j]*margins[j],
				})
			}
		}
	}

	slices.SortStableFunc(probes, func(a, b probe) int {
		if c := cmp.Compare(a.score, b.score); c != 0 {
			return c
		}
		if c := cmp.Compare(len(a.flips), len(b.flips)); c != 0 {
			return c
		}
		return slices.Compare(a.flips, b.flips)
	})

	limit := min(k, len(probes))
	seen := make(map[RegionID]struct{}, limit)
	out := make([]RegionID, 0, limit)
	flipped := make([]bool, len(bits))
	for _, pr := range probes {
		if len(out) == limit {
			break
		}
		copy(flipped, bits)
		for _, i := range pr.flips {
			flipped[i] = !flipped[i]
		}
		id := p.format(flipped)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// #endregion nearby

// #region similarity

// CosineSimilarity is the normalized dot product of a and b; 0 when either
// has zero magnitude.
func (p *Partitioner) CosineSimilarity(a, b fingerprint.Fingerprint) float64 {
	return fingerprint.Cosine(a, b)
}

// #endregion similarity

// #region helpers

// margins returns the signed distance of v to every hyperplane.
func (p *Partitioner) margins(v fingerprint.Fingerprint) ([]float64, error) {
	if len(v) != p.config.Dimensions {
		return nil, errs.Invalid("fingerprint has %d dimensions, partitioner expects %d", len(v), p.config.Dimensions)
	}
	out := make([]float64, len(p.planes))
	for i, plane := range p.planes {
		out[i] = floats.Dot(v, plane)
	}
	return out, nil
}

func signBits(margins []float64) []bool {
	bits := make([]bool, len(margins))
	for i, m := range margins {
		bits[i] = m >= 0
	}
	return bits
}

// format packs bits band by band; the first row of a band is the high bit.
func (p *Partitioner) format(bits []bool) RegionID {
	r := p.config.RowsPerBand
	groups := make([]string, p.config.Bands)
	for b := range groups {
		var sig uint64
		for i := 0; i < r; i++ {
			sig <<= 1
			if bits[b*r+i] {
				sig |= 1
			}
		}
		groups[b] = fmt.Sprintf("%0*x", p.hexWidth, sig)
	}
	return RegionID(strings.Join(groups, "-"))
}

func bandKeys(id RegionID) []string {
	groups := strings.Split(string(id), "-")
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = fmt.Sprintf("%d:%s", i, g)
	}
	return keys
}

// #endregion helpers
