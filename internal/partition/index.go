package partition

import (
	"cmp"
	"math/bits"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// #region band-index

// BandIndex remembers observed regions and relaxes strict region equality to
// "agrees on at least one band". Regions are added lazily and never removed.
type BandIndex struct {
	mu      sync.RWMutex
	regions map[RegionID]struct{}
	bands   map[string]map[RegionID]struct{}
}

// NewBandIndex returns an empty index.
func NewBandIndex() *BandIndex {
	return &BandIndex{
		regions: make(map[RegionID]struct{}),
		bands:   make(map[string]map[RegionID]struct{}),
	}
}

// Observe records id. It reports whether the region was new.
func (ix *BandIndex) Observe(id RegionID) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.regions[id]; ok {
		return false
	}
	ix.regions[id] = struct{}{}
	for _, key := range bandKeys(id) {
		set, ok := ix.bands[key]
		if !ok {
			set = make(map[RegionID]struct{})
			ix.bands[key] = set
		}
		set[id] = struct{}{}
	}
	return true
}

// Len returns the number of distinct regions observed.
func (ix *BandIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.regions)
}

// Related returns up to k observed regions, other than id itself, that share
// at least one band with id. Results are ranked by agreeing bands (desc),
// then bit distance (asc), then id.
func (ix *BandIndex) Related(id RegionID, k int) []RegionID {
	if k <= 0 {
		return nil
	}
	ix.mu.RLock()
	shared := make(map[RegionID]int)
	for _, key := range bandKeys(id) {
		for other := range ix.bands[key] {
			if other != id {
				shared[other]++
			}
		}
	}
	ix.mu.RUnlock()

	type candidate struct {
		id      RegionID
		bands   int
		hamming int
	}
	cands := make([]candidate, 0, len(shared))
	for other, n := range shared {
		cands = append(cands, candidate{id: other, bands: n, hamming: Hamming(id, other)})
	}
	slices.SortFunc(cands, func(a, b candidate) int {
		if c := cmp.Compare(b.bands, a.bands); c != 0 {
			return c
		}
		if c := cmp.Compare(a.hamming, b.hamming); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	out := make([]RegionID, 0, min(k, len(cands)))
	for _, c := range cands[:min(k, len(cands))] {
		out = append(out, c.id)
	}
	return out
}

// #endregion band-index

// #region hamming

// Hamming counts differing hyperplane bits between two region ids of the same
// shape. Ids of different shape are treated as maximally distant.
func Hamming(a, b RegionID) int {
	ga := strings.Split(string(a), "-")
	gb := strings.Split(string(b), "-")
	if len(ga) != len(gb) {
		return len(a) * 4
	}
	dist := 0
	for i := range ga {
		x, errA := strconv.ParseUint(ga[i], 16, 64)
		y, errB := strconv.ParseUint(gb[i], 16, 64)
		if errA != nil || errB != nil {
			return len(a) * 4
		}
		dist += bits.OnesCount64(x ^ y)
	}
	return dist
}

// #endregion hamming
