package familiarity

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

type exposure struct {
	mu    sync.Mutex
	count int64
}

// #region tracker
// Tracker keeps one exposure record per observed region. Activations of the
// same region are serialized on that region's lock; different regions do not
// contend beyond the map lookup.
type Tracker struct {
	config  Config
	mu      sync.RWMutex
	regions map[partition.RegionID]*exposure
}

// New validates config and returns an empty tracker.
func New(config Config) (*Tracker, error) {
	switch {
	case config.Dimensions <= 0:
		return nil, errs.Configuration("tracker dimensions must be positive, got %d", config.Dimensions)
	case !(config.HalfLife > 0) || math.IsInf(config.HalfLife, 1):
		return nil, errs.Configuration("half-life must be positive and finite, got %v", config.HalfLife)
	case !(config.Floor >= 0 && config.Floor < 1):
		return nil, errs.Configuration("novelty floor must be in [0,1), got %v", config.Floor)
	}
	return &Tracker{
		config:  config,
		regions: make(map[partition.RegionID]*exposure),
	}, nil
}
// #endregion tracker

// #region record-activation
// RecordActivation increments the observation count of region.
func (t *Tracker) RecordActivation(region partition.RegionID, v fingerprint.Fingerprint) error {
	if err := t.validate(region, v); err != nil {
		return err
	}
	e := t.lookup(region, true)
	e.mu.Lock()
	e.count++
	e.mu.Unlock()
	return nil
}
// #endregion record-activation

// #region calculate-novelty
// CalculateNovelty returns max(Floor, 0.5^(n/HalfLife)) where n is the number
// of recorded activations of region. It never increases as n grows.
func (t *Tracker) CalculateNovelty(region partition.RegionID, v fingerprint.Fingerprint) (float64, error) {
	if err := t.validate(region, v); err != nil {
		return 0, err
	}
	return t.novelty(t.Count(region)), nil
}

func (t *Tracker) novelty(n int64) float64 {
	score := math.Pow(0.5, float64(n)/t.config.HalfLife)
	return min(1, max(t.config.Floor, score, 0))
}
// #endregion calculate-novelty

// #region accessors
// Count returns the observation count of region, 0 if never seen.
func (t *Tracker) Count(region partition.RegionID) int64 {
	e := t.lookup(region, false)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Len returns the number of regions with a record.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.regions)
}

// Config returns the construction config.
func (t *Tracker) Config() Config {
	return t.config
}
// #endregion accessors

// #region snapshot
// Snapshot copies every record, sorted by region.
func (t *Tracker) Snapshot() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.regions))
	for id, e := range t.regions {
		e.mu.Lock()
		out = append(out, Record{Region: id, ObservationCount: e.count})
		e.mu.Unlock()
	}
	t.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int { return cmp.Compare(a.Region, b.Region) })
	return out
}

// Restore replaces all records with records. Nothing is changed on error.
func (t *Tracker) Restore(records []Record) error {
	next := make(map[partition.RegionID]*exposure, len(records))
	for _, r := range records {
		if r.Region == "" {
			return errs.Invalid("exposure record has empty region")
		}
		if r.ObservationCount < 0 {
			return errs.Invalid("region %s has negative observation count %d", r.Region, r.ObservationCount)
		}
		if _, dup := next[r.Region]; dup {
			return errs.Invalid("duplicate exposure record for region %s", r.Region)
		}
		next[r.Region] = &exposure{count: r.ObservationCount}
	}

	t.mu.Lock()
	t.regions = next
	t.mu.Unlock()
	return nil
}
// #endregion snapshot

// #region helpers
func (t *Tracker) validate(region partition.RegionID, v fingerprint.Fingerprint) error {
	if region == "" {
		return errs.Invalid("region id is empty")
	}
	if len(v) != t.config.Dimensions {
		return errs.Invalid("fingerprint has %d dimensions, tracker expects %d", len(v), t.config.Dimensions)
	}
	return nil
}

func (t *Tracker) lookup(region partition.RegionID, create bool) *exposure {
	t.mu.RLock()
	e, ok := t.regions[region]
	t.mu.RUnlock()
	if ok || !create {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.regions[region]; !ok {
		e = &exposure{}
		t.regions[region] = e
	}
	return e
}
// #endregion helpers
