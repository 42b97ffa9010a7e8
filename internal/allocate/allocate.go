package allocate

import (
	"cmp"
	"math"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
)

type entry struct {
	mu    sync.Mutex
	state State
}

// #region allocator
// Allocator converts novelty and a static complexity estimate into a bounded
// resource count, committing once per concept key.
type Allocator struct {
	config Config
	mu     sync.RWMutex
	keys   map[string]*entry
}

// New validates config and returns an allocator with no state.
func New(config Config) (*Allocator, error) {
	switch {
	case config.Dimensions <= 0:
		return nil, errs.Configuration("allocator dimensions must be positive, got %d", config.Dimensions)
	case config.GrowthThreshold <= 0:
		return nil, errs.Configuration("growth threshold must be positive, got %d", config.GrowthThreshold)
	case config.Min < 1:
		return nil, errs.Configuration("allocation minimum must be at least 1, got %d", config.Min)
	case config.Min > config.Max:
		return nil, errs.Configuration("allocation bounds [%d, %d] are inverted", config.Min, config.Max)
	}
	for name, w := range map[string]float64{
		"base":              config.Base,
		"novelty weight":    config.NoveltyWeight,
		"complexity weight": config.ComplexityWeight,
		"exposure weight":   config.ExposureWeight,
	} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errs.Configuration("%s must be finite, got %v", name, w)
		}
	}
	return &Allocator{
		config: config,
		keys:   make(map[string]*entry),
	}, nil
}

// Config returns the construction config.
func (a *Allocator) Config() Config {
	return a.config
}
// #endregion allocator

// #region allocate
// Allocate records one exposure of key and returns the decision. Calls for
// the same key are serialized; once a key has committed every later call
// reuses the committed count regardless of its inputs.
func (a *Allocator) Allocate(key string, fp fingerprint.Fingerprint, novelty float64, opts ...Option) (Decision, error) {
	o := callOptions{threshold: a.config.GrowthThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	switch {
	case key == "":
		return Decision{}, errs.Invalid("concept key is empty")
	case !utf8.ValidString(key):
		return Decision{}, errs.Invalid("concept key %q is not valid UTF-8", key)
	case len(fp) != a.config.Dimensions:
		return Decision{}, errs.Invalid("fingerprint has %d dimensions, allocator expects %d", len(fp), a.config.Dimensions)
	case math.IsNaN(novelty):
		return Decision{}, errs.Invalid("novelty is NaN")
	case o.threshold <= 0:
		return Decision{}, errs.Invalid("growth threshold must be positive, got %d", o.threshold)
	}
	novelty = min(1, max(0, novelty))

	e := a.lookup(key)
	e.mu.Lock()
	defer e.mu.Unlock()

	prior := e.state.ExposureCount
	e.state.ExposureCount++

	d := Decision{
		Key:             key,
		ExposureCount:   e.state.ExposureCount,
		GrowthThreshold: o.threshold,
	}
	if e.state.HasCommitted {
		d.Action = ActionReuse
		d.InvolvedCount = e.state.CommittedCount
		return d, nil
	}

	d.Complexity = Complexity(key, fp)
	d.RawScore = a.config.Base +
		a.config.NoveltyWeight*novelty +
		a.config.ComplexityWeight*d.Complexity +
		a.config.ExposureWeight*math.Log1p(float64(prior))
	d.InvolvedCount = a.clamp(d.RawScore)

	if e.state.ExposureCount >= int64(o.threshold) {
		e.state.HasCommitted = true
		e.state.CommittedCount = d.InvolvedCount
		d.Action = ActionCommit
		d.CreatedCount = d.InvolvedCount
		return d, nil
	}
	d.Action = ActionPending
	return d, nil
}

// Complexity is a pure estimate from the key's shape and the fingerprint's
// magnitude: runes + distinct/2 + 2*pattern hits + |fp|.
func Complexity(key string, fp fingerprint.Fingerprint) float64 {
	shape := fingerprint.ShapeOf(fingerprint.Normalize(key))
	return float64(shape.Runes) +
		0.5*float64(shape.Distinct) +
		2*float64(shape.PatternHits()) +
		fp.Norm()
}

func (a *Allocator) clamp(raw float64) int {
	if math.IsNaN(raw) {
		return a.config.Min
	}
	r := math.Round(raw)
	if r < float64(a.config.Min) {
		return a.config.Min
	}
	if r > float64(a.config.Max) {
		return a.config.Max
	}
	return int(r)
}
// #endregion allocate

// #region state-access
// State returns a copy of key's record.
func (a *Allocator) State(key string) (State, bool) {
	a.mu.RLock()
	e, ok := a.keys[key]
	a.mu.RUnlock()
	if !ok {
		return State{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// Len returns the number of keys with a record.
func (a *Allocator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.keys)
}

// Snapshot copies every record, sorted by key.
func (a *Allocator) Snapshot() []State {
	a.mu.RLock()
	out := make([]State, 0, len(a.keys))
	for _, e := range a.keys {
		e.mu.Lock()
		out = append(out, e.state)
		e.mu.Unlock()
	}
	a.mu.RUnlock()

	slices.SortFunc(out, func(x, y State) int { return cmp.Compare(x.Key, y.Key) })
	return out
}

// Restore replaces all records with states. Nothing is changed on error.
func (a *Allocator) Restore(states []State) error {
	next := make(map[string]*entry, len(states))
	for _, s := range states {
		switch {
		case s.Key == "":
			return errs.Invalid("allocation state has empty key")
		case s.ExposureCount < 0:
			return errs.Invalid("key %q has negative exposure count %d", s.Key, s.ExposureCount)
		case s.HasCommitted && (s.CommittedCount < a.config.Min || s.CommittedCount > a.config.Max):
			return errs.Invalid("key %q committed count %d outside [%d, %d]", s.Key, s.CommittedCount, a.config.Min, a.config.Max)
		}
		if _, dup := next[s.Key]; dup {
			return errs.Invalid("duplicate allocation state for key %q", s.Key)
		}
		if !s.HasCommitted {
			s.CommittedCount = 0
		}
		next[s.Key] = &entry{state: s}
	}

	a.mu.Lock()
	a.keys = next
	a.mu.Unlock()
	return nil
}
// #endregion state-access

func (a *Allocator) lookup(key string) *entry {
	a.mu.RLock()
	e, ok := a.keys[key]
	a.mu.RUnlock()
	if ok {
		return e
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok = a.keys[key]; !ok {
		e = &entry{state: State{Key: key}}
		a.keys[key] = e
	}
	return e
}
