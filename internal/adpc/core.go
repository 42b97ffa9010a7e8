package adpc

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/familiarity"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/metrics"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region core
// Core wires Encoder → Partitioner → Tracker → Allocator. Only the tracker
// and the allocator hold mutable state; both serialize per region or key.
type Core struct {
	config      Config
	encoder     *fingerprint.Encoder
	partitioner *partition.Partitioner
	tracker     *familiarity.Tracker
	allocator   *allocate.Allocator
	index       *partition.BandIndex
	metrics     *metrics.Recorder
}

// Option configures a Core at construction.
type Option func(*Core)

// WithMetrics attaches a metrics recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Core) { c.metrics = r }
}

// New builds every component from config.
func New(config Config, opts ...Option) (*Core, error) {
	d := config.Encoder.Dimensions
	if config.Partition.Dimensions != d || config.Familiarity.Dimensions != d || config.Allocation.Dimensions != d {
		return nil, errs.Configuration("component dimensions disagree: encoder %d, partition %d, familiarity %d, allocation %d",
			d, config.Partition.Dimensions, config.Familiarity.Dimensions, config.Allocation.Dimensions)
	}

	enc, err := fingerprint.NewEncoder(config.Encoder)
	if err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	part, err := partition.New(config.Partition)
	if err != nil {
		return nil, fmt.Errorf("partitioner: %w", err)
	}
	tr, err := familiarity.New(config.Familiarity)
	if err != nil {
		return nil, fmt.Errorf("tracker: %w", err)
	}
	alloc, err := allocate.New(config.Allocation)
	if err != nil {
		return nil, fmt.Errorf("allocator: %w", err)
	}

	c := &Core{
		config:      config,
		encoder:     enc,
		partitioner: part,
		tracker:     tr,
		allocator:   alloc,
		index:       partition.NewBandIndex(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the construction config.
func (c *Core) Config() Config {
	return c.config
}
// #endregion core

// #region component-calls
func (c *Core) Encode(symbol string) (fingerprint.Fingerprint, error) {
	v, err := c.encoder.Encode(symbol)
	if err != nil {
		return nil, err
	}
	c.metrics.Encoded(1)
	return v, nil
}

func (c *Core) EncodePhrase(text string) (fingerprint.Fingerprint, error) {
	v, err := c.encoder.EncodePhrase(text)
	if err != nil {
		return nil, err
	}
	c.metrics.Encoded(1)
	return v, nil
}

func (c *Core) RegionID(v fingerprint.Fingerprint) (partition.RegionID, error) {
	return c.partitioner.RegionID(v)
}

func (c *Core) NearbyRegions(v fingerprint.Fingerprint, k int) ([]partition.RegionID, error) {
	return c.partitioner.NearbyRegions(v, k)
}

func (c *Core) CosineSimilarity(a, b fingerprint.Fingerprint) float64 {
	return c.partitioner.CosineSimilarity(a, b)
}

func (c *Core) CalculateNovelty(region partition.RegionID, v fingerprint.Fingerprint) (float64, error) {
	return c.tracker.CalculateNovelty(region, v)
}

// RecordActivation records one activation and registers region for Related.
func (c *Core) RecordActivation(region partition.RegionID, v fingerprint.Fingerprint) error {
	if err := c.tracker.RecordActivation(region, v); err != nil {
		return err
	}
	c.index.Observe(region)
	c.metrics.Activated()
	return nil
}

func (c *Core) Allocate(key string, v fingerprint.Fingerprint, novelty float64, opts ...allocate.Option) (allocate.Decision, error) {
	d, err := c.allocator.Allocate(key, v, novelty, opts...)
	if err != nil {
		return allocate.Decision{}, err
	}
	c.metrics.Allocated(string(d.Action))
	return d, nil
}
// #endregion component-calls

// #region observe
// Observe runs symbol through the full pipeline: encode, assign a region,
// read novelty, record the activation, then allocate under the normalized
// symbol as concept key.
func (c *Core) Observe(symbol string, opts ...allocate.Option) (Observation, error) {
	obs, err := c.Probe(symbol)
	if err != nil {
		return Observation{}, err
	}
	if err := c.RecordActivation(obs.Region, obs.Fingerprint); err != nil {
		return Observation{}, fmt.Errorf("record activation: %w", err)
	}
	obs.Decision, err = c.Allocate(obs.Symbol, obs.Fingerprint, obs.Novelty, opts...)
	if err != nil {
		return Observation{}, fmt.Errorf("allocate: %w", err)
	}
	return obs, nil
}

// Probe encodes symbol and reads its region and novelty without mutating
// any state.
func (c *Core) Probe(symbol string) (Observation, error) {
	v, err := c.Encode(symbol)
	if err != nil {
		return Observation{}, err
	}
	region, err := c.partitioner.RegionID(v)
	if err != nil {
		return Observation{}, fmt.Errorf("region: %w", err)
	}
	novelty, err := c.tracker.CalculateNovelty(region, v)
	if err != nil {
		return Observation{}, fmt.Errorf("novelty: %w", err)
	}
	c.metrics.Novelty(novelty)
	return Observation{
		Symbol:      fingerprint.Normalize(symbol),
		Fingerprint: v,
		Region:      region,
		Novelty:     novelty,
	}, nil
}
// #endregion observe

// #region batch
// EncodeBatch encodes symbols with at most parallel workers, preserving input
// order. The first error or a cancelled ctx stops the remaining work.
func (c *Core) EncodeBatch(ctx context.Context, symbols []string, parallel int) ([]fingerprint.Fingerprint, error) {
	if parallel <= 0 {
		return nil, errs.Invalid("parallelism must be positive, got %d", parallel)
	}
	out := make([]fingerprint.Fingerprint, len(symbols))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, s := range symbols {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := c.encoder.Encode(s)
			if err != nil {
				return fmt.Errorf("symbol %d: %w", i, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.metrics.Encoded(len(symbols))
	return out, nil
}
// #endregion batch

// #region distribution
// Distribution assigns every symbol a region and reports how evenly they
// spread. It does not record activations.
func (c *Core) Distribution(symbols []string) (Distribution, error) {
	if len(symbols) == 0 {
		return Distribution{}, errs.Invalid("distribution needs at least one symbol")
	}
	counts := make(map[partition.RegionID]int)
	for _, s := range symbols {
		v, err := c.encoder.Encode(s)
		if err != nil {
			return Distribution{}, fmt.Errorf("encode %q: %w", s, err)
		}
		id, err := c.partitioner.RegionID(v)
		if err != nil {
			return Distribution{}, fmt.Errorf("region %q: %w", s, err)
		}
		counts[id]++
	}

	d := Distribution{Total: len(symbols), Unique: len(counts), Counts: counts}
	largest := 0
	for id, n := range counts {
		if n > largest || (n == largest && id < d.LargestRegion) {
			largest, d.LargestRegion = n, id
		}
	}
	d.UniqueFraction = float64(d.Unique) / float64(d.Total)
	d.LargestShare = float64(largest) / float64(d.Total)
	return d, nil
}
// #endregion distribution

// #region related
// Related returns up to k previously activated regions sharing at least one
// band with symbol's region.
func (c *Core) Related(symbol string, k int) ([]partition.RegionID, error) {
	if k <= 0 {
		return nil, errs.Invalid("neighbors must be positive, got %d", k)
	}
	v, err := c.Encode(symbol)
	if err != nil {
		return nil, err
	}
	id, err := c.partitioner.RegionID(v)
	if err != nil {
		return nil, err
	}
	return c.index.Related(id, k), nil
}
// #endregion related

// #region snapshot
// Snapshot copies tracker and allocator state.
func (c *Core) Snapshot() Snapshot {
	return Snapshot{
		Exposures:   c.tracker.Snapshot(),
		Allocations: c.allocator.Snapshot(),
	}
}

// Restore replaces tracker and allocator state with snap. On error the Core
// is unchanged. Restore must not run concurrently with other calls.
func (c *Core) Restore(snap Snapshot) error {
	tr, err := familiarity.New(c.config.Familiarity)
	if err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if err := tr.Restore(snap.Exposures); err != nil {
		return fmt.Errorf("restore exposures: %w", err)
	}
	alloc, err := allocate.New(c.config.Allocation)
	if err != nil {
		return fmt.Errorf("allocator: %w", err)
	}
	if err := alloc.Restore(snap.Allocations); err != nil {
		return fmt.Errorf("restore allocations: %w", err)
	}
	index := partition.NewBandIndex()
	for _, r := range snap.Exposures {
		index.Observe(r.Region)
	}
	c.tracker, c.allocator, c.index = tr, alloc, index
	return nil
}
// #endregion snapshot
