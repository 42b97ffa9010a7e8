package adpc

import (
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/familiarity"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region config
// Config bundles the four component configs. Their Dimensions must agree.
type Config struct {
	Encoder     fingerprint.Config `json:"encoder"`
	Partition   partition.Config   `json:"partition"`
	Familiarity familiarity.Config `json:"familiarity"`
	Allocation  allocate.Config    `json:"allocation"`
}

// DefaultConfig returns the default of every component at 128 dimensions.
func DefaultConfig() Config {
	return Config{
		Encoder:     fingerprint.DefaultConfig(),
		Partition:   partition.DefaultConfig(),
		Familiarity: familiarity.DefaultConfig(),
		Allocation:  allocate.DefaultConfig(),
	}
}
// #endregion config

// #region observation
// Observation is one pass of a symbol through the pipeline. Novelty is the
// value before the activation was recorded. Decision is zero for probes.
type Observation struct {
	Symbol      string                  `json:"symbol"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Region      partition.RegionID      `json:"region"`
	Novelty     float64                 `json:"novelty"`
	Decision    allocate.Decision       `json:"decision"`
}
// #endregion observation

// #region snapshot
// Snapshot is the mutable state of a Core, suitable for external persistence.
type Snapshot struct {
	Exposures   []familiarity.Record `json:"exposures"`
	Allocations []allocate.State     `json:"allocations"`
}
// #endregion snapshot

// #region distribution
// Distribution summarizes how a sample of symbols spreads over regions.
type Distribution struct {
	Total          int                        `json:"total"`
	Unique         int                        `json:"unique"`
	UniqueFraction float64                    `json:"unique_fraction"`
	LargestRegion  partition.RegionID         `json:"largest_region"`
	LargestShare   float64                    `json:"largest_share"`
	Counts         map[partition.RegionID]int `json:"counts"`
}
// #endregion distribution
