package familiarity

import "github.com/danielpatrickdp/adpc/internal/partition"

// #region record
// Record is the exposure state of one region.
type Record struct {
	Region           partition.RegionID `json:"region"`
	ObservationCount int64              `json:"observation_count"`
}
// #endregion record

// #region config
// Config controls the novelty decay curve.
type Config struct {
	Dimensions int     // expected fingerprint length
	HalfLife   float64 // observations that halve novelty
	Floor      float64 // lower bound on novelty, in [0,1)
}

// DefaultConfig returns a half-life of 10 observations over 128 dimensions.
func DefaultConfig() Config {
	return Config{
		Dimensions: 128,
		HalfLife:   10,
		Floor:      0,
	}
}
// #endregion config
