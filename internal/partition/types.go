package partition

// #region region-id

// RegionID identifies a bucket: one zero-padded hex signature per band,
// joined with "-". Two fingerprints share a RegionID iff they agree on every
// hyperplane sign.
type RegionID string

// #endregion region-id

// #region config

// Config fixes the hyperplane family. Identical configs yield identical
// region assignment across process restarts.
type Config struct {
	Dimensions  int    // fingerprint length D
	Bands       int    // B
	RowsPerBand int    // R, at most 64
	Seed        uint64 // hyperplane seed
}

// DefaultConfig returns 4 bands of 4 rows over 128 dimensions.
func DefaultConfig() Config {
	return Config{
		Dimensions:  128,
		Bands:       4,
		RowsPerBand: 4,
		Seed:        42,
	}
}

// #endregion config

// #region probe-limits

// pairProbeWidth bounds pair probes to the lowest-margin bits.
const pairProbeWidth = 12

// #endregion probe-limits
