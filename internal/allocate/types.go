package allocate

// #region action
// Action names the state transition an allocation call produced.
type Action string

const (
	ActionPending Action = "pending" // below growth threshold, nothing created
	ActionCommit  Action = "commit"  // threshold reached on this call
	ActionReuse   Action = "reuse"   // already committed
)
// #endregion action

// #region decision
// Decision is the result of one Allocate call. CreatedCount is nonzero only
// when Action is ActionCommit.
type Decision struct {
	Key             string  `json:"key"`
	InvolvedCount   int     `json:"involved_count"`
	CreatedCount    int     `json:"created_count"`
	Action          Action  `json:"action"`
	ExposureCount   int64   `json:"exposure_count"`
	Complexity      float64 `json:"complexity"`
	RawScore        float64 `json:"raw_score"`
	GrowthThreshold int     `json:"growth_threshold"`
}
// #endregion decision

// #region state
// State is the per-concept record. CommittedCount is meaningful only when
// HasCommitted is true.
type State struct {
	Key            string `json:"key"`
	ExposureCount  int64  `json:"exposure_count"`
	CommittedCount int    `json:"committed_count"`
	HasCommitted   bool   `json:"has_committed"`
}
// #endregion state

// #region config
// Config fixes the allocation policy. The raw score is
//
//	Base + NoveltyWeight*novelty + ComplexityWeight*complexity + ExposureWeight*ln(1+prior)
//
// where prior is the exposure count before the current call. The rounded
// score is clamped to [Min, Max].
type Config struct {
	Dimensions       int
	GrowthThreshold  int
	Min              int
	Max              int
	Base             float64
	NoveltyWeight    float64
	ComplexityWeight float64
	ExposureWeight   float64
}

// DefaultConfig returns the standard policy: threshold 3, bounds [5, 500].
func DefaultConfig() Config {
	return Config{
		Dimensions:       128,
		GrowthThreshold:  3,
		Min:              5,
		Max:              500,
		Base:             5,
		NoveltyWeight:    120,
		ComplexityWeight: 6,
		ExposureWeight:   4,
	}
}
// #endregion config

// #region options
type callOptions struct {
	threshold int
}

// Option adjusts a single Allocate call.
type Option func(*callOptions)

// WithGrowthThreshold overrides the configured growth threshold for one call.
func WithGrowthThreshold(n int) Option {
	return func(o *callOptions) { o.threshold = n }
}
// #endregion options
