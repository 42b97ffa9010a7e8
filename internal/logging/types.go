package logging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adpc/internal/adpc"
)

// #region allocation-entry
// AllocationEntry is a single row in the allocation_log table.
type AllocationEntry struct {
	ID            int64
	VersionID     string // snapshot active when the decision was made, may be empty
	ConceptKey    string
	Region        string
	Novelty       float64
	Action        string // "pending" | "commit" | "reuse"
	InvolvedCount int
	CreatedCount  int
	ExposureCount int64
	DecisionJSON  string
	CreatedAt     time.Time
}
// #endregion allocation-entry

// #region from-observation
// EntryFromObservation flattens one pipeline observation into a log entry.
// The full decision is kept as JSON for replay.
func EntryFromObservation(obs adpc.Observation, versionID string) (AllocationEntry, error) {
	raw, err := json.Marshal(obs.Decision)
	if err != nil {
		return AllocationEntry{}, fmt.Errorf("marshal decision: %w", err)
	}
	return AllocationEntry{
		VersionID:     versionID,
		ConceptKey:    obs.Decision.Key,
		Region:        string(obs.Region),
		Novelty:       obs.Novelty,
		Action:        string(obs.Decision.Action),
		InvolvedCount: obs.Decision.InvolvedCount,
		CreatedCount:  obs.Decision.CreatedCount,
		ExposureCount: obs.Decision.ExposureCount,
		DecisionJSON:  string(raw),
	}, nil
}
// #endregion from-observation
