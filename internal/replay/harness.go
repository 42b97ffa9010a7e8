package replay

import (
	"fmt"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// ActionInvalid marks an event the core rejected.
const ActionInvalid = "invalid"

// #region types
// Event is one recorded observation for replay.
type Event struct {
	ID              string
	Symbol          string
	GrowthThreshold int
}

// Result captures the outcome of replaying one event.
type Result struct {
	ID            string
	Symbol        string
	Region        partition.RegionID
	Novelty       float64
	Action        string // "pending" | "commit" | "reuse" | "invalid"
	Reason        string
	InvolvedCount int
	CreatedCount  int
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total    int
	Pending  int
	Commits  int
	Reuses   int
	Invalid  int
	Regions  int
	Snapshot adpc.Snapshot
}
// #endregion types

// #region replay
// Replay observes every event on a fresh in-memory Core built from config.
// Rejected events are reported with ActionInvalid and do not stop the run.
func Replay(events []Event, config adpc.Config) ([]Result, Summary, error) {
	core, err := adpc.New(config)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("build core: %w", err)
	}

	results := make([]Result, 0, len(events))
	for _, ev := range events {
		var opts []allocate.Option
		if ev.GrowthThreshold != 0 {
			opts = append(opts, allocate.WithGrowthThreshold(ev.GrowthThreshold))
		}
		obs, err := core.Observe(ev.Symbol, opts...)
		if err != nil {
			results = append(results, Result{ID: ev.ID, Symbol: ev.Symbol, Action: ActionInvalid, Reason: err.Error()})
			continue
		}
		results = append(results, Result{
			ID:            ev.ID,
			Symbol:        obs.Symbol,
			Region:        obs.Region,
			Novelty:       obs.Novelty,
			Action:        string(obs.Decision.Action),
			InvolvedCount: obs.Decision.InvolvedCount,
			CreatedCount:  obs.Decision.CreatedCount,
		})
	}

	return results, Summarize(results, core.Snapshot()), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, snap adpc.Snapshot) Summary {
	s := Summary{Total: len(results), Regions: len(snap.Exposures), Snapshot: snap}
	for _, r := range results {
		switch r.Action {
		case string(allocate.ActionPending):
			s.Pending++
		case string(allocate.ActionCommit):
			s.Commits++
		case string(allocate.ActionReuse):
			s.Reuses++
		case ActionInvalid:
			s.Invalid++
		}
	}
	return s
}

// Mismatch is one event whose replayed action differs from the fixture.
type Mismatch struct {
	ID       string
	Expected string
	Actual   string
}

// Compare checks results against a fixture's expected actions by position.
func Compare(results []Result, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	for i, want := range expected {
		got := ""
		if i < len(results) {
			got = results[i].Action
		}
		if got != want.Action {
			out = append(out, Mismatch{ID: want.ID, Expected: want.Action, Actual: got})
		}
	}
	for i := len(expected); i < len(results); i++ {
		out = append(out, Mismatch{ID: results[i].ID, Actual: results[i].Action})
	}
	return out
}
// #endregion replay
