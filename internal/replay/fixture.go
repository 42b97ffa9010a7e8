package replay

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/logging"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Events          []FixtureEvent          `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig overrides selected core settings. Zero fields keep the
// default.
type FixtureConfig struct {
	GrowthThreshold int     `json:"growth_threshold,omitempty"`
	Seed            uint64  `json:"seed,omitempty"`
	Bands           int     `json:"bands,omitempty"`
	RowsPerBand     int     `json:"rows_per_band,omitempty"`
	HalfLife        float64 `json:"half_life,omitempty"`
}

// FixtureEvent is one symbol to observe. GrowthThreshold overrides the
// configured threshold for that call only.
type FixtureEvent struct {
	ID              string `json:"id"`
	Symbol          string `json:"symbol"`
	GrowthThreshold int    `json:"growth_threshold,omitempty"`
}

// FixtureExpectedResult captures the expected action per event.
type FixtureExpectedResult struct {
	ID     string `json:"id"`
	Action string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToCoreConfig applies the overrides to the default pipeline config.
func (fc *FixtureConfig) ToCoreConfig() adpc.Config {
	cfg := adpc.DefaultConfig()
	if fc.GrowthThreshold != 0 {
		cfg.Allocation.GrowthThreshold = fc.GrowthThreshold
	}
	if fc.Seed != 0 {
		cfg.Partition.Seed = fc.Seed
	}
	if fc.Bands != 0 {
		cfg.Partition.Bands = fc.Bands
	}
	if fc.RowsPerBand != 0 {
		cfg.Partition.RowsPerBand = fc.RowsPerBand
	}
	if fc.HalfLife != 0 {
		cfg.Familiarity.HalfLife = fc.HalfLife
	}
	return cfg
}

// ToEvent converts a FixtureEvent to a domain Event.
func (fe *FixtureEvent) ToEvent() Event {
	return Event{ID: fe.ID, Symbol: fe.Symbol, GrowthThreshold: fe.GrowthThreshold}
}

// ToEvents converts every fixture event.
func (f *Fixture) ToEvents() []Event {
	out := make([]Event, len(f.Events))
	for i := range f.Events {
		out[i] = f.Events[i].ToEvent()
	}
	return out
}

// #endregion fixture-loader

// #region fixture-export

// FixtureFromLog builds a fixture from allocation log entries, oldest first
// after sorting by id. The logged actions become the expected results, so
// the fixture only reproduces if the log started from an empty core.
func FixtureFromLog(description string, entries []logging.AllocationEntry, cfg FixtureConfig) (*Fixture, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b logging.AllocationEntry) int { return cmp.Compare(a.ID, b.ID) })

	base := cfg.ToCoreConfig().Allocation.GrowthThreshold
	f := &Fixture{Description: description, Config: cfg}
	for i, e := range sorted {
		id := fmt.Sprintf("e%03d", i+1)
		ev := FixtureEvent{ID: id, Symbol: e.ConceptKey}
		if e.DecisionJSON != "" {
			var d allocate.Decision
			if err := json.Unmarshal([]byte(e.DecisionJSON), &d); err != nil {
				return nil, fmt.Errorf("entry %d decision: %w", e.ID, err)
			}
			if d.GrowthThreshold != 0 && d.GrowthThreshold != base {
				ev.GrowthThreshold = d.GrowthThreshold
			}
		}
		f.Events = append(f.Events, ev)
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{ID: id, Action: e.Action})
	}
	return f, nil
}

// #endregion fixture-export
