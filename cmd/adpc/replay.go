package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/logging"
	"github.com/danielpatrickdp/adpc/internal/replay"
	"github.com/danielpatrickdp/adpc/internal/store"
)

var errReplayMismatch = errors.New("replay diverged from expected results")

// #region replay
func NewReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay a fixture on a fresh core and compare actions",
		Long:  `Observe every fixture event on an empty in-memory core. Fails when any action differs from the fixture's expected results.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := replay.LoadFixture(args[0])
	if err != nil {
		return err
	}
	results, summary, err := replay.Replay(f.ToEvents(), f.Config.ToCoreConfig())
	if err != nil {
		return err
	}
	mismatches := replay.Compare(results, f.ExpectedResults)

	if asJSON(cmd) {
		if err := writeJSON(cmd, struct {
			Description string            `json:"description"`
			Results     []replay.Result   `json:"results"`
			Summary     replay.Summary    `json:"summary"`
			Mismatches  []replay.Mismatch `json:"mismatches"`
		}{f.Description, results, summary, mismatches}); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		if f.Description != "" {
			fmt.Fprintln(out, f.Description)
		}
		t := newTable(out, "ID", "Symbol", "Region", "Novelty", "Action", "Involved", "Created")
		for _, r := range results {
			t.AppendRow([]any{r.ID, r.Symbol, r.Region, formatNovelty(r.Novelty), r.Action, r.InvolvedCount, r.CreatedCount})
		}
		t.Render()
		fmt.Fprintf(out, "events %d: pending %d, commit %d, reuse %d, invalid %d, regions %d\n",
			summary.Total, summary.Pending, summary.Commits, summary.Reuses, summary.Invalid, summary.Regions)
		for _, m := range mismatches {
			fmt.Fprintf(out, "mismatch %s: expected %q, got %q\n", m.ID, m.Expected, m.Actual)
		}
	}

	if len(mismatches) > 0 {
		return fmt.Errorf("%w: %d of %d events", errReplayMismatch, len(mismatches), len(results))
	}
	return nil
}
// #endregion replay

// #region export
func NewExportFixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Write the allocation log as a replay fixture",
		Long: `Turn logged allocation decisions into a replay fixture. The logged
actions become the expected results, so the fixture only reproduces when
the log started from an empty state.`,
		Args: cobra.NoArgs,
		RunE: runExportFixture,
	}

	cmd.Flags().String("out", "", "Output fixture path (required)")
	cmd.Flags().String("key", "", "Only export decisions for this concept key")
	cmd.Flags().Int("last", 0, "Export only the most recent N decisions (0 exports all)")
	cmd.Flags().String("description", "exported from allocation log", "Fixture description")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func runExportFixture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	key, _ := cmd.Flags().GetString("key")
	last, _ := cmd.Flags().GetInt("last")
	if last <= 0 {
		last = -1
	}
	entries, err := logging.ListAllocations(st.DB(), key, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.New("allocation log is empty")
	}

	coreCfg := cfg.Core()
	if id, err := st.ActiveID(); err == nil {
		if coreCfg, err = st.LoadConfig(id); err != nil {
			return err
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	description, _ := cmd.Flags().GetString("description")
	f, err := replay.FixtureFromLog(description, entries, fixtureConfig(coreCfg))
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if err := replay.SaveFixture(out, f); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", len(f.Events), out)
	return nil
}

// fixtureConfig keeps the settings a fixture can carry.
func fixtureConfig(c adpc.Config) replay.FixtureConfig {
	return replay.FixtureConfig{
		GrowthThreshold: c.Allocation.GrowthThreshold,
		Seed:            c.Partition.Seed,
		Bands:           c.Partition.Bands,
		RowsPerBand:     c.Partition.RowsPerBand,
		HalfLife:        c.Familiarity.HalfLife,
	}
}
// #endregion export
