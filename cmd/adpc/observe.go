package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/logging"
)

func NewObserveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observe <symbols...>",
		Short: "Observe symbols against the persisted state",
		Long: `Load the active snapshot, observe every symbol in order, append each
decision to the allocation log and save a new snapshot. The log rows and
the snapshot are written in one transaction, and nothing is written when any
symbol is rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runObserve,
	}

	cmd.Flags().Int("threshold", 0, "Growth threshold for these observations (0 keeps the configured value)")
	cmd.Flags().String("note", "", "Note stored with the new snapshot")

	return cmd
}

func runObserve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	core, parentID, err := restoreCore(st, cfg.Core())
	if err != nil {
		return err
	}

	var opts []allocate.Option
	if n, _ := cmd.Flags().GetInt("threshold"); n != 0 {
		opts = append(opts, allocate.WithGrowthThreshold(n))
	}

	observations := make([]adpc.Observation, 0, len(args))
	for _, symbol := range args {
		obs, err := core.Observe(symbol, opts...)
		if err != nil {
			return fmt.Errorf("observe %q: %w", symbol, err)
		}
		observations = append(observations, obs)
	}

	entries := make([]logging.AllocationEntry, 0, len(observations))
	for _, obs := range observations {
		entry, err := logging.EntryFromObservation(obs, parentID)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	note, _ := cmd.Flags().GetString("note")
	if note == "" {
		note = fmt.Sprintf("observe %d symbols", len(observations))
	}
	rec, err := st.SaveSnapshotWith(core.Snapshot(), core.Config(), note, func(tx *sql.Tx) error {
		for _, e := range entries {
			if err := logging.LogAllocation(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if asJSON(cmd) {
		return writeJSON(cmd, struct {
			VersionID    string             `json:"version_id"`
			Observations []adpc.Observation `json:"observations"`
		}{rec.VersionID, observations})
	}

	t := newTable(cmd.OutOrStdout(), "Symbol", "Region", "Novelty", "Action", "Exposure", "Involved", "Created")
	for _, obs := range observations {
		d := obs.Decision
		t.AppendRow([]any{d.Key, obs.Region, formatNovelty(obs.Novelty), d.Action, d.ExposureCount, d.InvolvedCount, d.CreatedCount})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s\n", rec.VersionID)
	return nil
}
