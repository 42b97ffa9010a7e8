package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/logging"
)

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show logged allocation decisions, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().String("key", "", "Only show decisions for this concept key")
	cmd.Flags().Int("limit", 20, "Maximum rows")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
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
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := logging.ListAllocations(st.DB(), key, limit)
	if err != nil {
		return err
	}

	if asJSON(cmd) {
		if entries == nil {
			entries = []logging.AllocationEntry{}
		}
		return writeJSON(cmd, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no allocation decisions logged")
		return nil
	}
	t := newTable(cmd.OutOrStdout(), "ID", "Key", "Action", "Region", "Novelty", "Exposure", "Snapshot", "At")
	for _, e := range entries {
		t.AppendRow([]any{e.ID, e.ConceptKey, e.Action, e.Region, formatNovelty(e.Novelty), e.ExposureCount,
			shortID(e.VersionID), e.CreatedAt.Local().Format("2006-01-02 15:04:05")})
	}
	t.Render()
	return nil
}
