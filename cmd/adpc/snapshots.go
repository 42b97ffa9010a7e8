package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/store"
)

func NewSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snaps"},
		Short:   "List saved snapshots, newest first",
		Long:    `List saved snapshots. The active snapshot is marked with *.`,
		Args:    cobra.NoArgs,
		RunE:    runSnapshots,
	}

	cmd.Flags().Int("limit", 20, "Maximum rows")

	return cmd
}

func runSnapshots(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := st.ListSnapshots(limit)
	if err != nil {
		return err
	}
	active, err := st.ActiveID()
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if asJSON(cmd) {
		type row struct {
			store.SnapshotRecord
			Active bool
		}
		rows := make([]row, 0, len(records))
		for _, rec := range records {
			rows = append(rows, row{rec, rec.VersionID == active})
		}
		return writeJSON(cmd, rows)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no snapshots")
		return nil
	}
	t := newTable(cmd.OutOrStdout(), "", "Version", "Parent", "Created", "Regions", "Concepts", "Note")
	for _, rec := range records {
		mark := ""
		if rec.VersionID == active {
			mark = "*"
		}
		t.AppendRow([]any{mark, rec.VersionID, shortID(rec.ParentID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Exposures, rec.Allocations, rec.Note})
	}
	t.Render()
	return nil
}

func NewRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <version>",
		Short: "Make an earlier snapshot the active one",
		Long:  `Point the active snapshot at version. Later snapshots are kept; the next observe branches from version.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runRollback,
	}
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Rollback(args[0]); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "active snapshot %s\n", args[0])
	return nil
}
