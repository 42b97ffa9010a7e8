package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/partition"
)

func NewRegionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "region <symbol>",
		Short: "Show the region of a symbol and its nearest neighbors",
		Args:  cobra.ExactArgs(1),
		RunE:  runRegion,
	}

	cmd.Flags().Int("nearby", 0, "Also list this many candidate regions, own region first")

	return cmd
}

func runRegion(cmd *cobra.Command, args []string) error {
	core, err := newCore(cmd)
	if err != nil {
		return err
	}
	v, err := core.Encode(args[0])
	if err != nil {
		return fmt.Errorf("encode %q: %w", args[0], err)
	}
	own, err := core.RegionID(v)
	if err != nil {
		return err
	}

	var near []partition.RegionID
	if k, _ := cmd.Flags().GetInt("nearby"); k != 0 {
		near, err = core.NearbyRegions(v, k)
		if err != nil {
			return fmt.Errorf("nearby regions: %w", err)
		}
	}

	if asJSON(cmd) {
		return writeJSON(cmd, map[string]any{"symbol": args[0], "region": own, "nearby": near})
	}

	fmt.Fprintln(cmd.OutOrStdout(), own)
	if len(near) == 0 {
		return nil
	}
	t := newTable(cmd.OutOrStdout(), "#", "Region", "Bits")
	for i, id := range near {
		t.AppendRow([]any{i, id, partition.Hamming(own, id)})
	}
	t.Render()
	return nil
}
