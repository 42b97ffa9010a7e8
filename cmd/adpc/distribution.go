package main

import (
	"bufio"
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/partition"
)

func NewDistributionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "distribution [symbols...]",
		Aliases: []string{"dist"},
		Short:   "Report how symbols spread over regions",
		Long:    `Assign every symbol to a region and report the unique fraction and the largest bucket. Symbols come from the arguments, or one per line from --file.`,
		RunE:    runDistribution,
	}

	cmd.Flags().String("file", "", "Read symbols from a file, one per line")
	cmd.Flags().Int("top", 10, "Regions to list")

	return cmd
}

func runDistribution(cmd *cobra.Command, args []string) error {
	symbols := slices.Clone(args)
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		fromFile, err := readLines(path)
		if err != nil {
			return err
		}
		symbols = append(symbols, fromFile...)
	}

	core, err := newCore(cmd)
	if err != nil {
		return err
	}
	dist, err := core.Distribution(symbols)
	if err != nil {
		return fmt.Errorf("distribution: %w", err)
	}

	if asJSON(cmd) {
		return writeJSON(cmd, dist)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "symbols: %d\n", dist.Total)
	fmt.Fprintf(out, "regions: %d (%.1f%% unique)\n", dist.Unique, 100*dist.UniqueFraction)
	fmt.Fprintf(out, "largest: %s (%.1f%%)\n", dist.LargestRegion, 100*dist.LargestShare)

	type bucket struct {
		id    partition.RegionID
		count int
	}
	buckets := make([]bucket, 0, len(dist.Counts))
	for id, n := range dist.Counts {
		buckets = append(buckets, bucket{id, n})
	}
	slices.SortFunc(buckets, func(a, b bucket) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	top, _ := cmd.Flags().GetInt("top")
	if top <= 0 || top > len(buckets) {
		top = len(buckets)
	}

	t := newTable(out, "Region", "Symbols")
	for _, b := range buckets[:top] {
		t.AppendRow([]any{b.id, b.count})
	}
	t.Render()
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
