package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

func NewEncodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <symbol|phrase...>",
		Short: "Encode a symbol or phrase into a fingerprint",
		Long:  `Encode one symbol, or a phrase when several words are given, and print its region. --full also prints every dimension.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runEncode,
	}

	cmd.Flags().Bool("full", false, "Print the whole fingerprint")

	return cmd
}

func runEncode(cmd *cobra.Command, args []string) error {
	core, err := newCore(cmd)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")
	var v fingerprint.Fingerprint
	if len(strings.Fields(text)) > 1 {
		v, err = core.EncodePhrase(text)
	} else {
		v, err = core.Encode(text)
	}
	if err != nil {
		return fmt.Errorf("encode %q: %w", text, err)
	}
	region, err := core.RegionID(v)
	if err != nil {
		return err
	}

	if asJSON(cmd) {
		return writeJSON(cmd, struct {
			Input       string                  `json:"input"`
			Region      partition.RegionID      `json:"region"`
			Norm        float64                 `json:"norm"`
			Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
		}{text, region, v.Norm(), v})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "input:  %s\n", text)
	fmt.Fprintf(out, "region: %s\n", region)
	fmt.Fprintf(out, "norm:   %.4f\n", v.Norm())
	if full, _ := cmd.Flags().GetBool("full"); full {
		for i, x := range v {
			fmt.Fprintf(out, "%4d %+.6f\n", i, x)
		}
	}
	return nil
}

func NewSimilarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "similarity <a> <b>",
		Aliases: []string{"sim"},
		Short:   "Cosine similarity between two encoded symbols",
		Args:    cobra.ExactArgs(2),
		RunE:    runSimilarity,
	}
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	core, err := newCore(cmd)
	if err != nil {
		return err
	}
	a, err := core.Encode(args[0])
	if err != nil {
		return fmt.Errorf("encode %q: %w", args[0], err)
	}
	b, err := core.Encode(args[1])
	if err != nil {
		return fmt.Errorf("encode %q: %w", args[1], err)
	}
	sim := core.CosineSimilarity(a, b)

	if asJSON(cmd) {
		return writeJSON(cmd, map[string]any{"a": args[0], "b": args[1], "similarity": sim})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%.4f\n", sim)
	return nil
}
