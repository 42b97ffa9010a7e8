package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/config"
	"github.com/danielpatrickdp/adpc/internal/store"
)

var errNoDatabase = errors.New("no database: set --db, ADPC_DB or store.path")

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "adpc",
		Short:         "Adaptive symbol partitioning core",
		Long:          `Encode symbols into fingerprints, assign them to hashed regions, track familiarity and decide when a concept earns its own capacity.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)
	addSubcommands(rootCmd)

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	cmd.PersistentFlags().String("db", envOr("ADPC_DB", ""), "Path to the SQLite state database")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command) {
	root.AddCommand(
		NewEncodeCmd(),
		NewSimilarityCmd(),
		NewRegionCmd(),
		NewDistributionCmd(),
		NewObserveCmd(),
		NewHistoryCmd(),
		NewSnapshotsCmd(),
		NewRollbackCmd(),
		NewReplayCmd(),
		NewExportFixtureCmd(),
		NewServeCmd(),
	)
}

// #region shared
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig reads --config, or the defaults when the flag is empty, and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newCore builds a stateless Core from the resolved config.
func newCore(cmd *cobra.Command, opts ...adpc.Option) (*adpc.Core, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return adpc.New(cfg.Core(), opts...)
}

// openStore opens --db, falling back to store.path from the config.
func openStore(cmd *cobra.Command, cfg *config.Config) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, errNoDatabase
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// restoreCore rebuilds the Core recorded by the active snapshot. A store
// that has never been saved yields a fresh Core from fallback and an empty
// version id. The snapshot's own config wins over fallback so region ids
// stay comparable across runs.
func restoreCore(st *store.Store, fallback adpc.Config, opts ...adpc.Option) (*adpc.Core, string, error) {
	id, err := st.ActiveID()
	if errors.Is(err, store.ErrNotFound) {
		core, err := adpc.New(fallback, opts...)
		return core, "", err
	}
	if err != nil {
		return nil, "", err
	}

	coreCfg, err := st.LoadConfig(id)
	if err != nil {
		return nil, "", err
	}
	snap, _, err := st.LoadSnapshot(id)
	if err != nil {
		return nil, "", err
	}
	core, err := adpc.New(coreCfg, opts...)
	if err != nil {
		return nil, "", fmt.Errorf("rebuild core for %s: %w", id, err)
	}
	if err := core.Restore(snap); err != nil {
		return nil, "", fmt.Errorf("restore %s: %w", id, err)
	}
	return core, id, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
// #endregion shared
