package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/familiarity"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region config-types
type EncoderConfig struct {
	UnigramWeight float64 `yaml:"unigram_weight"`
	BigramWeight  float64 `yaml:"bigram_weight"`
	TrigramWeight float64 `yaml:"trigram_weight"`
	StemWeight    float64 `yaml:"stem_weight"`
	SuffixWeight  float64 `yaml:"suffix_weight"`
	ShapeWeight   float64 `yaml:"shape_weight"`
}

type PartitionConfig struct {
	Bands       int    `yaml:"bands"`
	RowsPerBand int    `yaml:"rows_per_band"`
	Seed        uint64 `yaml:"seed"`
}

type FamiliarityConfig struct {
	HalfLife float64 `yaml:"half_life"`
	Floor    float64 `yaml:"floor"`
}

type AllocationConfig struct {
	GrowthThreshold  int     `yaml:"growth_threshold"`
	Min              int     `yaml:"min"`
	Max              int     `yaml:"max"`
	Base             float64 `yaml:"base"`
	NoveltyWeight    float64 `yaml:"novelty_weight"`
	ComplexityWeight float64 `yaml:"complexity_weight"`
	ExposureWeight   float64 `yaml:"exposure_weight"`
}

type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Config is the on-disk configuration. Dimensions is shared by every
// component.
type Config struct {
	Dimensions  int               `yaml:"dimensions"`
	Encoder     EncoderConfig     `yaml:"encoder"`
	Partition   PartitionConfig   `yaml:"partition"`
	Familiarity FamiliarityConfig `yaml:"familiarity"`
	Allocation  AllocationConfig  `yaml:"allocation"`
	Store       StoreConfig       `yaml:"store"`
	Server      ServerConfig      `yaml:"server"`
}
// #endregion config-types

// #region defaults
// DefaultConfig mirrors the component defaults.
func DefaultConfig() *Config {
	enc := fingerprint.DefaultConfig()
	part := partition.DefaultConfig()
	fam := familiarity.DefaultConfig()
	alloc := allocate.DefaultConfig()
	return &Config{
		Dimensions: enc.Dimensions,
		Encoder: EncoderConfig{
			UnigramWeight: enc.NGramWeights[0],
			BigramWeight:  enc.NGramWeights[1],
			TrigramWeight: enc.NGramWeights[2],
			StemWeight:    enc.StemWeight,
			SuffixWeight:  enc.SuffixWeight,
			ShapeWeight:   enc.ShapeWeight,
		},
		Partition: PartitionConfig{
			Bands:       part.Bands,
			RowsPerBand: part.RowsPerBand,
			Seed:        part.Seed,
		},
		Familiarity: FamiliarityConfig{
			HalfLife: fam.HalfLife,
			Floor:    fam.Floor,
		},
		Allocation: AllocationConfig{
			GrowthThreshold:  alloc.GrowthThreshold,
			Min:              alloc.Min,
			Max:              alloc.Max,
			Base:             alloc.Base,
			NoveltyWeight:    alloc.NoveltyWeight,
			ComplexityWeight: alloc.ComplexityWeight,
			ExposureWeight:   alloc.ExposureWeight,
		},
		Server: ServerConfig{
			Addr: "localhost:50061",
		},
	}
}
// #endregion defaults

// #region load-save
// Load reads path over the defaults; fields absent from the file keep their
// default value. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
// #endregion load-save

// #region core-mapping
// Core maps the file layout onto the pipeline config.
func (c *Config) Core() adpc.Config {
	return adpc.Config{
		Encoder: fingerprint.Config{
			Dimensions:   c.Dimensions,
			NGramWeights: [3]float64{c.Encoder.UnigramWeight, c.Encoder.BigramWeight, c.Encoder.TrigramWeight},
			StemWeight:   c.Encoder.StemWeight,
			SuffixWeight: c.Encoder.SuffixWeight,
			ShapeWeight:  c.Encoder.ShapeWeight,
		},
		Partition: partition.Config{
			Dimensions:  c.Dimensions,
			Bands:       c.Partition.Bands,
			RowsPerBand: c.Partition.RowsPerBand,
			Seed:        c.Partition.Seed,
		},
		Familiarity: familiarity.Config{
			Dimensions: c.Dimensions,
			HalfLife:   c.Familiarity.HalfLife,
			Floor:      c.Familiarity.Floor,
		},
		Allocation: allocate.Config{
			Dimensions:       c.Dimensions,
			GrowthThreshold:  c.Allocation.GrowthThreshold,
			Min:              c.Allocation.Min,
			Max:              c.Allocation.Max,
			Base:             c.Allocation.Base,
			NoveltyWeight:    c.Allocation.NoveltyWeight,
			ComplexityWeight: c.Allocation.ComplexityWeight,
			ExposureWeight:   c.Allocation.ExposureWeight,
		},
	}
}

// Validate builds a throwaway Core so every component checks its own
// settings. Errors wrap errs.ErrConfiguration.
func (c *Config) Validate() error {
	if _, err := adpc.New(c.Core()); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}
// #endregion core-mapping
