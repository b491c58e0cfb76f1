package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EngineCfg holds the tunables of the ingestion core. Keyword dictionaries
// live in their own YAML file so analysts can edit them without touching
// engine settings.
type EngineCfg struct {
	// SimilarityThreshold is the fuzzy-match acceptance floor (0–1 scale).
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`

	// ShardCapacity is the row ceiling per output worksheet/file.
	ShardCapacity int `yaml:"shard_capacity" json:"shard_capacity"`

	// ShardPrefix names provisioned shards (prefix + _YYYY_MM).
	ShardPrefix string `yaml:"shard_prefix" json:"shard_prefix"`

	// MinDetectLetters is the smallest letter count the language detector
	// commits a label on.
	MinDetectLetters int `yaml:"min_detect_letters" json:"min_detect_letters"`

	// DictionariesFile optionally overrides the built-in keyword
	// dictionaries.
	DictionariesFile string `yaml:"dictionaries_file" json:"dictionaries_file"`

	// FilterRelevance drops non-dacha ads before the merge. CI scrapes a
	// pre-filtered category and turns this off.
	FilterRelevance bool `yaml:"filter_relevance" json:"filter_relevance"`

	// Timezone interprets posted dates ("Asia/Tashkent").
	Timezone string `yaml:"timezone" json:"timezone"`
}

// C is the loaded engine configuration.
var C = Defaults()

// Defaults mirrors the production sheet setup.
func Defaults() EngineCfg {
	return EngineCfg{
		SimilarityThreshold: 0.85,
		ShardCapacity:       50000,
		ShardPrefix:         "raw_listings",
		MinDetectLetters:    6,
		FilterRelevance:     true,
		Timezone:            "Asia/Tashkent",
	}
}

// Load reads the engine config from a YAML file and applies env overrides.
// A missing file keeps the defaults.
func Load(path string) error {
	C = Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv()
			return nil
		}
		return fmt.Errorf("read engine config: %w", err)
	}
	if err := yaml.Unmarshal(b, &C); err != nil {
		return fmt.Errorf("parse engine config: %w", err)
	}
	applyEnv()
	return C.validate()
}

func applyEnv() {
	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			C.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("SHARD_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.ShardCapacity = n
		}
	}
	// CI scrapes the already-filtered dacha category (original behavior).
	if os.Getenv("CI") == "1" {
		C.FilterRelevance = false
	}
}

func (c EngineCfg) validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %v outside (0,1]", c.SimilarityThreshold)
	}
	if c.ShardCapacity <= 0 {
		return fmt.Errorf("shard_capacity must be positive, got %d", c.ShardCapacity)
	}
	return nil
}
