// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/maskrec/config.yaml",
	"/etc/maskrec/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with the built-in defaults. They are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir: "data/processed",
		},
		Model: ModelConfig{
			EmbeddingDim: 64,
			NumLayers:    2,
			NumHeads:     2,
			FFNDim:       256,
			Dropout:      0.1,
		},
		Training: TrainingConfig{
			Epochs:       100,
			BatchSize:    128,
			LearningRate: 0.001,
			MaskProb:     0.15,
			SeqLen:       50,
			Patience:     10,
			Tolerance:    1e-4,
			Cutoff:       10,
			Seed:         42,
		},
		Output: OutputConfig{
			ModelDir:   "models",
			ResultsDir: "results",
			RunName:    "bert4rec",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths through an explicit
	// table so stray variables cannot pollute the config.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names (lowercased) to koanf
// config paths.
var envMappings = map[string]string{
	"data_dir": "data.dir",

	"embedding_dim": "model.embedding_dim",
	"num_layers":    "model.num_layers",
	"num_heads":     "model.num_heads",
	"ffn_dim":       "model.ffn_dim",
	"dropout":       "model.dropout",

	"epochs":        "training.epochs",
	"batch_size":    "training.batch_size",
	"learning_rate": "training.learning_rate",
	"mask_prob":     "training.mask_prob",
	"seq_len":       "training.seq_len",
	"patience":      "training.patience",
	"tolerance":     "training.tolerance",
	"cutoff":        "training.cutoff",
	"seed":          "training.seed",

	"model_dir":   "output.model_dir",
	"results_dir": "output.results_dir",
	"run_name":    "output.run_name",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc translates environment variable names to config paths.
// Unmapped variables are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
