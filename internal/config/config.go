// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package config defines the training run configuration and its layered
// loading: struct defaults, then an optional YAML file, then environment
// variables. Invalid configuration fails validation before any data is
// touched.
package config

// Config is the root configuration for a training run.
type Config struct {
	Data     DataConfig     `koanf:"data"`
	Model    ModelConfig    `koanf:"model"`
	Training TrainingConfig `koanf:"training"`
	Output   OutputConfig   `koanf:"output"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DataConfig locates the preprocessed dataset.
type DataConfig struct {
	// Dir contains train_seqs.pkl, val_seqs.pkl and test_seqs.pkl.
	Dir string `koanf:"dir"`
}

// ModelConfig holds the encoder hyperparameters.
type ModelConfig struct {
	// EmbeddingDim is the item embedding and hidden dimension.
	// Must be divisible by NumHeads.
	EmbeddingDim int `koanf:"embedding_dim"`

	// NumLayers is the number of encoder layers.
	NumLayers int `koanf:"num_layers"`

	// NumHeads is the number of attention heads per layer.
	NumHeads int `koanf:"num_heads"`

	// FFNDim is the inner dimension of the position-wise feed-forward
	// network.
	FFNDim int `koanf:"ffn_dim"`

	// Dropout is the dropout probability applied during training.
	Dropout float64 `koanf:"dropout"`
}

// TrainingConfig holds the training loop hyperparameters.
type TrainingConfig struct {
	// Epochs is the maximum number of training epochs.
	Epochs int `koanf:"epochs"`

	// BatchSize is the number of sequences per batch.
	BatchSize int `koanf:"batch_size"`

	// LearningRate is the Adam base learning rate.
	LearningRate float64 `koanf:"learning_rate"`

	// MaskProb is the per-position masking probability.
	MaskProb float64 `koanf:"mask_prob"`

	// SeqLen is the fixed model sequence length. Longer histories keep
	// their most recent SeqLen items.
	SeqLen int `koanf:"seq_len"`

	// Patience is the number of consecutive epochs without validation
	// improvement before early stopping.
	Patience int `koanf:"patience"`

	// Tolerance is the minimum NDCG improvement that counts as a new
	// best model.
	Tolerance float64 `koanf:"tolerance"`

	// Cutoff is the ranking cutoff for validation metrics (NDCG@k,
	// Recall@k).
	Cutoff int `koanf:"cutoff"`

	// Seed drives all run randomness: masking, shuffling and parameter
	// initialization.
	Seed int64 `koanf:"seed"`
}

// OutputConfig locates run artifacts.
type OutputConfig struct {
	// ModelDir receives the best-model checkpoint.
	ModelDir string `koanf:"model_dir"`

	// ResultsDir receives the training history JSON.
	ResultsDir string `koanf:"results_dir"`

	// RunName names the checkpoint slot and the history file.
	RunName string `koanf:"run_name"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
