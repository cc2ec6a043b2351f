// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package config

import "fmt"

// Validate checks the full configuration. It returns the first problem
// found; a run never starts with an invalid configuration.
func (c *Config) Validate() error {
	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// Validate checks the dataset location.
func (c *DataConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("dir must not be empty")
	}
	return nil
}

// Validate checks the model hyperparameters.
func (c *ModelConfig) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("num_layers must be positive, got %d", c.NumLayers)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("num_heads must be positive, got %d", c.NumHeads)
	}
	if c.EmbeddingDim%c.NumHeads != 0 {
		return fmt.Errorf("embedding_dim %d must be divisible by num_heads %d", c.EmbeddingDim, c.NumHeads)
	}
	if c.FFNDim <= 0 {
		return fmt.Errorf("ffn_dim must be positive, got %d", c.FFNDim)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %f", c.Dropout)
	}
	return nil
}

// Validate checks the training loop hyperparameters.
func (c *TrainingConfig) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %f", c.LearningRate)
	}
	if c.MaskProb < 0 || c.MaskProb > 1 {
		return fmt.Errorf("mask_prob must be in [0, 1], got %f", c.MaskProb)
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("seq_len must be positive, got %d", c.SeqLen)
	}
	if c.Patience <= 0 {
		return fmt.Errorf("patience must be positive, got %d", c.Patience)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must not be negative, got %f", c.Tolerance)
	}
	if c.Cutoff <= 0 {
		return fmt.Errorf("cutoff must be positive, got %d", c.Cutoff)
	}
	return nil
}

// Validate checks the artifact locations.
func (c *OutputConfig) Validate() error {
	if c.ModelDir == "" {
		return fmt.Errorf("model_dir must not be empty")
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("results_dir must not be empty")
	}
	if c.RunName == "" {
		return fmt.Errorf("run_name must not be empty")
	}
	return nil
}
