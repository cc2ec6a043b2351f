// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package main is the entry point for the Maskrec training binary.
//
// Maskrec trains a BERT4Rec-style transformer encoder on implicit-feedback
// interaction sequences. Items are masked at random during training and the
// model learns to recover them; ranking quality is measured each epoch by
// hiding the final item of every validation sequence.
//
// # Application Flow
//
// The trainer initializes components in the following order:
//
//  1. Configuration: load settings from config file and environment (Koanf v2)
//  2. Data: read the pickled train/val/test splits and derive the item vocabulary
//  3. Model: build the encoder, seeded for reproducible initialization
//  4. Stores: open the checkpoint and history directories
//  5. Training loop: run epochs until completion or early stopping
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (DATA_DIR, EPOCHS, LEARNING_RATE, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Example Usage
//
// Train on a prepared dataset with defaults:
//
//	export DATA_DIR=data/ml-1m
//	./maskrec-trainer
//
// Shorter run for experimentation:
//
//	export DATA_DIR=data/ml-1m
//	export EPOCHS=10
//	export SEQ_LEN=20
//	export RUN_NAME=quick
//	./maskrec-trainer
//
// # Signal Handling
//
// SIGINT and SIGTERM stop the run at the next epoch boundary. The history
// written so far is kept and the best checkpoint on disk stays valid.
package main

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/recforge/maskrec/internal/config"
	"github.com/recforge/maskrec/internal/logging"
	"github.com/recforge/maskrec/internal/masking"
	"github.com/recforge/maskrec/internal/metrics"
	"github.com/recforge/maskrec/internal/model"
	"github.com/recforge/maskrec/internal/seqdata"
	"github.com/recforge/maskrec/internal/storage"
	"github.com/recforge/maskrec/internal/trainer"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	runID := uuid.NewString()
	logging.Info().
		Str("run_id", runID).
		Str("run_name", cfg.Output.RunName).
		Str("data_dir", cfg.Data.Dir).
		Msg("Starting Maskrec trainer")

	dataset, err := seqdata.Load(cfg.Data.Dir)
	if err != nil {
		var dataErr *seqdata.DataError
		if errors.As(err, &dataErr) {
			logging.Fatal().Err(err).Str("path", dataErr.Path).Msg("Failed to load dataset")
		}
		logging.Fatal().Err(err).Msg("Failed to load dataset")
	}
	logging.Info().
		Int("train_sequences", len(dataset.Train)).
		Int("val_sequences", len(dataset.Val)).
		Int("test_sequences", len(dataset.Test)).
		Int("num_items", dataset.NumItems).
		Msg("Dataset loaded")

	// One seeded source drives initialization, masking and shuffling, so a
	// fixed seed reproduces the whole run.
	rng := rand.New(rand.NewSource(cfg.Training.Seed))

	m := model.New(model.Config{
		NumItems:     dataset.NumItems,
		EmbeddingDim: cfg.Model.EmbeddingDim,
		NumLayers:    cfg.Model.NumLayers,
		NumHeads:     cfg.Model.NumHeads,
		FFNDim:       cfg.Model.FFNDim,
		MaxSeqLen:    cfg.Training.SeqLen,
		Dropout:      cfg.Model.Dropout,
	}, rng)

	summary := m.Summary()
	logging.Info().
		Int("num_items", summary.NumItems).
		Int("vocab_size", summary.VocabSize).
		Int("embedding_dim", summary.EmbeddingDim).
		Int("num_layers", summary.NumLayers).
		Int("num_heads", summary.NumHeads).
		Int("ffn_dim", summary.FFNDim).
		Int("max_seq_len", summary.MaxSeqLen).
		Float64("dropout", summary.Dropout).
		Int("num_params", summary.NumParams).
		Msg("Model constructed")

	logging.Info().
		Int("epochs", cfg.Training.Epochs).
		Int("batch_size", cfg.Training.BatchSize).
		Float64("learning_rate", cfg.Training.LearningRate).
		Float64("mask_prob", cfg.Training.MaskProb).
		Int("seq_len", cfg.Training.SeqLen).
		Int("patience", cfg.Training.Patience).
		Int64("seed", cfg.Training.Seed).
		Msg("Training configuration")

	ckptStore, err := storage.NewStore(cfg.Output.ModelDir)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Output.ModelDir).Msg("Failed to open checkpoint store")
	}
	historyStore, err := storage.NewHistoryStore(cfg.Output.ResultsDir)
	if err != nil {
		logging.Fatal().Err(err).Str("dir", cfg.Output.ResultsDir).Msg("Failed to open history store")
	}

	tr, err := trainer.New(trainer.Config{
		Epochs:       cfg.Training.Epochs,
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		MaskProb:     cfg.Training.MaskProb,
		SeqLen:       cfg.Training.SeqLen,
		Patience:     cfg.Training.Patience,
		Tolerance:    cfg.Training.Tolerance,
		Cutoff:       cfg.Training.Cutoff,
		RunName:      cfg.Output.RunName,
	}, trainer.Deps{
		Masker:      masking.NewMasker(rng),
		RNG:         rng,
		Evaluator:   metrics.NewLeaveOneOut(cfg.Training.SeqLen),
		Checkpoints: ckptStore,
		History:     historyStore,
		RunID:       runID,
		Logger:      logging.Logger(),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create trainer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	history, err := tr.Train(ctx, m, dataset.Train, dataset.Val, dataset.NumItems)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Warn().
				Int("epochs_completed", len(history)).
				Msg("Training interrupted by signal")
			os.Exit(1)
		}
		logging.Fatal().Err(err).Msg("Training failed")
	}

	logging.Info().
		Int("epochs_completed", len(history)).
		Str("run_name", cfg.Output.RunName).
		Msg("Training complete")
}
