// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package trainer runs the masked-item training loop: shuffled
// fixed-size batches, Adam updates, per-epoch validation, best-model
// checkpointing and patience-based early stopping.
package trainer

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/recforge/maskrec/internal/masking"
	"github.com/recforge/maskrec/internal/model"
	"github.com/recforge/maskrec/internal/tensor"
)

// Model is the encoder contract the trainer drives. Forward computes
// per-position logits [seqLen, numItems+2]; ForwardWithCache additionally
// records the intermediates Backward consumes to accumulate parameter
// gradients.
type Model interface {
	Forward(inputs []int, padMask []bool) *tensor.Tensor
	ForwardWithCache(inputs []int, padMask []bool) (*tensor.Tensor, *model.Cache)
	Backward(dLogits *tensor.Tensor, cache *model.Cache)
	Parameters() []*tensor.Tensor
	SetTraining(training bool)
}

var _ Model = (*model.BERT4Rec)(nil)

// RankingMetrics holds averaged ranking metrics keyed by cutoff.
type RankingMetrics struct {
	NDCG   map[int]float64
	Recall map[int]float64
}

// RankingEvaluator scores a model's ranking quality on held-out data.
type RankingEvaluator interface {
	Evaluate(m Model, data [][]int, numItems int, cutoffs []int) (RankingMetrics, error)
}

// CheckpointMeta describes the model state being checkpointed.
type CheckpointMeta struct {
	RunID   string
	Epoch   int
	ValNDCG float64
}

// CheckpointSaver persists the best model parameters under a named slot.
// Saving the same name again overwrites the previous checkpoint.
type CheckpointSaver interface {
	SaveCheckpoint(name string, params []*tensor.Tensor, meta CheckpointMeta) error
}

// HistoryWriter persists the per-epoch training history.
type HistoryWriter interface {
	WriteHistory(name string, records []EpochRecord) error
}

// EpochRecord is one epoch's entry in the training history.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	ValLoss   float64 `json:"val_loss"`
	ValNDCG   float64 `json:"val_ndcg"`
	ValRecall float64 `json:"val_recall"`
	LR        float64 `json:"lr"`
}

// Config holds the training loop hyperparameters.
type Config struct {
	// Epochs is the maximum number of epochs.
	Epochs int

	// BatchSize is the number of sequences per batch; the final batch
	// of an epoch may be smaller.
	BatchSize int

	// LearningRate is the initial Adam learning rate. The plateau
	// scheduler may reduce it during the run.
	LearningRate float64

	// MaskProb is the per-position masking probability.
	MaskProb float64

	// SeqLen is the fixed model sequence length.
	SeqLen int

	// Patience is the number of consecutive epochs without a new best
	// validation NDCG before stopping early.
	Patience int

	// Tolerance is the minimum NDCG improvement over the best so far
	// that counts as a new best.
	Tolerance float64

	// Cutoff is the ranking cutoff for validation metrics.
	Cutoff int

	// RunName names the checkpoint slot and the history file.
	RunName string
}

// Validate checks the training configuration.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", c.LearningRate)
	}
	if c.MaskProb < 0 || c.MaskProb > 1 {
		return fmt.Errorf("mask probability must be in [0, 1], got %f", c.MaskProb)
	}
	if c.SeqLen <= 0 {
		return fmt.Errorf("sequence length must be positive, got %d", c.SeqLen)
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
	if c.RunName == "" {
		return fmt.Errorf("run name must not be empty")
	}
	return nil
}

// Deps are the trainer's collaborators.
type Deps struct {
	// Masker applies the masking protocol; it shares the run's seeded
	// random source.
	Masker *masking.Masker

	// RNG drives the per-epoch shuffle.
	RNG *rand.Rand

	// Evaluator computes validation ranking metrics.
	Evaluator RankingEvaluator

	// Checkpoints persists the best model.
	Checkpoints CheckpointSaver

	// History persists the per-epoch records.
	History HistoryWriter

	// RunID identifies this run in checkpoints and logs.
	RunID string

	// Logger receives progress output.
	Logger zerolog.Logger
}

// Trainer drives the training loop.
type Trainer struct {
	cfg       Config
	masker    *masking.Masker
	rng       *rand.Rand
	optimizer Optimizer
	evaluator RankingEvaluator
	ckpts     CheckpointSaver
	history   HistoryWriter
	runID     string
	logger    zerolog.Logger
}

// New creates a Trainer. The configuration is validated and all
// collaborators are required.
func New(cfg Config, deps Deps) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("trainer config: %w", err)
	}
	if deps.Masker == nil || deps.RNG == nil {
		return nil, fmt.Errorf("trainer: masker and rng are required")
	}
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("trainer: ranking evaluator is required")
	}
	if deps.Checkpoints == nil || deps.History == nil {
		return nil, fmt.Errorf("trainer: checkpoint and history sinks are required")
	}

	return &Trainer{
		cfg:       cfg,
		masker:    deps.Masker,
		rng:       deps.RNG,
		optimizer: NewAdam(),
		evaluator: deps.Evaluator,
		ckpts:     deps.Checkpoints,
		history:   deps.History,
		runID:     deps.RunID,
		logger:    deps.Logger.With().Str("component", "trainer").Logger(),
	}, nil
}

// ContextCancelled reports whether ctx has been cancelled without
// blocking.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Train runs the full loop and returns the per-epoch history. The
// history is persisted whether the run completes all epochs, stops
// early, or is cancelled; a checkpoint or history write failure aborts
// the run with the underlying error.
//
// Cancellation is cooperative: ctx is checked once per epoch.
//
//nolint:gocyclo // the epoch loop interleaves several bookkeeping concerns
func (t *Trainer) Train(ctx context.Context, m Model, trainSeqs, valSeqs [][]int, numItems int) ([]EpochRecord, error) {
	if len(trainSeqs) == 0 {
		return nil, fmt.Errorf("trainer: no training sequences")
	}
	if len(valSeqs) == 0 {
		return nil, fmt.Errorf("trainer: no validation sequences")
	}

	scheduler := NewPlateauScheduler(t.cfg.LearningRate)

	bestNDCG := 0.0
	patienceCounter := 0
	history := make([]EpochRecord, 0, t.cfg.Epochs)

	// The shuffle permutes indices into the training set so the
	// caller's data is never reordered.
	perm := make([]int, len(trainSeqs))
	for i := range perm {
		perm[i] = i
	}

	numBatches := (len(trainSeqs) + t.cfg.BatchSize - 1) / t.cfg.BatchSize

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		if ContextCancelled(ctx) {
			if err := t.history.WriteHistory(t.cfg.RunName, history); err != nil {
				return history, fmt.Errorf("write history: %w", err)
			}
			return history, ctx.Err()
		}

		m.SetTraining(true)
		t.rng.Shuffle(len(perm), func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})

		// The rate every batch of this epoch runs at. The scheduler may
		// reduce it after validation, which takes effect next epoch.
		epochLR := scheduler.LR()

		totalLoss := 0.0
		batchIdx := 0
		for start := 0; start < len(perm); start += t.cfg.BatchSize {
			end := start + t.cfg.BatchSize
			if end > len(perm) {
				end = len(perm)
			}
			batch := make([][]int, 0, end-start)
			for _, idx := range perm[start:end] {
				batch = append(batch, trainSeqs[idx])
			}

			batchLoss := t.trainBatch(m, batch, numItems, epochLR)
			totalLoss += batchLoss
			batchIdx++

			t.logger.Debug().
				Int("epoch", epoch).
				Int("batch", batchIdx).
				Int("batches", numBatches).
				Float64("loss", batchLoss).
				Msg("Batch processed")
		}
		// Average over the number of training sequences, matching the
		// validation normalization.
		trainLoss := totalLoss / float64(len(trainSeqs))

		valLoss := EvaluateLoss(m, valSeqs, numItems, t.cfg, t.masker)

		metrics, err := t.evaluator.Evaluate(m, valSeqs, numItems, []int{t.cfg.Cutoff})
		if err != nil {
			return history, fmt.Errorf("validation metrics: %w", err)
		}
		valNDCG := metrics.NDCG[t.cfg.Cutoff]
		valRecall := metrics.Recall[t.cfg.Cutoff]

		scheduler.Step(valNDCG)

		record := EpochRecord{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			ValLoss:   valLoss,
			ValNDCG:   valNDCG,
			ValRecall: valRecall,
			LR:        epochLR,
		}
		history = append(history, record)

		t.logger.Info().
			Int("epoch", epoch).
			Int("epochs", t.cfg.Epochs).
			Float64("train_loss", trainLoss).
			Float64("val_loss", valLoss).
			Float64("val_ndcg", valNDCG).
			Float64("val_recall", valRecall).
			Float64("lr", epochLR).
			Msg("Epoch complete")

		if valNDCG > bestNDCG+t.cfg.Tolerance {
			bestNDCG = valNDCG
			patienceCounter = 0

			meta := CheckpointMeta{RunID: t.runID, Epoch: epoch, ValNDCG: valNDCG}
			if err := t.ckpts.SaveCheckpoint(t.cfg.RunName, m.Parameters(), meta); err != nil {
				return history, fmt.Errorf("save checkpoint: %w", err)
			}
			t.logger.Info().
				Int("epoch", epoch).
				Float64("val_ndcg", valNDCG).
				Msg("New best model saved")
		} else {
			patienceCounter++
			if patienceCounter >= t.cfg.Patience {
				t.logger.Info().
					Int("epoch", epoch).
					Int("patience", t.cfg.Patience).
					Float64("best_ndcg", bestNDCG).
					Msg("Early stopping")
				break
			}
		}
	}

	if err := t.history.WriteHistory(t.cfg.RunName, history); err != nil {
		return history, fmt.Errorf("write history: %w", err)
	}

	return history, nil
}

// trainBatch masks one batch, accumulates gradients of the batch-mean
// loss over all labeled positions, and applies a single optimizer step.
// It returns the batch-mean loss. A batch with no labeled positions is a
// no-op and returns 0.
func (t *Trainer) trainBatch(m Model, batch [][]int, numItems int, lr float64) float64 {
	masked, labels := t.masker.Mask(batch, numItems, t.cfg.MaskProb, t.cfg.SeqLen)

	count := labeledPositions(labels)
	if count == 0 {
		t.logger.Debug().Msg("Batch has no masked positions; skipping step")
		return 0
	}
	invCount := 1.0 / float64(count)

	t.optimizer.ZeroGrad(m.Parameters())

	lossSum := 0.0
	for i := range masked {
		padMask := paddingMask(masked[i])
		logits, cache := m.ForwardWithCache(masked[i], padMask)

		seqLoss, dLogits := sequenceLossGrad(logits, labels[i], invCount)
		lossSum += seqLoss
		if dLogits != nil {
			m.Backward(dLogits, cache)
		}
	}

	t.optimizer.Step(m.Parameters(), lr)

	return lossSum * invCount
}

// paddingMask marks the positions whose masked input is the padding id.
// Masked-out items are real tokens, so only true padding is excluded
// from attention.
func paddingMask(seq []int) []bool {
	mask := make([]bool, len(seq))
	for i, v := range seq {
		mask[i] = v == masking.PaddingID
	}
	return mask
}
