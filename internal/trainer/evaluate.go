// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import "github.com/recforge/maskrec/internal/masking"

// EvaluateLoss computes the masked-prediction loss over a held-out split.
// The split is walked in contiguous batches of cfg.BatchSize (the final
// batch may be smaller); each batch is masked with the shared masker and
// scored in eval mode with no gradient work.
//
// The returned value sums the per-batch mean losses and divides by the
// number of sequences in the split, not the number of batches. This
// normalization is part of the recorded history's contract: comparisons
// against previously produced histories depend on it.
func EvaluateLoss(m Model, data [][]int, numItems int, cfg Config, masker *masking.Masker) float64 {
	if len(data) == 0 {
		return 0
	}

	m.SetTraining(false)

	total := 0.0
	for start := 0; start < len(data); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(data) {
			end = len(data)
		}

		masked, labels := masker.Mask(data[start:end], numItems, cfg.MaskProb, cfg.SeqLen)

		lossSum := 0.0
		count := 0
		for i := range masked {
			logits := m.Forward(masked[i], paddingMask(masked[i]))
			seqLoss, n := sequenceLoss(logits, labels[i])
			lossSum += seqLoss
			count += n
		}

		if count > 0 {
			total += lossSum / float64(count)
		}
	}

	return total / float64(len(data))
}
