// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package metrics implements leave-one-out ranking evaluation for
// masked-sequence models.
//
// For each held-out sequence the final item is replaced with the mask
// token and the model ranks it among all real items by the logit at that
// position. Recall@k counts a hit inside the top k; NDCG@k credits a hit
// with 1/log2(rank+2). Both are averaged over the sequences that can be
// evaluated (non-empty ones).
package metrics

import (
	"math"

	"github.com/recforge/maskrec/internal/masking"
	"github.com/recforge/maskrec/internal/trainer"
)

// LeaveOneOut evaluates ranking quality by hiding each sequence's final
// item.
type LeaveOneOut struct {
	seqLen int
}

// NewLeaveOneOut creates an evaluator that pads sequences to seqLen, the
// same length the model was trained with.
func NewLeaveOneOut(seqLen int) *LeaveOneOut {
	return &LeaveOneOut{seqLen: seqLen}
}

var _ trainer.RankingEvaluator = (*LeaveOneOut)(nil)

// Evaluate scores m on data at every requested cutoff. The model is
// switched to eval mode. Empty sequences are skipped; if nothing can be
// evaluated all metrics are zero.
func (e *LeaveOneOut) Evaluate(m trainer.Model, data [][]int, numItems int, cutoffs []int) (trainer.RankingMetrics, error) {
	m.SetTraining(false)

	ndcgSum := make(map[int]float64, len(cutoffs))
	recallSum := make(map[int]float64, len(cutoffs))
	evaluated := 0

	maskID := masking.MaskID(numItems)
	last := e.seqLen - 1

	for _, seq := range data {
		if len(seq) == 0 {
			continue
		}

		inputs := masking.PadSequence(seq, e.seqLen)
		target := inputs[last]
		inputs[last] = maskID

		logits := m.Forward(inputs, paddingMask(inputs))
		row := logits.Row(last)

		// Rank among real items only: padding and the mask token never
		// count as recommendations.
		targetScore := row[target]
		rank := 0
		for item := 1; item <= numItems; item++ {
			if item != target && row[item] > targetScore {
				rank++
			}
		}

		for _, k := range cutoffs {
			if rank < k {
				recallSum[k]++
				ndcgSum[k] += 1.0 / math.Log2(float64(rank)+2)
			}
		}
		evaluated++
	}

	result := trainer.RankingMetrics{
		NDCG:   make(map[int]float64, len(cutoffs)),
		Recall: make(map[int]float64, len(cutoffs)),
	}
	for _, k := range cutoffs {
		if evaluated > 0 {
			result.NDCG[k] = ndcgSum[k] / float64(evaluated)
			result.Recall[k] = recallSum[k] / float64(evaluated)
		} else {
			result.NDCG[k] = 0
			result.Recall[k] = 0
		}
	}
	return result, nil
}

func paddingMask(seq []int) []bool {
	mask := make([]bool, len(seq))
	for i, v := range seq {
		mask[i] = v == masking.PaddingID
	}
	return mask
}
