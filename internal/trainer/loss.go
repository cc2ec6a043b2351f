// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import (
	"math"

	"github.com/recforge/maskrec/internal/tensor"
)

// Cross-entropy over per-position logits with label 0 ignored. Only
// masked positions carry their original item id as label; everything
// else (kept items and padding) is labeled 0 and contributes nothing to
// the loss or the gradient.

// labeledPositions counts the non-ignored labels in a label batch.
func labeledPositions(labels [][]int) int {
	count := 0
	for _, row := range labels {
		for _, l := range row {
			if l != 0 {
				count++
			}
		}
	}
	return count
}

// sequenceLoss returns the summed negative log-likelihood over the
// labeled positions of one sequence, and how many positions were labeled.
func sequenceLoss(logits *tensor.Tensor, labels []int) (float64, int) {
	lossSum := 0.0
	n := 0
	for pos, label := range labels {
		if label == 0 {
			continue
		}
		lossSum += nllAt(logits.Row(pos), label)
		n++
	}
	return lossSum, n
}

// sequenceLossGrad is sequenceLoss plus the gradient of the batch-mean
// loss with respect to the logits. invCount is 1 over the number of
// labeled positions in the whole batch, so summing per-sequence gradients
// yields the gradient of the batch mean. dLogits is nil when the sequence
// has no labeled position.
func sequenceLossGrad(logits *tensor.Tensor, labels []int, invCount float64) (float64, *tensor.Tensor) {
	lossSum := 0.0
	var dLogits *tensor.Tensor

	for pos, label := range labels {
		if label == 0 {
			continue
		}
		row := logits.Row(pos)

		maxLogit := math.Inf(-1)
		for _, v := range row {
			if v > maxLogit {
				maxLogit = v
			}
		}
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxLogit)
		}
		logSumExp := math.Log(sumExp)
		lossSum += logSumExp - (row[label] - maxLogit)

		if dLogits == nil {
			dLogits = tensor.New(logits.Rows(), logits.Cols())
		}
		dRow := dLogits.Row(pos)
		for j, v := range row {
			dRow[j] = math.Exp(v-maxLogit) / sumExp * invCount
		}
		dRow[label] -= invCount
	}

	return lossSum, dLogits
}

// nllAt computes -log softmax(row)[label] with max-shifted
// log-sum-exp for numerical stability.
func nllAt(row []float64, label int) float64 {
	maxLogit := math.Inf(-1)
	for _, v := range row {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sumExp := 0.0
	for _, v := range row {
		sumExp += math.Exp(v - maxLogit)
	}
	return math.Log(sumExp) - (row[label] - maxLogit)
}
