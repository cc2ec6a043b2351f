// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/recforge/maskrec/internal/masking"
)

func TestEvaluateLossSequenceCountNormalization(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1, 10) // batch size 2, mask prob 1, seq len 4
	vocab := 6
	m := newFakeModel(cfg.SeqLen, vocab)
	masker := masking.NewMasker(rand.New(rand.NewSource(42)))

	// Three sequences form two batches. Uniform logits make every
	// batch-mean loss exactly ln(vocab); the result divides the summed
	// batch losses by the sequence count.
	data := [][]int{{1, 2}, {3}, {4, 1, 2}}
	got := EvaluateLoss(m, data, 4, cfg, masker)

	want := 2 * math.Log(float64(vocab)) / 3
	if diff := math.Abs(got - want); diff > 1e-12 {
		t.Errorf("EvaluateLoss = %.12f, want %.12f", got, want)
	}
}

func TestEvaluateLossZeroMaskProb(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1, 10)
	cfg.MaskProb = 0
	m := newFakeModel(cfg.SeqLen, 6)
	masker := masking.NewMasker(rand.New(rand.NewSource(1)))

	if got := EvaluateLoss(m, [][]int{{1, 2}, {3}}, 4, cfg, masker); got != 0 {
		t.Errorf("EvaluateLoss = %f with no masked positions, want 0", got)
	}
}

func TestEvaluateLossEmptySplit(t *testing.T) {
	t.Parallel()

	cfg := testConfig(1, 10)
	m := newFakeModel(cfg.SeqLen, 6)
	masker := masking.NewMasker(rand.New(rand.NewSource(1)))

	if got := EvaluateLoss(m, nil, 4, cfg, masker); got != 0 {
		t.Errorf("EvaluateLoss = %f on empty split, want 0", got)
	}
}
