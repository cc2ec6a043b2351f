// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import (
	"math"
	"testing"

	"github.com/recforge/maskrec/internal/tensor"
)

func TestLabeledPositions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels [][]int
		want   int
	}{
		{name: "empty", labels: nil, want: 0},
		{name: "all ignored", labels: [][]int{{0, 0}, {0}}, want: 0},
		{name: "mixed", labels: [][]int{{0, 3, 0}, {1, 0, 2}}, want: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := labeledPositions(tt.labels); got != tt.want {
				t.Errorf("labeledPositions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSequenceLossUniformLogits(t *testing.T) {
	t.Parallel()

	logits := tensor.New(3, 4) // all zero: uniform over 4 classes
	labels := []int{0, 2, 1}   // two labeled positions

	loss, n := sequenceLoss(logits, labels)
	if n != 2 {
		t.Fatalf("labeled count = %d, want 2", n)
	}
	want := 2 * math.Log(4)
	if diff := math.Abs(loss - want); diff > 1e-12 {
		t.Errorf("loss = %.12f, want %.12f", loss, want)
	}
}

func TestSequenceLossIgnoresLabelZero(t *testing.T) {
	t.Parallel()

	logits := tensor.New(2, 4)
	// Huge logits at ignored positions must not leak into the loss.
	logits.Set(0, 3, 1e6)

	loss, n := sequenceLoss(logits, []int{0, 1})
	if n != 1 {
		t.Fatalf("labeled count = %d, want 1", n)
	}
	if want := math.Log(4); math.Abs(loss-want) > 1e-12 {
		t.Errorf("loss = %f, want %f", loss, want)
	}
}

func TestSequenceLossGradSoftmaxMinusOneHot(t *testing.T) {
	t.Parallel()

	logits := tensor.New(2, 4)
	labels := []int{0, 2}
	invCount := 0.5

	loss, dLogits := sequenceLossGrad(logits, labels, invCount)
	if dLogits == nil {
		t.Fatal("dLogits = nil, want gradient")
	}
	if want := math.Log(4); math.Abs(loss-want) > 1e-12 {
		t.Errorf("loss = %f, want %f", loss, want)
	}

	// Unlabeled row carries no gradient.
	for j := 0; j < 4; j++ {
		if dLogits.At(0, j) != 0 {
			t.Errorf("dLogits[0][%d] = %f, want 0", j, dLogits.At(0, j))
		}
	}

	// Labeled row: softmax (0.25 each) minus one-hot, scaled by invCount.
	for j := 0; j < 4; j++ {
		want := 0.25 * invCount
		if j == 2 {
			want = (0.25 - 1) * invCount
		}
		if diff := math.Abs(dLogits.At(1, j) - want); diff > 1e-12 {
			t.Errorf("dLogits[1][%d] = %f, want %f", j, dLogits.At(1, j), want)
		}
	}

	// Gradient of each labeled row sums to zero.
	sum := 0.0
	for j := 0; j < 4; j++ {
		sum += dLogits.At(1, j)
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("gradient row sum = %g, want 0", sum)
	}
}

func TestSequenceLossGradNilWhenUnlabeled(t *testing.T) {
	t.Parallel()

	logits := tensor.New(2, 4)
	loss, dLogits := sequenceLossGrad(logits, []int{0, 0}, 1.0)
	if loss != 0 || dLogits != nil {
		t.Errorf("unlabeled sequence: loss = %f, dLogits = %v, want 0 and nil", loss, dLogits)
	}
}

func TestSequenceLossNumericalStability(t *testing.T) {
	t.Parallel()

	logits := tensor.New(1, 3)
	logits.Set(0, 0, 1e4)
	logits.Set(0, 1, 1e4-1)
	logits.Set(0, 2, -1e4)

	loss, _ := sequenceLoss(logits, []int{1})
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		t.Fatalf("loss = %v with extreme logits", loss)
	}
	// -log softmax at a logit 1 below the max is ~1.31.
	if loss < 1.0 || loss > 1.5 {
		t.Errorf("loss = %f, want ~1.31", loss)
	}
}
