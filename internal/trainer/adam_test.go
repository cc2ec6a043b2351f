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

func TestAdamFirstStepMovesByLearningRate(t *testing.T) {
	t.Parallel()

	p := tensor.New(1)
	p.Data[0] = 1.0
	p.Grad[0] = 1.0

	a := NewAdam()
	a.Step([]*tensor.Tensor{p}, 0.1)

	// After bias correction the first step with a unit gradient is
	// almost exactly lr.
	want := 1.0 - 0.1
	if diff := math.Abs(p.Data[0] - want); diff > 1e-6 {
		t.Errorf("param after first step = %f, want ~%f", p.Data[0], want)
	}
}

func TestAdamMinimizesQuadratic(t *testing.T) {
	t.Parallel()

	// f(x) = x^2 / 2, so grad = x. Adam should drive x toward 0.
	p := tensor.New(1)
	p.Data[0] = 5.0

	a := NewAdam()
	params := []*tensor.Tensor{p}
	for i := 0; i < 500; i++ {
		a.ZeroGrad(params)
		p.Grad[0] = p.Data[0]
		a.Step(params, 0.05)
	}

	if math.Abs(p.Data[0]) > 0.1 {
		t.Errorf("x = %f after 500 steps, want near 0", p.Data[0])
	}
}

func TestAdamZeroGrad(t *testing.T) {
	t.Parallel()

	p := tensor.New(2, 2)
	for i := range p.Grad {
		p.Grad[i] = float64(i)
	}

	NewAdam().ZeroGrad([]*tensor.Tensor{p})
	for i, g := range p.Grad {
		if g != 0 {
			t.Errorf("Grad[%d] = %f after ZeroGrad, want 0", i, g)
		}
	}
}

func TestAdamZeroGradientLeavesParamsAlmostStill(t *testing.T) {
	t.Parallel()

	p := tensor.New(1)
	p.Data[0] = 3.0

	a := NewAdam()
	a.Step([]*tensor.Tensor{p}, 0.1) // zero gradient

	if math.Abs(p.Data[0]-3.0) > 1e-9 {
		t.Errorf("param moved to %f on zero gradient", p.Data[0])
	}
}
