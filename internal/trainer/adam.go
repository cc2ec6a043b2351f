// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import (
	"math"

	"github.com/recforge/maskrec/internal/tensor"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	// Step applies one update with the given learning rate.
	Step(params []*tensor.Tensor, lr float64)

	// ZeroGrad clears every parameter's gradient buffer.
	ZeroGrad(params []*tensor.Tensor)
}

// Adam implements the Adam optimizer with bias correction.
// Reference: "Adam: A Method for Stochastic Optimization"
// (Kingma, Ba, 2015).
type Adam struct {
	beta1   float64
	beta2   float64
	epsilon float64

	// m and v are the first and second moment estimates, indexed in
	// step with the parameter list. The parameter list must therefore
	// be stable across steps.
	m [][]float64
	v [][]float64

	// t is the step counter used for bias correction.
	t int
}

// NewAdam creates an Adam optimizer with the standard defaults
// (beta1 0.9, beta2 0.999, epsilon 1e-8).
func NewAdam() *Adam {
	return &Adam{
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-8,
	}
}

var _ Optimizer = (*Adam)(nil)

// Step applies one Adam update to every parameter.
func (a *Adam) Step(params []*tensor.Tensor, lr float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, p.NumElements())
			a.v[i] = make([]float64, p.NumElements())
		}
	}

	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range params {
		m := a.m[i]
		v := a.v[i]
		for j := range p.Data {
			g := p.Grad[j]
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g

			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p.Data[j] -= lr * mHat / (math.Sqrt(vHat) + a.epsilon)
		}
	}
}

// ZeroGrad clears the gradients of every parameter.
func (a *Adam) ZeroGrad(params []*tensor.Tensor) {
	for _, p := range params {
		p.ZeroGrad()
	}
}
