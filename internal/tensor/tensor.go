// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package tensor provides the dense parameter storage used by the model
// and the optimizer.
//
// A Tensor is a flat float64 buffer with a shape and a gradient buffer of
// the same size. Gradients are accumulated by the model's backward pass and
// consumed (then zeroed) by the optimizer. There is no autograd graph; the
// model computes its gradients explicitly.
package tensor

import "fmt"

// Tensor is a dense row-major float64 tensor with an explicit gradient
// buffer. Supported ranks are 1 (biases) and 2 (matrices, embeddings).
type Tensor struct {
	// Shape is the tensor dimensions, row-major.
	Shape []int

	// Data holds the parameter values.
	Data []float64

	// Grad holds the accumulated gradient, same length as Data.
	Grad []float64
}

// New creates a zero-initialized tensor with the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, dim := range shape {
		if dim <= 0 {
			panic(fmt.Sprintf("tensor: invalid dimension %d", dim))
		}
		n *= dim
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// NumElements returns the total number of scalar elements.
func (t *Tensor) NumElements() int {
	return len(t.Data)
}

// Rows returns the first dimension.
func (t *Tensor) Rows() int {
	return t.Shape[0]
}

// Cols returns the second dimension of a rank-2 tensor.
func (t *Tensor) Cols() int {
	return t.Shape[1]
}

// At returns the element at row i, column j of a rank-2 tensor.
func (t *Tensor) At(i, j int) float64 {
	return t.Data[i*t.Shape[1]+j]
}

// Set assigns the element at row i, column j of a rank-2 tensor.
func (t *Tensor) Set(i, j int, v float64) {
	t.Data[i*t.Shape[1]+j] = v
}

// AddGrad accumulates into the gradient at row i, column j.
func (t *Tensor) AddGrad(i, j int, v float64) {
	t.Grad[i*t.Shape[1]+j] += v
}

// ZeroGrad resets the gradient buffer to zero.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// Clone returns a deep copy of the tensor values. The clone's gradient
// buffer is zeroed, not copied.
func (t *Tensor) Clone() *Tensor {
	c := New(t.Shape...)
	copy(c.Data, t.Data)
	return c
}

// Row returns a view of row i of a rank-2 tensor. The slice aliases the
// tensor's backing array.
func (t *Tensor) Row(i int) []float64 {
	cols := t.Shape[1]
	return t.Data[i*cols : (i+1)*cols]
}

// GradRow returns a view of row i of the gradient of a rank-2 tensor.
func (t *Tensor) GradRow(i int) []float64 {
	cols := t.Shape[1]
	return t.Grad[i*cols : (i+1)*cols]
}
