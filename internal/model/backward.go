// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package model

import (
	"math"

	"github.com/recforge/maskrec/internal/tensor"
)

// Backward accumulates parameter gradients for one sequence given the
// gradient of the loss with respect to the logits. The cache must come
// from ForwardWithCache on the same inputs with unchanged parameters.
// Gradients add onto whatever is already in the parameter Grad buffers;
// the optimizer (or the caller) is responsible for zeroing them between
// steps.
func (m *BERT4Rec) Backward(dLogits *tensor.Tensor, cache *Cache) {
	seqLen := len(cache.inputs)
	d := m.cfg.EmbeddingDim
	vocab := m.cfg.VocabSize()

	// Output projection: logits = hFinal*outW + outB.
	dh := newMat(seqLen, d)
	for t := 0; t < seqLen; t++ {
		dRow := dLogits.Row(t)
		for j := 0; j < vocab; j++ {
			m.outB.Grad[j] += dRow[j]
		}
		for i := 0; i < d; i++ {
			hi := cache.hFinal[t][i]
			wRow := m.outW.Row(i)
			gRow := m.outW.GradRow(i)
			sum := 0.0
			for j := 0; j < vocab; j++ {
				gRow[j] += hi * dRow[j]
				sum += dRow[j] * wRow[j]
			}
			dh[t][i] = sum
		}
	}

	for l := len(m.layers) - 1; l >= 0; l-- {
		dh = m.layerBackward(m.layers[l], cache.layers[l], dh)
	}

	// Embedding lookup backward.
	if cache.embDrop != nil {
		applyMask(dh, cache.embDrop)
	}
	for t := 0; t < seqLen; t++ {
		itemGrad := m.itemEmb.GradRow(cache.inputs[t])
		posGrad := m.posEmb.GradRow(t)
		for j := 0; j < d; j++ {
			itemGrad[j] += dh[t][j]
			posGrad[j] += dh[t][j]
		}
	}
}

// layerBackward backpropagates through one encoder layer and returns the
// gradient with respect to the layer input.
func (m *BERT4Rec) layerBackward(layer *encoderLayer, lc *layerCache, dhOut [][]float64) [][]float64 {
	seqLen := len(dhOut)
	d := m.cfg.EmbeddingDim
	numHeads := m.cfg.NumHeads
	headDim := d / numHeads
	scale := 1.0 / math.Sqrt(float64(headDim))

	// Second sublayer: hOut = LN(hMid + dropout(FFN(hMid))).
	dsum2 := lnBackward(dhOut, lc.ln2, layer.ln2Gamma, layer.ln2Beta)

	dhMid := copyMat(dsum2)
	df2 := copyMat(dsum2)
	if lc.ffnDrop != nil {
		applyMask(df2, lc.ffnDrop)
	}

	df1 := linearBackward(lc.f1, layer.w2, layer.b2, df2)
	// ReLU gate.
	for t := range df1 {
		for j := range df1[t] {
			if lc.f1pre[t][j] <= 0 {
				df1[t][j] = 0
			}
		}
	}
	df1In := linearBackward(lc.hMid, layer.w1, layer.b1, df1)
	for t := range dhMid {
		for j := range dhMid[t] {
			dhMid[t][j] += df1In[t][j]
		}
	}

	// First sublayer: hMid = LN(hIn + dropout(attention(hIn))).
	dsum1 := lnBackward(dhMid, lc.ln1, layer.ln1Gamma, layer.ln1Beta)

	dhIn := copyMat(dsum1)
	dao := copyMat(dsum1)
	if lc.attnDrop != nil {
		applyMask(dao, lc.attnDrop)
	}

	dctx := linearBackward(lc.ctx, layer.wo, layer.bo, dao)

	// Attention backward per head.
	dq := newMat(seqLen, d)
	dk := newMat(seqLen, d)
	dv := newMat(seqLen, d)
	dattnRow := make([]float64, seqLen)
	for head := 0; head < numHeads; head++ {
		off := head * headDim
		probs := lc.attn[head]
		for t := 0; t < seqLen; t++ {
			row := probs[t]

			// dattn[t][s] = <dctx[t], v[s]> within the head slice, and
			// dv[s] += attn[t][s] * dctx[t].
			for s := 0; s < seqLen; s++ {
				sum := 0.0
				p := row[s]
				for i := 0; i < headDim; i++ {
					g := dctx[t][off+i]
					sum += g * lc.v[s][off+i]
					dv[s][off+i] += p * g
				}
				dattnRow[s] = sum
			}

			// Softmax backward over the key axis.
			dot := 0.0
			for s := 0; s < seqLen; s++ {
				dot += dattnRow[s] * row[s]
			}
			for s := 0; s < seqLen; s++ {
				dscore := row[s] * (dattnRow[s] - dot) * scale
				if dscore == 0 {
					continue
				}
				for i := 0; i < headDim; i++ {
					dq[t][off+i] += dscore * lc.k[s][off+i]
					dk[s][off+i] += dscore * lc.q[t][off+i]
				}
			}
		}
	}

	for _, g := range []struct {
		dy   [][]float64
		w, b *tensor.Tensor
	}{
		{dq, layer.wq, layer.bq},
		{dk, layer.wk, layer.bk},
		{dv, layer.wv, layer.bv},
	} {
		dx := linearBackward(lc.hIn, g.w, g.b, g.dy)
		for t := range dhIn {
			for j := range dhIn[t] {
				dhIn[t][j] += dx[t][j]
			}
		}
	}

	return dhIn
}

// lnBackward backpropagates through layer normalization, accumulating the
// gamma and beta gradients, and returns the gradient with respect to the
// pre-normalization input.
func lnBackward(dOut [][]float64, cache *lnCache, gamma, beta *tensor.Tensor) [][]float64 {
	rows := len(dOut)
	cols := len(dOut[0])
	dx := newMat(rows, cols)
	dxhat := make([]float64, cols)

	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			g := dOut[t][j]
			gamma.Grad[j] += g * cache.xhat[t][j]
			beta.Grad[j] += g
			dxhat[j] = g * gamma.Data[j]
		}

		meanDxhat := 0.0
		meanDxhatXhat := 0.0
		for j := 0; j < cols; j++ {
			meanDxhat += dxhat[j]
			meanDxhatXhat += dxhat[j] * cache.xhat[t][j]
		}
		meanDxhat /= float64(cols)
		meanDxhatXhat /= float64(cols)

		invStd := cache.invStd[t]
		for j := 0; j < cols; j++ {
			dx[t][j] = invStd * (dxhat[j] - meanDxhat - cache.xhat[t][j]*meanDxhatXhat)
		}
	}

	return dx
}

// linearBackward backpropagates through y = x*w + b, accumulating the
// weight and bias gradients, and returns dx.
func linearBackward(x [][]float64, w, b *tensor.Tensor, dy [][]float64) [][]float64 {
	rows := len(x)
	in := w.Rows()
	out := w.Cols()

	dx := newMat(rows, in)
	for t := 0; t < rows; t++ {
		dRow := dy[t]
		for j := 0; j < out; j++ {
			b.Grad[j] += dRow[j]
		}
		for i := 0; i < in; i++ {
			xi := x[t][i]
			wRow := w.Row(i)
			gRow := w.GradRow(i)
			sum := 0.0
			for j := 0; j < out; j++ {
				gRow[j] += xi * dRow[j]
				sum += dRow[j] * wRow[j]
			}
			dx[t][i] = sum
		}
	}
	return dx
}
