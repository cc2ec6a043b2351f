// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package model

import (
	"math"

	"github.com/recforge/maskrec/internal/tensor"
)

const (
	// lnEpsilon stabilizes the layer-norm variance.
	lnEpsilon = 1e-5

	// maskedScore is added to attention scores at padded key positions,
	// driving their softmax weight to zero.
	maskedScore = -1e9
)

// lnCache holds layer-norm intermediates for the backward pass.
type lnCache struct {
	xhat   [][]float64
	invStd []float64
}

// layerCache holds one encoder layer's forward intermediates.
type layerCache struct {
	hIn [][]float64

	q, k, v [][]float64
	// attn[h][t][s] is head h's softmax weight of key s for query t.
	attn [][][]float64
	ctx  [][]float64

	attnDrop [][]float64
	ln1      *lnCache
	hMid     [][]float64

	f1pre   [][]float64
	f1      [][]float64
	ffnDrop [][]float64
	ln2     *lnCache
}

// Cache carries the intermediates of one forward pass for Backward.
type Cache struct {
	inputs []int

	embDrop [][]float64

	layers []*layerCache
	hFinal [][]float64
}

// Forward computes per-position logits [seqLen, vocab] for one sequence.
// padMask marks positions to exclude as attention keys (padding). Dropout
// is applied only in training mode.
func (m *BERT4Rec) Forward(inputs []int, padMask []bool) *tensor.Tensor {
	logits, _ := m.forward(inputs, padMask, false)
	return logits
}

// ForwardWithCache is Forward plus the recorded intermediates needed by
// Backward.
func (m *BERT4Rec) ForwardWithCache(inputs []int, padMask []bool) (*tensor.Tensor, *Cache) {
	return m.forward(inputs, padMask, true)
}

func (m *BERT4Rec) forward(inputs []int, padMask []bool, withCache bool) (*tensor.Tensor, *Cache) {
	seqLen := len(inputs)
	d := m.cfg.EmbeddingDim

	var cache *Cache
	if withCache {
		cache = &Cache{
			inputs: append([]int(nil), inputs...),
			layers: make([]*layerCache, 0, len(m.layers)),
		}
	}

	// Item + position embeddings.
	h := newMat(seqLen, d)
	for t := 0; t < seqLen; t++ {
		itemRow := m.itemEmb.Row(inputs[t])
		posRow := m.posEmb.Row(t)
		for j := 0; j < d; j++ {
			h[t][j] = itemRow[j] + posRow[j]
		}
	}
	if m.training && m.cfg.Dropout > 0 {
		mask := m.dropoutMask(seqLen, d)
		applyMask(h, mask)
		if withCache {
			cache.embDrop = mask
		}
	}

	for _, layer := range m.layers {
		var lc *layerCache
		h, lc = m.layerForward(layer, h, padMask, withCache)
		if withCache {
			cache.layers = append(cache.layers, lc)
		}
	}

	if withCache {
		cache.hFinal = h
	}

	// Output projection.
	vocab := m.cfg.VocabSize()
	logits := tensor.New(seqLen, vocab)
	for t := 0; t < seqLen; t++ {
		row := logits.Row(t)
		copy(row, m.outB.Data)
		for i := 0; i < d; i++ {
			hi := h[t][i]
			if hi == 0 {
				continue
			}
			wRow := m.outW.Row(i)
			for j := 0; j < vocab; j++ {
				row[j] += hi * wRow[j]
			}
		}
	}

	return logits, cache
}

// layerForward runs one post-norm encoder layer.
func (m *BERT4Rec) layerForward(layer *encoderLayer, hIn [][]float64, padMask []bool, withCache bool) ([][]float64, *layerCache) {
	seqLen := len(hIn)
	d := m.cfg.EmbeddingDim
	numHeads := m.cfg.NumHeads
	headDim := d / numHeads
	scale := 1.0 / math.Sqrt(float64(headDim))

	q := linear(hIn, layer.wq, layer.bq)
	k := linear(hIn, layer.wk, layer.bk)
	v := linear(hIn, layer.wv, layer.bv)

	// Scaled dot-product attention per head, padding positions excluded
	// as keys.
	attn := make([][][]float64, numHeads)
	ctx := newMat(seqLen, d)
	for head := 0; head < numHeads; head++ {
		off := head * headDim
		probs := newMat(seqLen, seqLen)
		for t := 0; t < seqLen; t++ {
			row := probs[t]
			maxScore := math.Inf(-1)
			for s := 0; s < seqLen; s++ {
				score := 0.0
				for i := 0; i < headDim; i++ {
					score += q[t][off+i] * k[s][off+i]
				}
				score *= scale
				if padMask[s] {
					score += maskedScore
				}
				row[s] = score
				if score > maxScore {
					maxScore = score
				}
			}
			sum := 0.0
			for s := 0; s < seqLen; s++ {
				row[s] = math.Exp(row[s] - maxScore)
				sum += row[s]
			}
			for s := 0; s < seqLen; s++ {
				row[s] /= sum
			}
			for s := 0; s < seqLen; s++ {
				p := row[s]
				if p == 0 {
					continue
				}
				for i := 0; i < headDim; i++ {
					ctx[t][off+i] += p * v[s][off+i]
				}
			}
		}
		attn[head] = probs
	}

	ao := linear(ctx, layer.wo, layer.bo)

	var attnDrop [][]float64
	if m.training && m.cfg.Dropout > 0 {
		attnDrop = m.dropoutMask(seqLen, d)
		applyMask(ao, attnDrop)
	}

	sum1 := addMat(hIn, ao)
	hMid, ln1 := layerNorm(sum1, layer.ln1Gamma, layer.ln1Beta, withCache)

	// Position-wise feed-forward with ReLU.
	f1pre := linear(hMid, layer.w1, layer.b1)
	f1 := copyMat(f1pre)
	for t := range f1 {
		for j := range f1[t] {
			if f1[t][j] < 0 {
				f1[t][j] = 0
			}
		}
	}
	f2 := linear(f1, layer.w2, layer.b2)

	var ffnDrop [][]float64
	if m.training && m.cfg.Dropout > 0 {
		ffnDrop = m.dropoutMask(seqLen, d)
		applyMask(f2, ffnDrop)
	}

	sum2 := addMat(hMid, f2)
	hOut, ln2 := layerNorm(sum2, layer.ln2Gamma, layer.ln2Beta, withCache)

	if !withCache {
		return hOut, nil
	}
	return hOut, &layerCache{
		hIn:      hIn,
		q:        q,
		k:        k,
		v:        v,
		attn:     attn,
		ctx:      ctx,
		attnDrop: attnDrop,
		ln1:      ln1,
		hMid:     hMid,
		f1pre:    f1pre,
		f1:       f1,
		ffnDrop:  ffnDrop,
		ln2:      ln2,
	}
}

// layerNorm normalizes each row to zero mean and unit variance, then
// applies the learned scale and shift.
func layerNorm(x [][]float64, gamma, beta *tensor.Tensor, withCache bool) ([][]float64, *lnCache) {
	rows := len(x)
	cols := len(x[0])
	out := newMat(rows, cols)

	var cache *lnCache
	if withCache {
		cache = &lnCache{
			xhat:   newMat(rows, cols),
			invStd: make([]float64, rows),
		}
	}

	for t := 0; t < rows; t++ {
		mean := 0.0
		for j := 0; j < cols; j++ {
			mean += x[t][j]
		}
		mean /= float64(cols)

		variance := 0.0
		for j := 0; j < cols; j++ {
			diff := x[t][j] - mean
			variance += diff * diff
		}
		variance /= float64(cols)

		invStd := 1.0 / math.Sqrt(variance+lnEpsilon)
		for j := 0; j < cols; j++ {
			xhat := (x[t][j] - mean) * invStd
			out[t][j] = gamma.Data[j]*xhat + beta.Data[j]
			if withCache {
				cache.xhat[t][j] = xhat
			}
		}
		if withCache {
			cache.invStd[t] = invStd
		}
	}

	return out, cache
}

// linear computes x*w + b for a [rows, in] activation matrix.
func linear(x [][]float64, w, b *tensor.Tensor) [][]float64 {
	rows := len(x)
	in := w.Rows()
	out := w.Cols()

	y := newMat(rows, out)
	for t := 0; t < rows; t++ {
		row := y[t]
		copy(row, b.Data)
		for i := 0; i < in; i++ {
			xi := x[t][i]
			if xi == 0 {
				continue
			}
			wRow := w.Row(i)
			for j := 0; j < out; j++ {
				row[j] += xi * wRow[j]
			}
		}
	}
	return y
}

// dropoutMask draws an inverted-dropout multiplier matrix: zero with
// probability Dropout, otherwise 1/(1-Dropout).
func (m *BERT4Rec) dropoutMask(rows, cols int) [][]float64 {
	keep := 1.0 / (1.0 - m.cfg.Dropout)
	mask := newMat(rows, cols)
	for t := range mask {
		for j := range mask[t] {
			if m.rng.Float64() >= m.cfg.Dropout {
				mask[t][j] = keep
			}
		}
	}
	return mask
}

func applyMask(x, mask [][]float64) {
	for t := range x {
		for j := range x[t] {
			x[t][j] *= mask[t][j]
		}
	}
}

func newMat(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	m := make([][]float64, rows)
	for i := range m {
		m[i] = backing[i*cols : (i+1)*cols]
	}
	return m
}

func copyMat(x [][]float64) [][]float64 {
	out := newMat(len(x), len(x[0]))
	for i := range x {
		copy(out[i], x[i])
	}
	return out
}

func addMat(a, b [][]float64) [][]float64 {
	out := newMat(len(a), len(a[0]))
	for i := range a {
		for j := range a[i] {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}
