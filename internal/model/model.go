// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package model implements a bidirectional transformer encoder over item
// sequences (BERT4Rec).
//
// The vocabulary spans [0, NumItems+1]: 0 is padding, 1..NumItems are real
// items, NumItems+1 is the mask token. The encoder reads a fixed-length
// sequence and produces per-position logits over the full vocabulary.
//
// The implementation is plain float64 math with explicit gradients: the
// forward pass can record the intermediates it needs and Backward applies
// the exact chain rule to accumulate parameter gradients. There is no
// graph and no hidden state beyond the parameter tensors.
package model

import (
	"math"
	"math/rand"

	"github.com/recforge/maskrec/internal/tensor"
)

// Config holds the encoder hyperparameters.
type Config struct {
	// NumItems is the number of real items in the catalog.
	NumItems int

	// EmbeddingDim is the hidden dimension. Must be divisible by NumHeads.
	EmbeddingDim int

	// NumLayers is the number of encoder layers.
	NumLayers int

	// NumHeads is the number of attention heads.
	NumHeads int

	// FFNDim is the feed-forward inner dimension.
	FFNDim int

	// MaxSeqLen is the longest sequence the position table supports.
	MaxSeqLen int

	// Dropout is the dropout probability used in training mode.
	Dropout float64
}

// VocabSize returns the logit dimension: items plus padding and the mask
// token.
func (c Config) VocabSize() int {
	return c.NumItems + 2
}

// Summary reports the hyperparameters of a constructed model. It exists so
// callers can log or persist the exact architecture without reflection.
type Summary struct {
	NumItems     int     `json:"num_items"`
	VocabSize    int     `json:"vocab_size"`
	EmbeddingDim int     `json:"embedding_dim"`
	NumLayers    int     `json:"num_layers"`
	NumHeads     int     `json:"num_heads"`
	FFNDim       int     `json:"ffn_dim"`
	MaxSeqLen    int     `json:"max_seq_len"`
	Dropout      float64 `json:"dropout"`
	NumParams    int     `json:"num_params"`
}

// encoderLayer holds the parameters of one transformer encoder layer
// (post-norm, ReLU feed-forward).
type encoderLayer struct {
	wq, wk, wv, wo *tensor.Tensor // [d, d]
	bq, bk, bv, bo *tensor.Tensor // [d]

	ln1Gamma, ln1Beta *tensor.Tensor // [d]

	w1 *tensor.Tensor // [d, ffn]
	b1 *tensor.Tensor // [ffn]
	w2 *tensor.Tensor // [ffn, d]
	b2 *tensor.Tensor // [d]

	ln2Gamma, ln2Beta *tensor.Tensor // [d]
}

// BERT4Rec is the masked-sequence encoder.
type BERT4Rec struct {
	cfg      Config
	training bool

	// rng drives dropout masks in training mode. Initialization also
	// draws from it, so a fixed seed yields identical models.
	rng *rand.Rand

	itemEmb *tensor.Tensor // [vocab, d]
	posEmb  *tensor.Tensor // [maxSeqLen, d]

	layers []*encoderLayer

	outW *tensor.Tensor // [d, vocab]
	outB *tensor.Tensor // [vocab]

	params []*tensor.Tensor
}

// New constructs a model with parameters initialized from rng. The caller
// owns seeding; two models built from equally seeded sources are
// identical.
func New(cfg Config, rng *rand.Rand) *BERT4Rec {
	m := &BERT4Rec{
		cfg: cfg,
		rng: rng,
	}

	d := cfg.EmbeddingDim
	vocab := cfg.VocabSize()

	m.itemEmb = tensor.New(vocab, d)
	m.posEmb = tensor.New(cfg.MaxSeqLen, d)
	initNormal(m.itemEmb, rng, 0.02)
	initNormal(m.posEmb, rng, 0.02)
	// Padding embedding stays zero; padded positions are excluded from
	// attention and from the loss.
	for j := 0; j < d; j++ {
		m.itemEmb.Set(0, j, 0)
	}

	m.layers = make([]*encoderLayer, cfg.NumLayers)
	for l := range m.layers {
		layer := &encoderLayer{
			wq: tensor.New(d, d),
			wk: tensor.New(d, d),
			wv: tensor.New(d, d),
			wo: tensor.New(d, d),
			bq: tensor.New(d),
			bk: tensor.New(d),
			bv: tensor.New(d),
			bo: tensor.New(d),

			ln1Gamma: ones(d),
			ln1Beta:  tensor.New(d),

			w1: tensor.New(d, cfg.FFNDim),
			b1: tensor.New(cfg.FFNDim),
			w2: tensor.New(cfg.FFNDim, d),
			b2: tensor.New(d),

			ln2Gamma: ones(d),
			ln2Beta:  tensor.New(d),
		}
		initXavier(layer.wq, rng)
		initXavier(layer.wk, rng)
		initXavier(layer.wv, rng)
		initXavier(layer.wo, rng)
		initXavier(layer.w1, rng)
		initXavier(layer.w2, rng)
		m.layers[l] = layer
	}

	m.outW = tensor.New(d, vocab)
	m.outB = tensor.New(vocab)
	initXavier(m.outW, rng)

	m.params = m.collectParams()
	return m
}

// collectParams builds the flat parameter list in a stable order. The
// checkpoint format depends on this order staying fixed.
func (m *BERT4Rec) collectParams() []*tensor.Tensor {
	params := []*tensor.Tensor{m.itemEmb, m.posEmb}
	for _, l := range m.layers {
		params = append(params,
			l.wq, l.bq, l.wk, l.bk, l.wv, l.bv, l.wo, l.bo,
			l.ln1Gamma, l.ln1Beta,
			l.w1, l.b1, l.w2, l.b2,
			l.ln2Gamma, l.ln2Beta,
		)
	}
	return append(params, m.outW, m.outB)
}

// Parameters returns every trainable tensor in a stable order.
func (m *BERT4Rec) Parameters() []*tensor.Tensor {
	return m.params
}

// SetTraining switches between training mode (dropout active) and eval
// mode.
func (m *BERT4Rec) SetTraining(training bool) {
	m.training = training
}

// Summary returns the architecture summary.
func (m *BERT4Rec) Summary() Summary {
	numParams := 0
	for _, p := range m.params {
		numParams += p.NumElements()
	}
	return Summary{
		NumItems:     m.cfg.NumItems,
		VocabSize:    m.cfg.VocabSize(),
		EmbeddingDim: m.cfg.EmbeddingDim,
		NumLayers:    m.cfg.NumLayers,
		NumHeads:     m.cfg.NumHeads,
		FFNDim:       m.cfg.FFNDim,
		MaxSeqLen:    m.cfg.MaxSeqLen,
		Dropout:      m.cfg.Dropout,
		NumParams:    numParams,
	}
}

// initNormal fills t with draws from N(0, stddev^2).
func initNormal(t *tensor.Tensor, rng *rand.Rand, stddev float64) {
	for i := range t.Data {
		t.Data[i] = rng.NormFloat64() * stddev
	}
}

// initXavier fills a rank-2 tensor with Glorot-uniform values.
func initXavier(t *tensor.Tensor, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(t.Rows()+t.Cols()))
	for i := range t.Data {
		t.Data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// ones returns a length-n vector tensor filled with 1.
func ones(n int) *tensor.Tensor {
	t := tensor.New(n)
	for i := range t.Data {
		t.Data[i] = 1
	}
	return t
}
