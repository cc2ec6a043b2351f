// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package masking implements the masked-item training protocol for item
// sequences.
//
// Item ids are 1-based; 0 is the padding value. The mask token id sits one
// past the largest real item id, so a vocabulary of numItems real items
// spans [0, numItems+1] including padding and the mask token.
package masking

import "math/rand"

// PaddingID is the reserved id for padding positions. It is also the
// ignore label for the loss.
const PaddingID = 0

// MaskID returns the mask token id for a catalog of numItems real items.
func MaskID(numItems int) int {
	return numItems + 1
}

// PadSequence fits seq to exactly seqLen positions. Longer sequences keep
// their most recent seqLen items; shorter ones are left-padded with
// PaddingID so the real items stay right-aligned. The input is never
// mutated.
func PadSequence(seq []int, seqLen int) []int {
	out := make([]int, seqLen)
	if len(seq) >= seqLen {
		copy(out, seq[len(seq)-seqLen:])
		return out
	}
	copy(out[seqLen-len(seq):], seq)
	return out
}

// Masker applies random item masking with an explicitly seeded random
// source. The caller owns seeding; two Maskers built from the same seed
// produce identical maskings for identical inputs.
type Masker struct {
	rng *rand.Rand
}

// NewMasker creates a Masker drawing from rng.
func NewMasker(rng *rand.Rand) *Masker {
	return &Masker{rng: rng}
}

// Mask pads every sequence to seqLen and independently replaces each
// non-padding position with the mask token with probability maskProb.
//
// It returns two rectangular [len(seqs)][seqLen] slices: the masked inputs,
// and per-position labels holding the original item id at masked positions
// and PaddingID everywhere else. Padding positions are never masked. An
// empty sequence yields an all-padding row with all-zero labels.
func (m *Masker) Mask(seqs [][]int, numItems int, maskProb float64, seqLen int) (masked, labels [][]int) {
	maskID := MaskID(numItems)

	masked = make([][]int, len(seqs))
	labels = make([][]int, len(seqs))

	for i, seq := range seqs {
		row := PadSequence(seq, seqLen)
		labelRow := make([]int, seqLen)

		for p, item := range row {
			if item == PaddingID {
				continue
			}
			if m.rng.Float64() < maskProb {
				labelRow[p] = item
				row[p] = maskID
			}
		}

		masked[i] = row
		labels[i] = labelRow
	}

	return masked, labels
}
