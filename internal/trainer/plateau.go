// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import "math"

// PlateauScheduler reduces the learning rate when a maximized validation
// metric stops improving. Improvement uses a relative threshold: a metric
// counts as better only when it exceeds best*(1+threshold). After
// patience consecutive non-improving epochs the learning rate is
// multiplied by factor, then an optional cooldown suppresses further
// reductions.
type PlateauScheduler struct {
	lr        float64
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	best         float64
	numBad       int
	cooldownLeft int
}

// NewPlateauScheduler creates a scheduler in maximize mode with
// factor 0.1, patience 10, relative threshold 1e-4 and no cooldown.
func NewPlateauScheduler(initialLR float64) *PlateauScheduler {
	return &PlateauScheduler{
		lr:        initialLR,
		factor:    0.1,
		patience:  10,
		threshold: 1e-4,
		best:      math.Inf(-1),
	}
}

// LR returns the current learning rate.
func (s *PlateauScheduler) LR() float64 {
	return s.lr
}

// Step records one epoch's metric and reduces the learning rate if the
// plateau condition is met.
func (s *PlateauScheduler) Step(metric float64) {
	if s.isBetter(metric) {
		s.best = metric
		s.numBad = 0
	} else {
		s.numBad++
	}

	if s.cooldownLeft > 0 {
		s.cooldownLeft--
		s.numBad = 0
	}

	if s.numBad > s.patience {
		reduced := s.lr * s.factor
		if reduced < s.minLR {
			reduced = s.minLR
		}
		s.lr = reduced
		s.cooldownLeft = s.cooldown
		s.numBad = 0
	}
}

func (s *PlateauScheduler) isBetter(metric float64) bool {
	if math.IsInf(s.best, -1) {
		return true
	}
	return metric > s.best*(1+s.threshold)
}
