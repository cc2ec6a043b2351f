// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package trainer

import (
	"math"
	"testing"
)

func TestPlateauHoldsWhileImproving(t *testing.T) {
	t.Parallel()

	s := NewPlateauScheduler(0.001)
	for i := 0; i < 30; i++ {
		s.Step(float64(i + 1)) // strictly improving
		if s.LR() != 0.001 {
			t.Fatalf("lr changed to %g on improving metric at step %d", s.LR(), i)
		}
	}
}

func TestPlateauReducesAfterPatience(t *testing.T) {
	t.Parallel()

	s := NewPlateauScheduler(0.001)
	s.Step(0.5)

	// Ten flat epochs are tolerated; the eleventh consecutive
	// non-improvement triggers the reduction.
	for i := 0; i < 10; i++ {
		s.Step(0.5)
		if s.LR() != 0.001 {
			t.Fatalf("lr reduced too early at flat epoch %d", i+1)
		}
	}
	s.Step(0.5)
	if want := 0.001 * 0.1; math.Abs(s.LR()-want) > 1e-15 {
		t.Fatalf("lr = %g after plateau, want %g", s.LR(), want)
	}
}

func TestPlateauRelativeThreshold(t *testing.T) {
	t.Parallel()

	s := NewPlateauScheduler(0.01)
	s.Step(1.0)

	// Gains below the relative threshold do not reset the counter.
	metric := 1.0
	for i := 0; i < 11; i++ {
		metric += 1e-6
		s.Step(metric)
	}
	if want := 0.01 * 0.1; math.Abs(s.LR()-want) > 1e-15 {
		t.Fatalf("sub-threshold gains postponed the reduction: lr = %g, want %g", s.LR(), want)
	}
}

func TestPlateauCounterResetsAfterReduction(t *testing.T) {
	t.Parallel()

	s := NewPlateauScheduler(0.001)
	s.Step(0.5)
	for i := 0; i < 11; i++ {
		s.Step(0.5)
	}
	first := s.LR()

	// A second reduction needs a full patience window again.
	for i := 0; i < 10; i++ {
		s.Step(0.5)
		if s.LR() != first {
			t.Fatalf("second reduction after only %d flat epochs", i+1)
		}
	}
	s.Step(0.5)
	if want := first * 0.1; math.Abs(s.LR()-want) > 1e-18 {
		t.Fatalf("lr = %g after second plateau, want %g", s.LR(), want)
	}
}

func TestPlateauFirstMetricIsAlwaysBest(t *testing.T) {
	t.Parallel()

	s := NewPlateauScheduler(0.001)
	s.Step(0.0) // zero still beats the initial -inf
	s.Step(0.1)
	if s.LR() != 0.001 {
		t.Fatalf("lr = %g, want unchanged", s.LR())
	}
}
