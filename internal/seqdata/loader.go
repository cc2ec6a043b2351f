// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package seqdata loads preprocessed interaction sequences from disk.
//
// The preprocessing pipeline emits three Python-pickled files per dataset:
// train_seqs.pkl, val_seqs.pkl and test_seqs.pkl, each a list of item-id
// lists ordered by interaction time. Item ids are 1-based; 0 is reserved
// for padding. Files are read with gopickle, so no Python runtime is
// needed at training time.
package seqdata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/types"
)

// Split filenames expected under the dataset directory.
const (
	TrainFile = "train_seqs.pkl"
	ValFile   = "val_seqs.pkl"
	TestFile  = "test_seqs.pkl"
)

// DataError reports an unusable dataset: a missing or corrupt split file,
// an unexpected payload shape, or an empty item vocabulary.
type DataError struct {
	// Path is the offending file, empty for dataset-wide problems.
	Path string

	// Msg describes what was wrong.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

func (e *DataError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("seqdata: %s: %s: %v", e.Path, e.Msg, e.Err)
	case e.Path != "":
		return fmt.Sprintf("seqdata: %s: %s", e.Path, e.Msg)
	default:
		return fmt.Sprintf("seqdata: %s", e.Msg)
	}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// Dataset holds the three interaction splits and the derived catalog size.
type Dataset struct {
	Train [][]int
	Val   [][]int
	Test  [][]int

	// NumItems is the largest item id observed across all splits.
	// Ids are assumed dense from preprocessing, so this is the catalog
	// size and the mask token id is NumItems+1.
	NumItems int
}

func (d *Dataset) validate() error {
	if d.NumItems == 0 {
		return &DataError{Msg: "empty item vocabulary: no non-zero item ids in any split"}
	}
	return nil
}

// Load reads train_seqs.pkl, val_seqs.pkl and test_seqs.pkl from dir and
// derives the catalog size. It returns a *DataError if any file is missing
// or corrupt, or if no non-padding item id appears in any split.
func Load(dir string) (*Dataset, error) {
	train, err := loadSplit(filepath.Join(dir, TrainFile))
	if err != nil {
		return nil, err
	}
	val, err := loadSplit(filepath.Join(dir, ValFile))
	if err != nil {
		return nil, err
	}
	test, err := loadSplit(filepath.Join(dir, TestFile))
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Train:    train,
		Val:      val,
		Test:     test,
		NumItems: maxItemID(train, val, test),
	}
	if err := ds.validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// loadSplit reads one pickled list-of-lists file.
func loadSplit(path string) ([][]int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &DataError{Path: path, Msg: "missing data file", Err: err}
	}

	obj, err := pickle.Load(path)
	if err != nil {
		return nil, &DataError{Path: path, Msg: "corrupt pickle data", Err: err}
	}

	seqs, err := toSequences(obj)
	if err != nil {
		return nil, &DataError{Path: path, Msg: "unexpected payload", Err: err}
	}
	return seqs, nil
}

// toSequences converts an unpickled object into [][]int.
func toSequences(obj interface{}) ([][]int, error) {
	outer, err := toSlice(obj)
	if err != nil {
		return nil, fmt.Errorf("top-level value: %w", err)
	}

	seqs := make([][]int, len(outer))
	for i, elem := range outer {
		inner, err := toSlice(elem)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		seq := make([]int, len(inner))
		for j, v := range inner {
			id, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("sequence %d item %d: %w", i, j, err)
			}
			seq[j] = id
		}
		seqs[i] = seq
	}
	return seqs, nil
}

// toSlice flattens gopickle list and tuple containers.
func toSlice(obj interface{}) ([]interface{}, error) {
	switch v := obj.(type) {
	case *types.List:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = v.Get(i)
		}
		return out, nil
	case *types.Tuple:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = v.Get(i)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", obj)
	}
}

func toInt(obj interface{}) (int, error) {
	switch v := obj.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("expected integer item id, got %T", obj)
	}
}

// maxItemID returns the largest item id seen across the splits, ignoring
// padding zeros.
func maxItemID(splits ...[][]int) int {
	maxID := 0
	for _, split := range splits {
		for _, seq := range split {
			for _, id := range seq {
				if id > maxID {
					maxID = id
				}
			}
		}
	}
	return maxID
}
