// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package seqdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pickleListOfLists serializes seqs as a protocol-0 pickle, the text
// opcode subset every pickle reader understands. This keeps the tests
// free of any Python tooling.
func pickleListOfLists(seqs [][]int) []byte {
	var b strings.Builder
	b.WriteString("(l")
	for _, seq := range seqs {
		b.WriteString("(l")
		for _, id := range seq {
			fmt.Fprintf(&b, "I%d\na", id)
		}
		b.WriteString("a")
	}
	b.WriteString(".")
	return []byte(b.String())
}

func writeSplits(t *testing.T, dir string, train, val, test [][]int) {
	t.Helper()
	for name, seqs := range map[string][][]int{
		TrainFile: train,
		ValFile:   val,
		TestFile:  test,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, pickleListOfLists(seqs), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSplits(t, dir,
		[][]int{{1, 2, 3}, {2, 4}},
		[][]int{{4, 5}},
		[][]int{{6}},
	)

	ds, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(ds.Train) != 2 || len(ds.Val) != 1 || len(ds.Test) != 1 {
		t.Errorf("split sizes = %d/%d/%d, want 2/1/1", len(ds.Train), len(ds.Val), len(ds.Test))
	}
	if ds.NumItems != 6 {
		t.Errorf("NumItems = %d, want 6 (max id over all splits)", ds.NumItems)
	}

	wantFirst := []int{1, 2, 3}
	for i, id := range wantFirst {
		if ds.Train[0][i] != id {
			t.Errorf("Train[0][%d] = %d, want %d", i, ds.Train[0][i], id)
		}
	}
}

func TestLoadEmptySequencesAllowed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSplits(t, dir,
		[][]int{{}, {3}},
		[][]int{{}},
		[][]int{},
	)

	ds, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(ds.Train[0]) != 0 {
		t.Errorf("Train[0] length = %d, want 0", len(ds.Train[0]))
	}
	if ds.NumItems != 3 {
		t.Errorf("NumItems = %d, want 3", ds.NumItems)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	// Only train present; val and test missing.
	path := filepath.Join(dir, TrainFile)
	if err := os.WriteFile(path, pickleListOfLists([][]int{{1}}), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() error = nil, want DataError for missing file")
	}
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DataError", err)
	}
	if de.Path == "" {
		t.Error("DataError.Path empty, want offending file path")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSplits(t, dir, [][]int{{1}}, [][]int{{2}}, [][]int{{3}})
	if err := os.WriteFile(filepath.Join(dir, ValFile), []byte("not a pickle"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() error = nil, want DataError for corrupt file")
	}
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DataError", err)
	}
}

func TestLoadNonListPayload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSplits(t, dir, [][]int{{1}}, [][]int{{2}}, [][]int{{3}})
	// A pickled integer instead of a list.
	if err := os.WriteFile(filepath.Join(dir, TestFile), []byte("I42\n."), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want *DataError for non-list payload", err)
	}
}

func TestLoadEmptyVocabulary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeSplits(t, dir, [][]int{{}}, [][]int{}, [][]int{})

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() error = nil, want DataError for empty vocabulary")
	}
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DataError", err)
	}
	if !strings.Contains(de.Error(), "vocabulary") {
		t.Errorf("error %q does not mention the vocabulary", de.Error())
	}
}
