// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

// Package storage persists training artifacts: the best-model checkpoint
// and the per-epoch history.
//
// Checkpoints are gob-encoded parameter snapshots, gzip-compressed and
// wrapped with metadata including a SHA-256 checksum of the uncompressed
// payload. Each run writes a single named slot that is overwritten
// whenever validation improves, so the file on disk is always the best
// model seen so far.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/recforge/maskrec/internal/tensor"
	"github.com/recforge/maskrec/internal/trainer"
)

// CheckpointMetadata describes a stored checkpoint.
type CheckpointMetadata struct {
	// Name is the checkpoint slot name.
	Name string `json:"name"`

	// RunID identifies the training run that produced this checkpoint.
	RunID string `json:"run_id"`

	// Epoch is the epoch whose validation result triggered the save.
	Epoch int `json:"epoch"`

	// ValNDCG is the validation NDCG that made this the best model.
	ValNDCG float64 `json:"val_ndcg"`

	// SavedAt is when the checkpoint was written.
	SavedAt time.Time `json:"saved_at"`

	// Checksum is the SHA-256 checksum of the uncompressed snapshot.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed snapshot size.
	SizeBytes int64 `json:"size_bytes"`
}

// ModelState is the serializable parameter snapshot. Tensors are stored
// in the model's stable parameter order.
type ModelState struct {
	Shapes [][]int
	Values [][]float64
}

// checkpointFile is the on-disk format.
type checkpointFile struct {
	Metadata       CheckpointMetadata
	CompressedData []byte
}

// Store manages checkpoint persistence under a base directory.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// NewStore creates a checkpoint store rooted at baseDir, creating the
// directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

var _ trainer.CheckpointSaver = (*Store)(nil)

// SaveCheckpoint snapshots params under the named slot, overwriting any
// previous checkpoint with the same name.
func (s *Store) SaveCheckpoint(name string, params []*tensor.Tensor, meta trainer.CheckpointMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := snapshot(params)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	cf := checkpointFile{
		Metadata: CheckpointMetadata{
			Name:      name,
			RunID:     meta.RunID,
			Epoch:     meta.Epoch,
			ValNDCG:   meta.ValNDCG,
			SavedAt:   time.Now(),
			Checksum:  hex.EncodeToString(hash[:]),
			SizeBytes: int64(compressed.Len()),
		},
		CompressedData: compressed.Bytes(),
	}

	f, err := os.Create(s.checkpointPath(name))
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := gob.NewEncoder(f).Encode(cf); err != nil {
		return fmt.Errorf("write checkpoint file: %w", err)
	}
	return nil
}

// LoadCheckpoint restores the named checkpoint into params, which must
// match the saved parameter count and shapes. The checksum is verified
// before any parameter is touched.
func (s *Store) LoadCheckpoint(name string, params []*tensor.Tensor) (*CheckpointMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.checkpointPath(name))
	if err != nil {
		return nil, fmt.Errorf("open checkpoint file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var cf checkpointFile
	if err := gob.NewDecoder(f).Decode(&cf); err != nil {
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(cf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != cf.Metadata.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", cf.Metadata.Checksum, checksum)
	}

	var state ModelState
	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(&state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}

	if err := restore(params, state); err != nil {
		return nil, err
	}
	return &cf.Metadata, nil
}

func (s *Store) checkpointPath(name string) string {
	return filepath.Join(s.baseDir, name+".gob.gz")
}

func snapshot(params []*tensor.Tensor) ModelState {
	state := ModelState{
		Shapes: make([][]int, len(params)),
		Values: make([][]float64, len(params)),
	}
	for i, p := range params {
		state.Shapes[i] = append([]int(nil), p.Shape...)
		state.Values[i] = append([]float64(nil), p.Data...)
	}
	return state
}

func restore(params []*tensor.Tensor, state ModelState) error {
	if len(state.Values) != len(params) {
		return fmt.Errorf("checkpoint has %d tensors, model has %d", len(state.Values), len(params))
	}
	for i, p := range params {
		if len(state.Values[i]) != p.NumElements() {
			return fmt.Errorf("tensor %d has %d elements in checkpoint, %d in model",
				i, len(state.Values[i]), p.NumElements())
		}
	}
	for i, p := range params {
		copy(p.Data, state.Values[i])
	}
	return nil
}
