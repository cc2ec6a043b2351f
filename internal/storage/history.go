// Maskrec - Masked-Sequence Recommendation Model Trainer
// Copyright 2026 Recforge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/recforge/maskrec

package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/recforge/maskrec/internal/trainer"
)

// HistoryStore writes per-epoch training records as indented JSON under
// a results directory.
type HistoryStore struct {
	dir string
}

// NewHistoryStore creates a history store rooted at dir, creating the
// directory if needed.
func NewHistoryStore(dir string) (*HistoryStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	return &HistoryStore{dir: dir}, nil
}

var _ trainer.HistoryWriter = (*HistoryStore)(nil)

// WriteHistory persists records as <dir>/<name>.json, overwriting any
// previous file. Records keep their epoch order.
func (h *HistoryStore) WriteHistory(name string, records []trainer.EpochRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(h.path(name), data, 0o600); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}

// ReadHistory loads a previously written history file.
func (h *HistoryStore) ReadHistory(name string) ([]trainer.EpochRecord, error) {
	data, err := os.ReadFile(h.path(name))
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	var records []trainer.EpochRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}

func (h *HistoryStore) path(name string) string {
	return filepath.Join(h.dir, name+".json")
}
