// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package typestore persists type observations across processes.
//
// The registry lives only as long as the process that fills it. A
// Store keeps the union of every snapshot saved to it in a BadgerDB
// directory, so that observations from separate analysis runs of the
// same program accumulate.
//
// Key schema:
//
//	types:{qualified name} → JSON array of kinds, sorted
//	runs:{run id}          → JSON RunRecord
package typestore // import "github.com/typetrace/typetrace/internal/typestore"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/typetrace/typetrace/registry"
)

const (
	keyPrefixTypes = "types:"
	keyPrefixRuns  = "runs:"
)

// A RunRecord describes one completed analysis run.
type RunRecord struct {
	ID       string        `json:"id"`
	Entry    string        `json:"entry"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed"`
	Error    string        `json:"error,omitempty"`
	Bindings int           `json:"bindings"`
}

// A Store is a persistent, mergeable registry snapshot.
// It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens or creates the store in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("typestore: empty directory")
	}
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory opens a store that keeps nothing on disk.
func OpenInMemory(logger *slog.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the store.
func (s *Store) Close() error { return s.db.Close() }

// Save merges snap into the store in a single transaction.
// A transaction that conflicts with a concurrent Save is retried, so no
// observation is lost to contention.
func (s *Store) Save(ctx context.Context, snap registry.Snapshot) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		added, err := s.save(snap)
		if errors.Is(err, badger.ErrConflict) {
			s.logger.Debug("snapshot save conflicted, retrying", slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		s.logger.Debug("snapshot saved", slog.Int("bindings", len(snap)), slog.Int("new_kinds", added))
		return nil
	}
}

func (s *Store) save(snap registry.Snapshot) (int, error) {
	added := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		for name, kinds := range snap {
			key := []byte(keyPrefixTypes + name)
			existing, err := getKinds(txn, key)
			if err != nil {
				return err
			}
			merged, n := union(existing, kinds)
			if n == 0 {
				continue
			}
			added += n
			data, err := json.Marshal(merged)
			if err != nil {
				return fmt.Errorf("marshaling kinds of %s: %w", name, err)
			}
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("storing kinds of %s: %w", name, err)
			}
		}
		return nil
	})
	return added, err
}

// Load returns everything saved in the store.
func (s *Store) Load(ctx context.Context) (registry.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := make(registry.Snapshot)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTypes)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), keyPrefixTypes)
			err := item.Value(func(val []byte) error {
				var kinds []registry.Kind
				if err := json.Unmarshal(val, &kinds); err != nil {
					return err
				}
				snap[name] = kinds
				return nil
			})
			if err != nil {
				s.logger.Warn("skipping corrupt entry", slog.String("binding", name), slog.Any("error", err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return snap, nil
}

// Record saves a run record.
func (s *Store) Record(ctx context.Context, rec RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefixRuns+rec.ID), data)
	})
}

// Runs returns all run records, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var runs []RunRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRuns)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("decoding run record: %w", err)
			}
			runs = append(runs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Started.Before(runs[j].Started) })
	return runs, nil
}

func getKinds(txn *badger.Txn, key []byte) ([]registry.Kind, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var kinds []registry.Kind
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &kinds)
	})
	return kinds, err
}

// union returns the sorted union of a and b and the number of kinds
// of b that were not in a.
func union(a, b []registry.Kind) ([]registry.Kind, int) {
	seen := make(map[registry.Kind]bool, len(a)+len(b))
	out := make([]registry.Kind, 0, len(a)+len(b))
	for _, k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	added := 0
	for _, k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
			added++
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, added
}
