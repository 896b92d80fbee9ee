// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/vectorstore"
)

const (
	vectorKeyPrefix = "vec:"
	dimensionKey    = "index:dimension"
)

// Store implements vectorstore.Store on an embedded BadgerDB instance.
type Store struct {
	db        *badger.DB
	dimension int
	logger    *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a vector store at the given path with the deployment
// dimension. An empty path opens an in-memory store, used by tests.
func Open(path string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive", core.ErrConfig)
	}

	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(path, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(path)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", path)
		}
		opts = badger.DefaultOptions(path)
	}

	logger := slog.Default().With("component", "badger-store")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:        db,
		dimension: dimension,
		logger:    logger,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureIndex records the index dimension on first use and verifies it on
// later startups. A mismatch is fatal; operators must delete and recreate
// the store directory.
func (s *Store) EnsureIndex(ctx context.Context) error {
	return s.db.Update(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(dimensionKey))
		if err == badger.ErrKeyNotFound {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, uint64(s.dimension))
			s.logger.Info("creating vector index", "dimension", s.dimension)
			return tx.Set([]byte(dimensionKey), buf)
		}
		if err != nil {
			return err
		}

		var stored int
		err = item.Value(func(val []byte) error {
			stored = int(binary.LittleEndian.Uint64(val))
			return nil
		})
		if err != nil {
			return err
		}
		if stored != s.dimension {
			return fmt.Errorf("%w: %w: index has %d, configured %d",
				core.ErrConfig, vectorstore.ErrDimensionMismatch, stored, s.dimension)
		}
		return nil
	})
}

// Upsert writes vectors in batches of vectorstore.UpsertBatchSize, one
// transaction per batch. A failed batch leaves preceding batches
// committed.
func (s *Store) Upsert(ctx context.Context, vectors []core.Vector) error {
	for start := 0; start < len(vectors); start += vectorstore.UpsertBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + vectorstore.UpsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}

		err := s.db.Update(func(tx *badger.Txn) error {
			for _, vector := range vectors[start:end] {
				if err := vectorstore.ValidateVector(vector, s.dimension); err != nil {
					return fmt.Errorf("%w: id %q", err, vector.ID)
				}
				data, err := vectorstore.MarshalRecord(vectorstore.RecordFromVector(vector))
				if err != nil {
					return err
				}
				if err := tx.Set([]byte(vectorKeyPrefix+vector.ID), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}

		s.logger.Debug("upserted vector batch", "from", start, "to", end)
	}
	return nil
}

// Query scans all records and returns the topK most cosine-similar
// matches, optionally constrained by a metadata equality filter.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool, filter map[string]any) ([]vectorstore.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var matches []vectorstore.Match
	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorKeyPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var record vectorstore.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = vectorstore.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			if filter != nil && !vectorstore.MatchesFilter(record.Metadata, filter) {
				continue
			}

			match := vectorstore.Match{
				ID:    record.ID,
				Score: core.CosineSimilarity(vector, record.Values),
			}
			if includeMetadata {
				match.Metadata = record.Metadata
			}
			matches = append(matches, match)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(matches, func(a, b vectorstore.Match) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteAll drops every vector but keeps the index dimension marker.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.db.DropPrefix([]byte(vectorKeyPrefix))
}

// Stats counts stored vectors. Fullness is always 0; the embedded store
// has no capacity bound.
func (s *Store) Stats(ctx context.Context) (vectorstore.Stats, error) {
	stats := vectorstore.Stats{Dimension: s.dimension}

	err := s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(vectorKeyPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			stats.VectorCount++
		}
		return nil
	})
	if err != nil {
		return vectorstore.Stats{}, err
	}
	return stats, nil
}
