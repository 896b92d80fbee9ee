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


package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/vectorstore"
)

// Store implements vectorstore.Store on Postgres with pgvector.
type Store struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *slog.Logger
}

var _ vectorstore.Store = (*Store)(nil)

// New connects to Postgres and returns a store bound to the given table
// and dimension. The connection is verified with a ping.
func New(ctx context.Context, connString, table string, dimension int) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: vector dimension must be positive", core.ErrConfig)
	}
	if table == "" {
		return nil, fmt.Errorf("%w: vector table name is required", core.ErrConfig)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %w", core.ErrConfig, err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{
		pool:      pool,
		table:     table,
		dimension: dimension,
		logger:    slog.Default().With("component", "pgvector-store"),
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) tableIdent() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureIndex creates the vector table if missing and verifies the
// embedding column dimension otherwise. A mismatch is fatal; operators
// must drop and recreate the table.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createStmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id text PRIMARY KEY,
		embedding vector(%d) NOT NULL,
		metadata jsonb NOT NULL DEFAULT '{}'::jsonb,
		created_at timestamptz NOT NULL DEFAULT now()
	)`, s.tableIdent(), s.dimension)
	if _, err := s.pool.Exec(ctx, createStmt); err != nil {
		return fmt.Errorf("create vector table: %w", err)
	}

	// atttypmod carries the declared vector dimension.
	var stored int
	err := s.pool.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute
		 WHERE attrelid = $1::regclass AND attname = 'embedding'`,
		s.table,
	).Scan(&stored)
	if err != nil {
		return fmt.Errorf("read embedding column dimension: %w", err)
	}
	if stored != s.dimension {
		return fmt.Errorf("%w: %w: table %s has %d, configured %d",
			core.ErrConfig, vectorstore.ErrDimensionMismatch, s.table, stored, s.dimension)
	}

	s.logger.Info("vector index ready", "table", s.table, "dimension", s.dimension)
	return nil
}

// Upsert writes vectors in batches of vectorstore.UpsertBatchSize using
// pgx batching. A failed batch leaves preceding batches committed.
func (s *Store) Upsert(ctx context.Context, vectors []core.Vector) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (id, embedding, metadata)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
		 SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
		s.tableIdent())

	for start := 0; start < len(vectors); start += vectorstore.UpsertBatchSize {
		end := start + vectorstore.UpsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}

		batch := &pgx.Batch{}
		for _, vector := range vectors[start:end] {
			if err := vectorstore.ValidateVector(vector, s.dimension); err != nil {
				return fmt.Errorf("%w: id %q", err, vector.ID)
			}
			metaJSON, err := json.Marshal(vector.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %q: %w", vector.ID, err)
			}
			batch.Queue(stmt, vector.ID, pgvec.NewVector(vector.Values), metaJSON)
		}

		results := s.pool.SendBatch(ctx, batch)
		var batchErr error
		for i := start; i < end; i++ {
			if _, err := results.Exec(); err != nil && batchErr == nil {
				batchErr = fmt.Errorf("upsert vector %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil && batchErr == nil {
			batchErr = err
		}
		if batchErr != nil {
			return batchErr
		}

		s.logger.Debug("upserted vector batch", "from", start, "to", end)
	}
	return nil
}

// Query returns the topK nearest neighbors by cosine similarity. A
// non-nil filter is applied as JSONB containment on metadata.
func (s *Store) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool, filter map[string]any) ([]vectorstore.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT id, 1 - (embedding <=> $1) AS score, metadata
		 FROM %s`, s.tableIdent())
	args := []any{pgvec.NewVector(vector)}

	if filter != nil {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal query filter: %w", err)
		}
		query += ` WHERE metadata @> $2::jsonb`
		args = append(args, filterJSON)
	}
	query += fmt.Sprintf(` ORDER BY embedding <=> $1 LIMIT %d`, topK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []vectorstore.Match
	for rows.Next() {
		var (
			match    vectorstore.Match
			score    float64
			metaJSON []byte
		)
		if err := rows.Scan(&match.ID, &score, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		match.Score = float32(score)
		if includeMetadata && len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &match.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal match metadata: %w", err)
			}
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

// DeleteAll empties the vector table.
func (s *Store) DeleteAll(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.tableIdent()))
	return err
}

// Stats returns the vector count and configured dimension. Fullness is
// always 0; Postgres has no fixed index capacity.
func (s *Store) Stats(ctx context.Context) (vectorstore.Stats, error) {
	stats := vectorstore.Stats{Dimension: s.dimension}
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, s.tableIdent()),
	).Scan(&stats.VectorCount)
	if err != nil {
		return vectorstore.Stats{}, fmt.Errorf("count vectors: %w", err)
	}
	return stats, nil
}
