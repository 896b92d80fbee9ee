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


package vectorstore

import (
	"context"

	"github.com/poiesic/deskrag/core"
)

// UpsertBatchSize is the fixed number of vectors written per backend
// round trip. A batch failure propagates an error and leaves preceding
// batches committed.
const UpsertBatchSize = 100

// Match is a single query result.
type Match struct {
	ID    string
	Score float32
	// Metadata is populated only when the query asked for it.
	Metadata map[string]any
}

// Stats describes the state of a vector index.
type Stats struct {
	Dimension   int
	VectorCount int
	// Fullness is the fraction of index capacity in use, in [0, 1].
	// Backends without a capacity bound report 0.
	Fullness float64
}

// Store is the vector index abstraction. Implementations are safe for
// concurrent use and perform idempotent upserts keyed by vector id.
type Store interface {
	// EnsureIndex creates the index if missing with the deployment
	// dimension and cosine metric. If the index exists with a different
	// dimension, it fails with an error wrapping core.ErrConfig.
	EnsureIndex(ctx context.Context) error

	// Upsert writes vectors in batches of UpsertBatchSize. A mid-batch
	// failure leaves preceding batches committed.
	Upsert(ctx context.Context, vectors []core.Vector) error

	// Query returns the topK nearest neighbors of vector by cosine
	// similarity. A non-nil filter constrains results to records whose
	// metadata matches every filter entry by equality.
	Query(ctx context.Context, vector []float32, topK int, includeMetadata bool, filter map[string]any) ([]Match, error)

	// DeleteAll empties the index.
	DeleteAll(ctx context.Context) error

	// Stats returns the index dimension, fullness, and vector count.
	Stats(ctx context.Context) (Stats, error)

	// Close releases backend resources.
	Close() error
}

// ValidateVector checks a vector against the index dimension before
// upsert.
func ValidateVector(v core.Vector, dimension int) error {
	if v.ID == "" {
		return ErrInvalidVector
	}
	if len(v.Values) != dimension {
		return ErrInvalidVector
	}
	return nil
}
