package ai

import (
	"context"
	"time"
)

// BatchOptions tunes EmbedBatch pacing.
type BatchOptions struct {
	// BatchSize is the number of texts sent per request. Default 50.
	BatchSize int

	// InterBatchDelay is the pause between consecutive batches. Default 1 s.
	InterBatchDelay time.Duration

	// OnProgress, if set, is called after each batch with the number of
	// texts embedded so far and the total.
	OnProgress func(done, total int)
}

// CacheStats reports the state of an embedder's content cache.
type CacheStats struct {
	// Entries is the number of cached texts.
	Entries int

	// ApproxBytes is a conservative estimate of cache memory usage.
	ApproxBytes int64
}

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a unit vector embedding for a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving input
	// order and length. Texts are processed in sequential batches; a
	// failure inside a batch fails the whole call.
	EmbedBatch(ctx context.Context, texts []string, opts *BatchOptions) ([][]float32, error)

	// Dimension returns the fixed output dimension of the embedding model.
	Dimension() int
}

// Composer generates agent-assist text from retrieved ticket context.
// Implementations must be thread-safe for concurrent use.
type Composer interface {
	// SummarizeTicket produces a short summary of the supplied ticket
	// context.
	SummarizeTicket(ctx context.Context, ticketContext string) (string, error)

	// DraftReply drafts a support reply to the question, grounded on the
	// supplied context of related resolutions.
	DraftReply(ctx context.Context, question, ticketContext string) (string, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Composer returns the text composition service.
	Composer() Composer

	// Close releases resources held by the provider and its services.
	Close() error
}
