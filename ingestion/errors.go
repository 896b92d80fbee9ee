package ingestion

import "errors"

var (
	// ErrTicketSourceRequired is returned when a ticket source is not provided.
	ErrTicketSourceRequired = errors.New("ticket source required")

	// ErrEnricherRequired is returned when an enricher is not provided.
	ErrEnricherRequired = errors.New("enricher required")

	// ErrCommentSourceRequired is returned when a comment source is not provided.
	ErrCommentSourceRequired = errors.New("comment source required")

	// ErrFieldSourceRequired is returned when a field source is not provided.
	ErrFieldSourceRequired = errors.New("field source required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")
)
