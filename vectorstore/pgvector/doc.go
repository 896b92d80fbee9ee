// Package pgvector implements vectorstore.Store on Postgres with the
// pgvector extension. Queries use the cosine distance operator with
// optional JSONB metadata containment filtering.
package pgvector
