// Package api exposes the ingestion and retrieval operations over a
// thin JSON HTTP surface. Ingestion endpoints require ticketing
// credentials and respond 503 without them; search and stats work
// against the vector store alone.
package api
