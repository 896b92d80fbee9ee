// Package vectorstore defines the vector index abstraction the ingestion
// pipeline writes to and the search service reads from.
//
// Two backends implement the Store interface: an embedded BadgerDB store
// (vectorstore/badger) for single-node deployments, and a Postgres
// pgvector store (vectorstore/pgvector) for shared deployments. Both are
// bound at startup with a fixed dimension and cosine similarity.
package vectorstore
