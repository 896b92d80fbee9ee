// Package badger implements vectorstore.Store on an embedded BadgerDB.
//
// Vectors are stored as MUS-encoded records under a common key prefix and
// queried with a full cosine scan. Suitable for single-node deployments
// and tests; larger corpora should use the pgvector backend.
package badger
