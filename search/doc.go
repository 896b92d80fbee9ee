// Package search provides semantic retrieval over the vector store and
// the agent-assist operations built on it: per-ticket summarization and
// reply drafting grounded on retrieved resolutions.
package search
