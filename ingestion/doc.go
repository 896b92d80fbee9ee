// Package ingestion implements the ticket ingestion pipeline: fetch
// tickets for a date range, enrich each with its comment thread and typed
// custom fields, decompose into bounded chunks, embed, and upsert into
// the vector store. One audit record is written per run at terminal
// state.
//
// The Pipeline type orchestrates the phases with bounded concurrency and
// cooperative cancellation; Enricher and Chunker are usable on their own.
package ingestion
