// Package openai implements ai.Embedder and ai.Composer against
// OpenAI-compatible HTTP APIs.
//
// The embedder batches requests, retries transient failures with
// exponential backoff, honors Retry-After hints on 429 responses, paces
// requests with a minimum inter-request interval, and caches vectors by
// exact (truncated) text content for the process lifetime.
package openai
