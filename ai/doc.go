// Package ai defines the embedding and composition interfaces used by the
// ingestion pipeline and the agent-assist surfaces, along with their
// shared configuration.
//
// Concrete implementations live in subpackages: ai/openai talks to
// OpenAI-compatible services, ai/mock provides deterministic test doubles.
package ai
