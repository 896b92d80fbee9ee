// Package zendesk provides a rate-limited client for the Zendesk REST API.
//
// The Client type performs authenticated JSON requests with exponential
// backoff on transient failures and honors server-provided retry hints.
// Paginated result sets are walked with a polite inter-page pause.
//
// Higher-level helpers cover the surfaces the ingestion pipeline needs:
//   - Ticket search by creation date range
//   - Per-ticket comment threads
//   - The ticket field schema (cached by FieldRegistry)
//   - Custom object types, fields, and records (used for audit records)
package zendesk
