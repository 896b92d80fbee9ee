// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/vectorstore"
)

// Phase identifies where a run currently is in its state machine.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseFetchingFields  Phase = "fetching_fields"
	PhaseFetchingTickets Phase = "fetching_tickets"
	PhaseEnriching       Phase = "enriching"
	PhaseChunking        Phase = "chunking"
	PhaseEmbedding       Phase = "embedding"
	PhaseUpserting       Phase = "upserting"
	PhaseAuditing        Phase = "auditing"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
)

const (
	defaultEnrichConcurrency = 10
	enrichBatchPause         = 500 * time.Millisecond
	defaultRunTag            = "deskrag"
	progressReportInterval   = 10
)

// TicketSource supplies the tickets for a date range.
type TicketSource interface {
	SearchTicketsCreatedBetween(ctx context.Context, start, end time.Time) ([]core.Ticket, error)
}

// AuditWriter records the terminal state of a run. Implementations must
// absorb their own write failures; the pipeline never fails on audit.
type AuditWriter interface {
	RecordSuccess(ctx context.Context, start, end time.Time, ticketCount int) (string, error)
	RecordFailure(ctx context.Context, start, end time.Time, errMessage, errDetails string) (string, error)
}

// Result summarizes a completed run.
type Result struct {
	Status           string    `json:"status"`
	TicketsProcessed int       `json:"tickets_processed"`
	TotalChunks      int       `json:"total_chunks"`
	ProcessingTime   float64   `json:"processing_time_seconds"`
	AuditRecordID    string    `json:"audit_record_id,omitempty"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}

// Pipeline orchestrates an ingestion run: field-map warmup, fetch,
// enrich, chunk, embed, upsert, audit. A Pipeline is reusable across
// runs; Run itself is not safe for concurrent invocation with the same
// progress writer.
type Pipeline struct {
	tickets    TicketSource
	enricher   *Enricher
	fields     FieldSource
	embedder   ai.Embedder
	store      vectorstore.Store
	audit      AuditWriter
	chunker    *Chunker
	enrichPool *ants.Pool

	runTag            string
	runStamp          int64
	batchOpts         *ai.BatchOptions
	progressWriter    io.Writer
	enrichConcurrency int

	phaseMu sync.Mutex
	phase   Phase

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithAuditWriter sets the audit recorder. Without one, runs still pass
// through the Auditing phase but write no audit record.
func WithAuditWriter(audit AuditWriter) Option {
	return func(p *Pipeline) error {
		p.audit = audit
		return nil
	}
}

// WithRunTag sets the provenance tag embedded in vector identifiers and
// metadata. Default is "deskrag".
func WithRunTag(tag string) Option {
	return func(p *Pipeline) error {
		if tag == "" {
			return fmt.Errorf("%w: run tag must not be empty", core.ErrConfig)
		}
		p.runTag = tag
		return nil
	}
}

// WithRunStamp pins the run timestamp used in vector identifiers.
// Replaying with an identical stamp overwrites the prior run's vectors.
// Default is a fresh millisecond timestamp per run.
func WithRunStamp(stamp int64) Option {
	return func(p *Pipeline) error {
		p.runStamp = stamp
		return nil
	}
}

// WithBatchOptions tunes embedding batch size and pacing.
func WithBatchOptions(opts *ai.BatchOptions) Option {
	return func(p *Pipeline) error {
		p.batchOpts = opts
		return nil
	}
}

// WithProgressWriter enables progress reporting to the given writer,
// typically os.Stderr.
func WithProgressWriter(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progressWriter = w
		return nil
	}
}

// WithEnrichConcurrency sets the maximum simultaneous per-ticket
// enrichments within a batch. Default is 10.
func WithEnrichConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.enrichPool != nil {
			p.enrichPool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.enrichConcurrency = n
		p.enrichPool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates an ingestion pipeline over the given sources and
// sinks.
func NewPipeline(
	tickets TicketSource,
	enricher *Enricher,
	fields FieldSource,
	embedder ai.Embedder,
	store vectorstore.Store,
	opts ...Option,
) (*Pipeline, error) {
	if tickets == nil {
		return nil, ErrTicketSourceRequired
	}
	if enricher == nil {
		return nil, ErrEnricherRequired
	}
	if fields == nil {
		return nil, ErrFieldSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	pool, err := ants.NewPool(defaultEnrichConcurrency)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		tickets:           tickets,
		enricher:          enricher,
		fields:            fields,
		embedder:          embedder,
		store:             store,
		chunker:           NewChunker(),
		enrichPool:        pool,
		runTag:            defaultRunTag,
		enrichConcurrency: defaultEnrichConcurrency,
		phase:             PhaseIdle,
		logger:            slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	return p, nil
}

// Release frees the worker pool. The pipeline must not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.enrichPool != nil {
		p.enrichPool.Release()
	}
}

// Phase returns the current run phase.
func (p *Pipeline) Phase() Phase {
	p.phaseMu.Lock()
	defer p.phaseMu.Unlock()
	return p.phase
}

func (p *Pipeline) setPhase(phase Phase) {
	p.phaseMu.Lock()
	p.phase = phase
	p.phaseMu.Unlock()
	p.logger.Debug("phase transition", "phase", string(phase))
}

// Run executes one ingestion pass over tickets created in [start, end].
// Per-ticket enrichment failures are logged and skipped; any other phase
// failure writes a best-effort Failure audit record and returns the
// error alongside a Failed result.
func (p *Pipeline) Run(ctx context.Context, start, end time.Time) (*Result, error) {
	if err := core.ValidateDateRange(start, end); err != nil {
		return nil, err
	}

	began := time.Now()
	runStamp := p.runStamp
	if runStamp == 0 {
		runStamp = began.UnixMilli()
	}

	result := &Result{StartDate: start, EndDate: end}
	fail := func(err error) (*Result, error) {
		p.setPhase(PhaseFailed)
		result.Status = "Failed"
		result.AuditRecordID = p.recordFailure(ctx, start, end, err)
		result.ProcessingTime = roundSeconds(time.Since(began))
		return result, err
	}

	p.setPhase(PhaseFetchingFields)
	if _, err := p.fields.GetFields(ctx); err != nil {
		return fail(fmt.Errorf("warm field registry: %w", err))
	}

	p.setPhase(PhaseFetchingTickets)
	tickets, err := p.tickets.SearchTicketsCreatedBetween(ctx, start, end)
	if err != nil {
		return fail(fmt.Errorf("fetch tickets: %w", err))
	}
	p.logger.Info("fetched tickets", "count", len(tickets), "start", start, "end", end)

	if len(tickets) == 0 {
		p.setPhase(PhaseAuditing)
		result.AuditRecordID = p.recordSuccess(ctx, start, end, 0)
		p.setPhase(PhaseDone)
		result.Status = "No tickets found in date range"
		result.ProcessingTime = roundSeconds(time.Since(began))
		return result, nil
	}

	p.setPhase(PhaseEnriching)
	enriched, err := p.enrichAll(ctx, tickets)
	if err != nil {
		return fail(err)
	}
	p.logger.Info("enriched tickets", "succeeded", len(enriched), "failed", len(tickets)-len(enriched))

	p.setPhase(PhaseChunking)
	chunks, texts := p.chunkAll(enriched)
	p.logger.Info("chunked tickets", "chunks", len(chunks))

	p.setPhase(PhaseEmbedding)
	embeddings, err := p.embedder.EmbedBatch(ctx, texts, p.batchOpts)
	if err != nil {
		return fail(fmt.Errorf("embed chunks: %w", err))
	}

	p.setPhase(PhaseUpserting)
	vectors := p.buildVectors(chunks, embeddings, runStamp)
	if err := p.store.Upsert(ctx, vectors); err != nil {
		return fail(fmt.Errorf("upsert vectors: %w", err))
	}

	p.setPhase(PhaseAuditing)
	result.AuditRecordID = p.recordSuccess(ctx, start, end, len(enriched))

	p.setPhase(PhaseDone)
	result.Status = "Success"
	result.TicketsProcessed = len(enriched)
	result.TotalChunks = len(chunks)
	result.ProcessingTime = roundSeconds(time.Since(began))
	p.logger.Info("ingestion run complete",
		"tickets", result.TicketsProcessed,
		"chunks", result.TotalChunks,
		"seconds", result.ProcessingTime)
	return result, nil
}

// enrichAll enriches tickets in bounded-concurrency batches with a pause
// between batches. Individual enrichment failures are logged and the
// ticket skipped; output preserves input order.
func (p *Pipeline) enrichAll(ctx context.Context, tickets []core.Ticket) ([]*core.EnrichedTicket, error) {
	var progress *EnrichmentProgress
	if p.progressWriter != nil {
		progress = NewEnrichmentProgress(p.progressWriter, len(tickets), progressReportInterval)
		progress.Begin()
	}

	results := make([]*core.EnrichedTicket, len(tickets))
	for batchStart := 0; batchStart < len(tickets); batchStart += p.enrichConcurrency {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batchEnd := batchStart + p.enrichConcurrency
		if batchEnd > len(tickets) {
			batchEnd = len(tickets)
		}

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			i := i
			wg.Add(1)
			submitErr := p.enrichPool.Submit(func() {
				defer wg.Done()
				enriched, err := p.enricher.Enrich(ctx, tickets[i])
				if err != nil {
					p.logger.Warn("skipping ticket after enrichment failure",
						"ticket_id", tickets[i].ID, "err", err)
					if progress != nil {
						progress.TicketSkipped()
					}
					return
				}
				results[i] = enriched
				if progress != nil {
					progress.TicketDone()
				}
			})
			if submitErr != nil {
				wg.Done()
				return nil, fmt.Errorf("submit enrichment task: %w", submitErr)
			}
		}
		wg.Wait()

		if batchEnd < len(tickets) {
			if err := sleepContext(ctx, enrichBatchPause); err != nil {
				return nil, err
			}
		}
	}

	if progress != nil {
		progress.Finish()
	}

	enriched := make([]*core.EnrichedTicket, 0, len(tickets))
	for _, ticket := range results {
		if ticket != nil {
			enriched = append(enriched, ticket)
		}
	}
	return enriched, nil
}

// chunkAll chunks enriched tickets in order and returns the chunks with
// their texts in matching positions.
func (p *Pipeline) chunkAll(enriched []*core.EnrichedTicket) ([]core.Chunk, []string) {
	var chunks []core.Chunk
	for _, ticket := range enriched {
		chunks = append(chunks, p.chunker.Chunk(ticket)...)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return chunks, texts
}

// buildVectors pairs chunks with their embeddings. Chunk indexes in the
// vector identifier restart per ticket so replays with the same stamp
// are idempotent.
func (p *Pipeline) buildVectors(chunks []core.Chunk, embeddings [][]float32, runStamp int64) []core.Vector {
	importedAt := time.Now().UTC().Format(time.RFC3339)

	vectors := make([]core.Vector, 0, len(chunks))
	var (
		currentTicket int64 = -1
		chunkIndex    int
	)
	for i, chunk := range chunks {
		if chunk.Metadata.TicketID != currentTicket {
			currentTicket = chunk.Metadata.TicketID
			chunkIndex = 0
		}

		metadata := chunk.Metadata.ToMap()
		metadata["text"] = chunk.Text
		metadata["source"] = p.runTag
		metadata["imported_at"] = importedAt

		vectors = append(vectors, core.Vector{
			ID:       VectorID(p.runTag, chunk.Metadata.TicketID, chunkIndex, runStamp),
			Values:   embeddings[i],
			Metadata: metadata,
		})
		chunkIndex++
	}
	return vectors
}

func (p *Pipeline) recordSuccess(ctx context.Context, start, end time.Time, ticketCount int) string {
	if p.audit == nil {
		return ""
	}
	id, err := p.audit.RecordSuccess(ctx, start, end, ticketCount)
	if err != nil {
		p.logger.Error("audit success write failed", "err", err)
		return ""
	}
	return id
}

func (p *Pipeline) recordFailure(ctx context.Context, start, end time.Time, runErr error) string {
	if p.audit == nil {
		return ""
	}
	// The run context may already be canceled; give the audit write its
	// own short deadline.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	id, err := p.audit.RecordFailure(auditCtx, start, end, runErr.Error(), fmt.Sprintf("%+v", runErr))
	if err != nil {
		p.logger.Error("audit failure write failed", "err", err)
		return ""
	}
	return id
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
