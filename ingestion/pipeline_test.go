package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/deskrag/ai/mock"
	"github.com/poiesic/deskrag/core"
	badgerstore "github.com/poiesic/deskrag/vectorstore/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicketSource struct {
	fn func(ctx context.Context, start, end time.Time) ([]core.Ticket, error)
}

func (f *fakeTicketSource) SearchTicketsCreatedBetween(ctx context.Context, start, end time.Time) ([]core.Ticket, error) {
	return f.fn(ctx, start, end)
}

type auditCall struct {
	kind        core.AuditKind
	ticketCount int
	errMessage  string
}

type fakeAudit struct {
	mu    sync.Mutex
	calls []auditCall
	id    string
}

func (f *fakeAudit) RecordSuccess(ctx context.Context, start, end time.Time, ticketCount int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, auditCall{kind: core.AuditSuccess, ticketCount: ticketCount})
	return f.id, nil
}

func (f *fakeAudit) RecordFailure(ctx context.Context, start, end time.Time, errMessage, errDetails string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, auditCall{kind: core.AuditFailure, errMessage: errMessage})
	return f.id, nil
}

func (f *fakeAudit) recorded() []auditCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auditCall(nil), f.calls...)
}

func rangeTickets(count int) []core.Ticket {
	tickets := make([]core.Ticket, count)
	for i := range tickets {
		tickets[i] = core.Ticket{
			ID:          int64(i + 1),
			Subject:     "Subject",
			Description: "Description",
			Status:      "solved",
			Priority:    "normal",
			RequesterID: 100,
			CreatedAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return tickets
}

// agentThread is two agent comments around one customer comment, so
// enrichment yields a three-entry conversation with a resolution.
func agentThread() []core.Comment {
	return []core.Comment{
		{AuthorID: 200, Body: "Have you tried turning it off and on?", Public: true},
		{AuthorID: 100, Body: "Yes, twice", Public: true},
		{AuthorID: 200, Body: "Reset the device config", Public: true},
	}
}

type pipelineHarness struct {
	pipeline *Pipeline
	store    *badgerstore.Store
	embedder *mock.MockEmbedder
	audit    *fakeAudit
}

func newHarness(t *testing.T, tickets *fakeTicketSource, comments CommentSource, opts ...Option) *pipelineHarness {
	t.Helper()

	store, err := badgerstore.Open("", 8)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureIndex(context.Background()))

	fields := &fakeFields{}
	enricher, err := NewEnricher(comments, fields)
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	auditRec := &fakeAudit{id: "audit-1"}

	opts = append([]Option{WithAuditWriter(auditRec)}, opts...)
	pipeline, err := NewPipeline(tickets, enricher, fields, embedder, store, opts...)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return &pipelineHarness{pipeline: pipeline, store: store, embedder: embedder, audit: auditRec}
}

func dateRange() (time.Time, time.Time) {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestNewPipeline_Validation(t *testing.T) {
	tickets := &fakeTicketSource{}
	fields := &fakeFields{}
	enricher, err := NewEnricher(staticComments(), fields)
	require.NoError(t, err)
	embedder := mock.NewMockEmbedder()

	store, err := badgerstore.Open("", 8)
	require.NoError(t, err)
	defer store.Close()

	t.Run("nil ticket source", func(t *testing.T) {
		_, err := NewPipeline(nil, enricher, fields, embedder, store)
		assert.Equal(t, ErrTicketSourceRequired, err)
	})
	t.Run("nil enricher", func(t *testing.T) {
		_, err := NewPipeline(tickets, nil, fields, embedder, store)
		assert.Equal(t, ErrEnricherRequired, err)
	})
	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewPipeline(tickets, enricher, fields, nil, store)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
	t.Run("nil store", func(t *testing.T) {
		_, err := NewPipeline(tickets, enricher, fields, embedder, nil)
		assert.Equal(t, ErrStoreRequired, err)
	})
}

func TestRun_ThreeTickets(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return rangeTickets(3), nil
	}}
	h := newHarness(t, tickets, staticComments(agentThread()...))

	start, end := dateRange()
	result, err := h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "Success", result.Status)
	assert.Equal(t, 3, result.TicketsProcessed)
	// Overview, conversation, resolution per ticket.
	assert.Equal(t, 9, result.TotalChunks)
	assert.Equal(t, "audit-1", result.AuditRecordID)
	assert.Equal(t, start, result.StartDate)
	assert.Equal(t, end, result.EndDate)
	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, stats.VectorCount)

	calls := h.audit.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, core.AuditSuccess, calls[0].kind)
	assert.Equal(t, 3, calls[0].ticketCount)
}

func TestRun_ZeroTickets(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return nil, nil
	}}
	h := newHarness(t, tickets, staticComments())

	start, end := dateRange()
	result, err := h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "No tickets found in date range", result.Status)
	assert.Zero(t, result.TicketsProcessed)
	assert.Zero(t, result.TotalChunks)
	assert.Zero(t, h.embedder.CallCount())

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.VectorCount)

	calls := h.audit.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, core.AuditSuccess, calls[0].kind)
	assert.Zero(t, calls[0].ticketCount)
}

func TestRun_FetchFailure(t *testing.T) {
	boom := errors.New("search down")
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return nil, boom
	}}
	h := newHarness(t, tickets, staticComments())

	start, end := dateRange()
	result, err := h.pipeline.Run(context.Background(), start, end)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, result)
	assert.Equal(t, "Failed", result.Status)
	assert.Equal(t, "audit-1", result.AuditRecordID)

	calls := h.audit.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, core.AuditFailure, calls[0].kind)
	assert.Contains(t, calls[0].errMessage, "search down")
}

func TestRun_EnrichmentFailuresAreAbsorbed(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return rangeTickets(3), nil
	}}
	comments := &fakeComments{fn: func(_ context.Context, ticketID int64) ([]core.Comment, error) {
		if ticketID == 2 {
			return nil, errors.New("comments unavailable")
		}
		return agentThread(), nil
	}}
	h := newHarness(t, tickets, comments)

	start, end := dateRange()
	result, err := h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)

	assert.Equal(t, "Success", result.Status)
	assert.Equal(t, 2, result.TicketsProcessed)
	assert.Equal(t, 6, result.TotalChunks)

	calls := h.audit.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, core.AuditSuccess, calls[0].kind)
	assert.Equal(t, 2, calls[0].ticketCount)
}

func TestRun_PinnedStampIsIdempotent(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return rangeTickets(2), nil
	}}
	h := newHarness(t, tickets, staticComments(agentThread()...), WithRunStamp(12345))

	start, end := dateRange()
	_, err := h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)
	_, err = h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)

	stats, err := h.store.Stats(context.Background())
	require.NoError(t, err)
	// Replay with the same stamp overwrites rather than duplicating.
	assert.Equal(t, 6, stats.VectorCount)
}

func TestRun_InvalidDateRange(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return nil, nil
	}}
	h := newHarness(t, tickets, staticComments())

	start, end := dateRange()
	_, err := h.pipeline.Run(context.Background(), end, start)
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
	assert.Empty(t, h.audit.recorded())
}

func TestRun_VectorMetadata(t *testing.T) {
	tickets := &fakeTicketSource{fn: func(context.Context, time.Time, time.Time) ([]core.Ticket, error) {
		return rangeTickets(1), nil
	}}
	h := newHarness(t, tickets, staticComments(agentThread()...), WithRunTag("unit"))

	start, end := dateRange()
	_, err := h.pipeline.Run(context.Background(), start, end)
	require.NoError(t, err)

	query, err := h.embedder.EmbedText(context.Background(), "Subject")
	require.NoError(t, err)
	matches, err := h.store.Query(context.Background(), query, 10, true,
		map[string]any{"type": string(core.ChunkTypeOverview)})
	require.NoError(t, err)
	require.Len(t, matches, 1)

	match := matches[0]
	assert.Contains(t, match.ID, "unit-ticket-1-chunk-0-")
	assert.Equal(t, "Subject", match.Metadata["subject"])
	assert.Equal(t, "unit", match.Metadata["source"])
	assert.NotEmpty(t, match.Metadata["text"])
	assert.NotEmpty(t, match.Metadata["imported_at"])
}
