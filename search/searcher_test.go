package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/deskrag/ai/mock"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	vectorstore.Store

	queryFn    func(ctx context.Context, vector []float32, topK int, includeMetadata bool, filter map[string]any) ([]vectorstore.Match, error)
	lastTopK   int
	lastFilter map[string]any
}

func (f *fakeStore) Query(ctx context.Context, vector []float32, topK int, includeMetadata bool, filter map[string]any) ([]vectorstore.Match, error) {
	f.lastTopK = topK
	f.lastFilter = filter
	if f.queryFn != nil {
		return f.queryFn(ctx, vector, topK, includeMetadata, filter)
	}
	return nil, nil
}

func match(id string, score float32, ticketID float64, meta map[string]any) vectorstore.Match {
	m := map[string]any{
		// JSON round trips deliver numbers as float64.
		"ticket_id": ticketID,
	}
	for k, v := range meta {
		m[k] = v
	}
	return vectorstore.Match{ID: id, Score: score, Metadata: m}
}

func newTestSearcher(t *testing.T, store *fakeStore, opts ...Option) *Searcher {
	t.Helper()
	searcher, err := NewSearcher(store, mock.NewMockEmbedder(), mock.NewMockComposer(), opts...)
	require.NoError(t, err)
	return searcher
}

func TestNewSearcher_Validation(t *testing.T) {
	store := &fakeStore{}
	embedder := mock.NewMockEmbedder()
	composer := mock.NewMockComposer()

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder, composer)
		assert.Equal(t, ErrStoreRequired, err)
	})
	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(store, nil, composer)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
	t.Run("nil composer", func(t *testing.T) {
		_, err := NewSearcher(store, embedder, nil)
		assert.Equal(t, ErrComposerRequired, err)
	})
}

func TestSearch_GroupsPerTicket(t *testing.T) {
	store := &fakeStore{queryFn: func(context.Context, []float32, int, bool, map[string]any) ([]vectorstore.Match, error) {
		return []vectorstore.Match{
			match("a-1", 0.70, 1, map[string]any{"subject": "Login loop", "type": "overview", "text": "ticket one overview"}),
			match("b-1", 0.90, 2, map[string]any{"subject": "Printer fire", "type": "resolution", "text": "ticket two resolution"}),
			match("a-2", 0.85, 1, map[string]any{"type": "conversation", "text": "ticket one conversation"}),
		}, nil
	}}
	searcher := newTestSearcher(t, store)

	results, err := searcher.Search(context.Background(), "login", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Ticket 2's single hit outscores ticket 1's best.
	assert.Equal(t, int64(2), results[0].TicketID)
	assert.Equal(t, "Printer fire", results[0].Subject)
	assert.Equal(t, float32(0.90), results[0].BestScore)
	require.Len(t, results[0].Hits, 1)

	assert.Equal(t, int64(1), results[1].TicketID)
	assert.Equal(t, "Login loop", results[1].Subject)
	assert.Equal(t, float32(0.85), results[1].BestScore)
	require.Len(t, results[1].Hits, 2)
	assert.Equal(t, "a-1", results[1].Hits[0].VectorID)
	assert.Equal(t, "overview", results[1].Hits[0].Type)
	assert.Equal(t, "ticket one overview", results[1].Hits[0].Text)
	assert.Equal(t, "a-2", results[1].Hits[1].VectorID)
}

func TestSearch_BlankQuery(t *testing.T) {
	searcher := newTestSearcher(t, &fakeStore{})
	_, err := searcher.Search(context.Background(), "   ", 5, nil)
	assert.Equal(t, ErrQueryRequired, err)
}

func TestSearch_DefaultTopK(t *testing.T) {
	store := &fakeStore{}
	searcher := newTestSearcher(t, store)

	_, err := searcher.Search(context.Background(), "anything", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopK, store.lastTopK)
}

func TestSearch_FilterPassthrough(t *testing.T) {
	store := &fakeStore{}
	searcher := newTestSearcher(t, store)

	filter := map[string]any{"type": "resolution", "priority": "high"}
	_, err := searcher.Search(context.Background(), "anything", 3, filter)
	require.NoError(t, err)
	assert.Equal(t, filter, store.lastFilter)
}

func TestSearch_MinScore(t *testing.T) {
	store := &fakeStore{queryFn: func(context.Context, []float32, int, bool, map[string]any) ([]vectorstore.Match, error) {
		return []vectorstore.Match{
			match("a-1", 0.95, 1, map[string]any{"text": "kept"}),
			match("b-1", 0.40, 2, map[string]any{"text": "dropped"}),
		}, nil
	}}
	searcher := newTestSearcher(t, store, WithMinScore(0.5))

	results, err := searcher.Search(context.Background(), "query", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].TicketID)
}

func TestSearch_StoreError(t *testing.T) {
	boom := errors.New("index offline")
	store := &fakeStore{queryFn: func(context.Context, []float32, int, bool, map[string]any) ([]vectorstore.Match, error) {
		return nil, boom
	}}
	searcher := newTestSearcher(t, store)

	_, err := searcher.Search(context.Background(), "query", 5, nil)
	assert.ErrorIs(t, err, boom)
}

func TestSummarize(t *testing.T) {
	store := &fakeStore{queryFn: func(context.Context, []float32, int, bool, map[string]any) ([]vectorstore.Match, error) {
		return []vectorstore.Match{
			match("a-1", 0.9, 7, map[string]any{"text": "first chunk"}),
			match("a-2", 0.8, 7, map[string]any{"text": "second chunk"}),
		}, nil
	}}

	composer := mock.NewMockComposer()
	var gotContext string
	composer.SummarizeTicketFunc = func(_ context.Context, ticketContext string) (string, error) {
		gotContext = ticketContext
		return "summary text", nil
	}

	searcher, err := NewSearcher(store, mock.NewMockEmbedder(), composer)
	require.NoError(t, err)

	summary, err := searcher.Summarize(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "summary text", summary)
	assert.Equal(t, "first chunk\n\n---\n\nsecond chunk", gotContext)
	assert.Equal(t, map[string]any{"ticket_id": int64(7)}, store.lastFilter)
	assert.Equal(t, ticketContextLimit, store.lastTopK)
}

func TestSummarize_NoContent(t *testing.T) {
	searcher := newTestSearcher(t, &fakeStore{})
	_, err := searcher.Summarize(context.Background(), 99)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDraftReply(t *testing.T) {
	store := &fakeStore{queryFn: func(context.Context, []float32, int, bool, map[string]any) ([]vectorstore.Match, error) {
		return []vectorstore.Match{
			match("r-1", 0.9, 3, map[string]any{"text": "clear the cache"}),
		}, nil
	}}

	composer := mock.NewMockComposer()
	var gotQuestion, gotContext string
	composer.DraftReplyFunc = func(_ context.Context, question, ticketContext string) (string, error) {
		gotQuestion = question
		gotContext = ticketContext
		return "draft", nil
	}

	searcher, err := NewSearcher(store, mock.NewMockEmbedder(), composer)
	require.NoError(t, err)

	reply, err := searcher.DraftReply(context.Background(), "login broken")
	require.NoError(t, err)
	assert.Equal(t, "draft", reply)
	assert.Equal(t, "login broken", gotQuestion)
	assert.Equal(t, "clear the cache", gotContext)
	assert.Equal(t, map[string]any{"type": string(core.ChunkTypeResolution)}, store.lastFilter)
	assert.Equal(t, replyContextLimit, store.lastTopK)
}

func TestDraftReply_Validation(t *testing.T) {
	t.Run("blank question", func(t *testing.T) {
		searcher := newTestSearcher(t, &fakeStore{})
		_, err := searcher.DraftReply(context.Background(), "")
		assert.Equal(t, ErrQueryRequired, err)
	})

	t.Run("no resolutions indexed", func(t *testing.T) {
		searcher := newTestSearcher(t, &fakeStore{})
		_, err := searcher.DraftReply(context.Background(), "anything")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
