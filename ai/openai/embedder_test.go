package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// fakeEmbeddings serves /embeddings, returning one fixed vector per
// input. failNext controls how many leading requests error with status.
type fakeEmbeddings struct {
	requests atomic.Int32
	failNext atomic.Int32
	status   int
	headers  http.Header

	mu   sync.Mutex
	last embedRequest
}

func newFakeEmbeddings() *fakeEmbeddings {
	return &fakeEmbeddings{status: http.StatusInternalServerError}
}

func (f *fakeEmbeddings) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)

	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()

	if f.failNext.Load() > 0 {
		f.failNext.Add(-1)
		for key, values := range f.headers {
			for _, v := range values {
				w.Header().Add(key, v)
			}
		}
		w.WriteHeader(f.status)
		return
	}

	type item struct {
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	for i := range req.Input {
		data[i] = item{Embedding: []float32{float32(i + 1), 0, 0, 0}}
	}
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (f *fakeEmbeddings) lastRequest() embedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func newTestEmbedder(t *testing.T, handler http.Handler) (*Embedder, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := ai.NewConfig(
		ai.WithAPIKey("sk-test"),
		ai.WithBaseURL(server.URL),
		ai.WithEmbeddingModel("test-embed"),
		ai.WithDimension(testDim),
		ai.WithRetry(3, time.Millisecond),
		ai.WithMinRequestInterval(0),
	)
	embedder, err := newEmbedder(config)
	require.NoError(t, err)
	return embedder, server
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig())
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestEmbedText(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	vector, err := embedder.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vector, testDim)
	// The fake returns (1,0,0,0), already unit length.
	assert.Equal(t, float32(1), vector[0])

	req := fake.lastRequest()
	assert.Equal(t, "test-embed", req.Model)
	assert.Equal(t, []string{"hello"}, req.Input)
}

func TestEmbedText_CacheHit(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)
	ctx := context.Background()

	first, err := embedder.EmbedText(ctx, "same text")
	require.NoError(t, err)
	second, err := embedder.EmbedText(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fake.requests.Load(), "second call served from cache")

	stats := embedder.CacheStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Positive(t, stats.ApproxBytes)

	embedder.ClearCache()
	assert.Zero(t, embedder.CacheStats().Entries)

	_, err = embedder.EmbedText(ctx, "same text")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.requests.Load())
}

func TestEmbedText_TruncatesLongInput(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	long := strings.Repeat("a", ai.MaxSafeChars*2)
	_, err := embedder.EmbedText(context.Background(), long)
	require.NoError(t, err)

	sent := fake.lastRequest().Input[0]
	assert.Less(t, len(sent), len(long))
	assert.True(t, strings.HasSuffix(sent, truncationMarker))
}

func TestEmbedText_RetriesServerError(t *testing.T) {
	fake := newFakeEmbeddings()
	fake.failNext.Store(1)
	embedder, _ := newTestEmbedder(t, fake)

	_, err := embedder.EmbedText(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.requests.Load())
}

func TestEmbedText_RateLimitedThenOK(t *testing.T) {
	fake := newFakeEmbeddings()
	fake.status = http.StatusTooManyRequests
	fake.headers = http.Header{"Retry-After": []string{"0"}}
	fake.failNext.Store(1)
	embedder, _ := newTestEmbedder(t, fake)

	start := time.Now()
	_, err := embedder.EmbedText(context.Background(), "limited")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fake.requests.Load())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestEmbedText_ModelNotFound(t *testing.T) {
	fake := newFakeEmbeddings()
	fake.status = http.StatusNotFound
	fake.failNext.Store(10)
	embedder, _ := newTestEmbedder(t, fake)

	_, err := embedder.EmbedText(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPermanent)
	assert.Equal(t, int32(1), fake.requests.Load(), "404 is not retried")
}

func TestEmbedText_ExhaustsRetryBudget(t *testing.T) {
	fake := newFakeEmbeddings()
	fake.failNext.Store(10)
	embedder, _ := newTestEmbedder(t, fake)

	_, err := embedder.EmbedText(context.Background(), "down")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransient)
	assert.Equal(t, int32(3), fake.requests.Load())
}

func TestEmbedBatch_PreservesOrderAndLength(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	texts := []string{"first", "second", "third"}
	vectors, err := embedder.EmbedBatch(context.Background(), texts, nil)
	require.NoError(t, err)

	require.Len(t, vectors, 3)
	// The fake encodes the in-batch position in the first component.
	assert.Equal(t, float32(1), vectors[0][0])
	assert.InDelta(t, 1.0, norm(vectors[1]), 1e-5)
	assert.InDelta(t, 1.0, norm(vectors[2]), 1e-5)
}

func TestEmbedBatch_SubBatchesAndProgress(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	var progress [][2]int
	opts := &ai.BatchOptions{
		BatchSize:       2,
		InterBatchDelay: time.Millisecond,
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	}

	texts := []string{"a", "b", "c", "d", "e"}
	vectors, err := embedder.EmbedBatch(context.Background(), texts, opts)
	require.NoError(t, err)

	assert.Len(t, vectors, 5)
	assert.Equal(t, int32(3), fake.requests.Load())
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)
}

func TestEmbedBatch_CachedTextsSkipNetwork(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)
	ctx := context.Background()

	_, err := embedder.EmbedText(ctx, "warm")
	require.NoError(t, err)
	require.Equal(t, int32(1), fake.requests.Load())

	vectors, err := embedder.EmbedBatch(ctx, []string{"warm", "warm"}, nil)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, int32(1), fake.requests.Load(), "all texts cached, no request issued")
}

func TestEmbedBatch_Empty(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	vectors, err := embedder.EmbedBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, fake.requests.Load())
}

func TestEmbedBatchParallel(t *testing.T) {
	fake := newFakeEmbeddings()
	embedder, _ := newTestEmbedder(t, fake)

	texts := []string{"p1", "p2", "p3", "p4"}
	vectors, err := embedder.EmbedBatchParallel(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, 4)
	for _, v := range vectors {
		require.Len(t, v, testDim)
	}
}

func TestDecodeVectors_DimensionMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[1,2]}]}`))
	}))
	t.Cleanup(server.Close)

	config := ai.NewConfig(
		ai.WithAPIKey("sk-test"),
		ai.WithBaseURL(server.URL),
		ai.WithDimension(testDim),
		ai.WithRetry(1, time.Millisecond),
		ai.WithMinRequestInterval(0),
	)
	embedder, err := newEmbedder(config)
	require.NoError(t, err)

	_, err = embedder.EmbedText(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPermanent)
	assert.Contains(t, err.Error(), "dimension")
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum
}
