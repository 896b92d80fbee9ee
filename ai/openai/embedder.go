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


package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/core"
)

const (
	defaultBatchSize       = 50
	defaultInterBatchDelay = 1 * time.Second
	parallelEmbedWorkers   = 5
)

// Embedder implements ai.Embedder against an OpenAI-compatible embeddings
// endpoint. Requests are retried with exponential backoff, paced with a
// minimum inter-request interval, and vectors are cached by exact
// (truncated) text content for the process lifetime.
type Embedder struct {
	config     *ai.Config
	httpClient *http.Client
	cache      *embedCache
	logger     *slog.Logger

	// paceMu guards nextRequest, the earliest time the next request may
	// be sent.
	paceMu      sync.Mutex
	nextRequest time.Time
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Embedder{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		cache:      newEmbedCache(),
		logger:     slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Dimension returns the fixed output dimension of the embedding model.
func (e *Embedder) Dimension() int {
	return e.config.Dimension
}

// EmbedText generates a unit vector embedding for a single text.
// Identical texts hit the process-lifetime cache and bypass the network.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	text = truncateText(text, ai.MaxSafeChars)

	if vector, ok := e.cache.get(text); ok {
		return vector, nil
	}

	vectors, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	e.cache.put(text, vectors[0])
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts, preserving input
// order and length. Texts are processed in sequential sub-batches of
// opts.BatchSize with opts.InterBatchDelay pauses between them; a failure
// inside a batch fails the whole call.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string, opts *ai.BatchOptions) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := defaultBatchSize
	interBatchDelay := defaultInterBatchDelay
	var onProgress func(done, total int)
	if opts != nil {
		if opts.BatchSize > 0 {
			batchSize = opts.BatchSize
		}
		if opts.InterBatchDelay > 0 {
			interBatchDelay = opts.InterBatchDelay
		}
		onProgress = opts.OnProgress
	}

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := e.embedSlice(ctx, texts[start:end], results[start:end]); err != nil {
			return nil, err
		}

		if onProgress != nil {
			onProgress(end, len(texts))
		}
		if end < len(texts) {
			if err := sleepContext(ctx, interBatchDelay); err != nil {
				return nil, err
			}
		}
	}

	return results, nil
}

// EmbedBatchParallel embeds texts with bounded concurrency. Order and
// length of the result match the input. The worker cap and the shared
// request pacing keep the effective request rate within the same limits
// as the sequential path.
func (e *Embedder) EmbedBatchParallel(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(parallelEmbedWorkers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	var wg sync.WaitGroup

	for i, text := range texts {
		wg.Add(1)
		i, text := i, text
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i], errs[i] = e.EmbedText(ctx, text)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// ClearCache drops all cached vectors. Intended for test isolation and
// long-lived processes that want to bound memory.
func (e *Embedder) ClearCache() {
	e.cache.clear()
}

// CacheStats reports the cache entry count and a conservative memory
// estimate.
func (e *Embedder) CacheStats() ai.CacheStats {
	return e.cache.stats()
}

// embedSlice fills out with vectors for texts, consulting the cache per
// text and requesting only the misses in a single API call.
func (e *Embedder) embedSlice(ctx context.Context, texts []string, out [][]float32) error {
	truncated := make([]string, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		truncated[i] = truncateText(text, ai.MaxSafeChars)
		if vector, ok := e.cache.get(truncated[i]); ok {
			out[i] = vector
			continue
		}
		missTexts = append(missTexts, truncated[i])
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return nil
	}

	vectors, err := e.request(ctx, missTexts)
	if err != nil {
		return err
	}

	for j, idx := range missIndexes {
		e.cache.put(truncated[idx], vectors[j])
		out[idx] = vectors[j]
	}
	return nil
}

// request sends one embeddings API call for the given inputs, retrying
// transient failures. Returned vectors are unit-normalized and validated
// against the configured dimension.
func (e *Embedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{
		"model":           e.config.EmbeddingModel,
		"input":           inputs,
		"encoding_format": "float",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal embeddings request: %w", core.ErrPermanent, err)
	}

	url := e.config.BaseURL + "/embeddings"

	var lastErr error
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		if err := e.pace(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: build embeddings request: %w", core.ErrPermanent, err)
		}
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: embeddings request: %w", core.ErrTransient, err)
			e.logger.Debug("embeddings request failed, will retry",
				"attempt", attempt, "err", err)
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("%w: read embeddings response: %w", core.ErrTransient, readErr)
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return e.decodeVectors(body, len(inputs))

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryAfterDelay(resp.Header, e.retryDelay(attempt))
			lastErr = fmt.Errorf("%w: embeddings API rate limited (status 429)", core.ErrTransient)
			e.logger.Warn("embeddings rate limited, honoring retry hint",
				"delay", delay, "attempt", attempt)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: embedding model %q not found (status 404)",
				core.ErrPermanent, e.config.EmbeddingModel)

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: embeddings API status %d: %s",
				core.ErrTransient, resp.StatusCode, truncateBody(body))
			e.logger.Debug("embeddings server error, will retry",
				"status", resp.StatusCode, "attempt", attempt)
			if err := e.backoff(ctx, attempt); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: embeddings API status %d: %s",
				core.ErrPermanent, resp.StatusCode, truncateBody(body))
		}
	}

	return nil, lastErr
}

func (e *Embedder) decodeVectors(body []byte, want int) ([][]float32, error) {
	var envelope struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decode embeddings response: %w", core.ErrPermanent, err)
	}
	if len(envelope.Data) != want {
		return nil, fmt.Errorf("%w: embeddings response has %d vectors, want %d",
			core.ErrPermanent, len(envelope.Data), want)
	}

	vectors := make([][]float32, len(envelope.Data))
	for i, item := range envelope.Data {
		if len(item.Embedding) != e.config.Dimension {
			return nil, fmt.Errorf("%w: embedding dimension %d, want %d",
				core.ErrPermanent, len(item.Embedding), e.config.Dimension)
		}
		vectors[i] = core.NormalizeVector(item.Embedding)
	}
	return vectors, nil
}

// pace reserves the next request slot, enforcing the minimum
// inter-request interval across all goroutines sharing the embedder.
func (e *Embedder) pace(ctx context.Context) error {
	e.paceMu.Lock()
	now := time.Now()
	next := e.nextRequest
	if next.Before(now) {
		next = now
	}
	e.nextRequest = next.Add(e.config.MinRequestInterval)
	e.paceMu.Unlock()

	return sleepContext(ctx, next.Sub(now))
}

func (e *Embedder) retryDelay(attempt int) time.Duration {
	delay := e.config.RetryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (e *Embedder) backoff(ctx context.Context, attempt int) error {
	if attempt >= e.config.MaxAttempts {
		return nil
	}
	return sleepContext(ctx, e.retryDelay(attempt))
}

// retryAfterDelay parses a Retry-After header expressed in seconds,
// falling back to the provided delay when absent or malformed.
func retryAfterDelay(header http.Header, fallback time.Duration) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds < 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext sleeps for the given duration or until the context is done.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncateBody(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
