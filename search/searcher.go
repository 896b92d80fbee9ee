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


package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/deskrag/ai"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/vectorstore"
)

const (
	// DefaultTopK is the match count used when the caller passes zero.
	DefaultTopK = 10

	ticketContextLimit = 20
	replyContextLimit  = 5
)

// Hit is one matched chunk.
type Hit struct {
	VectorID string  `json:"vector_id"`
	Score    float32 `json:"score"`
	Type     string  `json:"type"`
	Text     string  `json:"text"`
}

// TicketResult groups a ticket's matched chunks, ranked by best score.
type TicketResult struct {
	TicketID  int64   `json:"ticket_id"`
	Subject   string  `json:"subject"`
	BestScore float32 `json:"best_score"`
	Hits      []Hit   `json:"hits"`
}

// Searcher runs semantic retrieval and composition over ingested
// tickets.
type Searcher struct {
	store    vectorstore.Store
	embedder ai.Embedder
	composer ai.Composer
	minScore float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithMinScore drops matches scoring below the threshold. Default is 0,
// keeping everything the store returns.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		s.minScore = score
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// NewSearcher creates a searcher over the given store and AI services.
func NewSearcher(store vectorstore.Store, embedder ai.Embedder, composer ai.Composer, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if composer == nil {
		return nil, ErrComposerRequired
	}

	s := &Searcher{
		store:    store,
		embedder: embedder,
		composer: composer,
		logger:   slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Search embeds the query, retrieves the topK nearest chunks subject to
// the optional metadata filter, and groups them per ticket ranked by
// each ticket's best-scoring chunk.
func (s *Searcher) Search(ctx context.Context, query string, topK int, filter map[string]any) ([]TicketResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrQueryRequired
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	matches, err := s.query(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}

	grouped := make(map[int64]*TicketResult)
	var order []int64
	for _, match := range matches {
		ticketID := metaInt64(match.Metadata, "ticket_id")
		result, seen := grouped[ticketID]
		if !seen {
			result = &TicketResult{
				TicketID: ticketID,
				Subject:  metaString(match.Metadata, "subject"),
			}
			grouped[ticketID] = result
			order = append(order, ticketID)
		}
		if match.Score > result.BestScore {
			result.BestScore = match.Score
		}
		result.Hits = append(result.Hits, Hit{
			VectorID: match.ID,
			Score:    match.Score,
			Type:     metaString(match.Metadata, "type"),
			Text:     metaString(match.Metadata, "text"),
		})
	}

	results := make([]TicketResult, 0, len(order))
	for _, ticketID := range order {
		results = append(results, *grouped[ticketID])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].BestScore > results[j].BestScore
	})

	s.logger.Debug("search complete", "query", query, "matches", len(matches), "tickets", len(results))
	return results, nil
}

// Summarize retrieves up to ticketContextLimit indexed chunks of a ticket and asks the
// composer for a short summary. Returns core.ErrNotFound when the
// ticket has no indexed content.
func (s *Searcher) Summarize(ctx context.Context, ticketID int64) (string, error) {
	matches, err := s.query(ctx, fmt.Sprintf("Ticket %d", ticketID), ticketContextLimit,
		map[string]any{"ticket_id": ticketID})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no indexed content for ticket %d", core.ErrNotFound, ticketID)
	}
	return s.composer.SummarizeTicket(ctx, joinContext(matches))
}

// DraftReply retrieves resolutions similar to the question and asks the
// composer to draft a support reply grounded on them.
func (s *Searcher) DraftReply(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrQueryRequired
	}

	matches, err := s.query(ctx, question, replyContextLimit,
		map[string]any{"type": string(core.ChunkTypeResolution)})
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no resolutions indexed", core.ErrNotFound)
	}
	return s.composer.DraftReply(ctx, question, joinContext(matches))
}

func (s *Searcher) query(ctx context.Context, text string, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.Query(ctx, embedding, topK, true, filter)
	if err != nil {
		return nil, fmt.Errorf("query vector store: %w", err)
	}

	if s.minScore <= 0 {
		return matches, nil
	}
	kept := matches[:0]
	for _, match := range matches {
		if match.Score >= s.minScore {
			kept = append(kept, match)
		}
	}
	return kept, nil
}

// joinContext renders matches into the plain-text context block fed to
// the composer.
func joinContext(matches []vectorstore.Match) string {
	var b strings.Builder
	for i, match := range matches {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(metaString(match.Metadata, "text"))
	}
	return b.String()
}

// metaInt64 reads a numeric metadata value. Both stores round-trip
// metadata through JSON, so stored numbers come back as float64;
// int64 and int appear only in metadata that was never stored.
func metaInt64(meta map[string]any, key string) int64 {
	switch v := meta[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
