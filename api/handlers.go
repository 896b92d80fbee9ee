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


package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/deskrag/core"
	"github.com/poiesic/deskrag/ingestion"
	"github.com/poiesic/deskrag/search"
	"github.com/poiesic/deskrag/vectorstore"
)

const dateLayout = "2006-01-02"

// Handler serves the JSON API. The pipeline is nil when ticketing
// credentials are not configured; ingest requests then fail with 503.
type Handler struct {
	pipeline *ingestion.Pipeline
	searcher *search.Searcher
	store    vectorstore.Store
	logger   *slog.Logger
}

// NewHandler creates the API handler. pipeline may be nil.
func NewHandler(pipeline *ingestion.Pipeline, searcher *search.Searcher, store vectorstore.Store) *Handler {
	return &Handler{
		pipeline: pipeline,
		searcher: searcher,
		store:    store,
		logger:   slog.Default().With("component", "api"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns vector store statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type ingestRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Ingest runs the pipeline over the requested date range and returns
// the run result.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Error: "ticketing credentials are not configured; ingestion is unavailable"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid start_date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid end_date, expected YYYY-MM-DD"})
		return
	}

	result, runErr := h.pipeline.Run(r.Context(), start, end)
	if runErr != nil {
		h.logger.Error("ingestion run failed", "err", runErr)
		if result != nil {
			// Surface the structured envelope alongside the failure.
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":  runErr.Error(),
				"result": result,
			})
			return
		}
		h.writeError(w, runErr)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query  string         `json:"query"`
	TopK   int            `json:"top_k"`
	Filter map[string]any `json:"filter"`
}

// Search runs semantic retrieval and returns per-ticket results.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	results, err := h.searcher.Search(r.Context(), req.Query, req.TopK, req.Filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Summarize returns a composed summary of one ticket's indexed content.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	ticketID, err := strconv.ParseInt(chi.URLParam(r, "ticketID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ticket id"})
		return
	}

	summary, err := h.searcher.Summarize(r.Context(), ticketID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_id": ticketID, "summary": summary})
}

type replyRequest struct {
	Question string `json:"question"`
}

// DraftReply composes a support reply grounded on retrieved resolutions.
func (h *Handler) DraftReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	reply, err := h.searcher.DraftReply(r.Context(), req.Question)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, search.ErrQueryRequired), errors.Is(err, core.ErrInvalidDateRange):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("encode response", "err", err)
	}
}
