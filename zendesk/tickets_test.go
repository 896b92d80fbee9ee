package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/deskrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchDates() (time.Time, time.Time) {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
}

func ticketJSON(id int64) map[string]any {
	return map[string]any{
		"id":           id,
		"subject":      fmt.Sprintf("Ticket %d", id),
		"description":  "desc",
		"status":       "solved",
		"priority":     "normal",
		"requester_id": 100,
		"created_at":   "2025-03-02T10:00:00Z",
	}
}

func TestSearchTicketsCreatedBetween(t *testing.T) {
	var server *httptest.Server
	var queries []string

	mux := http.NewServeMux()
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("query"))
		next := server.URL + "/page2"
		json.NewEncoder(w).Encode(map[string]any{
			"results":   []any{ticketJSON(1), ticketJSON(2)},
			"next_page": next,
		})
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{ticketJSON(3)},
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient("acme", "a@b.c", "tok",
		WithBaseURL(server.URL), WithRetry(1, time.Millisecond), WithPageDelay(0))
	require.NoError(t, err)

	start, end := searchDates()
	tickets, err := client.SearchTicketsCreatedBetween(context.Background(), start, end)
	require.NoError(t, err)

	require.Len(t, tickets, 3)
	assert.Equal(t, int64(1), tickets[0].ID)
	assert.Equal(t, int64(3), tickets[2].ID)
	assert.Equal(t, "Ticket 1", tickets[0].Subject)
	assert.Equal(t, int64(100), tickets[0].RequesterID)

	require.Len(t, queries, 1)
	assert.Equal(t, "type:ticket created>=2025-03-01 created<=2025-03-31", queries[0])
}

func TestSearchTickets_LaterPageFailureTruncates(t *testing.T) {
	var server *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results":   []any{ticketJSON(1)},
			"next_page": server.URL + "/page2",
		})
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient("acme", "a@b.c", "tok",
		WithBaseURL(server.URL), WithRetry(1, time.Millisecond), WithPageDelay(0))
	require.NoError(t, err)

	start, end := searchDates()
	tickets, err := client.SearchTicketsCreatedBetween(context.Background(), start, end)
	require.NoError(t, err, "partial progress is kept")
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(1), tickets[0].ID)
}

func TestSearchTickets_FirstPageFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := NewClient("acme", "a@b.c", "tok",
		WithBaseURL(server.URL), WithRetry(1, time.Millisecond), WithPageDelay(0))
	require.NoError(t, err)

	start, end := searchDates()
	_, err = client.SearchTicketsCreatedBetween(context.Background(), start, end)
	assert.ErrorIs(t, err, core.ErrTransient)
}

func TestSearchTickets_InvalidRange(t *testing.T) {
	client, err := NewClient("acme", "a@b.c", "tok")
	require.NoError(t, err)

	start, end := searchDates()
	_, err = client.SearchTicketsCreatedBetween(context.Background(), end, start)
	assert.ErrorIs(t, err, core.ErrInvalidDateRange)
}
