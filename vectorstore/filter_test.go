package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesFilter(t *testing.T) {
	metadata := map[string]any{
		"type":      "overview",
		"ticket_id": int64(42),
		"priority":  "high",
	}

	t.Run("nil filter matches everything", func(t *testing.T) {
		assert.True(t, MatchesFilter(metadata, nil))
	})

	t.Run("single match", func(t *testing.T) {
		assert.True(t, MatchesFilter(metadata, map[string]any{"type": "overview"}))
	})

	t.Run("all entries must match", func(t *testing.T) {
		assert.True(t, MatchesFilter(metadata, map[string]any{
			"type":     "overview",
			"priority": "high",
		}))
		assert.False(t, MatchesFilter(metadata, map[string]any{
			"type":     "overview",
			"priority": "low",
		}))
	})

	t.Run("missing key fails", func(t *testing.T) {
		assert.False(t, MatchesFilter(metadata, map[string]any{"status": "open"}))
	})

	t.Run("numbers match across int and float forms", func(t *testing.T) {
		// JSON round trips turn int64 into float64; equality must survive.
		assert.True(t, MatchesFilter(map[string]any{"ticket_id": float64(42)},
			map[string]any{"ticket_id": int64(42)}))
		assert.True(t, MatchesFilter(metadata, map[string]any{"ticket_id": 42}))
		assert.False(t, MatchesFilter(metadata, map[string]any{"ticket_id": 43}))
	})
}
