package ingestion

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// EnrichmentProgress reports per-ticket progress for the enriching phase
// of a run, typically to os.Stderr. The pipeline's worker pool feeds it
// one TicketDone or TicketSkipped call per ticket; a progress line is
// rewritten in place every `every` processed tickets, and Finish emits a
// closing summary that includes how many tickets were dropped.
type EnrichmentProgress struct {
	writer io.Writer
	total  int
	every  int

	mu      sync.Mutex
	began   time.Time
	running bool
	done    int
	skipped int
	emitted int
}

// NewEnrichmentProgress creates a reporter for a phase processing total
// tickets, emitting a line every `every` tickets.
func NewEnrichmentProgress(writer io.Writer, total, every int) *EnrichmentProgress {
	if every < 1 {
		every = 1
	}
	return &EnrichmentProgress{writer: writer, total: total, every: every}
}

// Begin marks the start of the phase and resets all counters.
func (ep *EnrichmentProgress) Begin() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.began = time.Now()
	ep.running = true
	ep.done = 0
	ep.skipped = 0
	ep.emitted = 0
}

// TicketDone records one successfully enriched ticket.
func (ep *EnrichmentProgress) TicketDone() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.advance(false)
}

// TicketSkipped records a ticket dropped after an enrichment failure.
func (ep *EnrichmentProgress) TicketSkipped() {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	ep.advance(true)
}

func (ep *EnrichmentProgress) advance(skipped bool) {
	if !ep.running {
		return
	}
	if skipped {
		ep.skipped++
	} else {
		ep.done++
	}

	if ep.processed()-ep.emitted >= ep.every {
		ep.emitted = ep.processed()
		ep.line()
	}
}

func (ep *EnrichmentProgress) processed() int {
	return ep.done + ep.skipped
}

// Finish ends the phase and emits the closing summary. Calls after
// Finish, or without Begin, are ignored.
func (ep *EnrichmentProgress) Finish() {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if !ep.running {
		return
	}
	ep.running = false

	ep.line()
	fmt.Fprintf(ep.writer, "\nenriched %d of %d tickets (%d skipped) in %s\n",
		ep.done, ep.total, ep.skipped, time.Since(ep.began).Round(time.Millisecond))
}

// line rewrites the in-place progress line. Caller holds the lock.
func (ep *EnrichmentProgress) line() {
	processed := ep.processed()

	percent := 0.0
	if ep.total > 0 {
		percent = float64(processed) / float64(ep.total) * 100.0
	}

	rate := 0.0
	if elapsed := time.Since(ep.began); elapsed > 0 {
		rate = float64(processed) / elapsed.Seconds()
	}

	fmt.Fprintf(ep.writer, "\renriching: %d/%d tickets (%.1f%%), %d skipped, %.1f tickets/s",
		processed, ep.total, percent, ep.skipped, rate)
}
