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
	"fmt"
	"sort"
	"strings"

	"github.com/poiesic/deskrag/core"
)

// MaxChunkChars bounds chunk text length. At a conservative 4 chars per
// token this keeps chunks near 1000 tokens, well inside the embedding
// model's window.
const MaxChunkChars = 4000

// Chunker decomposes enriched tickets into typed chunks: an overview,
// conversation parts, the resolution, and the custom-field projection.
// Output order is deterministic for a given ticket.
type Chunker struct{}

// NewChunker returns a ready Chunker.
func NewChunker() *Chunker {
	return &Chunker{}
}

// Chunk produces the ordered chunk list for a ticket. The overview chunk
// is always present; conversation, resolution, and custom-field chunks
// appear only when the ticket has the corresponding content.
func (c *Chunker) Chunk(ticket *core.EnrichedTicket) []core.Chunk {
	chunks := []core.Chunk{c.overviewChunk(ticket)}
	chunks = append(chunks, c.conversationChunks(ticket)...)
	if resolution := c.resolutionChunk(ticket); resolution != nil {
		chunks = append(chunks, *resolution)
	}
	if fields := c.customFieldsChunk(ticket); fields != nil {
		chunks = append(chunks, *fields)
	}
	return chunks
}

func (c *Chunker) baseMetadata(ticket *core.EnrichedTicket, chunkType core.ChunkType) core.ChunkMetadata {
	return core.ChunkMetadata{
		Type:     chunkType,
		TicketID: ticket.TicketID,
		Subject:  ticket.Subject,
		Tags:     ticket.Tags,
	}
}

func (c *Chunker) overviewChunk(ticket *core.EnrichedTicket) core.Chunk {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %d\n", ticket.TicketID)
	fmt.Fprintf(&b, "Subject: %s\n", ticket.Subject)
	fmt.Fprintf(&b, "Description: %s\n", ticket.Description)
	fmt.Fprintf(&b, "Status: %s\n", ticket.Status)
	fmt.Fprintf(&b, "Priority: %s\n", ticket.Priority)
	fmt.Fprintf(&b, "Tags: %s", strings.Join(ticket.Tags, ", "))

	if len(ticket.CustomFields) > 0 {
		b.WriteString("\nCustom Fields:")
		for _, name := range sortedFieldNames(ticket.CustomFields) {
			fmt.Fprintf(&b, "\n%s: %s", name, ticket.CustomFields[name].Value.String())
		}
	}

	return core.Chunk{
		Text:     b.String(),
		Metadata: c.baseMetadata(ticket, core.ChunkTypeOverview),
	}
}

// conversationChunks serializes the full thread and splits it into
// fixed-size parts when it exceeds MaxChunkChars. Every part names its
// ticket: continuation parts repeat the conversation header, and each
// part of a split carries a trailing "[Part k/N]" marker.
func (c *Chunker) conversationChunks(ticket *core.EnrichedTicket) []core.Chunk {
	if len(ticket.Conversation) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %d Conversation:", ticket.TicketID)
	for i, entry := range ticket.Conversation {
		fmt.Fprintf(&b, "\n%d. %s: %s", i+1, entry.Role.String(), entry.Message)
	}
	text := b.String()

	if len([]rune(text)) <= MaxChunkChars {
		return []core.Chunk{{
			Text:     text,
			Metadata: c.baseMetadata(ticket, core.ChunkTypeConversation),
		}}
	}

	parts := splitRunes(text, MaxChunkChars)
	chunks := make([]core.Chunk, 0, len(parts))
	for i, part := range parts {
		if i > 0 {
			part = fmt.Sprintf("Ticket %d Conversation (cont.):\n%s", ticket.TicketID, part)
		}
		metadata := c.baseMetadata(ticket, core.ChunkTypeConversation)
		metadata.Part = i + 1
		metadata.TotalParts = len(parts)
		chunks = append(chunks, core.Chunk{
			Text:     fmt.Sprintf("%s\n[Part %d/%d]", part, i+1, len(parts)),
			Metadata: metadata,
		})
	}
	return chunks
}

func (c *Chunker) resolutionChunk(ticket *core.EnrichedTicket) *core.Chunk {
	if ticket.Resolution == nil {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %d Resolution\n", ticket.TicketID)
	fmt.Fprintf(&b, "Problem: %s\n", ticket.Subject)
	fmt.Fprintf(&b, "Solution: %s\n", *ticket.Resolution)
	fmt.Fprintf(&b, "Related Tags: %s", strings.Join(ticket.Tags, ", "))

	return &core.Chunk{
		Text:     b.String(),
		Metadata: c.baseMetadata(ticket, core.ChunkTypeResolution),
	}
}

func (c *Chunker) customFieldsChunk(ticket *core.EnrichedTicket) *core.Chunk {
	if len(ticket.CustomFields) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %d Custom Fields:", ticket.TicketID)
	for _, name := range sortedFieldNames(ticket.CustomFields) {
		entry := ticket.CustomFields[name]
		fmt.Fprintf(&b, "\n%s (%s): %s", name, entry.Type, entry.Value.String())
	}

	metadata := c.baseMetadata(ticket, core.ChunkTypeCustomFields)
	metadata.FieldCount = len(ticket.CustomFields)
	return &core.Chunk{
		Text:     b.String(),
		Metadata: metadata,
	}
}

// VectorID builds the deterministic vector identifier for a chunk. The
// (ticketID, index) pair is unique within a run; the stamp disambiguates
// re-runs so a replay does not clobber earlier records unless the caller
// pins an identical stamp.
func VectorID(runTag string, ticketID int64, index int, runStamp int64) string {
	return fmt.Sprintf("%s-ticket-%d-chunk-%d-%d", runTag, ticketID, index, runStamp)
}

// splitRunes cuts text into consecutive segments of at most size runes.
func splitRunes(text string, size int) []string {
	runes := []rune(text)
	parts := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

func sortedFieldNames(fields map[string]core.CustomFieldEntry) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
