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
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/deskrag/core"
)

// CommentSource supplies a ticket's comment thread in server order.
type CommentSource interface {
	ListComments(ctx context.Context, ticketID int64) ([]core.Comment, error)
}

// FieldSource supplies the custom field schema.
type FieldSource interface {
	GetFields(ctx context.Context) (map[int64]core.FieldDescriptor, error)
}

// Enricher expands raw tickets with their classified conversation,
// extracted resolution, and typed custom-field projection.
type Enricher struct {
	comments CommentSource
	fields   FieldSource
	logger   *slog.Logger
}

// NewEnricher creates an enricher backed by the given sources.
func NewEnricher(comments CommentSource, fields FieldSource) (*Enricher, error) {
	if comments == nil {
		return nil, ErrCommentSourceRequired
	}
	if fields == nil {
		return nil, ErrFieldSourceRequired
	}
	return &Enricher{
		comments: comments,
		fields:   fields,
		logger:   slog.Default().With("component", "enricher"),
	}, nil
}

// Enrich fetches the ticket's comment thread and builds its enriched
// representation. A comment authored by the ticket requester is
// classified Customer; any other author is Agent.
func (e *Enricher) Enrich(ctx context.Context, ticket core.Ticket) (*core.EnrichedTicket, error) {
	if err := core.ValidateTicket(&ticket); err != nil {
		return nil, err
	}

	comments, err := e.comments.ListComments(ctx, ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for ticket %d: %w", ticket.ID, err)
	}

	conversation := make([]core.ConversationEntry, 0, len(comments))
	for _, comment := range comments {
		role := core.RoleAgent
		if comment.AuthorID == ticket.RequesterID {
			role = core.RoleCustomer
		}
		conversation = append(conversation, core.ConversationEntry{
			Role:      role,
			Message:   comment.Body,
			Timestamp: comment.CreatedAt,
			Public:    comment.Public,
		})
	}

	customFields, err := e.projectCustomFields(ctx, ticket.CustomFields)
	if err != nil {
		return nil, err
	}

	return &core.EnrichedTicket{
		TicketID:     ticket.ID,
		Subject:      ticket.Subject,
		Description:  ticket.Description,
		Status:       ticket.Status,
		Priority:     ticket.Priority,
		Tags:         ticket.Tags,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		Conversation: conversation,
		Resolution:   extractResolution(conversation),
		CustomFields: customFields,
	}, nil
}

// extractResolution returns the message of the last Agent entry with a
// non-blank body, or nil if none exists. All agent messages are
// considered regardless of the public flag; the flag is carried on the
// conversation entries for deployments that need to filter.
func extractResolution(conversation []core.ConversationEntry) *string {
	for i := len(conversation) - 1; i >= 0; i-- {
		entry := conversation[i]
		if entry.Role != core.RoleAgent {
			continue
		}
		if strings.TrimSpace(entry.Message) == "" {
			continue
		}
		message := entry.Message
		return &message
	}
	return nil
}

// projectCustomFields resolves each non-empty (field-id, value) pair
// through the field schema into a name-addressed typed entry. Field ids
// absent from the schema are emitted under "Field_<id>" with type
// "unknown".
func (e *Enricher) projectCustomFields(ctx context.Context, raw []core.TicketFieldValue) (map[string]core.CustomFieldEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	schema, err := e.fields.GetFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load field schema: %w", err)
	}

	projected := make(map[string]core.CustomFieldEntry)
	for _, field := range raw {
		value := core.FieldValueFrom(field.Value)
		if value.IsEmpty() {
			continue
		}

		descriptor, known := schema[field.FieldID]
		name := descriptor.Title
		if !known {
			descriptor = core.UnknownFieldDescriptor(field.FieldID)
			name = fmt.Sprintf("Field_%d", field.FieldID)
		}

		projected[name] = core.CustomFieldEntry{
			Value:       value,
			Type:        descriptor.Type,
			Key:         descriptor.Key,
			Description: descriptor.Description,
		}
	}

	if len(projected) == 0 {
		return nil, nil
	}
	return projected, nil
}
