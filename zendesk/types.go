package zendesk

import (
	"time"

	"github.com/poiesic/deskrag/core"
)

// Wire representations of Zendesk API payloads. Conversion to core types
// happens at the package boundary so nothing downstream sees JSON tags.

type apiTicket struct {
	ID           int64           `json:"id"`
	Subject      string          `json:"subject"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	Priority     string          `json:"priority"`
	Tags         []string        `json:"tags"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	RequesterID  int64           `json:"requester_id"`
	AssigneeID   *int64          `json:"assignee_id"`
	CustomFields []apiFieldValue `json:"custom_fields"`
}

type apiFieldValue struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

func (t apiTicket) toCore() core.Ticket {
	ticket := core.Ticket{
		ID:          t.ID,
		Subject:     t.Subject,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        t.Tags,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		RequesterID: t.RequesterID,
	}
	if t.AssigneeID != nil {
		ticket.AssigneeID = *t.AssigneeID
	}
	for _, field := range t.CustomFields {
		ticket.CustomFields = append(ticket.CustomFields, core.TicketFieldValue{
			FieldID: field.ID,
			Value:   field.Value,
		})
	}
	return ticket
}

type apiComment struct {
	AuthorID  int64     `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Public    bool      `json:"public"`
}

func (c apiComment) toCore() core.Comment {
	return core.Comment{
		AuthorID:  c.AuthorID,
		Body:      c.Body,
		CreatedAt: c.CreatedAt,
		Public:    c.Public,
	}
}

type apiTicketField struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Type        string `json:"type"`
	Key         string `json:"key,omitempty"`
	Description string `json:"description"`
}

func (f apiTicketField) toCore() core.FieldDescriptor {
	return core.FieldDescriptor{
		ID:          f.ID,
		Title:       f.Title,
		Type:        f.Type,
		Key:         f.Key,
		Description: f.Description,
	}
}
