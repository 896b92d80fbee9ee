package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentKey generates a deterministic cache key from text content using
// BLAKE2b hashing. Identical content always produces the same key.
func ContentKey(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Role identifies the author side of a conversation entry.
type Role int

const (
	// RoleCustomer represents the ticket requester.
	RoleCustomer Role = iota + 1
	// RoleAgent represents any non-requester author, typically support staff.
	RoleAgent
)

// String returns the canonical name of the role.
func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "Customer"
	case RoleAgent:
		return "Agent"
	default:
		return "Unknown"
	}
}

// Ticket is a raw ticket record as returned by the ticketing platform.
// Identifier uniqueness is guaranteed by the source system.
type Ticket struct {
	ID           int64
	Subject      string
	Description  string
	Status       string
	Priority     string
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RequesterID  int64
	AssigneeID   int64
	CustomFields []TicketFieldValue
}

// TicketFieldValue is an untyped (field-id, value) pair carried on a raw
// ticket. The value is typed later by projecting through the field registry.
type TicketFieldValue struct {
	FieldID int64
	Value   any
}

// Comment is a single entry in a ticket's comment thread.
type Comment struct {
	AuthorID  int64
	Body      string
	CreatedAt time.Time
	Public    bool
}

// FieldDescriptor describes a custom ticket field from the platform schema.
type FieldDescriptor struct {
	ID          int64
	Title       string
	Type        string
	Key         string
	Description string
}

// UnknownFieldDescriptor returns the synthetic descriptor used when a field
// id is not present in the registry.
func UnknownFieldDescriptor(id int64) FieldDescriptor {
	return FieldDescriptor{
		ID:    id,
		Title: "Unknown",
		Type:  "unknown",
	}
}

// ConversationEntry is one classified message of a ticket conversation.
type ConversationEntry struct {
	Role      Role
	Message   string
	Timestamp time.Time
	Public    bool
}

// CustomFieldEntry is a typed, name-addressed projection of a ticket field.
type CustomFieldEntry struct {
	Value       FieldValue
	Type        string
	Key         string
	Description string
}

// EnrichedTicket is a ticket expanded with its classified conversation,
// extracted resolution, and typed custom fields.
type EnrichedTicket struct {
	TicketID     int64
	Subject      string
	Description  string
	Status       string
	Priority     string
	Tags         []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Conversation []ConversationEntry
	// Resolution is the last agent message with a non-blank body, or nil
	// when no such message exists.
	Resolution   *string
	CustomFields map[string]CustomFieldEntry
}

// ChunkType categorizes a chunk for retrieval-time filtering.
type ChunkType string

const (
	ChunkTypeOverview     ChunkType = "overview"
	ChunkTypeConversation ChunkType = "conversation"
	ChunkTypeResolution   ChunkType = "resolution"
	ChunkTypeCustomFields ChunkType = "custom_fields"
)

// ChunkMetadata carries the structured attributes of a chunk.
// Part and TotalParts are 1-indexed and set only on split conversation
// chunks; FieldCount is set only on custom-field chunks.
type ChunkMetadata struct {
	Type       ChunkType
	TicketID   int64
	Subject    string
	Tags       []string
	Part       int
	TotalParts int
	FieldCount int
}

// ToMap flattens the metadata into the map form stored alongside vectors.
func (m ChunkMetadata) ToMap() map[string]any {
	out := map[string]any{
		"type":      string(m.Type),
		"ticket_id": m.TicketID,
		"subject":   m.Subject,
		"tags":      append([]string(nil), m.Tags...),
	}
	if m.TotalParts > 0 {
		out["part"] = m.Part
		out["total_parts"] = m.TotalParts
	}
	if m.FieldCount > 0 {
		out["field_count"] = m.FieldCount
	}
	return out
}

// Chunk is the unit of embedding: bounded text plus structured metadata.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// Vector is an embedded chunk ready for upsert into a vector store.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// AuditKind distinguishes success and failure audit records.
type AuditKind int

const (
	AuditSuccess AuditKind = iota + 1
	AuditFailure
)

// AuditRecord is the per-run record written back to the ticketing platform.
// It is created once at a run's terminal state and never updated.
type AuditRecord struct {
	Kind         AuditKind
	StartDate    time.Time
	EndDate      time.Time
	TicketCount  int
	Source       string
	Timestamp    time.Time
	ErrorMessage string
	ErrorDetails string
}
