package mock

import "context"

// MockComposer is a test double for ai.Composer.
// It allows custom behavior injection via function fields.
type MockComposer struct {
	// SummarizeTicketFunc is called by SummarizeTicket if set.
	SummarizeTicketFunc func(ctx context.Context, ticketContext string) (string, error)

	// DraftReplyFunc is called by DraftReply if set.
	DraftReplyFunc func(ctx context.Context, question, ticketContext string) (string, error)
}

// NewMockComposer creates a mock composer with default canned output.
func NewMockComposer() *MockComposer {
	return &MockComposer{}
}

// SummarizeTicket returns a canned summary unless a custom func is set.
func (m *MockComposer) SummarizeTicket(ctx context.Context, ticketContext string) (string, error) {
	if m.SummarizeTicketFunc != nil {
		return m.SummarizeTicketFunc(ctx, ticketContext)
	}
	return "mock summary", nil
}

// DraftReply returns a canned reply unless a custom func is set.
func (m *MockComposer) DraftReply(ctx context.Context, question, ticketContext string) (string, error) {
	if m.DraftReplyFunc != nil {
		return m.DraftReplyFunc(ctx, question, ticketContext)
	}
	return "mock reply", nil
}
