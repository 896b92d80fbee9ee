package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateTicket(t *testing.T) {
	valid := &Ticket{ID: 1, RequesterID: 100}
	assert.NoError(t, ValidateTicket(valid))

	assert.ErrorIs(t, ValidateTicket(nil), ErrInvalidTicket)
	assert.ErrorIs(t, ValidateTicket(&Ticket{ID: 0, RequesterID: 100}), ErrInvalidTicket)
	assert.ErrorIs(t, ValidateTicket(&Ticket{ID: 1, RequesterID: 0}), ErrInvalidTicket)

	// Empty subject and description are legitimate.
	assert.NoError(t, ValidateTicket(&Ticket{ID: 2, RequesterID: 3}))
}

func TestValidateDateRange(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateDateRange(start, end))
	assert.NoError(t, ValidateDateRange(start, start), "single-day range is valid")

	assert.ErrorIs(t, ValidateDateRange(end, start), ErrInvalidDateRange)
	assert.ErrorIs(t, ValidateDateRange(time.Time{}, end), ErrInvalidDateRange)
	assert.ErrorIs(t, ValidateDateRange(start, time.Time{}), ErrInvalidDateRange)
}
