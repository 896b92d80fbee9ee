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


package core

import (
	"fmt"
	"time"
)

// ValidateTicket validates a raw ticket according to domain rules.
//
// Validation rules:
//   - ID must be positive
//   - RequesterID must be positive (role classification depends on it)
//
// NOT validated (legitimately empty on some tickets):
//   - Subject, Description, Tags, AssigneeID, CustomFields
func ValidateTicket(ticket *Ticket) error {
	if ticket == nil {
		return fmt.Errorf("%w: ticket is nil", ErrInvalidTicket)
	}
	if ticket.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidTicket)
	}
	if ticket.RequesterID <= 0 {
		return fmt.Errorf("%w: requester id must be positive", ErrInvalidTicket)
	}
	return nil
}

// ValidateDateRange validates an ingestion date range. Both ends are
// inclusive at calendar-date granularity.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidDateRange)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s precedes start %s",
			ErrInvalidDateRange, end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return nil
}
