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

import "errors"

// Error taxonomy shared across the pipeline. Packages wrap these with
// fmt.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	// ErrConfig indicates a missing or inconsistent deployment setting,
	// such as an absent credential or a vector index dimension mismatch.
	// Fatal at startup.
	ErrConfig = errors.New("configuration error")

	// ErrTransient indicates a retryable remote failure (429, 5xx,
	// network reset, timeout). Surfaced only after the retry budget is
	// exhausted.
	ErrTransient = errors.New("transient remote error")

	// ErrPermanent indicates a non-retryable remote failure (non-429 4xx,
	// malformed response, unknown model). Surfaced immediately.
	ErrPermanent = errors.New("permanent remote error")

	// ErrNotFound indicates a resource-existence check returned 404.
	// Non-fatal for schema probes.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTicket indicates a ticket record failed validation.
	ErrInvalidTicket = errors.New("invalid ticket")

	// ErrInvalidDateRange indicates a missing start or end date, or an
	// end date that precedes the start date.
	ErrInvalidDateRange = errors.New("invalid date range")
)
