package zendesk

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialsRequired is returned when subdomain, email, or API
	// token are missing at construction time.
	ErrCredentialsRequired = errors.New("zendesk credentials required")

	// ErrClientRequired is returned when a nil client is passed to a
	// component constructor.
	ErrClientRequired = errors.New("zendesk client required")
)

// APIError carries the status code and response body of a failed request.
// It is always wrapped under core.ErrPermanent or core.ErrTransient so
// callers can classify with errors.Is and inspect with errors.As.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
