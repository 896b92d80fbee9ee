package audit

import "errors"

// ErrObjectAPIRequired is returned when a custom-object API client is
// not provided.
var ErrObjectAPIRequired = errors.New("custom object API required")
