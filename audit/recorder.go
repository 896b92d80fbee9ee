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


package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// SuccessObjectKey is the custom-object type holding success records.
	SuccessObjectKey = "deskrag_import_success"

	// FailureObjectKey is the custom-object type holding failure records.
	FailureObjectKey = "deskrag_import_failure"

	dateLayout          = "2006-01-02"
	maxErrorDetailChars = 2000
)

// ObjectAPI is the custom-object surface of the ticketing client used
// by the recorder.
type ObjectAPI interface {
	CustomObjectExists(ctx context.Context, key string) (bool, error)
	CreateCustomObject(ctx context.Context, key, title, titlePluralized string) error
	CreateCustomObjectField(ctx context.Context, objectKey, fieldKey, fieldType, title string) error
	CreateCustomObjectRecord(ctx context.Context, objectKey, name string) (string, error)
	UpdateCustomObjectRecord(ctx context.Context, objectKey, recordID string, fields map[string]any) error
}

type fieldDef struct {
	key       string
	fieldType string
	title     string
}

var successFields = []fieldDef{
	{"import_date", "date", "Import Date"},
	{"start_date", "date", "Start Date"},
	{"end_date", "date", "End Date"},
	{"ticket_count", "integer", "Ticket Count"},
	{"source", "text", "Source"},
}

var failureFields = []fieldDef{
	{"error_date", "date", "Error Date"},
	{"start_date", "date", "Start Date"},
	{"end_date", "date", "End Date"},
	{"error_message", "text", "Error Message"},
	{"error_details", "text", "Error Details"},
	{"source", "text", "Source"},
}

// Recorder writes import audit records through a ticketing custom-object
// API.
type Recorder struct {
	api    ObjectAPI
	source string
	logger *slog.Logger
}

// NewRecorder creates a recorder tagging records with the given source.
func NewRecorder(api ObjectAPI, source string) (*Recorder, error) {
	if api == nil {
		return nil, ErrObjectAPIRequired
	}
	if source == "" {
		source = "deskrag"
	}
	return &Recorder{
		api:    api,
		source: source,
		logger: slog.Default().With("component", "audit-recorder"),
	}, nil
}

// EnsureSchema idempotently creates the success and failure object types
// and their fields. Field creation is always attempted; the client maps
// the platform's 422 "already exists" response to success, so a second
// startup is a no-op.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if err := r.ensureObject(ctx, SuccessObjectKey, "Import Success", "Import Successes", successFields); err != nil {
		return err
	}
	return r.ensureObject(ctx, FailureObjectKey, "Import Failure", "Import Failures", failureFields)
}

func (r *Recorder) ensureObject(ctx context.Context, key, title, titlePluralized string, fields []fieldDef) error {
	exists, err := r.api.CustomObjectExists(ctx, key)
	if err != nil {
		return fmt.Errorf("probe custom object %s: %w", key, err)
	}
	if !exists {
		if err := r.api.CreateCustomObject(ctx, key, title, titlePluralized); err != nil {
			return fmt.Errorf("create custom object %s: %w", key, err)
		}
		r.logger.Info("created audit object type", "key", key)
	}

	for _, field := range fields {
		if err := r.api.CreateCustomObjectField(ctx, key, field.key, field.fieldType, field.title); err != nil {
			return fmt.Errorf("create field %s on %s: %w", field.key, key, err)
		}
	}
	return nil
}

// RecordSuccess writes a success record for the run and returns its id.
// Write failures are logged and reported as an empty id with a nil
// error; ingestion never fails on audit.
func (r *Recorder) RecordSuccess(ctx context.Context, start, end time.Time, ticketCount int) (string, error) {
	name := fmt.Sprintf("Import %s (%s)", time.Now().UTC().Format(dateLayout), shortID())
	fields := map[string]any{
		"import_date":  time.Now().UTC().Format(dateLayout),
		"start_date":   start.Format(dateLayout),
		"end_date":     end.Format(dateLayout),
		"ticket_count": ticketCount,
		"source":       r.source,
	}
	return r.writeRecord(ctx, SuccessObjectKey, name, fields), nil
}

// RecordFailure writes a failure record for the run and returns its id.
// Write failures are logged and reported as an empty id with a nil
// error.
func (r *Recorder) RecordFailure(ctx context.Context, start, end time.Time, errMessage, errDetails string) (string, error) {
	if len(errDetails) > maxErrorDetailChars {
		errDetails = errDetails[:maxErrorDetailChars]
	}

	name := fmt.Sprintf("Import Failure %s (%s)", time.Now().UTC().Format(dateLayout), shortID())
	fields := map[string]any{
		"error_date":    time.Now().UTC().Format(dateLayout),
		"start_date":    start.Format(dateLayout),
		"end_date":      end.Format(dateLayout),
		"error_message": errMessage,
		"error_details": errDetails,
		"source":        r.source,
	}
	return r.writeRecord(ctx, FailureObjectKey, name, fields), nil
}

// writeRecord runs the platform's two-step protocol: create the record
// with a name only, then patch in the field values. The schema rejects
// field values on freshly created object types, hence the split.
func (r *Recorder) writeRecord(ctx context.Context, objectKey, name string, fields map[string]any) string {
	recordID, err := r.api.CreateCustomObjectRecord(ctx, objectKey, name)
	if err != nil {
		r.logger.Error("audit record create failed", "object", objectKey, "err", err)
		return ""
	}

	if err := r.api.UpdateCustomObjectRecord(ctx, objectKey, recordID, fields); err != nil {
		r.logger.Error("audit record patch failed",
			"object", objectKey, "record_id", recordID, "err", err)
		return recordID
	}

	r.logger.Info("audit record written", "object", objectKey, "record_id", recordID)
	return recordID
}

func shortID() string {
	return uuid.NewString()[:8]
}
