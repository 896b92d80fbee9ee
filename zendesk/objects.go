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


package zendesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/poiesic/deskrag/core"
)

// Custom object operations back the audit recorder. Record creation is
// two-step on this platform: the schema rejects custom field values on
// freshly created object types, so records are created with a name only
// and patched with their fields afterwards.

// CustomObjectExists probes for a custom object type by key.
// A 404 response maps to (false, nil).
func (c *Client) CustomObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.get(ctx, "/custom_objects/"+key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateCustomObject creates a custom object type.
func (c *Client) CreateCustomObject(ctx context.Context, key, title, titlePluralized string) error {
	body := map[string]any{
		"custom_object": map[string]any{
			"key":              key,
			"title":            title,
			"title_pluralized": titlePluralized,
		},
	}
	_, err := c.post(ctx, "/custom_objects", body)
	return err
}

// CreateCustomObjectField adds a field to a custom object type.
// A 422 response means the field already exists and is treated as success.
func (c *Client) CreateCustomObjectField(ctx context.Context, objectKey, fieldKey, fieldType, title string) error {
	body := map[string]any{
		"custom_object_field": map[string]any{
			"key":   fieldKey,
			"type":  fieldType,
			"title": title,
		},
	}
	_, err := c.post(ctx, fmt.Sprintf("/custom_objects/%s/fields", objectKey), body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return err
	}
	return nil
}

// CreateCustomObjectRecord creates a record carrying only a name and
// returns the platform-assigned record id.
func (c *Client) CreateCustomObjectRecord(ctx context.Context, objectKey, name string) (string, error) {
	body := map[string]any{
		"custom_object_record": map[string]any{
			"name": name,
		},
	}
	data, err := c.post(ctx, fmt.Sprintf("/custom_objects/%s/records", objectKey), body)
	if err != nil {
		return "", err
	}

	var envelope struct {
		CustomObjectRecord struct {
			ID string `json:"id"`
		} `json:"custom_object_record"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("%w: decode record response: %w", core.ErrPermanent, err)
	}
	return envelope.CustomObjectRecord.ID, nil
}

// UpdateCustomObjectRecord patches a record with its custom field values.
func (c *Client) UpdateCustomObjectRecord(ctx context.Context, objectKey, recordID string, fields map[string]any) error {
	body := map[string]any{
		"custom_object_record": map[string]any{
			"custom_object_fields": fields,
		},
	}
	_, err := c.patch(ctx, fmt.Sprintf("/custom_objects/%s/records/%s", objectKey, recordID), body)
	return err
}
