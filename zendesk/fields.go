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
	"log/slog"
	"sync"

	"github.com/poiesic/deskrag/core"
)

// FieldRegistry caches the ticket field schema for the process lifetime.
// The first GetFields call loads all pages; later calls return the cached
// map without I/O. Concurrent first callers observe a single in-flight
// load. There is no invalidation.
type FieldRegistry struct {
	client *Client
	logger *slog.Logger

	mu     sync.Mutex
	loaded bool
	fields map[int64]core.FieldDescriptor
}

// NewFieldRegistry creates a registry backed by the given client.
func NewFieldRegistry(client *Client) (*FieldRegistry, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	return &FieldRegistry{
		client: client,
		logger: slog.Default().With("component", "field-registry"),
	}, nil
}

// GetFields returns the field-id to descriptor map, loading it on first
// call. The returned map is shared and must not be modified.
func (r *FieldRegistry) GetFields(ctx context.Context) (map[int64]core.FieldDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		return r.fields, nil
	}

	fields, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	r.fields = fields
	r.loaded = true
	r.logger.Info("field schema loaded", "count", len(fields))
	return r.fields, nil
}

// Descriptor resolves a field id, falling back to the synthetic Unknown
// descriptor for ids absent from the schema.
func (r *FieldRegistry) Descriptor(ctx context.Context, id int64) (core.FieldDescriptor, error) {
	fields, err := r.GetFields(ctx)
	if err != nil {
		return core.FieldDescriptor{}, err
	}
	if descriptor, ok := fields[id]; ok {
		return descriptor, nil
	}
	return core.UnknownFieldDescriptor(id), nil
}

func (r *FieldRegistry) load(ctx context.Context) (map[int64]core.FieldDescriptor, error) {
	fields := make(map[int64]core.FieldDescriptor)

	page := "/ticket_fields.json"
	for page != "" {
		var envelope struct {
			TicketFields []apiTicketField `json:"ticket_fields"`
			NextPage     *string          `json:"next_page"`
		}
		if err := r.client.getJSON(ctx, page, &envelope); err != nil {
			return nil, err
		}

		for _, field := range envelope.TicketFields {
			fields[field.ID] = field.toCore()
		}

		page = ""
		if envelope.NextPage != nil && *envelope.NextPage != "" {
			page = *envelope.NextPage
			if err := r.client.pagePause(ctx); err != nil {
				return nil, err
			}
		}
	}

	return fields, nil
}
