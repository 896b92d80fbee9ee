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


package vectorstore

import (
	"encoding/json"
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/deskrag/core"
)

// Record is the stored form of a vector: the MUS-encoded fixed part plus
// JSON-encoded metadata. Metadata stays JSON because its shape is
// schemaless (map[string]any) while id and values have a fixed layout.
type Record struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// recordSer is a hand-written MUS serializer for Record.
type recordSer struct{}

// RecordMUS serializes Records for the embedded store.
var RecordMUS = recordSer{}

func (recordSer) Size(r Record) (int, error) {
	metaJSON, err := json.Marshal(r.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal record metadata: %w", err)
	}
	size := ord.String.Size(r.ID)
	size += varint.PositiveInt.Size(len(r.Values))
	for _, v := range r.Values {
		size += raw.Float32.Size(v)
	}
	size += ord.String.Size(string(metaJSON))
	return size, nil
}

func (recordSer) Marshal(r Record, bs []byte) (int, error) {
	metaJSON, err := json.Marshal(r.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal record metadata: %w", err)
	}
	n := ord.String.Marshal(r.ID, bs)
	n += varint.PositiveInt.Marshal(len(r.Values), bs[n:])
	for _, v := range r.Values {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	n += ord.String.Marshal(string(metaJSON), bs[n:])
	return n, nil
}

func (recordSer) Unmarshal(bs []byte) (Record, int, error) {
	var r Record

	id, n, err := ord.String.Unmarshal(bs)
	if err != nil {
		return r, n, err
	}
	r.ID = id

	count, n1, err := varint.PositiveInt.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return r, n, err
	}

	r.Values = make([]float32, count)
	for i := 0; i < count; i++ {
		v, n2, err := raw.Float32.Unmarshal(bs[n:])
		n += n2
		if err != nil {
			return r, n, err
		}
		r.Values[i] = v
	}

	metaJSON, n3, err := ord.String.Unmarshal(bs[n:])
	n += n3
	if err != nil {
		return r, n, err
	}
	if metaJSON != "" && metaJSON != "null" {
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return r, n, fmt.Errorf("unmarshal record metadata: %w", err)
		}
	}

	return r, n, nil
}

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(r Record) ([]byte, error) {
	size, err := RecordMUS.Size(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := RecordMUS.Marshal(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (Record, error) {
	r, _, err := RecordMUS.Unmarshal(data)
	return r, err
}

// RecordFromVector converts a core.Vector to its stored form.
func RecordFromVector(v core.Vector) Record {
	return Record{
		ID:       v.ID,
		Values:   v.Values,
		Metadata: v.Metadata,
	}
}
